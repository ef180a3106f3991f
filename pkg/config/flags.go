package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --backend
// on "relay serve", "relay chat" and relayd).
type Flag struct {
	// Name is the long flag name (e.g. "backend").
	Name string

	// Shorthand is the one-letter short flag (e.g. "b"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "backend.url").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag and BindRegisteredFlags to
// avoid typos or drift from one command to another.
const (
	FlagEnv           = "env"
	FlagMode          = "mode"
	FlagStrategy      = "strategy"
	FlagBackend       = "backend"
	FlagListen        = "listen"
	FlagIdleTimeout   = "idle-timeout"
	FlagStorageDriver = "storage-driver"
	FlagStorageDSN    = "storage-dsn"
	FlagKafkaBrokers  = "kafka-brokers"
	FlagKafkaTopic    = "kafka-topic"
	FlagStreamTarget  = "stream-target"
	FlagUser          = "user"
)

// Flags is the shared registry used by the relay and relayd commands.
var Flags = FlagSet{
	FlagEnv: {
		Name:        "env",
		Shorthand:   "e",
		ViperKey:    "deployment.env",
		Description: "Deployment environment (development, compose, openshift)",
	},
	FlagMode: {
		Name:        "mode",
		Shorthand:   "m",
		ViperKey:    "deployment.mode",
		Description: "Transport strategy override (direct, proxied, buffered)",
	},
	FlagStrategy: {
		Name:        "strategy",
		ViperKey:    "deployment.mode",
		Description: "Transport strategy (direct, proxied, buffered); defaults to the deployment environment's",
	},
	FlagBackend: {
		Name:        "backend",
		Shorthand:   "b",
		ViperKey:    "backend.url",
		Description: "Chat backend URL (defaults to the deployment environment's backend)",
	},
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "relay.listen",
		Description: "Address for the relay server to listen on",
	},
	FlagIdleTimeout: {
		Name:        "idle-timeout",
		ViperKey:    "relay.idle_timeout",
		Description: "Abort a stream that produces no bytes for this long (0 disables)",
	},
	FlagStorageDriver: {
		Name:        "storage-driver",
		ViperKey:    "storage.driver",
		Description: "Transcript store (inmemory, sqlite, postgres)",
	},
	FlagStorageDSN: {
		Name:        "storage-dsn",
		Shorthand:   "s",
		ViperKey:    "storage.dsn",
		Description: "Transcript store DSN (SQLite path or libsql:// URL, or PostgreSQL connection string)",
	},
	FlagKafkaBrokers: {
		Name:        "kafka-brokers",
		ViperKey:    "events.kafka_brokers",
		Description: "Comma-separated Kafka brokers for turn events (empty disables publishing)",
	},
	FlagKafkaTopic: {
		Name:        "kafka-topic",
		ViperKey:    "events.kafka_topic",
		Description: "Kafka topic for turn events",
	},
	FlagStreamTarget: {
		Name:        "stream-target",
		ViperKey:    "client.relay_target",
		Description: "Relay URL to stream from in direct mode (defaults to the backend)",
	},
	FlagUser: {
		Name:        "user",
		Shorthand:   "u",
		ViperKey:    "client.user_id",
		Description: "User id sent with each message",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}
