package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/upbeatlab/chatrelay/pkg/transport"
)

// Config represents the persistent relay configuration stored as config.toml
// in the .relay/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Deployment DeploymentConfig `toml:"deployment"`
	Backend    BackendConfig    `toml:"backend"`
	Relay      RelayConfig      `toml:"relay"`
	Client     ClientConfig     `toml:"client"`
	Storage    StorageConfig    `toml:"storage"`
	Events     EventsConfig     `toml:"events"`
}

// DeploymentConfig selects the environment the relay runs in. The transport
// strategy and backend location are derived from it once at startup, see
// ResolveDeployment.
type DeploymentConfig struct {
	Env  string `toml:"env,omitempty"`
	Mode string `toml:"mode,omitempty"`
}

// BackendConfig locates the chat backend. An empty URL means "use the
// deployment environment's default".
type BackendConfig struct {
	URL        string `toml:"url,omitempty"`
	StreamPath string `toml:"stream_path,omitempty"`
	ChatPath   string `toml:"chat_path,omitempty"`
}

// RelayConfig holds settings for the relay server (relayd and "relay serve").
type RelayConfig struct {
	Listen            string `toml:"listen,omitempty"`
	IdleTimeout       string `toml:"idle_timeout,omitempty"`
	ChatEnabled       bool   `toml:"chat_enabled"`
	BasicAuthUser     string `toml:"basic_auth_user,omitempty"`
	BasicAuthPassword string `toml:"basic_auth_password,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running relay
// (e.g. relay chat). Values are full URLs (scheme + host + port).
type ClientConfig struct {
	RelayTarget       string `toml:"relay_target,omitempty"`
	UserID            string `toml:"user_id,omitempty"`
	BasicAuthUser     string `toml:"basic_auth_user,omitempty"`
	BasicAuthPassword string `toml:"basic_auth_password,omitempty"`
}

// StorageConfig selects the transcript store.
type StorageConfig struct {
	Driver string `toml:"driver,omitempty"`
	DSN    string `toml:"dsn,omitempty"`
}

// EventsConfig configures turn event publishing. Publishing is disabled when
// no brokers are set.
type EventsConfig struct {
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"deployment.env": {
		get: func(c *Config) string { return c.Deployment.Env },
		set: func(c *Config, v string) error {
			if _, ok := environments[v]; !ok {
				return fmt.Errorf("invalid value for deployment.env: %q (available: %s)", v, joinEnvironments())
			}
			c.Deployment.Env = v
			return nil
		},
	},
	"deployment.mode": {
		get: func(c *Config) string { return c.Deployment.Mode },
		set: func(c *Config, v string) error {
			strategy, err := transport.ParseStrategy(v)
			if err != nil {
				return fmt.Errorf("invalid value for deployment.mode: %w", err)
			}
			c.Deployment.Mode = string(strategy)
			return nil
		},
	},
	"backend.url":         stringKey(func(c *Config) *string { return &c.Backend.URL }),
	"backend.stream_path": stringKey(func(c *Config) *string { return &c.Backend.StreamPath }),
	"backend.chat_path":   stringKey(func(c *Config) *string { return &c.Backend.ChatPath }),
	"relay.listen":        stringKey(func(c *Config) *string { return &c.Relay.Listen }),
	"relay.idle_timeout": {
		get: func(c *Config) string { return c.Relay.IdleTimeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for relay.idle_timeout: %w", err)
			}
			c.Relay.IdleTimeout = v
			return nil
		},
	},
	"relay.chat_enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Relay.ChatEnabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for relay.chat_enabled: %w", err)
			}
			c.Relay.ChatEnabled = b
			return nil
		},
	},
	"relay.basic_auth_user":      stringKey(func(c *Config) *string { return &c.Relay.BasicAuthUser }),
	"relay.basic_auth_password":  stringKey(func(c *Config) *string { return &c.Relay.BasicAuthPassword }),
	"client.relay_target":        stringKey(func(c *Config) *string { return &c.Client.RelayTarget }),
	"client.user_id":             stringKey(func(c *Config) *string { return &c.Client.UserID }),
	"client.basic_auth_user":     stringKey(func(c *Config) *string { return &c.Client.BasicAuthUser }),
	"client.basic_auth_password": stringKey(func(c *Config) *string { return &c.Client.BasicAuthPassword }),
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			switch v {
			case "inmemory", "sqlite", "postgres":
				c.Storage.Driver = v
				return nil
			default:
				return fmt.Errorf("invalid value for storage.driver: %q (available: inmemory, sqlite, postgres)", v)
			}
		},
	},
	"storage.dsn":          stringKey(func(c *Config) *string { return &c.Storage.DSN }),
	"events.kafka_brokers": stringKey(func(c *Config) *string { return &c.Events.KafkaBrokers }),
	"events.kafka_topic":   stringKey(func(c *Config) *string { return &c.Events.KafkaTopic }),
}
