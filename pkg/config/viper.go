package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/upbeatlab/chatrelay/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the RELAY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (RELAY_DEPLOYMENT_ENV, RELAY_BACKEND_URL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// DeploymentFromViper resolves the Deployment from the deployment.* and
// backend.url keys.
func DeploymentFromViper(v *viper.Viper) (Deployment, error) {
	return ResolveDeployment(
		v.GetString("deployment.env"),
		v.GetString("deployment.mode"),
		v.GetString("backend.url"),
	)
}

// IdleTimeoutFromViper parses relay.idle_timeout. A bare number is read as
// seconds.
func IdleTimeoutFromViper(v *viper.Viper) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString("relay.idle_timeout"))
	if raw == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, serr := time.ParseDuration(raw + "s")
		if serr != nil {
			return 0, fmt.Errorf("invalid relay.idle_timeout %q: %w", raw, err)
		}
		d = secs
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid relay.idle_timeout %q: must not be negative", raw)
	}

	return d, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Deployment
	v.SetDefault("deployment.env", d.Deployment.Env)
	v.SetDefault("deployment.mode", d.Deployment.Mode)

	// Backend
	v.SetDefault("backend.url", d.Backend.URL)
	v.SetDefault("backend.stream_path", d.Backend.StreamPath)
	v.SetDefault("backend.chat_path", d.Backend.ChatPath)

	// Relay
	v.SetDefault("relay.listen", d.Relay.Listen)
	v.SetDefault("relay.idle_timeout", d.Relay.IdleTimeout)
	v.SetDefault("relay.chat_enabled", d.Relay.ChatEnabled)
	v.SetDefault("relay.basic_auth_user", d.Relay.BasicAuthUser)
	v.SetDefault("relay.basic_auth_password", d.Relay.BasicAuthPassword)

	// Client
	v.SetDefault("client.relay_target", d.Client.RelayTarget)
	v.SetDefault("client.user_id", d.Client.UserID)
	v.SetDefault("client.basic_auth_user", d.Client.BasicAuthUser)
	v.SetDefault("client.basic_auth_password", d.Client.BasicAuthPassword)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dsn", d.Storage.DSN)

	// Events
	v.SetDefault("events.kafka_brokers", d.Events.KafkaBrokers)
	v.SetDefault("events.kafka_topic", d.Events.KafkaTopic)
}
