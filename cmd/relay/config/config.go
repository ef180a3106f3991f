// Package configcmder provides the config command for managing persistent
// relay configuration stored in the .relay/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent relay configuration.

Configuration is stored as config.toml in the .relay/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  deployment.env, deployment.mode,
  backend.url, backend.stream_path, backend.chat_path,
  relay.listen, relay.idle_timeout, relay.chat_enabled,
  relay.basic_auth_user, relay.basic_auth_password,
  client.relay_target, client.user_id,
  client.basic_auth_user, client.basic_auth_password,
  storage.driver, storage.dsn,
  events.kafka_brokers, events.kafka_topic

Use subcommands to get, set, or list configuration values:
  relay config set <key> <value>    Set a configuration value
  relay config get <key>            Get a configuration value
  relay config list                 List all configuration values

Examples:
  relay config set deployment.env openshift
  relay config set storage.driver sqlite
  relay config get deployment.mode
  relay config list`

const configShortDesc string = "Manage persistent relay configuration"

// NewConfigCmd returns the "config" command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
