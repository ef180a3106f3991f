// Package relaycmder
package relaycmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/upbeatlab/chatrelay/cmd/relay/chat"
	configcmder "github.com/upbeatlab/chatrelay/cmd/relay/config"
	servecmder "github.com/upbeatlab/chatrelay/cmd/relay/serve"
	versioncmder "github.com/upbeatlab/chatrelay/cmd/version"
)

const relayLongDesc string = `Relay streams chat responses from the chat backend to clients as
server-sent events.

Run the relay or talk to the backend using:
  relay serve     Run the relay server
  relay chat      Chat with the backend from the terminal
  relay config    Manage persistent configuration`

const relayShortDesc string = "Relay - streaming chat SSE relay"

func NewRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "relay",
		Short:         relayShortDesc,
		Long:          relayLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .relay/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
