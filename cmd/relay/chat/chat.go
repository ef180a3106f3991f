// Package chatcmder provides the chat command for interactive chat with the
// backend through the configured transport.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/upbeatlab/chatrelay/pkg/cliui"
	"github.com/upbeatlab/chatrelay/pkg/config"
	"github.com/upbeatlab/chatrelay/pkg/logger"
	"github.com/upbeatlab/chatrelay/pkg/relay"
	"github.com/upbeatlab/chatrelay/pkg/transport"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	flags struct {
		env, strategy, backend, streamTarget, userID, idleTimeout string
	}
	debug bool

	viper  *viper.Viper
	logger *slog.Logger
}

var registeredFlags = []string{
	config.FlagEnv,
	config.FlagStrategy,
	config.FlagBackend,
	config.FlagStreamTarget,
	config.FlagUser,
	config.FlagIdleTimeout,
}

const chatLongDesc string = `Start an interactive chat session.

Each message is streamed back with the deployment's transport strategy and
redrawn in place as the answer grows. When the stream cannot be opened the
message is retried once through the backend's buffered endpoint.

Strategies:
  direct     stream from a relay (--stream-target) or the backend itself
  proxied    stream from the backend, re-emitted client-side
  buffered   single non-streaming request

Press Ctrl+C to cancel the answer in flight, /exit or Ctrl+D to quit.

Examples:
  relay chat --user alice
  relay chat --strategy direct --stream-target http://localhost:8080
  relay chat --env openshift`

const chatShortDesc string = "Interactive chat through the relay"

// NewChatCmd creates the chat command.
func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, registeredFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logger = logger.New(logger.WithDebug(cmder.debug), logger.WithPretty(true), logger.WithWriter(os.Stderr))

			client, err := cmder.newClient()
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), client, os.Stdin, os.Stdout)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagEnv, &cmder.flags.env)
	config.AddStringFlag(cmd, config.Flags, config.FlagStrategy, &cmder.flags.strategy)
	config.AddStringFlag(cmd, config.Flags, config.FlagBackend, &cmder.flags.backend)
	config.AddStringFlag(cmd, config.Flags, config.FlagStreamTarget, &cmder.flags.streamTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagUser, &cmder.flags.userID)
	config.AddStringFlag(cmd, config.Flags, config.FlagIdleTimeout, &cmder.flags.idleTimeout)

	return cmd
}

// newClient builds the relay client for the resolved deployment.
func (c *chatCommander) newClient() (*relay.Client, error) {
	deployment, err := config.DeploymentFromViper(c.viper)
	if err != nil {
		return nil, err
	}

	idle, err := config.IdleTimeoutFromViper(c.viper)
	if err != nil {
		return nil, err
	}
	if idle == 0 {
		idle = -1
	}

	streamURL := deployment.BackendURL
	if target := c.viper.GetString("client.relay_target"); target != "" && deployment.Mode == transport.StrategyDirect {
		streamURL = target
		if err := cliui.Step(os.Stderr, "Reaching relay at "+target, func() error { return ping(target) }); err != nil {
			return nil, fmt.Errorf("relay unreachable: %w", err)
		}
	}

	c.logger.Debug("chat client configured",
		"env", deployment.Env,
		"strategy", deployment.Mode,
		"stream_url", streamURL,
		"backend", deployment.BackendURL,
	)

	return relay.New(relay.Config{
		Strategy:    deployment.Mode,
		StreamURL:   streamURL,
		StreamPath:  c.viper.GetString("backend.stream_path"),
		BackendURL:  deployment.BackendURL,
		ChatPath:    c.viper.GetString("backend.chat_path"),
		IdleTimeout: idle,
		Logger:      c.logger,

		StreamBasicAuthUser:     c.viper.GetString("client.basic_auth_user"),
		StreamBasicAuthPassword: c.viper.GetString("client.basic_auth_password"),
	})
}

// run reads lines from in until /exit or EOF and streams each answer to out.
func (c *chatCommander) run(ctx context.Context, client *relay.Client, in io.Reader, out io.Writer) error {
	userID := c.viper.GetString("client.user_id")

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s %s   %s %s\n",
		cliui.KeyStyle.Render("User:"),
		cliui.NameStyle.Render(userID),
		cliui.KeyStyle.Render("Strategy:"),
		cliui.NameStyle.Render(string(client.Strategy())),
	)
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.turn(ctx, client, userID, input, out); err != nil {
			fmt.Fprintf(out, "  %s %v\n\n", cliui.FailMark, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}

	fmt.Fprintln(out)
	return scanner.Err()
}

// turn streams one answer. Ctrl+C cancels only this turn.
func (c *chatCommander) turn(ctx context.Context, client *relay.Client, userID, input string, out io.Writer) error {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprint(out, assistantPrompt)
	live := cliui.NewLive(out)

	turn, err := client.Stream(turnCtx, userID, input, live.Update)
	if err != nil {
		live.Finish(false)
		if turnCtx.Err() != nil && ctx.Err() == nil {
			fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("(cancelled)"))
			return nil
		}
		return err
	}
	live.Finish(!turn.Failed)

	note := cliui.FormatDuration(turn.Duration)
	if turn.FellBack {
		note += ", via " + string(turn.Strategy) + " fallback"
	}
	fmt.Fprintf(out, "  %s\n\n", cliui.StepStyle.Render("("+note+")"))
	return nil
}

// ping checks that a relay answers GET /ping.
func ping(target string) error {
	u, err := url.JoinPath(target, "/ping")
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return nil
}
