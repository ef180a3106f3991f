// Package servecmder provides the serve command that runs the relay server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/upbeatlab/chatrelay/pkg/config"
	"github.com/upbeatlab/chatrelay/pkg/dotdir"
	"github.com/upbeatlab/chatrelay/pkg/eventstream"
	"github.com/upbeatlab/chatrelay/pkg/eventstream/kafka"
	"github.com/upbeatlab/chatrelay/pkg/eventstream/nop"
	"github.com/upbeatlab/chatrelay/pkg/logger"
	"github.com/upbeatlab/chatrelay/pkg/storage"
	"github.com/upbeatlab/chatrelay/pkg/storage/inmemory"
	"github.com/upbeatlab/chatrelay/pkg/storage/postgres"
	"github.com/upbeatlab/chatrelay/pkg/storage/sqlite"
	"github.com/upbeatlab/chatrelay/server"
)

// Storage driver names accepted by --storage-driver.
const (
	DriverInMemory = "inmemory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type serveCommander struct {
	flags serveFlags

	configDir string
	logFile   string
	debug     bool

	viper  *viper.Viper
	logger *slog.Logger
}

// serveFlags are the raw flag targets. Effective values are read back from
// viper so that env vars and config.toml apply too.
type serveFlags struct {
	env, mode, backend, listen, idleTimeout string
	storageDriver, storageDSN               string
	kafkaBrokers, kafkaTopic                string
}

var registeredFlags = []string{
	config.FlagEnv,
	config.FlagMode,
	config.FlagBackend,
	config.FlagListen,
	config.FlagIdleTimeout,
	config.FlagStorageDriver,
	config.FlagStorageDSN,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

const serveLongDesc string = `Run the chat relay server.

The relay serves GET /api/chat/stream by proxying the chat backend's SSE
stream server-side and re-emitting it event by event. When the backend's
stream cannot be opened it falls back to the buffered POST /api/chat
endpoint and synthesizes a one-shot stream.

Every finished turn is stored in the transcript store and, when Kafka
brokers are configured, published as a chat.turn.completed event.

Configuration precedence: flags, RELAY_* environment variables, config.toml,
defaults.`

const serveShortDesc string = "Run the chat relay server"

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
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

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagEnv, &cmder.flags.env)
	config.AddStringFlag(cmd, config.Flags, config.FlagMode, &cmder.flags.mode)
	config.AddStringFlag(cmd, config.Flags, config.FlagBackend, &cmder.flags.backend)
	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.flags.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagIdleTimeout, &cmder.flags.idleTimeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.flags.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDSN, &cmder.flags.storageDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.flags.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.flags.kafkaTopic)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	log, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = log

	deployment, err := config.DeploymentFromViper(c.viper)
	if err != nil {
		return err
	}

	idle, err := config.IdleTimeoutFromViper(c.viper)
	if err != nil {
		return err
	}
	if idle == 0 {
		// A configured zero disables the timeout.
		idle = -1
	}

	driver, err := c.newStorageDriver(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	hostname, _ := os.Hostname()
	srv, err := server.New(server.Config{
		ListenAddr:        c.viper.GetString("relay.listen"),
		BackendURL:        deployment.BackendURL,
		StreamPath:        c.viper.GetString("backend.stream_path"),
		ChatPath:          c.viper.GetString("backend.chat_path"),
		IdleTimeout:       idle,
		ChatEnabled:       c.viper.GetBool("relay.chat_enabled"),
		BasicAuthUser:     c.viper.GetString("relay.basic_auth_user"),
		BasicAuthPassword: c.viper.GetString("relay.basic_auth_password"),
		Publisher:         publisher,
		Source:            eventstream.EventSource{Env: deployment.Env, Hostname: hostname},
		HTTPClient:        &http.Client{},
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay server: %w", err)
	}

	c.logger.Info("relay configured",
		"env", deployment.Env,
		"client_mode", deployment.Mode,
		"backend", deployment.BackendURL,
		"idle_timeout", idle,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Run(); err != nil {
			return fmt.Errorf("relay server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down relay server")
		return srv.Close()
	})

	return g.Wait()
}

// newLogger builds the service logger. With --log-file, pretty output goes
// to stdout and JSON lines to the file.
func (c *serveCommander) newLogger() (*slog.Logger, func(), error) {
	console := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	if c.logFile == "" {
		return console, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(f))
	return logger.Multi(console, file), func() { _ = f.Close() }, nil
}

func (c *serveCommander) newStorageDriver(ctx context.Context) (storage.Driver, error) {
	driverName := strings.ToLower(c.viper.GetString("storage.driver"))
	dsn := c.viper.GetString("storage.dsn")

	switch driverName {
	case DriverInMemory:
		c.logger.Info("using in-memory transcript storage")
		return inmemory.NewDriver(), nil

	case DriverSQLite, "":
		if dsn == "" {
			path, err := c.defaultSQLitePath()
			if err != nil {
				return nil, err
			}
			dsn = path
		}
		driver, err := sqlite.NewSQLiteDriver(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		c.logger.Info("using SQLite transcript storage", "dsn", dsn)
		return driver, nil

	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("postgres storage requires --storage-dsn")
		}
		driver, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		c.logger.Info("using PostgreSQL transcript storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q (expected %s, %s or %s)",
			driverName, DriverInMemory, DriverSQLite, DriverPostgres)
	}
}

// defaultSQLitePath places relay.db next to config.toml, or in ~/.relay/.
func (c *serveCommander) defaultSQLitePath() (string, error) {
	ddm := dotdir.NewManager()
	dir, err := ddm.Target(c.configDir)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir, err = ddm.Home()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "relay.db"), nil
}

func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	brokers := splitList(c.viper.GetString("events.kafka_brokers"))
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	topic := c.viper.GetString("events.kafka_topic")
	p, err := kafka.NewPublisher(kafka.Config{Brokers: brokers, Topic: topic})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	c.logger.Info("publishing turn events", "brokers", brokers, "topic", topic)
	return p, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
