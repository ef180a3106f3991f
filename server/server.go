// Package server provides the chat relay: an HTTP server that re-streams a
// chat backend's SSE output to browsers and CLI clients, falls back to the
// backend's buffered completion endpoint when the stream cannot be opened, and
// persists every finished turn.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/upbeatlab/chatrelay/pkg/logger"
	"github.com/upbeatlab/chatrelay/pkg/metrics"
	"github.com/upbeatlab/chatrelay/pkg/storage"
	"github.com/upbeatlab/chatrelay/pkg/transport"
	"github.com/upbeatlab/chatrelay/server/header"
	"github.com/upbeatlab/chatrelay/server/worker"
)

// errorResponse is the JSON body of every non-SSE error.
type errorResponse struct {
	Error string `json:"error"`
}

// Server relays chat streams between clients and the chat backend.
type Server struct {
	config        Config
	driver        storage.Driver
	workerPool    *worker.Pool
	selector      *transport.Selector
	metrics       *metrics.Metrics
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Server.
// The driver is injected to handle async persistence of finished turns; a nil
// driver disables persistence and the transcript routes.
func New(config Config, driver storage.Driver, log *slog.Logger) (*Server, error) {
	if config.BackendURL == "" {
		return nil, errors.New("backend url is required")
	}
	if config.StreamPath == "" {
		config.StreamPath = transport.DefaultStreamPath
	}
	if config.ChatPath == "" {
		config.ChatPath = transport.DefaultChatPath
	}
	if log == nil {
		log = logger.Nop()
	}

	idle := config.IdleTimeout
	switch {
	case idle == 0:
		idle = transport.DefaultIdleTimeout
	case idle < 0:
		idle = 0
	}

	m := metrics.New()

	s := &Server{
		config:        config,
		driver:        driver,
		metrics:       m,
		logger:        log,
		headerHandler: header.NewHandler(config.BasicAuthUser != ""),
		httpClient: &http.Client{
			// Completions can be slow; match the buffered transport.
			Timeout: 5 * time.Minute,
		},
		selector: transport.NewSelector(
			transport.NewProxied(transport.Config{
				BaseURL:     config.BackendURL,
				Path:        config.StreamPath,
				IdleTimeout: idle,
				Client:      config.HTTPClient,
				Logger:      log,
			}),
			transport.NewBuffered(transport.Config{
				BaseURL: config.BackendURL,
				Path:    config.ChatPath,
				Logger:  log,
			}),
			log,
		),
	}

	if driver != nil {
		wp, err := worker.NewPool(&worker.Config{
			Driver:    driver,
			Publisher: config.Publisher,
			Source:    config.Source,
			Metrics:   m,
			Logger:    log,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create worker pool: %w", err)
		}
		s.workerPool = wp
	}

	s.server = s.routes()
	return s, nil
}

func (s *Server) routes() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	if s.config.BasicAuthUser != "" {
		app.Use(basicauth.New(basicauth.Config{
			Users: map[string]string{s.config.BasicAuthUser: s.config.BasicAuthPassword},
			Realm: "chat relay",
		}))
	}

	// SSE bodies are flushed per event; compressing them would batch events.
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == s.config.StreamPath
		},
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{
		Registry: s.metrics.Registry,
	})))

	app.Get(s.config.StreamPath, s.requireChat, s.handleStream)
	app.Post(s.config.ChatPath, s.requireChat, s.handleChat)
	app.Get(s.config.ChatPath+"/transcripts", s.requireChat, s.handleListTranscripts)
	app.Get(s.config.ChatPath+"/transcripts/:id", s.requireChat, s.handleGetTranscript)

	return app
}

// requireChat answers 404 while the chat feature is switched off.
func (s *Server) requireChat(c *fiber.Ctx) error {
	if !s.config.ChatEnabled {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "chat is disabled"})
	}
	return c.Next()
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Run starts the relay server on the configured listening address
func (s *Server) Run() error {
	s.logger.Info("starting relay server",
		"listen", s.config.ListenAddr,
		"backend", s.config.BackendURL,
	)

	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"backend", s.config.BackendURL,
	)

	return s.server.Listener(listener)
}

// Close stops accepting requests, then waits for queued transcripts to be
// stored.
func (s *Server) Close() error {
	err := s.server.Shutdown()
	if s.workerPool != nil {
		s.workerPool.Close()
	}
	return err
}
