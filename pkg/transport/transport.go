// Package transport opens the byte streams a chat turn is read from.
//
// Three strategies share the Transport interface. Direct streams from a relay
// endpoint, Proxied re-reads the backend's own stream and re-emits it through
// a pipe, and Buffered makes a single non-streaming call and synthesizes a
// one-shot stream. Every stream a Transport returns is SSE framed and ends in
// a terminal event whenever the failure is something the backend or network
// did after the stream was opened. Only failures to open surface as errors,
// which is what Selector falls back on.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/upbeatlab/chatrelay/pkg/logger"
)

// Strategy names a transport.
type Strategy string

const (
	StrategyDirect   Strategy = "direct"
	StrategyProxied  Strategy = "proxied"
	StrategyBuffered Strategy = "buffered"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{StrategyDirect, StrategyProxied, StrategyBuffered}

// ParseStrategy converts a configuration value into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	normalized := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, strategy := range Strategies {
		if normalized == strategy {
			return strategy, nil
		}
	}
	return "", fmt.Errorf("unknown transport strategy %q (expected direct, proxied or buffered)", s)
}

var (
	// ErrIdleTimeout is the cancellation cause of a stream that produced no
	// bytes for longer than its idle timeout.
	ErrIdleTimeout = errors.New("stream idle timeout")

	// ErrNoBody is reported when a backend answers a stream request without
	// a response body.
	ErrNoBody = errors.New("backend returned no body")
)

// Request is one user turn.
type Request struct {
	UserID  string
	Message string
}

// Transport opens the event stream for a request.
//
// Open returns an error only when the stream could not be established at all.
// Everything that goes wrong afterwards is delivered in-band as an error event
// followed by a terminal event. Callers must Close the returned stream.
type Transport interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
	Strategy() Strategy
}

// DefaultIdleTimeout bounds how long a streaming transport waits for the next
// byte.
const DefaultIdleTimeout = 60 * time.Second

// Config configures a transport.
type Config struct {
	// BaseURL is the origin of the endpoint (e.g., "http://127.0.0.1:8000")
	BaseURL string

	// Path is the endpoint path (e.g., "/api/chat/stream")
	Path string

	// IdleTimeout aborts a stream that produces no bytes for this long.
	// Zero disables it. Ignored by Buffered.
	IdleTimeout time.Duration

	// Client performs the requests. Streaming transports default to a client
	// without an overall timeout, Buffered to one with a five minute timeout.
	Client *http.Client

	// BasicAuthUser and BasicAuthPassword are sent as HTTP basic auth when
	// the user is set, e.g. to reach a relay running with basic auth.
	BasicAuthUser     string
	BasicAuthPassword string

	// Logger defaults to a no-op logger.
	Logger *slog.Logger
}

func (c Config) authorize(r *http.Request) {
	if c.BasicAuthUser != "" {
		r.SetBasicAuth(c.BasicAuthUser, c.BasicAuthPassword)
	}
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return logger.Nop()
	}
	return c.Logger
}

func (c Config) endpoint(req Request) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url %q: %w", c.BaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q must include scheme and host", c.BaseURL)
	}

	u = u.JoinPath(c.Path)
	if req.UserID != "" || req.Message != "" {
		u.RawQuery = url.Values{
			"user_id": {req.UserID},
			"message": {req.Message},
		}.Encode()
	}

	return u.String(), nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
