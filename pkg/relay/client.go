// Package relay exposes the streaming chat call used by consumers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/upbeatlab/chatrelay/pkg/chat"
	"github.com/upbeatlab/chatrelay/pkg/logger"
	"github.com/upbeatlab/chatrelay/pkg/transport"
)

// ErrStreamFailed is returned when neither the primary transport nor the
// fallback could open a stream.
var ErrStreamFailed = errors.New("chat stream failed")

// Config configures a Client.
type Config struct {
	// Strategy is the primary transport, resolved once per deployment.
	Strategy transport.Strategy

	// StreamURL is the origin serving the streaming endpoint. For direct this
	// is usually a relay; for proxied it is the backend itself.
	StreamURL string

	// StreamPath defaults to "/api/chat/stream".
	StreamPath string

	// BackendURL is the origin of the non-streaming completion endpoint used
	// by the buffered transport and the fallback.
	BackendURL string

	// ChatPath defaults to "/api/chat".
	ChatPath string

	// IdleTimeout bounds stalls of streaming transports. Zero uses
	// transport.DefaultIdleTimeout, a negative value disables it.
	IdleTimeout time.Duration

	// StreamBasicAuthUser and StreamBasicAuthPassword authenticate against
	// the stream origin, typically a relay with basic auth enabled.
	StreamBasicAuthUser     string
	StreamBasicAuthPassword string

	// HTTPClient is shared by the streaming transports. Optional.
	HTTPClient *http.Client

	// Logger defaults to a no-op logger.
	Logger *slog.Logger
}

// Client streams chat turns through a transport.Selector.
type Client struct {
	selector *transport.Selector
	logger   *slog.Logger
}

// New creates a Client.
func New(config Config) (*Client, error) {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.StreamURL == "" && config.Strategy != transport.StrategyBuffered {
		return nil, fmt.Errorf("stream url is required for %s transport", config.Strategy)
	}
	if config.BackendURL == "" {
		config.BackendURL = config.StreamURL
	}

	idle := config.IdleTimeout
	switch {
	case idle == 0:
		idle = transport.DefaultIdleTimeout
	case idle < 0:
		idle = 0
	}

	streamConfig := transport.Config{
		BaseURL:           config.StreamURL,
		Path:              config.StreamPath,
		IdleTimeout:       idle,
		Client:            config.HTTPClient,
		BasicAuthUser:     config.StreamBasicAuthUser,
		BasicAuthPassword: config.StreamBasicAuthPassword,
		Logger:            config.Logger,
	}
	buffered := transport.NewBuffered(transport.Config{
		BaseURL: config.BackendURL,
		Path:    config.ChatPath,
		Logger:  config.Logger,
	})

	var primary transport.Transport
	switch config.Strategy {
	case transport.StrategyDirect:
		primary = transport.NewDirect(streamConfig)
	case transport.StrategyProxied:
		primary = transport.NewProxied(streamConfig)
	case transport.StrategyBuffered:
		primary = buffered
	default:
		return nil, fmt.Errorf("unknown transport strategy %q", config.Strategy)
	}

	return &Client{
		selector: transport.NewSelector(primary, buffered, config.Logger),
		logger:   config.Logger,
	}, nil
}

// Strategy returns the primary transport strategy.
func (c *Client) Strategy() transport.Strategy {
	return c.selector.Primary()
}

// StreamChatMessage sends message on behalf of userID and calls onChunk with
// the complete message text every time it changes, in stream order.
//
// It returns nil once the turn reaches a terminal condition, including an
// in-band backend error (delivered to onChunk as chat.ApologyText), a stream
// that ends early, or an idle timeout. It returns an error wrapping
// ErrStreamFailed when no transport could open a stream, and ctx.Err() when
// ctx is cancelled. onChunk is never called after cancellation.
func (c *Client) StreamChatMessage(ctx context.Context, userID, message string, onChunk func(fullText string)) error {
	_, err := c.Stream(ctx, userID, message, onChunk)
	return err
}

// Turn summarizes a finished StreamChatMessage call.
type Turn struct {
	Strategy  transport.Strategy
	FellBack  bool
	Response  string
	Snapshots int
	Failed    bool
	Duration  time.Duration
}

// Stream is StreamChatMessage that also reports how the turn went. The Turn
// is nil when no stream could be opened.
func (c *Client) Stream(ctx context.Context, userID, message string, onChunk func(fullText string)) (*Turn, error) {
	start := time.Now()

	stream, err := c.selector.Open(ctx, transport.Request{UserID: userID, Message: message})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Error("could not open chat stream", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStreamFailed, err)
	}
	defer stream.Close()

	session := chat.NewSession(userID, string(stream.Strategy))
	err = Drive(ctx, stream, nil, session, onChunk)
	if err != nil && ctx.Err() == nil {
		// Transports report failures in-band; anything still surfacing here
		// ends the turn the same way.
		c.logger.Warn("chat stream broke", "user_id", userID, "strategy", stream.Strategy, "error", err)
		if step := session.Reduce(chat.Error(err.Error())); step.Emit && onChunk != nil {
			onChunk(step.Snapshot)
		}
		err = nil
	}

	turn := &Turn{
		Strategy:  stream.Strategy,
		FellBack:  stream.FellBack,
		Response:  session.Snapshot(),
		Snapshots: session.Snapshots(),
		Failed:    session.Failed(),
		Duration:  time.Since(start),
	}

	c.logger.Debug("chat stream finished",
		"user_id", userID,
		"strategy", stream.Strategy,
		"fell_back", stream.FellBack,
		"snapshots", turn.Snapshots,
		"failed", turn.Failed,
		"duration", turn.Duration,
	)

	return turn, err
}
