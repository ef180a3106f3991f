package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Direct streams a turn from an SSE endpoint and yields its bytes as they
// arrive.
type Direct struct {
	config Config
	client *http.Client
}

// NewDirect creates a Direct transport. config.Path defaults to
// "/api/chat/stream".
func NewDirect(config Config) *Direct {
	if config.Path == "" {
		config.Path = DefaultStreamPath
	}
	client := config.Client
	if client == nil {
		// No overall timeout: streams stay open for as long as the backend
		// keeps producing, the idle timeout bounds stalls.
		client = &http.Client{}
	}
	return &Direct{config: config, client: client}
}

// DefaultStreamPath is the streaming endpoint served by the backend and the
// relay.
const DefaultStreamPath = "/api/chat/stream"

// Strategy implements Transport.
func (d *Direct) Strategy() Strategy { return StrategyDirect }

// Open implements Transport.
func (d *Direct) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	return openStream(ctx, d.config, d.client, req)
}

// openStream issues the streaming GET shared by Direct and Proxied.
func openStream(ctx context.Context, config Config, client *http.Client, req Request) (io.ReadCloser, error) {
	log := config.logger()

	endpoint, err := config.endpoint(req)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel(err)
		return nil, fmt.Errorf("creating stream request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	config.authorize(httpReq)

	idle := newIdleReader(config.IdleTimeout, cancel)

	log.Debug("opening stream", "url", endpoint, "user_id", req.UserID)

	resp, err := client.Do(httpReq)
	if err != nil {
		idle.stop()
		cancel(err)
		return nil, fmt.Errorf("opening stream: %w", err)
	}

	if !isSuccess(resp.StatusCode) {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		idle.stop()
		cancel(nil)

		log.Warn("stream endpoint returned error status",
			"status", resp.StatusCode,
			"body", string(preview),
		)
		return errorStream(fmt.Sprintf("backend returned status %d", resp.StatusCode)), nil
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		idle.stop()
		cancel(ErrNoBody)

		log.Warn("stream endpoint returned no body", "status", resp.StatusCode)
		return errorStream(ErrNoBody.Error()), nil
	}

	return newGuardedStream(ctx, reqCtx, cancel, idle, resp.Body, log), nil
}
