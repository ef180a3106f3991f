package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/upbeatlab/chatrelay/pkg/sse"
)

// DefaultChatPath is the backend's non-streaming completion endpoint.
const DefaultChatPath = "/api/chat"

// ChatRequest is the body of a non-streaming completion call.
type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// ChatResponse is the body returned by a non-streaming completion call.
type ChatResponse struct {
	Response *string `json:"response"`
}

// Buffered performs one request/response call and synthesizes a stream of
// exactly one content event followed by the terminal event.
type Buffered struct {
	config Config
	client *http.Client
}

// NewBuffered creates a Buffered transport. config.Path defaults to
// "/api/chat".
func NewBuffered(config Config) *Buffered {
	if config.Path == "" {
		config.Path = DefaultChatPath
	}
	client := config.Client
	if client == nil {
		client = &http.Client{
			// Completions can be slow; the whole answer is produced before
			// the response is written.
			Timeout: 5 * time.Minute,
		}
	}
	return &Buffered{config: config, client: client}
}

// Strategy implements Transport.
func (b *Buffered) Strategy() Strategy { return StrategyBuffered }

// Open implements Transport. A request that never reaches the backend is an
// error; a backend that answers with a failure produces an error event.
func (b *Buffered) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	log := b.config.logger()

	endpoint, err := b.config.endpoint(Request{})
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(ChatRequest{UserID: req.UserID, Message: req.Message})
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	b.config.authorize(httpReq)

	log.Debug("requesting buffered completion", "url", endpoint, "user_id", req.UserID)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("requesting completion: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("failed to read completion response", "error", err)
		return errorStream(fmt.Sprintf("reading completion response: %v", err)), nil
	}

	if !isSuccess(resp.StatusCode) {
		log.Warn("completion endpoint returned error status",
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return errorStream(fmt.Sprintf("backend returned status %d", resp.StatusCode)), nil
	}

	var parsed ChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		log.Warn("failed to decode completion response", "error", err)
		return errorStream("invalid completion response"), nil
	}
	if parsed.Response == nil {
		log.Warn("completion response has no response field")
		return errorStream("completion response missing response field"), nil
	}

	var frames bytes.Buffer
	w := sse.NewWriter(&frames)
	if err := w.WriteContent(*parsed.Response); err != nil {
		return nil, err
	}
	if err := w.WriteDone(); err != nil {
		return nil, err
	}

	return io.NopCloser(&frames), nil
}
