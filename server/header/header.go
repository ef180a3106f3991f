// Package header provides header handling for the relay server.
//
// The relay sits between a chat client and the chat backend like so:
//
//	Client <--> Relay <--> Chat Backend
//
// and headers are handled accordingly as each leg negotiates compression, hops,
// encoding, etc. independently.
package header

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/upbeatlab/chatrelay/pkg/sse"
	"github.com/upbeatlab/chatrelay/pkg/transport"
)

const (
	// StrategyHeader reports which transport produced a relayed stream.
	StrategyHeader = "X-Relay-Strategy"

	// FallbackHeader is "true" when the stream came from the buffered
	// fallback.
	FallbackHeader = "X-Relay-Fallback"
)

// Handler manages headers between relay connections.
type Handler struct {
	skipRequest map[string]struct{}
}

// NewHandler creates a new header Handler. When stripAuthorization is set the
// client's Authorization header belongs to the relay itself and is not
// forwarded to the backend.
func NewHandler(stripAuthorization bool) *Handler {
	skip := make(map[string]struct{}, len(skipRequest)+1)
	for k := range skipRequest {
		skip[k] = struct{}{}
	}
	if stripAuthorization {
		skip["Authorization"] = struct{}{}
	}
	return &Handler{skipRequest: skip}
}

// skipRequest is the set of request headers (client --> relay --> backend)
// that are not forwarded to the backend.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// The Host header is rewritten by Go's http.Transport to match the
	// backend URL.
	"Host": {},

	// Accept-Encoding is stripped so that Go's http.Transport adds its own
	// "Accept-Encoding: gzip" and transparently decompresses the backend
	// response.
	"Accept-Encoding": {},

	// The relay re-encodes the body it forwards.
	"Content-Length": {},
}

// skipResponse is the set of backend response headers (client <-- relay <-- backend)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// fasthttp manages chunked transfer encoding for the client-facing
	// response independently.
	"Transfer-Encoding": {},

	// The relay always reads a decompressed body. Fiber's compress middleware
	// sets the correct Content-Encoding when it re-compresses.
	"Content-Encoding": {},

	// Fiber computes the final length.
	"Content-Length": {},
}

// SetBackendRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, filtering headers that the relay should not
// forward to the backend.
func (h *Handler) SetBackendRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if _, skip := h.skipRequest[k]; !skip {
			req.Header.Set(k, string(value))
		}
	})
}

// SetClientResponseHeaders copies response headers from the backend
// http.Response to the Fiber context, filtering headers that the relay should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[k]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}

// SetStreamHeaders marks the response as an SSE stream and records which
// transport is feeding it.
func (h *Handler) SetStreamHeaders(c *fiber.Ctx, strategy transport.Strategy, fellBack bool) {
	for k, v := range sse.Headers {
		c.Set(k, v)
	}
	c.Set(StrategyHeader, string(strategy))
	c.Set(FallbackHeader, strconv.FormatBool(fellBack))
}
