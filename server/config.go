package server

import (
	"net/http"
	"time"

	"github.com/upbeatlab/chatrelay/pkg/eventstream"
)

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// BackendURL is the chat backend origin (e.g., "http://api:8000")
	BackendURL string

	// StreamPath is the backend's streaming endpoint. It is also the path the
	// relay serves its own stream on. Defaults to "/api/chat/stream".
	StreamPath string

	// ChatPath is the backend's non-streaming completion endpoint. Defaults to
	// "/api/chat".
	ChatPath string

	// IdleTimeout aborts a backend stream that stalls for this long. Zero
	// uses transport.DefaultIdleTimeout, a negative value disables it.
	IdleTimeout time.Duration

	// ChatEnabled gates the chat routes. When false they answer 404.
	ChatEnabled bool

	// BasicAuthUser enables HTTP basic auth on every route but /ping.
	BasicAuthUser     string
	BasicAuthPassword string

	// Publisher is the optional event stream finished turns are announced on.
	Publisher eventstream.Publisher

	// Source identifies this relay on published events.
	Source eventstream.EventSource

	// HTTPClient is used for backend streams. Optional.
	HTTPClient *http.Client
}
