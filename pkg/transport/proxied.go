package transport

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/upbeatlab/chatrelay/pkg/sse"
)

// Proxied reads the backend's SSE stream server-side and re-emits every
// complete event byte-for-byte into a stream of its own.
//
// The re-emitted stream always ends with a terminal event: if the backend
// closes without one, Proxied appends it.
type Proxied struct {
	config Config
	client *http.Client
}

// NewProxied creates a Proxied transport against the backend at
// config.BaseURL. config.Path defaults to "/api/chat/stream".
func NewProxied(config Config) *Proxied {
	if config.Path == "" {
		config.Path = DefaultStreamPath
	}
	client := config.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Proxied{config: config, client: client}
}

// Strategy implements Transport.
func (p *Proxied) Strategy() Strategy { return StrategyProxied }

// Open implements Transport. Only a failure to reach the backend is returned
// as an error; the backend's own failures are re-emitted in-band.
func (p *Proxied) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	upstream, err := openStream(ctx, p.config, p.client, req)
	if err != nil {
		return nil, err
	}

	// Writes block until the consumer reads, so a slow consumer applies
	// backpressure all the way to the backend connection.
	pr, pw := io.Pipe()
	go p.pump(upstream, pw)

	return &pipeStream{PipeReader: pr, upstream: upstream}, nil
}

func (p *Proxied) pump(upstream io.ReadCloser, pw *io.PipeWriter) {
	defer upstream.Close()

	log := p.config.logger()
	tr := sse.NewTeeReader(upstream, pw)

	events := 0
	for {
		ev, err := tr.Next()
		if err != nil {
			if errors.Is(err, io.ErrClosedPipe) {
				log.Debug("consumer closed relayed stream", "events", events)
			} else {
				log.Debug("relayed stream aborted", "error", err, "events", events)
			}
			pw.CloseWithError(err)
			return
		}

		if ev == nil {
			log.Warn("backend stream ended without terminal event, appending one", "events", events)
			if err := sse.NewWriter(pw).WriteDone(); err != nil {
				pw.CloseWithError(err)
				return
			}
			break
		}

		events++
		if ev.IsDone() {
			break
		}
	}

	log.Debug("relayed stream complete", "events", events)
	pw.Close()
}

// pipeStream is the consumer end of a Proxied stream. Closing it unblocks the
// pump and releases the backend connection.
type pipeStream struct {
	*io.PipeReader
	upstream io.Closer
}

func (s *pipeStream) Close() error {
	err := s.PipeReader.Close()
	if cerr := s.upstream.Close(); err == nil {
		err = cerr
	}
	return err
}
