package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync/atomic"

	"github.com/upbeatlab/chatrelay/pkg/sse"
)

var frameBoundary = regexp.MustCompile(`\r?\n\r?\n`)

var errStreamClosed = errors.New("stream closed")

// errorFrames renders an in-band error event followed by the terminal event.
func errorFrames(msg string) []byte {
	var buf bytes.Buffer
	w := sse.NewWriter(&buf)
	_ = w.WriteError(msg)
	_ = w.WriteDone()
	return buf.Bytes()
}

// errorStream is a complete stream consisting of errorFrames(msg).
func errorStream(msg string) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(errorFrames(msg)))
}

// guardedStream passes an HTTP response body through unchanged, but only
// releases bytes up to the last complete event boundary. When the body fails
// mid-stream the unreleased partial event is dropped and the stream ends with
// an error event and a terminal event instead of a read error. Cancellation
// by the caller is the exception: it surfaces as the caller's context error.
type guardedStream struct {
	callerCtx context.Context
	reqCtx    context.Context
	cancel    context.CancelCauseFunc
	idle      *idleReader
	body      io.ReadCloser
	logger    *slog.Logger

	buf     []byte
	pending []byte
	out     bytes.Buffer
	tail    io.Reader
	eof     bool
	closed  atomic.Bool
}

func newGuardedStream(callerCtx, reqCtx context.Context, cancel context.CancelCauseFunc, idle *idleReader, body io.ReadCloser, logger *slog.Logger) *guardedStream {
	idle.r = body
	return &guardedStream{
		callerCtx: callerCtx,
		reqCtx:    reqCtx,
		cancel:    cancel,
		idle:      idle,
		body:      body,
		logger:    logger,
		buf:       make([]byte, 32*1024),
	}
}

func (g *guardedStream) Read(p []byte) (int, error) {
	for {
		if g.out.Len() > 0 {
			return g.out.Read(p)
		}
		if g.tail != nil {
			return g.tail.Read(p)
		}
		if g.eof {
			return 0, io.EOF
		}

		n, err := g.idle.Read(g.buf)
		if n > 0 {
			g.pending = append(g.pending, g.buf[:n]...)
			if loc := lastBoundary(g.pending); loc > 0 {
				g.out.Write(g.pending[:loc])
				g.pending = append(g.pending[:0], g.pending[loc:]...)
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			g.out.Write(g.pending)
			g.pending = nil
			g.eof = true
		default:
			if ctxErr := g.callerCtx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			if g.closed.Load() {
				return 0, errStreamClosed
			}
			g.fail(err)
		}
	}
}

func (g *guardedStream) fail(err error) {
	msg := err.Error()
	if errors.Is(context.Cause(g.reqCtx), ErrIdleTimeout) {
		msg = ErrIdleTimeout.Error()
	}

	g.logger.Warn("stream failed mid-flight, synthesizing error",
		"error", err,
		"dropped_bytes", len(g.pending),
	)

	g.pending = nil
	g.tail = bytes.NewReader(errorFrames(msg))
}

func (g *guardedStream) Close() error {
	g.closed.Store(true)
	g.idle.stop()
	g.cancel(nil)
	return g.body.Close()
}

// lastBoundary returns the offset just past the last event delimiter in b, or
// zero when b holds no complete event.
func lastBoundary(b []byte) int {
	locs := frameBoundary.FindAllIndex(b, -1)
	if len(locs) == 0 {
		return 0
	}
	return locs[len(locs)-1][1]
}
