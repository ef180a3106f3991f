package transport

import (
	"context"
	"io"
	"time"
)

// idleReader cancels its request context with ErrIdleTimeout when no bytes
// arrive for longer than timeout. The timer starts on construction so that a
// backend which never sends headers is covered too.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
}

func newIdleReader(timeout time.Duration, cancel context.CancelCauseFunc) *idleReader {
	ir := &idleReader{timeout: timeout}
	if timeout > 0 {
		ir.timer = time.AfterFunc(timeout, func() { cancel(ErrIdleTimeout) })
	}
	return ir
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 && r.timer != nil {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

func (r *idleReader) stop() {
	if r.timer != nil {
		r.timer.Stop()
	}
}
