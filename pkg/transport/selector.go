package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/upbeatlab/chatrelay/pkg/logger"
)

// Stream is an opened turn stream together with the strategy that produced
// it.
type Stream struct {
	io.ReadCloser

	// Strategy is the transport that opened the stream.
	Strategy Strategy

	// FellBack is true when the primary transport failed to open and the
	// stream came from the fallback.
	FellBack bool
}

// Selector opens streams with a primary transport chosen once per deployment
// and retries once with a buffered fallback when the primary cannot be
// opened.
type Selector struct {
	primary  Transport
	fallback Transport
	logger   *slog.Logger
}

// NewSelector creates a Selector. A nil fallback, or a primary that is itself
// buffered, disables the retry.
func NewSelector(primary, fallback Transport, log *slog.Logger) *Selector {
	if log == nil {
		log = logger.Nop()
	}
	if fallback != nil && primary.Strategy() == StrategyBuffered {
		fallback = nil
	}
	return &Selector{primary: primary, fallback: fallback, logger: log}
}

// Primary returns the strategy tried first.
func (s *Selector) Primary() Strategy { return s.primary.Strategy() }

// Open opens a stream for req. The returned error joins the primary and the
// fallback failures when both could not be opened. Cancellation of ctx is
// returned as ctx.Err() without attempting the fallback.
func (s *Selector) Open(ctx context.Context, req Request) (*Stream, error) {
	rc, err := s.primary.Open(ctx, req)
	if err == nil {
		return &Stream{ReadCloser: rc, Strategy: s.primary.Strategy()}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	primaryErr := fmt.Errorf("%s transport: %w", s.primary.Strategy(), err)
	if s.fallback == nil {
		return nil, primaryErr
	}

	s.logger.Warn("primary transport failed to open, falling back",
		"primary", s.primary.Strategy(),
		"fallback", s.fallback.Strategy(),
		"error", err,
	)

	rc, err = s.fallback.Open(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Join(primaryErr, fmt.Errorf("%s fallback: %w", s.fallback.Strategy(), err))
	}

	return &Stream{ReadCloser: rc, Strategy: s.fallback.Strategy(), FellBack: true}, nil
}
