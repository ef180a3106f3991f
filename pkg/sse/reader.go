package sse

import (
	"errors"
	"io"
)

const readChunkSize = 32 * 1024

// TeeReader reads SSE events from a source io.Reader while writing every
// event it yields, re-framed byte-for-byte, to a destination io.Writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │ TeeReader.Next() │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
//
// Only events that have been handed to the caller are written, so a caller
// that stops calling Next after the terminal event never forwards anything
// the upstream sent after it. A nil destination turns TeeReader into a plain
// event reader.
type TeeReader struct {
	src    io.Reader
	dest   io.Writer
	parser *Parser
	buf    []byte

	pending []Event
	eof     bool
}

// NewTeeReader returns a TeeReader over src that forwards yielded events to
// dest. dest typically backs an io.Pipe connected to a downstream HTTP
// response.
func NewTeeReader(src io.Reader, dest io.Writer) *TeeReader {
	return &TeeReader{
		src:    src,
		dest:   dest,
		parser: NewParser(),
		buf:    make([]byte, readChunkSize),
	}
}

// NewReader returns a TeeReader that does not forward anything.
func NewReader(src io.Reader) *TeeReader {
	return NewTeeReader(src, nil)
}

// Next blocks until the next complete event is available and returns it.
// Next returns nil, nil once the source is exhausted and the trailing buffer
// has been flushed. Read errors other than io.EOF are returned as-is; events
// completed before the error was hit are still returned first.
func (r *TeeReader) Next() (*Event, error) {
	for len(r.pending) == 0 {
		if r.eof {
			return nil, nil
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.pending = append(r.pending, r.parser.Feed(r.buf[:n])...)
		}

		if errors.Is(err, io.EOF) {
			r.eof = true
			r.pending = append(r.pending, r.parser.Flush()...)
			continue
		}
		if err != nil {
			if len(r.pending) > 0 {
				// Deliver what was completed; the error resurfaces on the next read.
				break
			}
			return nil, err
		}
	}

	ev := r.pending[0]
	r.pending = r.pending[1:]

	if r.dest != nil {
		if _, err := io.WriteString(r.dest, ev.Frame()); err != nil {
			return nil, err
		}
	}

	return &ev, nil
}
