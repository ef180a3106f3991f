package sse

import (
	"regexp"
	"strings"
)

// delimiter matches a blank line in either LF or CRLF form.
var delimiter = regexp.MustCompile(`\r?\n\r?\n`)

// Parser incrementally splits a chunked SSE byte stream into events.
//
// Bytes after the last complete delimiter are held in an internal buffer until
// a later chunk completes them. The buffer never holds a complete event.
// Parser is not safe for concurrent use; each stream owns its own Parser.
type Parser struct {
	buf strings.Builder
}

// NewParser returns an empty Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends chunk to the buffer and returns every event it completes, in
// stream order. Events that do not start with "data: " are dropped, which
// covers SSE comments and keep-alive lines. Feed never fails; input that
// contains no complete event yields no events.
func (p *Parser) Feed(chunk []byte) []Event {
	if len(chunk) == 0 {
		return nil
	}
	p.buf.Write(chunk)

	pending := p.buf.String()
	bounds := delimiter.FindAllStringIndex(pending, -1)
	if len(bounds) == 0 {
		return nil
	}

	var events []Event
	start := 0
	for _, b := range bounds {
		if ev, ok := newEvent(pending[start:b[0]]); ok {
			events = append(events, ev)
		}
		start = b[1]
	}

	remainder := pending[start:]
	p.buf.Reset()
	p.buf.WriteString(remainder)

	return events
}

// Flush drains the buffer after the last chunk. A remainder that forms an
// event on its own (a stream that ended without a trailing blank line) is
// returned; anything else is discarded.
func (p *Parser) Flush() []Event {
	remainder := strings.TrimRight(p.buf.String(), "\r\n")
	p.buf.Reset()

	if ev, ok := newEvent(remainder); ok {
		return []Event{ev}
	}
	return nil
}

// Buffered returns the number of bytes waiting for a delimiter.
func (p *Parser) Buffered() int {
	return p.buf.Len()
}

func newEvent(raw string) (Event, bool) {
	if !strings.HasPrefix(raw, DataPrefix) {
		return Event{}, false
	}
	return Event{Raw: raw}, true
}
