// Package sse implements the Server-Sent Events framing used between the chat
// backend, the relay and its clients.
//
// The wire format is a sequence of "data: <payload>" events separated by a
// blank line, ended by a "data: [DONE]" event. Parser splits an arbitrarily
// chunked byte stream back into events, TeeReader does the same over an
// io.Reader while copying the raw bytes to a second writer, and Writer emits
// frames.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "strings"

const (
	// DataPrefix starts every event this package recognizes.
	DataPrefix = "data: "

	// DoneSentinel is the payload of the terminal event.
	DoneSentinel = "[DONE]"

	// Delimiter is the canonical event terminator written by Writer.
	Delimiter = "\n\n"
)

// Event is one blank-line delimited unit of the stream. Raw holds the event
// text without its trailing delimiter.
type Event struct {
	Raw string
}

// Payload returns the event text after the "data: " prefix.
func (e Event) Payload() string {
	return strings.TrimPrefix(e.Raw, DataPrefix)
}

// IsDone reports whether the event carries the terminal sentinel.
func (e Event) IsDone() bool {
	return strings.TrimSpace(e.Payload()) == DoneSentinel
}

// Frame returns the event as it is written on the wire, delimiter included.
func (e Event) Frame() string {
	return e.Raw + Delimiter
}
