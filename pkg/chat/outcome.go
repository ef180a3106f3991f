// Package chat turns decoded SSE events into full-text message snapshots.
//
// Every content event carries the complete message so far rather than a
// delta. Decode classifies one event and Session folds the classified
// outcomes of a single conversation turn into the latest snapshot.
package chat

import (
	"encoding/json"
	"strings"

	"github.com/upbeatlab/chatrelay/pkg/sse"
)

// Kind classifies a decoded event.
type Kind int

const (
	// KindIgnore is a non-substantive or malformed event.
	KindIgnore Kind = iota

	// KindContent carries a full-replacement snapshot of the message.
	KindContent

	// KindTerminal marks the end of the stream.
	KindTerminal

	// KindError is a backend failure reported in-band.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindTerminal:
		return "terminal"
	case KindError:
		return "error"
	default:
		return "ignore"
	}
}

// Outcome is the interpretation of one event. Text holds the snapshot for
// KindContent and the backend message for KindError.
type Outcome struct {
	Kind Kind
	Text string
}

// Content returns a KindContent outcome.
func Content(text string) Outcome { return Outcome{Kind: KindContent, Text: text} }

// Terminal returns a KindTerminal outcome.
func Terminal() Outcome { return Outcome{Kind: KindTerminal} }

// Error returns a KindError outcome.
func Error(msg string) Outcome { return Outcome{Kind: KindError, Text: msg} }

// Ignore returns a KindIgnore outcome.
func Ignore() Outcome { return Outcome{} }

type errorPayload struct {
	Error *string `json:"error"`
}

// Decode interprets the payload of ev.
//
// A JSON string is content and is unwrapped exactly once. A JSON object with
// a non-empty "error" field is an in-band error. Payloads that are not JSON
// at all are treated as already-final raw text. Everything else, including
// other JSON values and blank payloads, is ignored.
func Decode(ev sse.Event) Outcome {
	payload := ev.Payload()
	trimmed := strings.TrimSpace(payload)

	if trimmed == sse.DoneSentinel {
		return Terminal()
	}

	if !json.Valid([]byte(trimmed)) {
		if trimmed == "" {
			return Ignore()
		}
		return Content(payload)
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal([]byte(trimmed), &text); err != nil {
			return Ignore()
		}
		return Content(text)

	case '{':
		var body errorPayload
		if err := json.Unmarshal([]byte(trimmed), &body); err != nil {
			return Ignore()
		}
		if body.Error != nil && *body.Error != "" {
			return Error(*body.Error)
		}
	}

	return Ignore()
}
