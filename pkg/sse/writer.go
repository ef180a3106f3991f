package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Headers are the response headers of every SSE stream served by the relay.
// X-Accel-Buffering disables buffering in nginx-style intermediaries.
var Headers = map[string]string{
	"Content-Type":      "text/event-stream",
	"Cache-Control":     "no-cache, no-transform",
	"Connection":        "keep-alive",
	"X-Accel-Buffering": "no",
}

// Writer emits SSE frames. Content is JSON encoded so that blank lines inside
// multi-paragraph text can never be mistaken for an event delimiter.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w implements http.Flusher, every frame is flushed.
func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// WriteRaw writes an already framed event verbatim.
func (w *Writer) WriteRaw(ev Event) error {
	return w.write(ev.Frame())
}

// WriteContent writes the full message text as a JSON string payload.
func (w *Writer) WriteContent(text string) error {
	payload, err := json.Marshal(text)
	if err != nil {
		return fmt.Errorf("encoding content: %w", err)
	}
	return w.write(DataPrefix + string(payload) + Delimiter)
}

// WriteError writes an in-band {"error": msg} event.
func (w *Writer) WriteError(msg string) error {
	payload, err := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: msg})
	if err != nil {
		return fmt.Errorf("encoding error event: %w", err)
	}
	return w.write(DataPrefix + string(payload) + Delimiter)
}

// WriteDone writes the terminal sentinel event.
func (w *Writer) WriteDone() error {
	return w.write(DataPrefix + DoneSentinel + Delimiter)
}

func (w *Writer) write(frame string) error {
	if _, err := io.WriteString(w.w, frame); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
