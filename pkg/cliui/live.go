package cliui

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Live shows a message that is repeatedly replaced by a newer full version of
// itself, as chat snapshots are.
//
// On a terminal every Update erases the previous snapshot and draws the new
// one. Elsewhere output is append-only: when a snapshot extends the previous
// one only the new suffix is written, otherwise the snapshot starts on a new
// line.
type Live struct {
	w     io.Writer
	out   *termenv.Output
	tty   bool
	width int

	shown string
	rows  int
}

// LiveOption configures a Live.
type LiveOption func(*Live)

// WithTerminal forces terminal redraw mode with the given width.
func WithTerminal(width int) LiveOption {
	return func(l *Live) {
		l.tty = true
		l.width = width
	}
}

// NewLive creates a Live writing to w. Terminal mode is detected when w is a
// terminal file.
func NewLive(w io.Writer, opts ...LiveOption) *Live {
	l := &Live{w: w, out: termenv.NewOutput(w)}

	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		l.tty = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			l.width = width
		}
	}

	for _, opt := range opts {
		opt(l)
	}
	if l.width <= 0 {
		l.width = 80
	}
	return l
}

// Width is the terminal width used for wrapping.
func (l *Live) Width() int { return l.width }

// Update replaces the shown snapshot with text.
func (l *Live) Update(text string) {
	if text == l.shown {
		return
	}

	if !l.tty {
		if strings.HasPrefix(text, l.shown) {
			_, _ = io.WriteString(l.w, text[len(l.shown):])
		} else {
			_, _ = io.WriteString(l.w, "\n"+text)
		}
		l.shown = text
		return
	}

	l.clear()
	_, _ = io.WriteString(l.w, text)
	l.shown = text
	l.rows = rows(text, l.width)
}

// Finish ends the live view. On a terminal with render set, the final snapshot
// is redrawn as rendered markdown.
func (l *Live) Finish(render bool) {
	defer func() {
		l.shown = ""
		l.rows = 0
	}()

	if l.tty && render && l.shown != "" {
		rendered, err := RenderMarkdown(l.shown, l.width)
		if err == nil {
			l.clear()
			_, _ = io.WriteString(l.w, strings.TrimRight(rendered, "\n")+"\n")
			return
		}
	}
	_, _ = io.WriteString(l.w, "\n")
}

// clear erases the rows of the shown snapshot and returns to its first
// column.
func (l *Live) clear() {
	if l.rows == 0 {
		return
	}
	l.out.ClearLines(l.rows - 1)
	_, _ = io.WriteString(l.w, "\r")
}

// rows is how many terminal rows text occupies at width.
func rows(text string, width int) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		w := ansi.StringWidth(line)
		if w == 0 {
			n++
			continue
		}
		n += (w + width - 1) / width
	}
	return n
}
