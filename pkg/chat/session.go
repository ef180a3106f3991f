package chat

// ApologyText is the final snapshot delivered after an in-band backend error.
const ApologyText = "Sorry, I encountered an error. Please try again."

// Step is the result of reducing one outcome.
type Step struct {
	// Snapshot is the full message text to deliver. Only meaningful when
	// Emit is true.
	Snapshot string
	Emit     bool
	Done     bool
}

// Session is the state of one streamed conversation turn. A Session is owned
// by the goroutine driving the turn and must not be shared.
type Session struct {
	ConversationID string
	Strategy       string

	snapshot   string
	snapshots  int
	terminated bool
	failed     bool
}

// NewSession starts a session for the given conversation and transport
// strategy name.
func NewSession(conversationID, strategy string) *Session {
	return &Session{ConversationID: conversationID, Strategy: strategy}
}

// Reduce folds o into the session.
//
// Content replaces the snapshot wholesale and emits it, even when the text is
// unchanged. Terminal finishes the session without emitting. Error emits
// ApologyText once and finishes. Once finished, every outcome is a no-op.
func (s *Session) Reduce(o Outcome) Step {
	if s.terminated {
		return Step{Done: true}
	}

	switch o.Kind {
	case KindContent:
		s.snapshot = o.Text
		s.snapshots++
		return Step{Snapshot: s.snapshot, Emit: true}

	case KindTerminal:
		s.terminated = true
		return Step{Done: true}

	case KindError:
		s.snapshot = ApologyText
		s.snapshots++
		s.terminated = true
		s.failed = true
		return Step{Snapshot: s.snapshot, Emit: true, Done: true}

	default:
		return Step{}
	}
}

// Finish terminates the session without emitting, as if Terminal had been
// reduced. It is used when the stream ends without a sentinel.
func (s *Session) Finish() {
	s.terminated = true
}

// Snapshot returns the latest full message text.
func (s *Session) Snapshot() string { return s.snapshot }

// Snapshots returns how many snapshots have been emitted.
func (s *Session) Snapshots() int { return s.snapshots }

// Terminated reports whether the session has reached its terminal state.
func (s *Session) Terminated() bool { return s.terminated }

// Failed reports whether the session ended on an in-band error.
func (s *Session) Failed() bool { return s.failed }
