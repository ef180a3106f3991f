package storage

import (
	"errors"
	"time"
)

// Outcome is how a chat turn ended.
type Outcome string

const (
	// OutcomeCompleted is a turn that reached its terminal event or ended
	// cleanly.
	OutcomeCompleted Outcome = "completed"

	// OutcomeError is a turn that ended on an in-band backend error.
	OutcomeError Outcome = "error"

	// OutcomeCancelled is a turn whose consumer went away before the end.
	OutcomeCancelled Outcome = "cancelled"
)

// Transcript is the record of one finished chat turn. In-flight turns are
// never stored.
type Transcript struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserMessage    string    `json:"user_message"`
	Response       string    `json:"response"`
	Strategy       string    `json:"strategy"`
	FellBack       bool      `json:"fell_back"`
	Outcome        Outcome   `json:"outcome"`
	Snapshots      int       `json:"snapshots"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Validate checks the fields every driver relies on.
func (t *Transcript) Validate() error {
	if t == nil {
		return errors.New("cannot store nil transcript")
	}
	if t.ID == "" {
		return errors.New("transcript id is required")
	}
	if t.ConversationID == "" {
		return errors.New("transcript conversation id is required")
	}
	return nil
}
