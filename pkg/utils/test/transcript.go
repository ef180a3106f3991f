package testutils

import (
	"time"

	"github.com/google/uuid"

	"github.com/upbeatlab/chatrelay/pkg/storage"
)

// baseTime keeps generated transcripts deterministic and ordered.
var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// NewTranscript returns a completed transcript for conversationID whose
// StartedAt is offset minutes after a fixed base time.
func NewTranscript(conversationID string, offset int, response string) *storage.Transcript {
	started := baseTime.Add(time.Duration(offset) * time.Minute)
	return &storage.Transcript{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserMessage:    "question " + response,
		Response:       response,
		Strategy:       "proxied",
		Outcome:        storage.OutcomeCompleted,
		Snapshots:      3,
		StartedAt:      started,
		CompletedAt:    started.Add(2 * time.Second),
	}
}
