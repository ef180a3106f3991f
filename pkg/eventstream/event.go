package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/upbeatlab/chatrelay/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after a relayed chat turn has finished
	// streaming and its transcript has been stored.
	EventTypeTurnCompleted = "chat.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload for a finished turn.
type TurnCompletedEvent struct {
	SchemaVersion int                `json:"schema_version"`
	EventType     string             `json:"event_type"`
	EventID       string             `json:"event_id"`
	EmittedAt     time.Time          `json:"emitted_at"`
	Source        EventSource        `json:"source"`
	Turn          storage.Transcript `json:"turn"`
}

// EventSource identifies the relay instance that served the turn.
type EventSource struct {
	Env      string `json:"env,omitempty"`
	Hostname string `json:"hostname,omitempty"`
}

// NewTurnCompletedEvent wraps a stored transcript in a v1 event.
func NewTurnCompletedEvent(source EventSource, turn *storage.Transcript) *TurnCompletedEvent {
	return &TurnCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Turn:          *turn,
	}
}
