package eventstream

import "context"

// Publisher announces stored chat turns. Implementations must be safe for use
// by several persistence workers at once.
type Publisher interface {
	// PublishTurn delivers one chat.turn.completed event.
	PublishTurn(ctx context.Context, event *TurnCompletedEvent) error

	// Close flushes pending events and releases the connection.
	Close() error
}
