// Package storage persists transcripts of finished chat turns.
package storage

import (
	"context"
)

// Driver defines the interface for persisting and retrieving transcripts in a
// storage backend.
type Driver interface {
	// Put stores a transcript. Storing a transcript with an existing ID
	// replaces it.
	Put(ctx context.Context, t *Transcript) error

	// Get retrieves a transcript by its ID. Returns ErrNotFound if it does
	// not exist.
	Get(ctx context.Context, id string) (*Transcript, error)

	// ListByConversation returns the transcripts of a conversation, oldest
	// first.
	ListByConversation(ctx context.Context, conversationID string) ([]*Transcript, error)

	// Close closes the store and releases any resources.
	Close() error
}
