// Package inmemory is a map-backed transcript store for tests and for relays
// that do not need transcripts to survive a restart.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/upbeatlab/chatrelay/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu guards transcripts
	mu sync.RWMutex

	// transcripts is keyed by transcript ID
	transcripts map[string]*storage.Transcript
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		transcripts: make(map[string]*storage.Transcript),
	}
}

// Put stores a copy of t.
func (d *Driver) Put(_ context.Context, t *storage.Transcript) error {
	if err := t.Validate(); err != nil {
		return err
	}

	cp := *t
	d.mu.Lock()
	d.transcripts[t.ID] = &cp
	d.mu.Unlock()

	return nil
}

// Get retrieves a transcript by its ID.
func (d *Driver) Get(_ context.Context, id string) (*storage.Transcript, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.transcripts[id]
	if !ok {
		return nil, storage.ErrNotFound{ID: id}
	}

	cp := *t
	return &cp, nil
}

// ListByConversation returns the transcripts of a conversation, oldest first.
func (d *Driver) ListByConversation(_ context.Context, conversationID string) ([]*storage.Transcript, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := []*storage.Transcript{}
	for _, t := range d.transcripts {
		if t.ConversationID == conversationID {
			cp := *t
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartedAt.Before(result[j].StartedAt)
	})

	return result, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
