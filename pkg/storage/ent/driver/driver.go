// Package entdriver implements storage.Driver on top of ent's dialect-aware
// SQL builder. It is database-agnostic and is embedded by the sqlite and
// postgres drivers.
package entdriver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/upbeatlab/chatrelay/pkg/storage"
)

const table = "transcripts"

var columns = []string{
	"id",
	"conversation_id",
	"user_message",
	"response",
	"strategy",
	"fell_back",
	"outcome",
	"snapshots",
	"started_at",
	"completed_at",
}

// schema is portable across SQLite and PostgreSQL. Timestamps are stored as
// Unix nanoseconds so every driver round-trips them identically.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		user_message TEXT NOT NULL,
		response TEXT NOT NULL,
		strategy TEXT NOT NULL,
		fell_back INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL,
		snapshots INTEGER NOT NULL DEFAULT 0,
		started_at BIGINT NOT NULL,
		completed_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS transcripts_conversation_started
		ON transcripts (conversation_id, started_at)`,
}

// EntDriver provides storage operations using an ent SQL driver.
type EntDriver struct {
	Driver *entsql.Driver
}

// New wraps drv and creates the transcripts table if needed.
func New(ctx context.Context, drv *entsql.Driver) (*EntDriver, error) {
	ed := &EntDriver{Driver: drv}
	if err := ed.Migrate(ctx); err != nil {
		return nil, err
	}
	return ed, nil
}

// Migrate applies the append-only schema.
func (ed *EntDriver) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		var res sql.Result
		if err := ed.Driver.Exec(ctx, stmt, []any{}, &res); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Put upserts a transcript.
func (ed *EntDriver) Put(ctx context.Context, t *storage.Transcript) error {
	if err := t.Validate(); err != nil {
		return err
	}

	fellBack := 0
	if t.FellBack {
		fellBack = 1
	}

	query, args := entsql.Dialect(ed.Driver.Dialect()).
		Insert(table).
		Columns(columns...).
		Values(
			t.ID,
			t.ConversationID,
			t.UserMessage,
			t.Response,
			t.Strategy,
			fellBack,
			string(t.Outcome),
			t.Snapshots,
			t.StartedAt.UnixNano(),
			t.CompletedAt.UnixNano(),
		).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	var res sql.Result
	if err := ed.Driver.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("failed to store transcript %s: %w", t.ID, err)
	}

	return nil
}

// Get retrieves a transcript by its ID.
func (ed *EntDriver) Get(ctx context.Context, id string) (*storage.Transcript, error) {
	query, args := entsql.Dialect(ed.Driver.Dialect()).
		Select(columns...).
		From(entsql.Table(table)).
		Where(entsql.EQ("id", id)).
		Query()

	transcripts, err := ed.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(transcripts) == 0 {
		return nil, storage.ErrNotFound{ID: id}
	}

	return transcripts[0], nil
}

// ListByConversation returns the transcripts of a conversation, oldest first.
func (ed *EntDriver) ListByConversation(ctx context.Context, conversationID string) ([]*storage.Transcript, error) {
	query, args := entsql.Dialect(ed.Driver.Dialect()).
		Select(columns...).
		From(entsql.Table(table)).
		Where(entsql.EQ("conversation_id", conversationID)).
		OrderBy(entsql.Asc("started_at"), entsql.Asc("id")).
		Query()

	return ed.query(ctx, query, args)
}

// Close closes the underlying database.
func (ed *EntDriver) Close() error {
	return ed.Driver.Close()
}

func (ed *EntDriver) query(ctx context.Context, query string, args []any) ([]*storage.Transcript, error) {
	var rows entsql.Rows
	if err := ed.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	result := []*storage.Transcript{}
	for rows.Next() {
		var (
			t                      storage.Transcript
			outcome                string
			fellBack, snapshots    int64
			startedAt, completedAt int64
		)
		if err := rows.Scan(
			&t.ID,
			&t.ConversationID,
			&t.UserMessage,
			&t.Response,
			&t.Strategy,
			&fellBack,
			&outcome,
			&snapshots,
			&startedAt,
			&completedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}

		t.FellBack = fellBack != 0
		t.Outcome = storage.Outcome(outcome)
		t.Snapshots = int(snapshots)
		t.StartedAt = time.Unix(0, startedAt).UTC()
		t.CompletedAt = time.Unix(0, completedAt).UTC()
		result = append(result, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcripts: %w", err)
	}

	return result, nil
}
