//go:build libsql

// Package sqlite provides a SQLite-backed transcript store using ent's SQL
// driver. Built with the libsql tag it runs on libSQL, which adds remote
// Turso databases (libsql:// URLs) to local files.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/tursodatabase/go-libsql" // registers the "libsql" database/sql driver

	entdriver "github.com/upbeatlab/chatrelay/pkg/storage/ent/driver"
)

// SQLiteDriver implements storage.Driver using libSQL via the ent driver.
type SQLiteDriver struct {
	*entdriver.EntDriver
}

// NewSQLiteDriver creates a new libSQL-backed store. The dsn can be a
// libsql:// URL (with an authToken query parameter), a file path, or
// ":memory:".
func NewSQLiteDriver(dsn string) (*SQLiteDriver, error) {
	target := dsn
	if !isRemote(dsn) && dsn != ":memory:" {
		target = "file:" + dsn
	}

	db, err := sql.Open("libsql", target)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", redact(dsn), err)
	}

	if !isRemote(dsn) {
		// Local libSQL files share SQLite's single-writer model.
		db.SetMaxOpenConns(1)
	}

	ed, err := entdriver.New(context.Background(), entsql.OpenDB(dialect.SQLite, db))
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteDriver{EntDriver: ed}, nil
}
