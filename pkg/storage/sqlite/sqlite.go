//go:build !libsql

// Package sqlite provides a SQLite-backed transcript store using ent's SQL
// driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "github.com/mattn/go-sqlite3"

	entdriver "github.com/upbeatlab/chatrelay/pkg/storage/ent/driver"
)

// SQLiteDriver implements storage.Driver using SQLite via the ent driver.
type SQLiteDriver struct {
	*entdriver.EntDriver
}

// NewSQLiteDriver creates a new SQLite-backed store.
// The dsn can be a file path or ":memory:" for an in-memory database.
// libsql:// URLs require a build with the libsql tag.
func NewSQLiteDriver(dsn string) (*SQLiteDriver, error) {
	if isRemote(dsn) {
		return nil, fmt.Errorf("%s: this binary was built without libsql support (rebuild with -tags libsql)", redact(dsn))
	}

	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return newDriver(db)
}

func newDriver(db *sql.DB) (*SQLiteDriver, error) {
	// One connection: SQLite serializes writers anyway, and every connection
	// to ":memory:" would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	ed, err := entdriver.New(context.Background(), entsql.OpenDB(dialect.SQLite, db))
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteDriver{EntDriver: ed}, nil
}
