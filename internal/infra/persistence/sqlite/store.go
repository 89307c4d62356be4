// Package sqlite opens a RecordStore backed by a SQLite file using the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"charsheet/internal/infra/persistence/sqlstore"
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "charsheet.db"

// Open creates (or reuses) the database at path and migrates it. ":memory:"
// opens a private in-memory database.
func Open(ctx context.Context, path string, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	store, err := sqlstore.New(ctx, db, sqlstore.SQLite, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
