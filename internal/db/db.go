package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/mattn/go-sqlite3"
)

// Open opens the SQLite database at path, creating its directory if needed,
// and brings the schema up to date. Opening is retried with exponential
// backoff because a sibling worker may hold the write lock while migrating.
//
// The pool is limited to a single connection: SQLite serializes writers
// anyway, and a single connection keeps ":memory:" databases coherent.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	database, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	database.SetMaxOpenConns(1)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 10 * time.Second

	err = backoff.Retry(func() error {
		if err := database.PingContext(ctx); err != nil {
			return err
		}
		return RunMigrations(ctx, database)
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return database, nil
}

// DSN builds the go-sqlite3 connection string for path with foreign keys
// enabled and a busy timeout so concurrent writers wait instead of failing.
func DSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?_foreign_keys=on&_busy_timeout=5000"
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
}

// DefaultPath returns the default database location (~/.pulse/pulse.db).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".pulse", "pulse.db"), nil
}
