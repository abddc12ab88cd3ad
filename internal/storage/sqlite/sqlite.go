// Package sqlite provides the durable SQLite-backed implementation of
// storage.Adapter. It also stores user accounts for the auth package.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/physioledger/internal/auth"
	"github.com/mmynk/physioledger/internal/storage"
)

// Ensure Store implements storage.Adapter and auth.UserStorage
var (
	_ storage.Adapter  = (*Store)(nil)
	_ auth.UserStorage = (*Store)(nil)
)

// Store implements storage.Adapter using SQLite.
// Each key is one row; the scope and collection encoded in the key are kept
// in their own indexed columns so a whole scope can be listed or dropped.
type Store struct {
	db *sql.DB

	mu     sync.RWMutex
	closed bool
}

// New creates a new Store with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*Store, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database with pure Go driver
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time keeps SQLite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	// Run migrations
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection. Later calls fail with
// storage.ErrUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.available(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Get retrieves the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.available(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM entries WHERE key = ?",
		key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get entry: %w", err)
	}
	return value, true, nil
}

// Set inserts or replaces the value stored under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.available(); err != nil {
		return err
	}

	scope, collection, ok := storage.SplitKey(key)
	if !ok {
		scope, collection = key, ""
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (key, scope, collection, value, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, scope, string(collection), value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to set entry: %w", err)
	}
	return nil
}

// Delete removes the value stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.available(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// Scopes lists every scope that has at least one stored collection.
func (s *Store) Scopes(ctx context.Context) ([]string, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT scope FROM entries ORDER BY scope")
	if err != nil {
		return nil, fmt.Errorf("failed to list scopes: %w", err)
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("failed to scan scope: %w", err)
		}
		scopes = append(scopes, scope)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scopes: %w", err)
	}
	return scopes, nil
}

func (s *Store) available() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrUnavailable
	}
	return nil
}
