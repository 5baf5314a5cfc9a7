package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const createTokensTable = `CREATE TABLE IF NOT EXISTS session_tokens (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

const upsertToken = `INSERT INTO session_tokens (name, value) VALUES (?, ?)
	ON CONFLICT(name) DO UPDATE SET value = excluded.value`

// SQLStore keeps the token pair in a two-row SQL table
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open database and ensures the tokens table exists
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if _, err := db.Exec(createTokensTable); err != nil {
		return nil, fmt.Errorf("failed to create session_tokens table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// OpenSQLite opens (or creates) a SQLite database file and returns a store on it
func OpenSQLite(path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	store, err := NewSQLStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Get implements Store.Get
func (s *SQLStore) Get(ctx context.Context, kind Kind) (string, error) {
	name, err := kind.Key()
	if err != nil {
		return "", err
	}

	var value string
	err = s.db.QueryRowContext(ctx, "SELECT value FROM session_tokens WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query token: %w", err)
	}
	return value, nil
}

// Set implements Store.Set. Both rows are written in one transaction.
func (s *SQLStore) Set(ctx context.Context, access, refresh string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertToken, AccessTokenKey, access); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertToken, RefreshTokenKey, refresh); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tokens: %w", err)
	}
	return nil
}

// SetAccess implements Store.SetAccess
func (s *SQLStore) SetAccess(ctx context.Context, access string) error {
	if _, err := s.db.ExecContext(ctx, upsertToken, AccessTokenKey, access); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	return nil
}

// Clear implements Store.Clear
func (s *SQLStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM session_tokens WHERE name IN (?, ?)", AccessTokenKey, RefreshTokenKey)
	if err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *SQLStore) Close() error {
	return s.db.Close()
}
