package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per key.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = DefaultConfig().SQLitePath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS responses (
			username   TEXT NOT NULL,
			action     TEXT NOT NULL,
			payload    TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (username, action)
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Backend() string { return BackendSQLite }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Persist(ctx context.Context, key Key, payload []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO responses (username, action, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username, action) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, key.Username, key.Action, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting response: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, key Key) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM responses WHERE username = ? AND action = ?`,
		key.Username, key.Action,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, key.Username, key.Action)
	}
	if err != nil {
		return nil, err
	}
	return []byte(payload), nil
}
