// Package session manages the client's authenticated context: the durable
// auth token and the user profile derived from it.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists auth tokens in a local sqlite database, keyed by backend
// URL so switching servers keeps each login.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and creates if needed) the credential store at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to credential store: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS credentials (
			server_url TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			saved_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize credential schema: %w", err)
		}
	}
	return nil
}

// SaveToken stores or replaces the token for a backend.
func (s *Store) SaveToken(ctx context.Context, serverURL, token string) error {
	if s == nil || s.db == nil {
		return errors.New("credential store unavailable")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("token is required")
	}

	savedAt := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (server_url, token, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(server_url) DO UPDATE SET
			token = excluded.token,
			saved_at = excluded.saved_at
	`, normalizeServerURL(serverURL), strings.TrimSpace(token), savedAt)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// LoadToken returns the stored token for a backend, or "" when none exists.
func (s *Store) LoadToken(ctx context.Context, serverURL string) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("credential store unavailable")
	}

	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM credentials WHERE server_url = ?`,
		normalizeServerURL(serverURL),
	).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// DeleteToken removes the stored token for a backend.
func (s *Store) DeleteToken(ctx context.Context, serverURL string) error {
	if s == nil || s.db == nil {
		return errors.New("credential store unavailable")
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE server_url = ?`,
		normalizeServerURL(serverURL),
	); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

func normalizeServerURL(serverURL string) string {
	return strings.TrimRight(strings.TrimSpace(serverURL), "/")
}
