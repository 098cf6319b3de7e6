package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sungwon/email-gateway/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS email_history (
	key          TEXT PRIMARY KEY,
	message_id   TEXT NOT NULL,
	operation_id TEXT NOT NULL,
	recipients   TEXT[] NOT NULL DEFAULT '{}',
	subject      TEXT NOT NULL DEFAULT '',
	sent_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS email_history_sent_at_idx ON email_history (sent_at DESC);
`

// PostgresStore keeps entries in the email_history table.
type PostgresStore struct {
	db         *storage.DB
	maxEntries int
}

// NewPostgresStore creates the table if needed and returns a store backed
// by db. The store owns db and closes it on Close.
func NewPostgresStore(ctx context.Context, db *storage.DB, maxEntries int) (*PostgresStore, error) {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &PostgresStore{db: db, maxEntries: maxEntries}, nil
}

// Add records entry. Adding the same messageId again is a no-op.
func (s *PostgresStore) Add(ctx context.Context, entry Entry) error {
	recipients := entry.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO email_history (key, message_id, operation_id, recipients, subject, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO NOTHING`,
		Key(entry.MessageID), entry.MessageID, entry.ID, recipients, entry.Subject, entry.SentAt,
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}

	if s.maxEntries > 0 {
		_, err = s.db.Pool.Exec(ctx, `
			DELETE FROM email_history WHERE key NOT IN (
				SELECT key FROM email_history ORDER BY sent_at DESC LIMIT $1
			)`, s.maxEntries)
		if err != nil {
			return fmt.Errorf("history: trim: %w", err)
		}
	}
	return nil
}

// Get returns the entry for messageID or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, messageID string) (*Entry, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT message_id, operation_id, recipients, subject, sent_at
		FROM email_history WHERE key = $1`, Key(messageID))

	var e Entry
	if err := row.Scan(&e.MessageID, &e.ID, &e.Recipients, &e.Subject, &e.SentAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("history: get: %w", err)
	}
	return &e, nil
}

// List returns up to limit entries, newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT message_id, operation_id, recipients, subject, sent_at
		FROM email_history ORDER BY sent_at DESC LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.MessageID, &e.ID, &e.Recipients, &e.Subject, &e.SentAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list rows: %w", err)
	}
	return out, nil
}

// Clear removes every entry.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM email_history`); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
