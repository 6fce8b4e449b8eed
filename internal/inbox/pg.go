package inbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Postgres driver, registered for database/sql.
	_ "github.com/lib/pq"
)

// PGStore persists processed delivery keys in Postgres so dedup survives
// process restarts. One row per key; inserts are conflict-free.
type PGStore struct {
	db *sql.DB
}

// OpenPG opens the store against the given DSN and ensures its table
// exists.
func OpenPG(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("inbox: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("inbox: ping postgres: %w", err)
	}

	s := &PGStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPGStore wraps an existing database handle.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) migrate(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS processed_messages (
			message_id   TEXT PRIMARY KEY,
			processed_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("inbox: create processed_messages: %w", err)
	}
	return nil
}

// Seen implements Store.
func (s *PGStore) Seen(ctx context.Context, key string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM processed_messages WHERE message_id = $1)`

	var seen bool
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&seen); err != nil {
		return false, fmt.Errorf("inbox: query %s: %w", key, err)
	}
	return seen, nil
}

// MarkProcessed implements Store.
func (s *PGStore) MarkProcessed(ctx context.Context, key string) error {
	const query = `
		INSERT INTO processed_messages (message_id, processed_at)
		VALUES ($1, $2)
		ON CONFLICT (message_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, key, time.Now().UTC()); err != nil {
		return fmt.Errorf("inbox: mark %s: %w", key, err)
	}
	return nil
}

// Close releases the database handle.
func (s *PGStore) Close() error {
	return s.db.Close()
}
