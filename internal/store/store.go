package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS mimic_runs (
	id                 UUID PRIMARY KEY,
	encoding           TEXT NOT NULL,
	max_context_length INTEGER NOT NULL,
	chunk_count        INTEGER NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS mimic_chunks (
	id         UUID PRIMARY KEY,
	run_id     UUID NOT NULL REFERENCES mimic_runs(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	chat_name  TEXT NOT NULL,
	chat_date  DATE NOT NULL,
	start_time TEXT NOT NULL,
	text       TEXT NOT NULL,
	messages   INTEGER NOT NULL,
	tokens     INTEGER NOT NULL,
	oversize   BOOLEAN NOT NULL DEFAULT false
);
CREATE INDEX IF NOT EXISTS mimic_chunks_run_seq ON mimic_chunks(run_id, seq);
`

// Migrate creates the dataset tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
