package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
	"github.com/MikeSquared-Agency/mimic/internal/output"
)

// ChunkRow is a persisted chunk.
type ChunkRow struct {
	ID        uuid.UUID
	Seq       int
	ChatName  string
	ChatDate  string
	StartTime string
	Text      string
	Tokens    int
}

func (s *Store) Name() string { return "postgres" }

// Write stores a run and its chunks in one transaction, in dataset order.
// It satisfies output.Sink.
func (s *Store) Write(ctx context.Context, run output.Run, chunks []chunker.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO mimic_runs (id, encoding, max_context_length, chunk_count, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		run.ID, run.Encoding, run.MaxContextLength, len(chunks),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, c := range chunks {
		_, err = tx.Exec(ctx, `
			INSERT INTO mimic_chunks (id, run_id, seq, chat_name, chat_date, start_time, text, messages, tokens, oversize)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			uuid.New(), run.ID, i, c.ChatName, c.Date, c.StartTime, c.Text, c.Messages, c.Tokens, c.Oversize,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListChunks returns the chunks of a run in dataset order.
func (s *Store) ListChunks(ctx context.Context, runID uuid.UUID) ([]ChunkRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, seq, chat_name, to_char(chat_date, 'YYYY-MM-DD'), start_time, text, tokens
		FROM mimic_chunks WHERE run_id = $1 ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		var r ChunkRow
		if err := rows.Scan(&r.ID, &r.Seq, &r.ChatName, &r.ChatDate, &r.StartTime, &r.Text, &r.Tokens); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, by cascade, its chunks.
func (s *Store) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM mimic_runs WHERE id = $1`, runID)
	return err
}
