package output

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	encoding           TEXT NOT NULL,
	max_context_length INTEGER NOT NULL,
	created_at         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	chat_name  TEXT NOT NULL,
	chat_date  TEXT NOT NULL,
	start_time TEXT NOT NULL,
	text       TEXT NOT NULL,
	messages   INTEGER NOT NULL,
	tokens     INTEGER NOT NULL,
	oversize   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS chunks_run_seq ON chunks(run_id, seq);
`

// SQLiteSink appends each run and its chunks to a local SQLite database.
type SQLiteSink struct {
	Path string
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Write(ctx context.Context, run Run, chunks []chunker.Chunk) error {
	db, err := sql.Open("sqlite", s.Path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, encoding, max_context_length, created_at) VALUES (?, ?, ?, ?)`,
		run.ID.String(), run.Encoding, run.MaxContextLength, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, run_id, seq, chat_name, chat_date, start_time, text, messages, tokens, oversize)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		_, err := stmt.ExecContext(ctx,
			uuid.New().String(), run.ID.String(), i, c.ChatName, c.Date.Format(DateLayout),
			c.StartTime, c.Text, c.Messages, c.Tokens, boolInt(c.Oversize),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
