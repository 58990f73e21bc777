// Package output writes finalized chunks to the dataset formats consumed by
// fine-tuning jobs.
package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
)

// DateLayout is how a chunk's calendar day is written.
const DateLayout = "2006-01-02"

// Run identifies the build a batch of chunks belongs to.
type Run struct {
	ID               uuid.UUID
	Encoding         string
	MaxContextLength int
}

// Sink receives the globally sorted chunks of a run.
type Sink interface {
	Name() string
	Write(ctx context.Context, run Run, chunks []chunker.Chunk) error
}

// WriteAtomic writes to a temporary file next to path and renames it into
// place, so an interrupted run never leaves a truncated dataset behind.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
