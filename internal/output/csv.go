package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
)

var csvHeader = []string{"date", "time", "chat_name", "text"}

// CSVSink writes one row per chunk with columns date, time, chat_name, text.
type CSVSink struct {
	Path string
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Write(ctx context.Context, _ Run, chunks []chunker.Chunk) error {
	return WriteAtomic(s.Path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for _, c := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			row := []string{c.Date.Format(DateLayout), c.StartTime, c.ChatName, c.Text}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
}
