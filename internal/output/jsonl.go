package output

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
)

// Record is one line of the JSONL dataset.
type Record struct {
	Text string `json:"text"`
}

// JSONLSink writes one {"text": ...} object per line. With Compress set the
// stream is zstd-compressed and Path should end in .zst.
type JSONLSink struct {
	Path     string
	Compress bool
}

func (s *JSONLSink) Name() string {
	if s.Compress {
		return "jsonl.zst"
	}
	return "jsonl"
}

func (s *JSONLSink) Write(ctx context.Context, _ Run, chunks []chunker.Chunk) error {
	return WriteAtomic(s.Path, func(w io.Writer) error {
		if !s.Compress {
			return writeRecords(ctx, w, chunks)
		}

		encoder, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		if err := writeRecords(ctx, encoder, chunks); err != nil {
			encoder.Close()
			return err
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("finalize compression: %w", err)
		}
		return nil
	})
}

func writeRecords(ctx context.Context, w io.Writer, chunks []chunker.Chunk) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(Record{Text: c.Text}); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}
	return bw.Flush()
}

// ReadJSONL reads the texts back from a dataset written by JSONLSink.
func ReadJSONL(r io.Reader, compressed bool) ([]string, error) {
	if compressed {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	var texts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		texts = append(texts, rec.Text)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return texts, nil
}
