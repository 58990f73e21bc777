package output

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
)

func sampleChunks() []chunker.Chunk {
	day := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
	return []chunker.Chunk{
		{
			ChatName:  "Bob",
			Date:      day,
			StartTime: "09:00",
			Text:      "<chat> Bob </chat>\n<Alice> Hi, \"there\" <br>\nHow are you? </Alice>",
			Messages:  2,
			Tokens:    20,
		},
		{
			ChatName:  "Family",
			Date:      day.AddDate(0, 0, 1),
			StartTime: "9:15 PM",
			Text:      "<chat> Family </chat>\n<Mom> dinner & <b>cake</b> </Mom>",
			Messages:  1,
			Tokens:    15,
			Oversize:  true,
		},
	}
}

func testRun() Run {
	return Run{ID: uuid.New(), Encoding: "cl100k_base", MaxContextLength: 2048}
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	sink := &CSVSink{Path: path}

	if err := sink.Write(context.Background(), testRun(), sampleChunks()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "date" || rows[0][3] != "text" {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[1][0] != "2024-01-12" || rows[1][1] != "09:00" || rows[1][2] != "Bob" {
		t.Errorf("unexpected row %v", rows[1][:3])
	}
	if rows[1][3] != sampleChunks()[0].Text {
		t.Errorf("text did not round-trip: %q", rows[1][3])
	}
}

func TestJSONLSink(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.jsonl")
			sink := &JSONLSink{Path: path, Compress: compress}

			if err := sink.Write(context.Background(), testRun(), sampleChunks()); err != nil {
				t.Fatalf("Write: %v", err)
			}

			f, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			texts, err := ReadJSONL(f, compress)
			if err != nil {
				t.Fatalf("ReadJSONL: %v", err)
			}
			if len(texts) != 2 {
				t.Fatalf("expected 2 records, got %d", len(texts))
			}
			for i, c := range sampleChunks() {
				if texts[i] != c.Text {
					t.Errorf("record %d = %q, want %q", i, texts[i], c.Text)
				}
			}
		})
	}
}

func TestJSONLSink_NotHTMLEscaped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	sink := &JSONLSink{Path: path}
	if err := sink.Write(context.Background(), testRun(), sampleChunks()[:1]); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"text":"<chat> Bob </chat>\n<Alice> Hi, \"there\" <br>\nHow are you? </Alice>"}` + "\n"
	if string(data) != want {
		t.Errorf("line =\n%s\nwant\n%s", data, want)
	}
}

func TestSinks_CancelledLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sinks := []Sink{
		&CSVSink{Path: filepath.Join(dir, "out.csv")},
		&JSONLSink{Path: filepath.Join(dir, "out.jsonl")},
	}
	for _, s := range sinks {
		err := s.Write(ctx, testRun(), sampleChunks())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", s.Name(), err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files after cancelled writes, found %d", len(entries))
	}
}

func TestSinks_ReplaceExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	if err := os.WriteFile(path, []byte("stale\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sink := &JSONLSink{Path: path}
	if err := sink.Write(context.Background(), testRun(), sampleChunks()); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	texts, err := ReadJSONL(f, false)
	if err != nil {
		t.Fatalf("stale content survived: %v", err)
	}
	if len(texts) != 2 {
		t.Errorf("expected 2 records, got %d", len(texts))
	}
}

func TestWriteAtomic_FailedWriteKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, []byte(`{"status":"complete"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	err := WriteAtomic(path, func(w io.Writer) error {
		if _, err := w.Write([]byte(`{"stat`)); err != nil {
			return err
		}
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the write error back, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"status":"complete"}` {
		t.Errorf("previous file was clobbered: %q", data)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp file left behind, found %d entries", len(entries))
	}
}

func TestSQLiteSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.db")
	sink := &SQLiteSink{Path: path}
	run := testRun()

	if err := sink.Write(context.Background(), run, sampleChunks()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// A second run appends rather than replaces.
	if err := sink.Write(context.Background(), testRun(), sampleChunks()); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&total); err != nil {
		t.Fatal(err)
	}
	if total != 4 {
		t.Errorf("expected 4 chunk rows, got %d", total)
	}

	var chat, date, text string
	var oversize int
	err = db.QueryRow(`SELECT chat_name, chat_date, text, oversize FROM chunks WHERE run_id = ? AND seq = 1`,
		run.ID.String()).Scan(&chat, &date, &text, &oversize)
	if err != nil {
		t.Fatal(err)
	}
	if chat != "Family" || date != "2024-01-13" || oversize != 1 {
		t.Errorf("unexpected row %s %s %d", chat, date, oversize)
	}
	if text != sampleChunks()[1].Text {
		t.Errorf("text = %q", text)
	}
}
