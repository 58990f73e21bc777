package dataset

import (
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
)

func TestFormatDailySummary(t *testing.T) {
	day := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
	chunks := []chunker.Chunk{
		{ChatName: "Family", Date: day.AddDate(0, 0, 1), Messages: 1, Oversize: true},
		{ChatName: "Bob", Date: day, Messages: 3},
		{ChatName: "Bob", Date: day, Messages: 2},
		{ChatName: "Family", Date: day, Messages: 4},
	}

	got := FormatDailySummary(nil, chunks)

	for _, want := range []string{
		"*Mimic Dataset Summary*",
		"*2024-01-12* (2 chats, 3 chunks)",
		"  - Bob: 2 chunks, 5 msgs\n",
		"*2024-01-13* (1 chats, 1 chunks)",
		"  - Family: 1 chunks, 1 msgs (1 oversize)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "2024-01-12") > strings.Index(got, "2024-01-13") {
		t.Error("dates should be ascending")
	}
	if strings.Index(got, "- Bob") > strings.Index(got, "- Family: 1 chunks, 4 msgs") {
		t.Error("chats should be sorted within a date")
	}
}

func TestFormatErrors(t *testing.T) {
	m := &Manifest{}
	if got := FormatErrors(m); got != "" {
		t.Errorf("expected no output for a clean run, got %q", got)
	}

	m.AddFile(FileResult{File: "ok.txt"})
	m.AddFile(FileResult{File: "broken.zip", Error: "zip: not a valid zip file"})
	m.AddError("write csv: disk full")

	want := "*Errors*\n- broken.zip: zip: not a valid zip file\n- write csv: disk full\n"
	if got := FormatErrors(m); got != want {
		t.Errorf("FormatErrors =\n%q\nwant\n%q", got, want)
	}
}

func TestFormatDailySummary_Totals(t *testing.T) {
	m := &Manifest{Status: StatusComplete, MaxContextLength: 2048, Encoding: "cl100k_base"}
	m.Totals = Totals{Files: 3, Chunks: 7, Messages: 40, Failed: 1}

	got := FormatDailySummary(m, nil)
	if !strings.Contains(got, "3 files, 7 chunks, 40 messages, budget 2048 (cl100k_base)") {
		t.Errorf("missing totals line:\n%s", got)
	}
	if !strings.Contains(got, "1 failed, 0 duplicate exports skipped") {
		t.Errorf("missing failure line:\n%s", got)
	}
}
