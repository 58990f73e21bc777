package dataset

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
	"github.com/MikeSquared-Agency/mimic/internal/transcript"
)

var (
	// ErrNoInput means the data directory holds no chat exports.
	ErrNoInput = errors.New("no chat exports found")
	// ErrBuildInProgress is returned when a build is requested while one runs.
	ErrBuildInProgress = errors.New("a build is already running")
)

// Config holds the dataset build configuration.
type Config struct {
	DataDir          string
	OutputDir        string
	OutputPrefix     string
	MaxContextLength int
	Encoding         string
	DateOrder        transcript.DateOrder
	Oversize         chunker.OversizePolicy
	Workers          int
	Compress         bool   // write the JSONL dataset zstd-compressed
	SQLitePath       string // optional SQLite copy of the dataset
	Dedup            bool   // drop re-exports of the same chat, keeping their new messages
}

// Validate checks everything that must hold before any file is touched.
func (c Config) Validate() error {
	if err := requireDir("data dir", c.DataDir); err != nil {
		return err
	}
	if err := requireDir("output dir", c.OutputDir); err != nil {
		return err
	}
	if strings.TrimSpace(c.OutputPrefix) == "" {
		return errors.New("output prefix is required")
	}
	if c.MaxContextLength <= 0 {
		return fmt.Errorf("max context length must be positive, got %d", c.MaxContextLength)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := transcript.ParseDateOrder(string(c.DateOrder)); err != nil {
		return err
	}
	if _, err := chunker.ParseOversizePolicy(string(c.Oversize)); err != nil {
		return err
	}
	return nil
}

func requireDir(label, path string) error {
	if path == "" {
		return fmt.Errorf("%s is required", label)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", label, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s %s is not a directory", label, path)
	}
	return nil
}

// Overrides replaces selected Config values for a single build. Zero values
// keep the configured ones.
type Overrides struct {
	DataDir          string
	MaxContextLength int
}

func (o Overrides) apply(c Config) Config {
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.MaxContextLength > 0 {
		c.MaxContextLength = o.MaxContextLength
	}
	return c
}

// FileResult is the outcome of one export file. Error holds a per-file failure;
// the build carries on without the file.
type FileResult struct {
	File        string            `json:"file"`
	ChatName    string            `json:"chat_name,omitempty"`
	Report      transcript.Report `json:"report"`
	Coverage    float64           `json:"coverage"`
	Days        int               `json:"days"`
	Stats       chunker.Stats     `json:"stats"`
	DuplicateOf string            `json:"duplicate_of,omitempty"`
	Error       string            `json:"error,omitempty"`

	// Recovered counts the messages of a duplicate export that the kept file
	// lacks. They are packed on their own; Recovery holds their chunk stats.
	Recovered int            `json:"recovered,omitempty"`
	Recovery  *chunker.Stats `json:"recovery,omitempty"`
}

// Totals aggregates the file results of a run.
type Totals struct {
	Files           int `json:"files"`
	Failed          int `json:"failed"`
	Duplicates      int `json:"duplicates"`
	Recovered       int `json:"recovered"`
	Messages        int `json:"messages"`
	Dropped         int `json:"dropped"`
	UnparsedDates   int `json:"unparsed_dates"`
	UncapturedBytes int `json:"uncaptured_bytes"`
	Chunks          int `json:"chunks"`
	Oversize        int `json:"oversize"`
	Skipped         int `json:"skipped"`
}

func (t *Totals) add(r FileResult) {
	t.Files++
	switch {
	case r.Error != "":
		t.Failed++
		return
	case r.DuplicateOf != "":
		t.Duplicates++
		t.Recovered += r.Recovered
		t.Messages += r.Recovered
		if r.Recovery != nil {
			t.Chunks += r.Recovery.Chunks
			t.Oversize += r.Recovery.Oversize
			t.Skipped += r.Recovery.Skipped
		}
		return
	}
	t.Messages += r.Report.Messages
	t.Dropped += r.Report.Dropped()
	t.UnparsedDates += r.Report.UnparsedDates
	t.UncapturedBytes += r.Report.UncapturedBytes
	t.Chunks += r.Stats.Chunks
	t.Oversize += r.Stats.Oversize
	t.Skipped += r.Stats.Skipped
}
