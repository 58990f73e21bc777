package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/mimic/internal/output"
)

// ManifestName is the file written into the output dir after every build.
const ManifestName = "manifest.json"

// Run states recorded in the manifest.
const (
	StatusComplete  = "complete"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Manifest records how a dataset was built, so a run can be audited and its
// token counts reproduced with the same encoding.
type Manifest struct {
	RunID            uuid.UUID    `json:"run_id"`
	Status           string       `json:"status"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       time.Time    `json:"finished_at"`
	DataDir          string       `json:"data_dir"`
	Encoding         string       `json:"encoding"`
	MaxContextLength int          `json:"max_context_length"`
	DateOrder        string       `json:"date_order"`
	OversizePolicy   string       `json:"oversize_policy"`
	Files            []FileResult `json:"files"`
	Outputs          []string     `json:"outputs"`
	Totals           Totals       `json:"totals"`
	Errors           []string     `json:"errors,omitempty"`

	path string // not serialized
}

func newManifest(path string, runID uuid.UUID, cfg Config) *Manifest {
	return &Manifest{
		RunID:            runID,
		StartedAt:        time.Now().UTC(),
		DataDir:          cfg.DataDir,
		Encoding:         cfg.Encoding,
		MaxContextLength: cfg.MaxContextLength,
		DateOrder:        string(cfg.DateOrder),
		OversizePolicy:   string(cfg.Oversize),
		Files:            []FileResult{},
		Outputs:          []string{},
		path:             path,
	}
}

// LoadManifest reads a manifest written by a previous build.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.path = path
	return &m, nil
}

// Path is where the manifest is saved.
func (m *Manifest) Path() string { return m.path }

// AddFile appends a file result and folds it into the totals.
func (m *Manifest) AddFile(r FileResult) {
	m.Files = append(m.Files, r)
	m.Totals.add(r)
}

// AddError records a run-level error.
func (m *Manifest) AddError(msg string) {
	m.Errors = append(m.Errors, msg)
}

// Save stamps the finish time and persists the manifest.
func (m *Manifest) Save() error {
	m.FinishedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return output.WriteAtomic(m.path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
