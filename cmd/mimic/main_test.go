package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/mimic/internal/dataset"
)

var envKeys = []string{
	"MIMIC_CONFIG", "DATA_DIR", "OUTPUT_DIR", "OUTPUT_PREFIX", "MAX_CONTEXT_LENGTH",
	"TOKENIZER_ENCODING", "DATE_ORDER", "OVERSIZE_POLICY", "WORKERS", "COMPRESS_JSONL",
	"SQLITE_PATH", "DATABASE_URL", "NATS_URL", "NATS_TOKEN", "SLACK_BOT_TOKEN",
	"SLACK_CHANNEL", "MIMIC_PORT", "MIMIC_API_TOKEN", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	clearEnv(t)
	dataDir, outDir := t.TempDir(), t.TempDir()
	export := "12/01/2024, 09:00 - Alice: Hi\n12/01/2024, 09:05 - Bob: Good\n13/01/2024, 10:00 - Bob: Morning\n"
	if err := os.WriteFile(filepath.Join(dataDir, "WhatsApp Chat with Bob.txt"), []byte(export), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "build",
		"--data-dir", dataDir,
		"--output-dir", outDir,
		"--output-prefix", "bob",
		"--encoding", "estimate",
		"--max-context-length", "512",
		"--log-level", "error",
	)
	if err != nil {
		t.Fatalf("build: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Chunks: 2") {
		t.Errorf("summary missing chunk count:\n%s", out)
	}

	for _, name := range []string{"bob.csv", "bob.jsonl", dataset.ManifestName} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(outDir, dataset.ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	var m dataset.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.MaxContextLength != 512 || m.Encoding != "estimate" {
		t.Errorf("flags not applied: budget %d, encoding %q", m.MaxContextLength, m.Encoding)
	}
}

func TestBuildCommand_MissingDataDir(t *testing.T) {
	clearEnv(t)
	_, err := run(t, "build",
		"--data-dir", filepath.Join(t.TempDir(), "missing"),
		"--output-dir", t.TempDir(),
		"--log-level", "error",
	)
	if err == nil || !strings.Contains(err.Error(), "data directory") {
		t.Fatalf("expected data directory error, got %v", err)
	}
}

func TestBuildCommand_EnvThenFlag(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("OUTPUT_DIR", t.TempDir())
	t.Setenv("MAX_CONTEXT_LENGTH", "0")

	// MAX_CONTEXT_LENGTH=0 from the environment fails validation unless a
	// flag overrides it.
	if _, err := run(t, "build", "--log-level", "error"); err == nil {
		t.Fatal("expected validation error for zero budget")
	}

	_, err := run(t, "build", "--max-context-length", "64", "--encoding", "estimate", "--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "no chat exports") {
		t.Fatalf("expected no-input error after flag override, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	clearEnv(t)
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != Version {
		t.Errorf("version = %q, want %q", out, Version)
	}

	out, err = run(t, "version", "--long")
	if err != nil {
		t.Fatal(err)
	}
	var info buildInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("long version is not JSON: %v\n%s", err, out)
	}
	if info.GoVersion == "" {
		t.Error("expected go version")
	}
}

func TestSetupLogging(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		level   string
		debug   bool
		info    bool
		warning bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}
	for _, tt := range tests {
		l := setupLogging(tt.level)
		if got := l.Enabled(ctx, -4); got != tt.debug {
			t.Errorf("%s: debug enabled = %v", tt.level, got)
		}
		if got := l.Enabled(ctx, 0); got != tt.info {
			t.Errorf("%s: info enabled = %v", tt.level, got)
		}
		if got := l.Enabled(ctx, 4); got != tt.warning {
			t.Errorf("%s: warn enabled = %v", tt.level, got)
		}
	}
}
