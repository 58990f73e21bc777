package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestRelevant(t *testing.T) {
	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: "/d/WhatsApp Chat with Bob.txt", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/d/export.zip", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/d/old.txt", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "/d/notes.md", Op: fsnotify.Create}, false},
		{fsnotify.Event{Name: "/d/.chat.txt.swp", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "/d/.hidden.txt", Op: fsnotify.Create}, false},
		{fsnotify.Event{Name: "/d/chat.txt", Op: fsnotify.Chmod}, false},
	}
	for _, tt := range tests {
		if got := relevant(tt.ev); got != tt.want {
			t.Errorf("relevant(%v) = %v, want %v", tt.ev, got, tt.want)
		}
	}
}

func TestRun_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := New(dir, 100*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) { calls <- struct{}{} })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "WhatsApp Chat with Bob.txt")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("12/01/2024, 09:00 - Alice: Hi\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-calls:
	case <-time.After(3 * time.Second):
		t.Fatal("expected a rebuild after writes settled")
	}

	select {
	case <-calls:
		t.Error("burst of writes should trigger a single rebuild")
	case <-time.After(400 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_MissingDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := New(filepath.Join(t.TempDir(), "nope"), time.Second, logger)
	if err := w.Run(context.Background(), func(context.Context) {}); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
