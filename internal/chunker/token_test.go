package chunker

import (
	"strings"
	"sync"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("expected 0 for empty text")
	}
	if EstimateTokens("hi") != 1 {
		t.Errorf("expected 1 for a single word, got %d", EstimateTokens("hi"))
	}
	if got := EstimateTokens(strings.Repeat("word ", 300)); got != 399 {
		t.Errorf("expected 399 for 300 words, got %d", got)
	}
}

func TestNewCounter_Estimate(t *testing.T) {
	c, err := NewCounter("estimate")
	if err != nil {
		t.Fatal(err)
	}
	if c.Count("one two three") != EstimateTokens("one two three") {
		t.Error("estimate counter does not match EstimateTokens")
	}
}

func TestTiktokenCounter(t *testing.T) {
	c, err := NewTiktokenCounter("")
	if err != nil {
		t.Fatalf("NewTiktokenCounter: %v", err)
	}
	if c.Encoding() != DefaultEncoding {
		t.Errorf("encoding = %q", c.Encoding())
	}
	if got := c.Count("hello world"); got != 2 {
		t.Errorf("Count(hello world) = %d, want 2", got)
	}
	if c.Count("") != 0 {
		t.Error("expected 0 tokens for empty text")
	}

	// Tag markup must count as ordinary text.
	if c.Count(Header("Bob")) <= 0 {
		t.Error("expected header to have tokens")
	}
}

func TestTiktokenCounter_Concurrent(t *testing.T) {
	c, err := NewTiktokenCounter(DefaultEncoding)
	if err != nil {
		t.Fatal(err)
	}
	texts := []string{
		"the quick brown fox",
		"<chat> Family </chat>\n<Mom> dinner? </Mom>",
		"see you in spring <br>\nspring it is",
		"",
	}
	want := make([]int, len(texts))
	for i, text := range texts {
		want[i] = c.Count(text)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				i := (g + n) % len(texts)
				if got := c.Count(texts[i]); got != want[i] {
					t.Errorf("concurrent count of %q = %d, want %d", texts[i], got, want[i])
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestTiktokenCounter_UnknownEncoding(t *testing.T) {
	if _, err := NewTiktokenCounter("no_such_encoding"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}
