package chunker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the BPE vocabulary used when none is configured. Chunk
// boundaries depend on it, so it is recorded with every dataset.
const DefaultEncoding = "cl100k_base"

// Counter measures the token length of a text under a fixed vocabulary.
type Counter interface {
	Count(text string) int
}

// CounterFunc adapts a plain function to Counter.
type CounterFunc func(text string) int

func (f CounterFunc) Count(text string) int { return f(text) }

// EstimateTokens gives a rough token count from the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// EstimateCounter counts with EstimateTokens. It needs no vocabulary.
var EstimateCounter Counter = CounterFunc(EstimateTokens)

// TiktokenCounter counts tokens with a tiktoken BPE encoding loaded from the
// vocabularies compiled into the binary, so counting never touches the network.
// Encoding only reads the loaded ranks, so one counter serves all workers
// without locking.
type TiktokenCounter struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

var setLoader sync.Once

// NewTiktokenCounter loads the named encoding, e.g. "cl100k_base" or "o200k_base".
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	setLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &TiktokenCounter{encoding: encoding, enc: enc}, nil
}

// Encoding returns the name of the loaded vocabulary.
func (c *TiktokenCounter) Encoding() string { return c.encoding }

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// NewCounter returns the counter for an encoding name. "estimate" selects the
// word heuristic; anything else is loaded as a tiktoken encoding.
func NewCounter(encoding string) (Counter, error) {
	if encoding == "estimate" {
		return EstimateCounter, nil
	}
	return NewTiktokenCounter(encoding)
}
