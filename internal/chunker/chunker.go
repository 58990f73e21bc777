package chunker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/mimic/internal/transcript"
)

// ErrOversizeMessage is returned under OversizeFail when a single message
// cannot fit the token budget on its own.
var ErrOversizeMessage = errors.New("message exceeds token budget on its own")

// OversizePolicy decides what happens to a chunk holding one message whose
// rendering alone meets or exceeds the budget. Messages are never split.
type OversizePolicy string

const (
	OversizeKeep OversizePolicy = "keep"
	OversizeSkip OversizePolicy = "skip"
	OversizeFail OversizePolicy = "fail"
)

// ParseOversizePolicy accepts keep, skip or fail. Empty means keep.
func ParseOversizePolicy(s string) (OversizePolicy, error) {
	switch p := OversizePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return OversizeKeep, nil
	case OversizeKeep, OversizeSkip, OversizeFail:
		return p, nil
	}
	return "", fmt.Errorf("unknown oversize policy %q (expected keep, skip or fail)", s)
}

// Chunk is one finalized, tag-balanced transcript fragment.
type Chunk struct {
	ChatName  string
	Date      time.Time
	StartTime string
	Text      string
	Messages  int
	Tokens    int
	Oversize  bool
}

// DayGroup holds the messages of one chat that share a calendar day, in
// transcript order.
type DayGroup struct {
	Day      time.Time
	Messages []transcript.Message
}

// Stats summarizes a packing run.
type Stats struct {
	Chunks   int `json:"chunks"`
	Oversize int `json:"oversize"`
	Skipped  int `json:"skipped"`
}

func (s *Stats) add(o Stats) {
	s.Chunks += o.Chunks
	s.Oversize += o.Oversize
	s.Skipped += o.Skipped
}

// GroupByDay partitions msgs by calendar day, ascending, keeping the original
// order within each day. Messages whose date does not parse are returned
// separately so the caller can account for them.
func GroupByDay(msgs []transcript.Message, order transcript.DateOrder) ([]DayGroup, []transcript.Message) {
	var groups []DayGroup
	var unparsed []transcript.Message
	index := make(map[time.Time]int)

	for _, m := range msgs {
		day, err := transcript.ParseDate(m.Date, order)
		if err != nil {
			unparsed = append(unparsed, m)
			continue
		}
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, DayGroup{Day: day})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Day.Before(groups[j].Day)
	})
	return groups, unparsed
}

// Packer greedily folds a day's messages into chunks whose token count stays
// below MaxContextLength.
type Packer struct {
	Counter          Counter
	MaxContextLength int
	Oversize         OversizePolicy
}

// NewPacker validates the budget and returns a packer.
func NewPacker(counter Counter, maxContextLength int, oversize OversizePolicy) (*Packer, error) {
	if counter == nil {
		return nil, errors.New("token counter is required")
	}
	if maxContextLength <= 0 {
		return nil, fmt.Errorf("max context length must be positive, got %d", maxContextLength)
	}
	if oversize == "" {
		oversize = OversizeKeep
	}
	return &Packer{Counter: counter, MaxContextLength: maxContextLength, Oversize: oversize}, nil
}

// fold is the accumulator threaded through a day's messages.
type fold struct {
	text    string
	speaker string
	start   string
	count   int
}

// step folds m into acc. When m does not fit, the previous accumulator is
// returned as done and the next one starts a fresh chunk with m.
func (p *Packer) step(acc fold, header string, m transcript.Message) (next fold, done *fold) {
	if acc.count == 0 {
		// Nothing to finalize: an over-budget message still becomes its own chunk.
		return fold{
			text:    acc.text + continuation("", m.Sender, m.Text),
			speaker: m.Sender,
			start:   m.Time,
			count:   1,
		}, nil
	}

	candidate := acc.text + continuation(acc.speaker, m.Sender, m.Text)
	if p.Counter.Count(candidate) < p.MaxContextLength {
		return fold{
			text:    candidate,
			speaker: m.Sender,
			start:   acc.start,
			count:   acc.count + 1,
		}, nil
	}

	finished := acc
	return fold{
		text:    header + OpenTurn(m.Sender, m.Text),
		speaker: m.Sender,
		start:   m.Time,
		count:   1,
	}, &finished
}

// finalize closes the open turn and applies the oversize policy. A nil chunk
// with a nil error means the chunk was skipped.
func (p *Packer) finalize(acc fold, chatName string, day time.Time, stats *Stats) (*Chunk, error) {
	text := acc.text + CloseTurn(acc.speaker)
	c := &Chunk{
		ChatName:  chatName,
		Date:      day,
		StartTime: acc.start,
		Text:      text,
		Messages:  acc.count,
		Tokens:    p.Counter.Count(text),
	}

	if c.Messages == 1 && c.Tokens >= p.MaxContextLength {
		c.Oversize = true
		stats.Oversize++
		switch p.Oversize {
		case OversizeSkip:
			stats.Skipped++
			return nil, nil
		case OversizeFail:
			return nil, fmt.Errorf("%s %s %s: %d tokens >= %d: %w",
				chatName, day.Format("2006-01-02"), acc.start, c.Tokens, p.MaxContextLength, ErrOversizeMessage)
		}
	}

	stats.Chunks++
	return c, nil
}

// PackDay folds one day's messages into chunks, covering every message once
// and in order.
func (p *Packer) PackDay(chatName string, day DayGroup) ([]Chunk, Stats, error) {
	var stats Stats
	if len(day.Messages) == 0 {
		return nil, stats, nil
	}

	header := Header(chatName)
	acc := fold{text: header}
	var chunks []Chunk

	emit := func(f fold) error {
		c, err := p.finalize(f, chatName, day.Day, &stats)
		if err != nil {
			return err
		}
		if c != nil {
			chunks = append(chunks, *c)
		}
		return nil
	}

	for _, m := range day.Messages {
		next, done := p.step(acc, header, m)
		if done != nil {
			if err := emit(*done); err != nil {
				return nil, stats, err
			}
		}
		acc = next
	}

	if err := emit(acc); err != nil {
		return nil, stats, err
	}
	return chunks, stats, nil
}

// Pack packs every day group of one chat. The fold state never crosses a day
// boundary. ctx is checked between days.
func (p *Packer) Pack(ctx context.Context, chatName string, days []DayGroup) ([]Chunk, Stats, error) {
	var all []Chunk
	var stats Stats
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		chunks, s, err := p.PackDay(chatName, day)
		stats.add(s)
		if err != nil {
			return nil, stats, err
		}
		all = append(all, chunks...)
	}
	return all, stats, nil
}

// SortChunks orders chunks by date, then by start time, keeping the relative
// order of ties. Times that do not parse sort after those that do.
func SortChunks(chunks []Chunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		am, aok := transcript.ClockMinutes(a.StartTime)
		bm, bok := transcript.ClockMinutes(b.StartTime)
		switch {
		case aok && bok:
			return am < bm
		case aok != bok:
			return aok
		default:
			return a.StartTime < b.StartTime
		}
	})
}
