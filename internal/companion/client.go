package companion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultMaxTokens         = 500
	defaultTemperature       = 0.3
	defaultTopK              = 10
	defaultRepetitionPenalty = 1.1
)

// Config is everything a conversation needs. It is passed in explicitly; the
// package keeps no global state.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	ChatName  string
	Sender    string
	RespondAs string

	MaxTokens         int
	Temperature       *float64 // nil means the default; 0 is greedy decoding
	TopK              int
	RepetitionPenalty float64
}

func (c Config) validate() error {
	switch {
	case c.Model == "":
		return errors.New("completion model is required")
	case c.ChatName == "":
		return errors.New("chat name is required")
	case c.Sender == "":
		return errors.New("sender is required")
	case c.RespondAs == "":
		return errors.New("respond-as persona is required")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Temperature == nil {
		t := defaultTemperature
		c.Temperature = &t
	}
	if c.TopK <= 0 {
		c.TopK = defaultTopK
	}
	if c.RepetitionPenalty == 0 {
		c.RepetitionPenalty = defaultRepetitionPenalty
	}
	return c
}

// Completer returns the raw continuation of prompt, cut at stop.
type Completer interface {
	Complete(ctx context.Context, prompt, stop string) (string, error)
}

// Client calls an OpenAI-compatible text completions endpoint.
type Client struct {
	client openai.Client
	cfg    Config
}

func NewClient(cfg Config, opts ...option.RequestOption) *Client {
	cfg = cfg.withDefaults()
	base := []option.RequestOption{option.WithMaxRetries(2)}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		base = append(base, option.WithAPIKey(cfg.APIKey))
	}
	return &Client{
		client: openai.NewClient(append(base, opts...)...),
		cfg:    cfg,
	}
}

func (c *Client) Complete(ctx context.Context, prompt, stop string) (string, error) {
	resp, err := c.client.Completions.New(ctx, openai.CompletionNewParams{
		Model:       openai.CompletionNewParamsModel(c.cfg.Model),
		Prompt:      openai.CompletionNewParamsPromptUnion{OfString: openai.String(prompt)},
		MaxTokens:   openai.Int(int64(c.cfg.MaxTokens)),
		Temperature: openai.Float(*c.cfg.Temperature),
		Stop:        openai.CompletionNewParamsStopUnion{OfString: openai.String(stop)},
	},
		option.WithJSONSet("top_k", c.cfg.TopK),
		option.WithJSONSet("repetition_penalty", c.cfg.RepetitionPenalty),
	)
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Text), nil
}

// Session is one conversation between Sender and the RespondAs persona.
type Session struct {
	cfg       Config
	completer Completer
	turns     []Turn
}

func NewSession(cfg Config, completer Completer) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	return &Session{cfg: cfg, completer: completer}, nil
}

// Reply records input from the sender, asks the model for the persona's next
// message and returns it rendered for display. The raw reply is kept in the
// history so later prompts stay in the training grammar.
func (s *Session) Reply(ctx context.Context, input string) (string, error) {
	s.turns = append(s.turns, Turn{Sender: s.cfg.Sender, Content: input})

	prompt := BuildPrompt(s.cfg.ChatName, s.turns, s.cfg.RespondAs)
	out, err := s.completer.Complete(ctx, prompt, StopSequence(s.cfg.RespondAs))
	if err != nil {
		s.turns = s.turns[:len(s.turns)-1]
		return "", err
	}

	s.turns = append(s.turns, Turn{Sender: s.cfg.RespondAs, Content: out})
	return RenderReply(out), nil
}

// Turns returns a copy of the conversation so far.
func (s *Session) Turns() []Turn {
	return append([]Turn(nil), s.turns...)
}
