package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectDatasetBuilt announces a finished dataset build.
	SubjectDatasetBuilt = "swarm.mimic.dataset.built"
	// SubjectBuildRequested asks a running mimic to rebuild its dataset.
	SubjectBuildRequested = "swarm.mimic.build.requested"
)

// DatasetBuilt is published after every build, successful or not.
type DatasetBuilt struct {
	RunID            string   `json:"run_id"`
	Encoding         string   `json:"encoding"`
	MaxContextLength int      `json:"max_context_length"`
	Files            int      `json:"files"`
	Chunks           int      `json:"chunks"`
	Oversize         int      `json:"oversize"`
	Errors           int      `json:"errors"`
	Outputs          []string `json:"outputs"`
	Cancelled        bool     `json:"cancelled,omitempty"`
}

// BuildRequest is the payload of SubjectBuildRequested. Empty fields keep the
// configured values.
type BuildRequest struct {
	DataDir          string `json:"data_dir,omitempty"`
	MaxContextLength int    `json:"max_context_length,omitempty"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("mimic"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// DecodeBuildRequest parses a build request payload. An empty payload is a
// request with defaults.
func DecodeBuildRequest(data []byte) (BuildRequest, error) {
	var req BuildRequest
	if len(data) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("decode build request: %w", err)
	}
	return req, nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
