package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
	"github.com/MikeSquared-Agency/mimic/internal/dataset"
	"github.com/MikeSquared-Agency/mimic/internal/transcript"
)

type Config struct {
	DataDir      string `toml:"data_dir"`
	OutputDir    string `toml:"output_dir"`
	OutputPrefix string `toml:"output_prefix"`

	MaxContextLength  int    `toml:"max_context_length"`
	TokenizerEncoding string `toml:"tokenizer_encoding"`
	DateOrder         string `toml:"date_order"`
	OversizePolicy    string `toml:"oversize_policy"`
	Workers           int    `toml:"workers"`
	DedupExports      bool   `toml:"dedup_exports"`

	CompressJSONL bool   `toml:"compress_jsonl"`
	SQLitePath    string `toml:"sqlite_path"`
	DatabaseURL   string `toml:"database_url"`

	NatsURL      string `toml:"nats_url"`
	NatsToken    string `toml:"nats_token"`
	SlackToken   string `toml:"slack_bot_token"`
	SlackChannel string `toml:"slack_channel"`

	Port     int    `toml:"port"`
	APIToken string `toml:"api_token"`
	LogLevel string `toml:"log_level"`

	Companion CompanionConfig `toml:"companion"`
}

// CompanionConfig configures the interactive chat against a tuned model.
type CompanionConfig struct {
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	ChatName    string  `toml:"chat_name"`
	Sender      string  `toml:"sender"`
	RespondAs   string  `toml:"respond_as"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		DataDir:           "data/whatsapp_chat_history",
		OutputDir:         "data/output",
		OutputPrefix:      "whatsapp_chats_formatted",
		MaxContextLength:  2048,
		TokenizerEncoding: chunker.DefaultEncoding,
		DateOrder:         string(transcript.DayMonthYear),
		OversizePolicy:    string(chunker.OversizeKeep),
		Workers:           4,
		Port:              8760,
		LogLevel:          "info",
		Companion: CompanionConfig{
			BaseURL:     "https://api.fireworks.ai/inference/v1",
			MaxTokens:   500,
			Temperature: 0.3,
		},
	}
}

// Load layers defaults, the optional TOML file and environment variables, in
// that order of precedence.
func Load() (Config, error) {
	cfg := Default()

	if path := configPath(); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.DataDir = envStr("DATA_DIR", cfg.DataDir)
	cfg.OutputDir = envStr("OUTPUT_DIR", cfg.OutputDir)
	cfg.OutputPrefix = envStr("OUTPUT_PREFIX", cfg.OutputPrefix)
	cfg.MaxContextLength = envInt("MAX_CONTEXT_LENGTH", cfg.MaxContextLength)
	cfg.TokenizerEncoding = envStr("TOKENIZER_ENCODING", cfg.TokenizerEncoding)
	cfg.DateOrder = envStr("DATE_ORDER", cfg.DateOrder)
	cfg.OversizePolicy = envStr("OVERSIZE_POLICY", cfg.OversizePolicy)
	cfg.Workers = envInt("WORKERS", cfg.Workers)
	cfg.DedupExports = envBool("DEDUP_EXPORTS", cfg.DedupExports)
	cfg.CompressJSONL = envBool("COMPRESS_JSONL", cfg.CompressJSONL)
	cfg.SQLitePath = envStr("SQLITE_PATH", cfg.SQLitePath)
	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.NatsURL = envStr("NATS_URL", cfg.NatsURL)
	cfg.NatsToken = envStr("NATS_TOKEN", cfg.NatsToken)
	cfg.SlackToken = envStr("SLACK_BOT_TOKEN", cfg.SlackToken)
	cfg.SlackChannel = envStr("SLACK_CHANNEL", cfg.SlackChannel)
	cfg.Port = envInt("MIMIC_PORT", cfg.Port)
	cfg.APIToken = envStr("MIMIC_API_TOKEN", cfg.APIToken)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)

	cfg.Companion.BaseURL = envStr("COMPLETION_BASE_URL", cfg.Companion.BaseURL)
	cfg.Companion.APIKey = envStr("COMPLETION_API_KEY", cfg.Companion.APIKey)
	cfg.Companion.Model = envStr("COMPLETION_MODEL", cfg.Companion.Model)

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.OutputDir = expandHome(cfg.OutputDir)
	cfg.SQLitePath = expandHome(cfg.SQLitePath)

	return cfg, nil
}

// Validate performs the fail-fast checks that must pass before any file is read.
func (c Config) Validate() error {
	if err := requireDir(c.DataDir, "data"); err != nil {
		return err
	}
	if err := requireDir(c.OutputDir, "output"); err != nil {
		return err
	}
	if c.MaxContextLength <= 0 {
		return fmt.Errorf("max context length must be positive, got %d", c.MaxContextLength)
	}
	if _, err := transcript.ParseDateOrder(c.DateOrder); err != nil {
		return err
	}
	if _, err := chunker.ParseOversizePolicy(c.OversizePolicy); err != nil {
		return err
	}
	return nil
}

// Dataset converts the build-related settings for the dataset builder. Call
// Validate first; unknown date orders and policies pass through unchanged.
func (c Config) Dataset() dataset.Config {
	return dataset.Config{
		DataDir:          c.DataDir,
		OutputDir:        c.OutputDir,
		OutputPrefix:     c.OutputPrefix,
		MaxContextLength: c.MaxContextLength,
		Encoding:         c.TokenizerEncoding,
		DateOrder:        transcript.DateOrder(c.DateOrder),
		Oversize:         chunker.OversizePolicy(c.OversizePolicy),
		Workers:          c.Workers,
		Compress:         c.CompressJSONL,
		SQLitePath:       c.SQLitePath,
		Dedup:            c.DedupExports,
	}
}

func requireDir(dir, label string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("the %s directory %q does not exist; create it or provide another directory", label, dir)
	}
	return nil
}

// configPath returns MIMIC_CONFIG when set, else the per-user config file if
// it exists, else "".
func configPath() string {
	if p := os.Getenv("MIMIC_CONFIG"); p != "" {
		return expandHome(p)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, "mimic", "config.toml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
