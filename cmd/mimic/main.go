package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
	"github.com/MikeSquared-Agency/mimic/internal/config"
	"github.com/MikeSquared-Agency/mimic/internal/dataset"
	"github.com/MikeSquared-Agency/mimic/internal/hermes"
	"github.com/MikeSquared-Agency/mimic/internal/slack"
	"github.com/MikeSquared-Agency/mimic/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries the loaded configuration and logger into every subcommand.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	flags  rootFlags
}

type rootFlags struct {
	dataDir          string
	outputDir        string
	outputPrefix     string
	maxContextLength int
	encoding         string
	dateOrder        string
	oversize         string
	workers          int
	compress         bool
	dedup            bool
	sqlitePath       string
	logLevel         string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "mimic",
		Short: "Turn WhatsApp chat exports into token-bounded fine-tuning chunks",
		Long: `mimic reads exported WhatsApp transcripts, groups messages by day and
packs them into speaker-tagged chunks that stay under a token budget. The
chunks are written as CSV and JSONL (plus optional SQLite and Postgres copies)
for fine-tuning a model that talks like the people in the chats.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.applyFlags(cmd)
			a.logger = setupLogging(a.cfg.LogLevel)
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.flags.dataDir, "data-dir", "", "directory holding the chat exports (.txt or .zip)")
	f.StringVar(&a.flags.outputDir, "output-dir", "", "directory the dataset is written to")
	f.StringVar(&a.flags.outputPrefix, "output-prefix", "", "file name prefix of the dataset files")
	f.IntVar(&a.flags.maxContextLength, "max-context-length", 0, "token budget per chunk")
	f.StringVar(&a.flags.encoding, "encoding", "", `tokenizer encoding, or "estimate" for the word heuristic`)
	f.StringVar(&a.flags.dateOrder, "date-order", "", `order of day and month in export dates: "dmy" or "mdy"`)
	f.StringVar(&a.flags.oversize, "oversize", "", `what to do with a message over budget on its own: "keep", "skip" or "fail"`)
	f.IntVar(&a.flags.workers, "workers", 0, "files processed in parallel")
	f.BoolVar(&a.flags.compress, "compress", false, "write the JSONL dataset zstd-compressed")
	f.BoolVar(&a.flags.dedup, "dedup", false, "drop re-exports of the same chat, keeping messages only they contain")
	f.StringVar(&a.flags.sqlitePath, "sqlite", "", "also write the dataset to this SQLite file")
	f.StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newBuildCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newChatCmd(a),
		newVersionCmd(),
	)
	return root
}

// applyFlags lets explicitly set flags override the loaded configuration.
func (a *app) applyFlags(cmd *cobra.Command) {
	changed := cmd.Flags().Changed
	if changed("data-dir") {
		a.cfg.DataDir = a.flags.dataDir
	}
	if changed("output-dir") {
		a.cfg.OutputDir = a.flags.outputDir
	}
	if changed("output-prefix") {
		a.cfg.OutputPrefix = a.flags.outputPrefix
	}
	if changed("max-context-length") {
		a.cfg.MaxContextLength = a.flags.maxContextLength
	}
	if changed("encoding") {
		a.cfg.TokenizerEncoding = a.flags.encoding
	}
	if changed("date-order") {
		a.cfg.DateOrder = a.flags.dateOrder
	}
	if changed("oversize") {
		a.cfg.OversizePolicy = a.flags.oversize
	}
	if changed("workers") {
		a.cfg.Workers = a.flags.workers
	}
	if changed("compress") {
		a.cfg.CompressJSONL = a.flags.compress
	}
	if changed("dedup") {
		a.cfg.DedupExports = a.flags.dedup
	}
	if changed("sqlite") {
		a.cfg.SQLitePath = a.flags.sqlitePath
	}
	if changed("log-level") {
		a.cfg.LogLevel = a.flags.logLevel
	}
}

// newBuilder wires the dataset builder with every optional destination the
// configuration enables. The returned cleanup closes them.
func (a *app) newBuilder(ctx context.Context) (*dataset.Builder, *hermes.Client, func(), error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	counter, err := chunker.NewCounter(a.cfg.TokenizerEncoding)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tokenizer: %w", err)
	}

	b, err := dataset.NewBuilder(a.cfg.Dataset(), counter, a.logger)
	if err != nil {
		return nil, nil, nil, err
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if a.cfg.DatabaseURL != "" {
		db, err := store.New(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect database: %w", err)
		}
		closers = append(closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		b.AddSink(db)
		a.logger.Info("database connected")
	}

	var hc *hermes.Client
	if a.cfg.NatsURL != "" {
		hc, err = hermes.NewClient(ctx, a.cfg.NatsURL, a.cfg.NatsToken, a.logger)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("connect NATS: %w", err)
		}
		closers = append(closers, hc.Close)
		b.SetPublisher(hc)
		a.logger.Info("NATS connected", "url", a.cfg.NatsURL)
	}

	if a.cfg.SlackToken != "" && a.cfg.SlackChannel != "" {
		b.SetNotifier(slack.NewPoster(a.cfg.SlackToken, a.cfg.SlackChannel, a.logger))
		a.logger.Info("slack poster ready", "channel", a.cfg.SlackChannel)
	}

	return b, hc, cleanup, nil
}

func setupLogging(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
