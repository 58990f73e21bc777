package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
	"github.com/MikeSquared-Agency/mimic/internal/hermes"
	"github.com/MikeSquared-Agency/mimic/internal/output"
	"github.com/MikeSquared-Agency/mimic/internal/transcript"
)

// Publisher announces finished builds. *hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

// Notifier posts a human-readable run summary and threads error details
// under it. *slack.Poster satisfies it.
type Notifier interface {
	PostMessage(ctx context.Context, text string) (string, error)
	PostThread(ctx context.Context, threadTS, text string) error
}

// Builder turns a directory of chat exports into a token-bounded dataset.
type Builder struct {
	cfg      Config
	counter  chunker.Counter
	sinks    []output.Sink
	events   Publisher
	notifier Notifier
	logger   *slog.Logger

	running atomic.Bool
	mu      sync.Mutex
	last    *Manifest
}

// NewBuilder validates cfg and returns a builder. The counter is shared by
// all workers and must be safe for concurrent use.
func NewBuilder(cfg Config, counter chunker.Counter, logger *slog.Logger) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if counter == nil {
		return nil, errors.New("token counter is required")
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.Oversize == "" {
		cfg.Oversize = chunker.OversizeKeep
	}
	return &Builder{cfg: cfg, counter: counter, logger: logger}, nil
}

// AddSink registers an extra destination written after the file outputs.
func (b *Builder) AddSink(s output.Sink) { b.sinks = append(b.sinks, s) }

// SetPublisher enables build events.
func (b *Builder) SetPublisher(p Publisher) { b.events = p }

// SetNotifier enables run summaries.
func (b *Builder) SetNotifier(n Notifier) { b.notifier = n }

// Config returns the configuration builds start from.
func (b *Builder) Config() Config { return b.cfg }

// Counter returns the token counter shared by builds.
func (b *Builder) Counter() chunker.Counter { return b.counter }

// Last returns the manifest of the most recent build, or nil.
func (b *Builder) Last() *Manifest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Running reports whether a build is in progress.
func (b *Builder) Running() bool { return b.running.Load() }

// fileWork is what a worker hands back for one export.
type fileWork struct {
	result FileResult
	chunks []chunker.Chunk
	msgs   []transcript.Message
	fp     fingerprint
}

// Build runs one full build. Outputs are only replaced when every file has
// been processed; a cancelled or failed build leaves the previous dataset in
// place and still writes its manifest.
func (b *Builder) Build(ctx context.Context, o Overrides) (*Manifest, error) {
	if !b.running.CompareAndSwap(false, true) {
		return nil, ErrBuildInProgress
	}
	defer b.running.Store(false)

	cfg := o.apply(b.cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	packer, err := chunker.NewPacker(b.counter, cfg.MaxContextLength, cfg.Oversize)
	if err != nil {
		return nil, err
	}

	files, err := discoverFiles(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", cfg.DataDir, ErrNoInput)
	}

	run := output.Run{ID: uuid.New(), Encoding: cfg.Encoding, MaxContextLength: cfg.MaxContextLength}
	m := newManifest(filepath.Join(cfg.OutputDir, ManifestName), run.ID, cfg)

	b.logger.Info("build started",
		"run_id", run.ID,
		"files", len(files),
		"max_context_length", cfg.MaxContextLength,
		"encoding", cfg.Encoding,
		"workers", cfg.Workers,
	)

	work := make([]*fileWork, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w, err := b.processFile(gctx, cfg, packer, path)
			work[i] = w
			return err
		})
	}

	if err := g.Wait(); err != nil {
		status := StatusFailed
		if ctx.Err() != nil {
			status = StatusCancelled
		}
		b.abort(ctx, m, work, status, err)
		return m, err
	}

	var duplicates map[string]string
	var recovered map[string][]transcript.Message
	if cfg.Dedup {
		var fps []fingerprint
		msgs := make(map[string][]transcript.Message)
		for _, w := range work {
			if w.result.Error == "" {
				fps = append(fps, w.fp)
				msgs[w.result.File] = w.msgs
			}
		}
		duplicates = findDuplicates(fps)
		recovered = residuals(fps, msgs, duplicates)
	}

	var all []chunker.Chunk
	for _, w := range work {
		dup, ok := duplicates[w.result.File]
		if !ok {
			all = append(all, w.chunks...)
			m.AddFile(w.result)
			continue
		}
		w.result.DuplicateOf = dup
		if rest := recovered[w.result.File]; len(rest) > 0 {
			days, _ := chunker.GroupByDay(rest, cfg.DateOrder)
			chunks, stats, err := packer.Pack(ctx, w.result.ChatName, days)
			if err != nil {
				err = fmt.Errorf("pack %s: %w", w.result.File, err)
				status := StatusFailed
				if ctx.Err() != nil {
					status = StatusCancelled
				}
				b.abort(ctx, m, nil, status, err)
				return m, err
			}
			w.result.Recovered = len(rest)
			w.result.Recovery = &stats
			all = append(all, chunks...)
		}
		b.logger.Info("duplicate export",
			"file", w.result.File,
			"duplicate_of", dup,
			"recovered_messages", w.result.Recovered,
		)
		m.AddFile(w.result)
	}
	chunker.SortChunks(all)

	for _, s := range b.outputs(cfg) {
		if err := ctx.Err(); err != nil {
			b.abort(ctx, m, nil, StatusCancelled, err)
			return m, err
		}
		if err := s.Write(ctx, run, all); err != nil {
			err = fmt.Errorf("write %s: %w", s.Name(), err)
			status := StatusFailed
			if ctx.Err() != nil {
				status = StatusCancelled
			}
			b.abort(ctx, m, nil, status, err)
			return m, err
		}
		m.Outputs = append(m.Outputs, s.Name())
		b.logger.Info("output written", "sink", s.Name(), "chunks", len(all))
	}

	m.Status = StatusComplete
	b.finish(ctx, m, all)

	b.logger.Info("build complete",
		"run_id", run.ID,
		"files", m.Totals.Files,
		"failed", m.Totals.Failed,
		"duplicates", m.Totals.Duplicates,
		"messages", m.Totals.Messages,
		"chunks", m.Totals.Chunks,
		"oversize", m.Totals.Oversize,
		"skipped", m.Totals.Skipped,
	)
	return m, nil
}

// processFile reads, parses and packs one export. Read failures are recorded
// on the result; only cancellation and the fail oversize policy abort the run.
func (b *Builder) processFile(ctx context.Context, cfg Config, packer *chunker.Packer, path string) (*fileWork, error) {
	w := &fileWork{result: FileResult{File: filepath.Base(path)}}

	chatName, text, err := transcript.ReadExport(path)
	if err != nil {
		b.logger.Warn("failed to read export", "file", w.result.File, "error", err)
		w.result.Error = err.Error()
		return w, nil
	}
	w.result.ChatName = chatName

	msgs, report := transcript.Parse(text)
	days, unparsed := chunker.GroupByDay(msgs, cfg.DateOrder)
	report.UnparsedDates = len(unparsed)
	w.result.Report = report
	w.result.Coverage = report.Coverage()
	w.result.Days = len(days)
	if cfg.Dedup {
		w.msgs = msgs
		w.fp = buildFingerprint(w.result.File, msgs)
	}

	if len(msgs) == 0 {
		b.logger.Warn("no messages in export", "file", w.result.File, "bytes", report.TotalBytes)
	}
	if report.UncapturedBytes > 0 || report.UnparsedDates > 0 {
		b.logger.Warn("parse coverage loss",
			"file", w.result.File,
			"coverage", w.result.Coverage,
			"uncaptured_bytes", report.UncapturedBytes,
			"uncaptured_lines", report.UncapturedLines,
			"system_lines", report.SystemLines,
			"unparsed_dates", report.UnparsedDates,
		)
	}

	chunks, stats, err := packer.Pack(ctx, chatName, days)
	w.result.Stats = stats
	if err != nil {
		return w, fmt.Errorf("pack %s: %w", w.result.File, err)
	}
	w.chunks = chunks

	b.logger.Info("file processed",
		"file", w.result.File,
		"chat", chatName,
		"messages", report.Messages,
		"dropped", report.Dropped(),
		"days", len(days),
		"chunks", stats.Chunks,
		"oversize", stats.Oversize,
	)
	return w, nil
}

func (b *Builder) outputs(cfg Config) []output.Sink {
	base := filepath.Join(cfg.OutputDir, cfg.OutputPrefix)
	jsonl := &output.JSONLSink{Path: base + ".jsonl"}
	if cfg.Compress {
		jsonl.Path += ".zst"
		jsonl.Compress = true
	}
	sinks := []output.Sink{&output.CSVSink{Path: base + ".csv"}, jsonl}
	if cfg.SQLitePath != "" {
		sinks = append(sinks, &output.SQLiteSink{Path: cfg.SQLitePath})
	}
	return append(sinks, b.sinks...)
}

// abort records whatever finished before err and closes out the run.
func (b *Builder) abort(ctx context.Context, m *Manifest, work []*fileWork, status string, err error) {
	for _, w := range work {
		if w != nil {
			m.AddFile(w.result)
		}
	}
	m.Status = status
	m.AddError(err.Error())
	b.logger.Warn("build did not complete", "run_id", m.RunID, "status", status, "error", err)
	b.finish(ctx, m, nil)
}

func (b *Builder) finish(ctx context.Context, m *Manifest, chunks []chunker.Chunk) {
	if err := m.Save(); err != nil {
		b.logger.Error("failed to save manifest", "path", m.path, "error", err)
	}

	b.mu.Lock()
	b.last = m
	b.mu.Unlock()

	if b.events != nil {
		ev := hermes.DatasetBuilt{
			RunID:            m.RunID.String(),
			Encoding:         m.Encoding,
			MaxContextLength: m.MaxContextLength,
			Files:            m.Totals.Files,
			Chunks:           m.Totals.Chunks,
			Oversize:         m.Totals.Oversize,
			Errors:           m.Totals.Failed + len(m.Errors),
			Outputs:          m.Outputs,
			Cancelled:        m.Status == StatusCancelled,
		}
		if err := b.events.Publish(hermes.SubjectDatasetBuilt, ev); err != nil {
			b.logger.Warn("failed to publish build event", "error", err)
		}
	}

	b.postSummary(ctx, m, chunks)
}

// postSummary posts the run summary to Slack, or logs it when no notifier is
// configured.
func (b *Builder) postSummary(ctx context.Context, m *Manifest, chunks []chunker.Chunk) {
	text := FormatDailySummary(m, chunks)

	if b.notifier == nil {
		b.logger.Info("build summary (no Slack configured)", "summary", text)
		return
	}
	// The run context may already be cancelled; the summary should still go out.
	ctx = context.WithoutCancel(ctx)
	ts, err := b.notifier.PostMessage(ctx, text)
	if err != nil {
		b.logger.Warn("failed to post build summary to Slack, logging instead",
			"error", err,
			"summary", text,
		)
		return
	}

	if details := FormatErrors(m); details != "" {
		if err := b.notifier.PostThread(ctx, ts, details); err != nil {
			b.logger.Warn("failed to post build errors to Slack", "error", err, "errors", details)
		}
	}
}

// discoverFiles lists the exports directly inside dir, sorted by name.
func discoverFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !transcript.IsExport(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
