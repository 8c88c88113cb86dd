package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/starford/chronicle/internal/insight"
	"github.com/starford/chronicle/internal/llm"
	"github.com/starford/chronicle/internal/prompts"
	"github.com/starford/chronicle/internal/report"
	"github.com/starford/chronicle/internal/storage"
	"github.com/starford/chronicle/internal/summarizer"
	"github.com/starford/chronicle/internal/summarycache"
)

// NewLogger returns the structured JSON logger used by every entry point.
func NewLogger(level slog.Level, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Components is the assembled report pipeline.
type Components struct {
	Service   *insight.Service
	Persister *summarycache.Persister

	db *storage.DB
}

// Build wires the store, model client, prompts and pipeline from cfg.
// events may be nil. The caller must Close the result.
func Build(cfg *Config, logger *slog.Logger, events insight.Publisher) (*Components, error) {
	stores, db, err := openStores(cfg.Store)
	if err != nil {
		return nil, err
	}
	c := &Components{db: db}

	client, err := llm.New(cfg.LLM.Options())
	if err != nil {
		_ = c.Close(context.Background())
		return nil, fmt.Errorf("init llm: %w", err)
	}

	set, err := prompts.Load(cfg.Prompts.Dir, cfg.Prompts.ReportTitle)
	if err != nil {
		_ = c.Close(context.Background())
		return nil, fmt.Errorf("init prompts: %w", err)
	}

	sum := summarizer.New(client, set, summarizer.Config{
		Model:          cfg.LLM.SummaryModel,
		Concurrency:    cfg.Pipeline.Concurrency,
		MaxRetries:     retriesFor(cfg.Pipeline.MaxRetries),
		InitialBackoff: cfg.Pipeline.InitialBackoff,
	}, logger)
	asm := report.New(client, set, report.Config{
		Model:     cfg.LLM.ReportModel,
		MaxTokens: cfg.Pipeline.ReportMaxTokens,
	}, logger)

	if stores != nil {
		c.Persister = summarycache.NewPersister(cfg.Pipeline.PersistQueue, cfg.Pipeline.PersistTimeout, logger)
	}
	c.Service = insight.NewService(stores, sum, asm, c.Persister, events, logger)

	logger.Info("pipeline ready",
		slog.String("store", cfg.Store.Backend),
		slog.String("provider", cfg.LLM.Provider),
		slog.String("summary_model", cfg.LLM.SummaryModel),
		slog.String("report_model", cfg.LLM.ReportModel),
		slog.Int("concurrency", cfg.Pipeline.Concurrency))
	return c, nil
}

// Close drains pending summary writes and closes the store.
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	if c.Persister != nil {
		if err := c.Persister.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close persister: %w", err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func openStores(cfg StoreConfig) (storage.Opener, *storage.DB, error) {
	switch cfg.Backend {
	case StoreBackendSQLite:
		db, err := storage.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init store: %w", err)
		}
		return db, db, nil
	case StoreBackendFS:
		opener, err := storage.NewFSOpener(cfg.FS.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init store: %w", err)
		}
		return opener, nil, nil
	default:
		return nil, nil, nil
	}
}

// retriesFor maps the configured retry count to the summarizer's
// convention, where zero selects the default.
func retriesFor(n int) int {
	if n == 0 {
		return -1
	}
	return n
}
