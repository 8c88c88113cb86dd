// Package summarizer condenses weekly and monthly batches of journal entries
// with a cheap language model, retrying transient failures and degrading to
// raw excerpts when a batch cannot be summarized.
package summarizer

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/starford/chronicle/internal/llm"
	"github.com/starford/chronicle/internal/models"
	"github.com/starford/chronicle/internal/prompts"
	"github.com/starford/chronicle/internal/summarycache"
)

// Output ceilings per batch type.
const (
	WeeklyMaxTokens  = 500
	MonthlyMaxTokens = 800
)

// Defaults applied to zero Config fields.
const (
	DefaultConcurrency    = 3
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second
)

// Config tunes the worker pool and retry policy.
type Config struct {
	Model          string
	Concurrency    int
	MaxRetries     int
	InitialBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	return c
}

// Event reports one finished batch.
type Event struct {
	Type      models.BatchType
	Index     int
	PeriodKey string
	Fallback  bool
	Attempts  int
}

// ProgressFunc receives an Event per finished batch. It is called from
// worker goroutines and must be safe for concurrent use.
type ProgressFunc func(Event)

// Summarizer runs batch summaries through a bounded worker pool.
type Summarizer struct {
	client  llm.Client
	prompts *prompts.Set
	cfg     Config
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// New creates a Summarizer. A negative cfg.MaxRetries disables retries.
func New(client llm.Client, set *prompts.Set, cfg Config, logger *slog.Logger) *Summarizer {
	if set == nil {
		set = prompts.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		client:  client,
		prompts: set,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// SummarizeBatches summarizes every batch and returns results in input
// order. It never fails: batches that cannot be summarized come back as
// fallback excerpts. progress may be nil.
func (s *Summarizer) SummarizeBatches(ctx context.Context, batches [][]models.Entry, typ models.BatchType, progress ProgressFunc) []models.BatchSummary {
	results := make([]models.BatchSummary, len(batches))
	if len(batches) == 0 {
		return results
	}

	workers := min(s.cfg.Concurrency, len(batches))
	var cursor atomic.Int64
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1) - 1)
				if i >= len(batches) {
					return nil
				}
				res, attempts := s.summarizeOne(ctx, batches[i], typ)
				results[i] = res
				if progress != nil {
					progress(Event{
						Type:      typ,
						Index:     i,
						PeriodKey: res.PeriodKey,
						Fallback:  res.Fallback,
						Attempts:  attempts,
					})
				}
			}
		})
	}
	_ = g.Wait()
	return results
}

func (s *Summarizer) summarizeOne(ctx context.Context, batch []models.Entry, typ models.BatchType) (models.BatchSummary, int) {
	req := s.request(batch, typ)
	bo := s.backoff()
	record := summarycache.Record(batch, typ, "", s.now())

	attempt := 0
	for {
		attempt++
		resp, err := s.client.Complete(ctx, req)
		if err == nil {
			record.Summary = strings.TrimSpace(resp.Text)
			s.logger.Debug("batch summarized",
				slog.String("period", record.PeriodKey),
				slog.String("type", string(typ)),
				slog.Int("attempts", attempt),
			)
			return models.BatchSummary{
				CachedSummary: record,
				InputTokens:   resp.InputTokens,
				OutputTokens:  resp.OutputTokens,
			}, attempt
		}

		retry := llm.IsRetryable(err) && attempt <= s.cfg.MaxRetries && ctx.Err() == nil
		if retry {
			retry = s.sleep(ctx, bo.NextBackOff()) == nil
		}
		if !retry {
			s.logger.Warn("batch summary failed, using excerpts",
				slog.String("period", record.PeriodKey),
				slog.String("type", string(typ)),
				slog.Int("attempts", attempt),
				slog.String("error", err.Error()),
			)
			return Fallback(batch, typ, s.now()), attempt
		}
	}
}

func (s *Summarizer) backoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.InitialBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = s.cfg.InitialBackoff << s.cfg.MaxRetries
	bo.Reset()
	return bo
}

func (s *Summarizer) request(batch []models.Entry, typ models.BatchType) llm.Request {
	system := s.prompts.WeeklySummary
	maxTokens := WeeklyMaxTokens
	if typ == models.BatchMonthly {
		system = s.prompts.MonthlySummary
		maxTokens = MonthlyMaxTokens
	}
	return llm.Request{
		Model:     s.cfg.Model,
		System:    system,
		MaxTokens: maxTokens,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: BuildPrompt(batch, typ)}},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
