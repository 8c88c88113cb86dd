// Package insight runs the report pipeline: parse, tier, look up cached
// summaries, summarize what is missing, persist in the background and
// assemble the final report.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/chronicle/internal/apperr"
	"github.com/starford/chronicle/internal/cost"
	"github.com/starford/chronicle/internal/models"
	"github.com/starford/chronicle/internal/parser"
	"github.com/starford/chronicle/internal/report"
	"github.com/starford/chronicle/internal/sse"
	"github.com/starford/chronicle/internal/storage"
	"github.com/starford/chronicle/internal/summarizer"
	"github.com/starford/chronicle/internal/summarycache"
	"github.com/starford/chronicle/internal/tiering"
)

// DateFormat renders the report date when the caller supplies none.
const DateFormat = "January 2, 2006"

// Publisher receives pipeline events.
type Publisher interface {
	PublishPipelineEvent(kind, user, period string)
}

// Request asks for one report.
type Request struct {
	User          string
	Journal       string
	FormattedDate string
	Topics        []string
	Now           time.Time
}

// Usage describes how a report was produced.
type Usage struct {
	SummaryInputTokens  int              `json:"summaryInputTokens"`
	SummaryOutputTokens int              `json:"summaryOutputTokens"`
	ReportInputTokens   int              `json:"reportInputTokens"`
	ReportOutputTokens  int              `json:"reportOutputTokens"`
	CachedWeekly        int              `json:"cachedWeekly"`
	CachedMonthly       int              `json:"cachedMonthly"`
	GeneratedWeekly     int              `json:"generatedWeekly"`
	GeneratedMonthly    int              `json:"generatedMonthly"`
	Fallbacks           int              `json:"fallbacks"`
	Legacy              bool             `json:"legacy,omitempty"`
	Truncated           bool             `json:"truncated,omitempty"`
	Tiers               models.TierStats `json:"tiers"`
}

// Result is a generated report with its usage and cost estimate.
type Result struct {
	ID       string            `json:"id"`
	Report   string            `json:"report"`
	Usage    Usage             `json:"usage"`
	Estimate cost.CostEstimate `json:"estimate"`
}

// PrewarmResult counts the summaries a prewarm pass touched.
type PrewarmResult struct {
	Cached    int `json:"cached"`
	Generated int `json:"generated"`
	Saved     int `json:"saved"`
	Fallbacks int `json:"fallbacks"`
}

// CleanupResult counts deleted superseded summaries per type.
type CleanupResult struct {
	Weekly  int `json:"weekly"`
	Monthly int `json:"monthly"`
}

// Service coordinates the pipeline components.
type Service struct {
	stores     storage.Opener
	summarizer *summarizer.Summarizer
	assembler  *report.Assembler
	persister  *summarycache.Persister
	events     Publisher
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a Service. stores, persister and events may be nil:
// without stores the cache is disabled, without a persister summaries are
// written synchronously.
func NewService(stores storage.Opener, sum *summarizer.Summarizer, asm *report.Assembler, persister *summarycache.Persister, events Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		stores:     stores,
		summarizer: sum,
		assembler:  asm,
		persister:  persister,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// tierOutcome is the merged result of one tier pipeline.
type tierOutcome struct {
	summaries []models.BatchSummary
	uncached  []int
	generated []models.BatchSummary
}

func (t tierOutcome) cached() int { return len(t.summaries) - len(t.uncached) }

func (t tierOutcome) fallbacks() int {
	n := 0
	for _, s := range t.generated {
		if s.Fallback {
			n++
		}
	}
	return n
}

// Generate produces a report. Summary failures degrade to excerpts; a
// failed report call is returned as an error.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	entries, err := parseJournal(req.Journal)
	if err != nil {
		return nil, err
	}
	now := s.resolveNow(req.Now)
	date := strings.TrimSpace(req.FormattedDate)
	if date == "" {
		date = now.Format(DateFormat)
	}
	id := uuid.NewString()
	log := s.logger.With(slog.String("report_id", id))

	tj := tiering.Partition(entries, now)
	cache := s.cacheFor(req.User)
	log.Info("report requested",
		slog.Int("entries", tj.Stats.TotalEntries),
		slog.Int("weekly_batches", tj.Stats.Tier2Batches),
		slog.Int("monthly_batches", tj.Stats.Tier3Batches),
		slog.Bool("cache", cache.Enabled()),
	)

	if len(tj.Tier2Batches) == 0 && len(tj.Tier3Batches) == 0 {
		return s.generateLegacy(ctx, id, req, date, tj)
	}

	weekly, monthly := s.runTiers(ctx, cache, req.User, tj)
	s.persist(cache, weekly.generated, monthly.generated)

	res, err := s.assembler.Assemble(ctx, report.Input{
		Tier1:         tj.Tier1,
		Weekly:        weekly.summaries,
		Monthly:       monthly.summaries,
		FormattedDate: date,
		CustomTopics:  req.Topics,
	})
	if err != nil {
		s.publish(sse.KindReportFailed, req.User, "")
		log.Error("report generation failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("insight: %w", err)
	}
	s.publish(sse.KindReportCompleted, req.User, "")

	usage := Usage{
		ReportInputTokens:  res.InputTokens,
		ReportOutputTokens: res.OutputTokens,
		CachedWeekly:       weekly.cached(),
		CachedMonthly:      monthly.cached(),
		GeneratedWeekly:    len(weekly.generated),
		GeneratedMonthly:   len(monthly.generated),
		Fallbacks:          weekly.fallbacks() + monthly.fallbacks(),
		Truncated:          res.Truncated,
		Tiers:              tj.Stats,
	}
	for _, group := range [][]models.BatchSummary{weekly.generated, monthly.generated} {
		for _, b := range group {
			usage.SummaryInputTokens += b.InputTokens
			usage.SummaryOutputTokens += b.OutputTokens
		}
	}
	log.Info("report completed",
		slog.Int("fallbacks", usage.Fallbacks),
		slog.Int("cached", usage.CachedWeekly+usage.CachedMonthly),
		slog.Int("output_tokens", res.OutputTokens),
	)
	return &Result{
		ID:       id,
		Report:   res.Report,
		Usage:    usage,
		Estimate: cost.EstimateWithIndices(tj.Tier1, tj.Tier2Batches, tj.Tier3Batches, weekly.uncached, monthly.uncached),
	}, nil
}

func (s *Service) generateLegacy(ctx context.Context, id string, req Request, date string, tj models.TieredJournal) (*Result, error) {
	res, err := s.assembler.AssembleLegacy(ctx, req.Journal, date, req.Topics)
	if err != nil {
		s.publish(sse.KindReportFailed, req.User, "")
		return nil, fmt.Errorf("insight: %w", err)
	}
	s.publish(sse.KindReportCompleted, req.User, "")
	return &Result{
		ID:     id,
		Report: res.Report,
		Usage: Usage{
			ReportInputTokens:  res.InputTokens,
			ReportOutputTokens: res.OutputTokens,
			Legacy:             true,
			Truncated:          res.Truncated,
			Tiers:              tj.Stats,
		},
		Estimate: cost.Estimate(tj.Tier1, nil, nil, 0, 0),
	}, nil
}

// Estimate prices a report without calling the model.
func (s *Service) Estimate(ctx context.Context, user, journal string, now time.Time) (*cost.CostEstimate, error) {
	entries, err := parseJournal(journal)
	if err != nil {
		return nil, err
	}
	tj := tiering.Partition(entries, s.resolveNow(now))
	cache := s.cacheFor(user)

	var weekly, monthly []int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, weekly = cache.FindUncached(gctx, tj.Tier2Batches, models.BatchWeekly)
		return nil
	})
	g.Go(func() error {
		_, monthly = cache.FindUncached(gctx, tj.Tier3Batches, models.BatchMonthly)
		return nil
	})
	_ = g.Wait()

	est := cost.EstimateWithIndices(tj.Tier1, tj.Tier2Batches, tj.Tier3Batches, weekly, monthly)
	return &est, nil
}

// Prewarm summarizes and stores every uncached batch for user without
// building a report.
func (s *Service) Prewarm(ctx context.Context, user, journal string, now time.Time) (PrewarmResult, error) {
	cache, err := s.requireCache(user)
	if err != nil {
		return PrewarmResult{}, err
	}
	entries, err := parseJournal(journal)
	if err != nil {
		return PrewarmResult{}, err
	}
	tj := tiering.Partition(entries, s.resolveNow(now))
	weekly, monthly := s.runTiers(ctx, cache, user, tj)

	records := cacheable(weekly.generated, monthly.generated)
	return PrewarmResult{
		Cached:    weekly.cached() + monthly.cached(),
		Generated: len(weekly.generated) + len(monthly.generated),
		Saved:     cache.Save(ctx, records),
		Fallbacks: weekly.fallbacks() + monthly.fallbacks(),
	}, nil
}

// Cleanup removes stored summaries superseded by the journal's current
// batch contents.
func (s *Service) Cleanup(ctx context.Context, user, journal string, now time.Time) (CleanupResult, error) {
	cache, err := s.requireCache(user)
	if err != nil {
		return CleanupResult{}, err
	}
	entries, err := parseJournal(journal)
	if err != nil {
		return CleanupResult{}, err
	}
	tj := tiering.Partition(entries, s.resolveNow(now))

	var res CleanupResult
	if res.Weekly, err = cache.Cleanup(ctx, models.BatchWeekly, currentHashes(tj.Tier2Batches, models.BatchWeekly)); err != nil {
		return res, err
	}
	if res.Monthly, err = cache.Cleanup(ctx, models.BatchMonthly, currentHashes(tj.Tier3Batches, models.BatchMonthly)); err != nil {
		return res, err
	}
	return res, nil
}

// Summaries lists stored summaries for user. An empty typ lists both types,
// monthly first.
func (s *Service) Summaries(ctx context.Context, user string, typ models.BatchType) ([]models.CachedSummary, error) {
	cache, err := s.requireCache(user)
	if err != nil {
		return nil, err
	}
	types := []models.BatchType{typ}
	if typ == "" {
		types = []models.BatchType{models.BatchMonthly, models.BatchWeekly}
	}
	out := []models.CachedSummary{}
	for _, t := range types {
		if !t.Valid() {
			return nil, fmt.Errorf("insight: unknown summary type %q", t)
		}
		list, err := cache.List(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}

// runTiers runs the weekly and monthly pipelines concurrently.
func (s *Service) runTiers(ctx context.Context, cache *summarycache.Cache, user string, tj models.TieredJournal) (weekly, monthly tierOutcome) {
	var g errgroup.Group
	g.Go(func() error {
		weekly = s.runTier(ctx, cache, user, tj.Tier2Batches, models.BatchWeekly)
		return nil
	})
	g.Go(func() error {
		monthly = s.runTier(ctx, cache, user, tj.Tier3Batches, models.BatchMonthly)
		return nil
	})
	_ = g.Wait()
	return weekly, monthly
}

func (s *Service) runTier(ctx context.Context, cache *summarycache.Cache, user string, batches [][]models.Entry, typ models.BatchType) tierOutcome {
	out := tierOutcome{summaries: make([]models.BatchSummary, len(batches))}
	if len(batches) == 0 {
		return out
	}

	hits, uncached := cache.FindUncached(ctx, batches, typ)
	out.uncached = uncached
	pending := make(map[int]struct{}, len(uncached))
	for _, i := range uncached {
		pending[i] = struct{}{}
	}
	for i, batch := range batches {
		if _, miss := pending[i]; miss {
			continue
		}
		key := tiering.PeriodKey(batch, typ)
		out.summaries[i] = summarycache.Hit(hits[key])
		s.publish(sse.KindSummaryCached, user, key)
	}

	todo := make([][]models.Entry, len(uncached))
	for j, i := range uncached {
		todo[j] = batches[i]
	}
	out.generated = s.summarizer.SummarizeBatches(ctx, todo, typ, func(e summarizer.Event) {
		kind := sse.KindSummaryGenerated
		if e.Fallback {
			kind = sse.KindSummaryFallback
		}
		s.publish(kind, user, e.PeriodKey)
	})
	for j, i := range uncached {
		out.summaries[i] = out.generated[j]
	}
	return out
}

// persist hands successful summaries to the background writer.
func (s *Service) persist(cache *summarycache.Cache, groups ...[]models.BatchSummary) {
	if !cache.Enabled() {
		return
	}
	records := cacheable(groups...)
	if len(records) == 0 {
		return
	}
	if s.persister != nil {
		s.persister.Enqueue(cache, records)
		return
	}
	cache.Save(context.Background(), records)
}

func (s *Service) cacheFor(user string) *summarycache.Cache {
	if s.stores == nil || strings.TrimSpace(user) == "" {
		return summarycache.New(nil, s.logger)
	}
	store, err := s.stores.ForUser(user)
	if err != nil {
		s.logger.Warn("summary store unavailable",
			slog.String("user", user),
			slog.String("error", err.Error()),
		)
		return summarycache.New(nil, s.logger)
	}
	return summarycache.New(store, s.logger)
}

func (s *Service) requireCache(user string) (*summarycache.Cache, error) {
	if s.stores == nil {
		return nil, fmt.Errorf("insight: summary store disabled: %w", apperr.ErrNotFound)
	}
	if strings.TrimSpace(user) == "" {
		return nil, fmt.Errorf("insight: user required: %w", apperr.ErrNotFound)
	}
	store, err := s.stores.ForUser(user)
	if err != nil {
		return nil, err
	}
	return summarycache.New(store, s.logger), nil
}

func (s *Service) resolveNow(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

func (s *Service) publish(kind, user, period string) {
	if s.events != nil {
		s.events.PublishPipelineEvent(kind, user, period)
	}
}

func parseJournal(raw string) ([]models.Entry, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, apperr.ErrEmptyJournal
	}
	entries := parser.Parse(raw)
	if len(entries) == 0 {
		return nil, apperr.ErrNoEntries
	}
	return entries, nil
}

// cacheable keeps non-fallback summaries in their persisted form.
func cacheable(groups ...[]models.BatchSummary) []models.CachedSummary {
	var out []models.CachedSummary
	for _, g := range groups {
		for _, b := range g {
			if b.Fallback || b.FromCache {
				continue
			}
			out = append(out, b.CachedSummary)
		}
	}
	return out
}

func currentHashes(batches [][]models.Entry, typ models.BatchType) map[string]string {
	out := make(map[string]string, len(batches))
	for _, b := range batches {
		out[tiering.PeriodKey(b, typ)] = summarycache.ContentHash(b)
	}
	return out
}
