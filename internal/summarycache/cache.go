package summarycache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/chronicle/internal/apperr"
	"github.com/starford/chronicle/internal/models"
	"github.com/starford/chronicle/internal/storage"
	"github.com/starford/chronicle/internal/tiering"
)

// Cache reads and writes summaries for one user. A Cache over a nil store
// is disabled: every batch is uncached and writes are no-ops.
type Cache struct {
	store  storage.Provider
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Cache over store. store may be nil.
func New(store storage.Provider, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, logger: logger, now: time.Now}
}

// Enabled reports whether the cache has a backing store.
func (c *Cache) Enabled() bool {
	return c != nil && c.store != nil
}

type storedRecord struct {
	id      string
	summary models.CachedSummary
}

// FindUncached splits batches into cache hits, keyed by period key, and the
// indices of batches that still need summarizing. Store failures degrade to
// every batch being uncached.
func (c *Cache) FindUncached(ctx context.Context, batches [][]models.Entry, typ models.BatchType) (map[string]models.CachedSummary, []int) {
	cached := make(map[string]models.CachedSummary)
	all := make([]int, len(batches))
	for i := range batches {
		all[i] = i
	}
	if !c.Enabled() || len(batches) == 0 {
		return cached, all
	}

	records, err := c.load(ctx, typ)
	if err != nil {
		c.logger.Warn("summary cache lookup failed",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
		return cached, all
	}
	index := make(map[string]models.CachedSummary, len(records))
	for _, r := range records {
		index[indexKey(r.summary.PeriodKey, r.summary.ContentHash)] = r.summary
	}

	var uncached []int
	for i, batch := range batches {
		key := tiering.PeriodKey(batch, typ)
		if hit, ok := index[indexKey(key, ContentHash(batch))]; ok {
			cached[key] = hit
			continue
		}
		uncached = append(uncached, i)
	}
	c.logger.Debug("summary cache lookup",
		slog.String("type", string(typ)),
		slog.Int("batches", len(batches)),
		slog.Int("hits", len(cached)),
	)
	return cached, uncached
}

// Save persists summaries, updating an object with the same name when one
// exists. Failures are logged per summary and never returned. It returns the
// number of summaries written.
func (c *Cache) Save(ctx context.Context, summaries []models.CachedSummary) int {
	if !c.Enabled() {
		return 0
	}
	saved := 0
	for _, s := range summaries {
		if s.CreatedAt.IsZero() {
			s.CreatedAt = c.now().UTC()
		}
		if err := c.saveOne(ctx, s); err != nil {
			c.logger.Warn("summary cache write failed",
				slog.String("period", s.PeriodKey),
				slog.String("type", string(s.Type)),
				slog.String("error", err.Error()),
			)
			continue
		}
		saved++
	}
	return saved
}

func (c *Cache) saveOne(ctx context.Context, s models.CachedSummary) error {
	if err := validateRecord(s, s.Type, ""); err != nil {
		return err
	}
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("summarycache: encode: %w", err)
	}
	name := ObjectName(s.Type, s.PeriodKey, s.ContentHash)

	id, err := c.lookup(ctx, name)
	if err != nil {
		return err
	}
	if id == "" {
		_, err = c.store.Create(ctx, name, blob)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperr.ErrAlreadyExists) {
			return fmt.Errorf("summarycache: create %s: %w", name, err)
		}
		// Another writer created it after the lookup; last write wins.
		if id, err = c.lookup(ctx, name); err != nil {
			return err
		}
		if id == "" {
			return fmt.Errorf("summarycache: create %s: %w", name, apperr.ErrAlreadyExists)
		}
	}
	if err := c.store.Update(ctx, id, blob); err != nil {
		return fmt.Errorf("summarycache: update %s: %w", name, err)
	}
	return nil
}

// lookup returns the id of the object named exactly name, or "".
func (c *Cache) lookup(ctx context.Context, name string) (string, error) {
	existing, err := c.store.List(ctx, name)
	if err != nil {
		return "", fmt.Errorf("summarycache: lookup %s: %w", name, err)
	}
	for _, o := range existing {
		if o.Name == name {
			return o.ID, nil
		}
	}
	return "", nil
}

// Cleanup deletes objects of typ whose period appears in current with a
// different content hash. Periods absent from current are kept.
func (c *Cache) Cleanup(ctx context.Context, typ models.BatchType, current map[string]string) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}
	wanted := make(map[string]string, len(current))
	for key, hash := range current {
		wanted[Sanitize(key)] = hash
	}

	objects, err := c.store.List(ctx, Prefix(typ))
	if err != nil {
		return 0, fmt.Errorf("summarycache: list %s: %w", typ, err)
	}
	deleted := 0
	for _, o := range objects {
		parsed, ok := ParseObjectName(o.Name)
		if !ok || parsed.Type != typ {
			continue
		}
		hash, relevant := wanted[parsed.Key]
		if !relevant || hash == parsed.Hash {
			continue
		}
		if err := c.store.Delete(ctx, o.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			c.logger.Warn("summary cache delete failed",
				slog.String("name", o.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		c.logger.Info("summary cache cleanup",
			slog.String("type", string(typ)),
			slog.Int("deleted", deleted),
		)
	}
	return deleted, nil
}

// List returns every valid stored summary of typ ordered by period key.
func (c *Cache) List(ctx context.Context, typ models.BatchType) ([]models.CachedSummary, error) {
	if !c.Enabled() {
		return nil, nil
	}
	records, err := c.load(ctx, typ)
	if err != nil {
		return nil, err
	}
	out := make([]models.CachedSummary, 0, len(records))
	for _, r := range records {
		out = append(out, r.summary)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PeriodKey != out[j].PeriodKey {
			return out[i].PeriodKey < out[j].PeriodKey
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// load lists typ and decodes every object. Unreadable or invalid objects are
// skipped.
func (c *Cache) load(ctx context.Context, typ models.BatchType) ([]storedRecord, error) {
	objects, err := c.store.List(ctx, Prefix(typ))
	if err != nil {
		return nil, fmt.Errorf("summarycache: list %s: %w", typ, err)
	}
	out := make([]storedRecord, 0, len(objects))
	for _, o := range objects {
		blob, err := c.store.Get(ctx, o.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Warn("summary cache read failed",
				slog.String("name", o.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		var s models.CachedSummary
		if err := json.Unmarshal(blob, &s); err != nil {
			c.logger.Warn("summary cache record corrupt",
				slog.String("name", o.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := validateRecord(s, typ, o.Name); err != nil {
			c.logger.Warn("summary cache record rejected",
				slog.String("name", o.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, storedRecord{id: o.ID, summary: s})
	}
	return out, nil
}

// Hit converts a cached record into a runtime summary.
func Hit(s models.CachedSummary) models.BatchSummary {
	return models.BatchSummary{CachedSummary: s, FromCache: true}
}

// Record builds the cacheable form of a freshly summarized batch.
func Record(batch []models.Entry, typ models.BatchType, summary string, now time.Time) models.CachedSummary {
	return models.CachedSummary{
		PeriodKey:   tiering.PeriodKey(batch, typ),
		PeriodLabel: tiering.PeriodLabel(batch, typ),
		Type:        typ,
		Summary:     summary,
		EntryCount:  len(batch),
		ContentHash: ContentHash(batch),
		CreatedAt:   now.UTC(),
	}
}

func indexKey(periodKey, hash string) string {
	return periodKey + ":" + hash
}
