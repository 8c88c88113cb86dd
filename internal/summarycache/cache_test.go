package summarycache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/chronicle/internal/models"
	"github.com/starford/chronicle/internal/storage"
	"github.com/starford/chronicle/internal/tiering"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func weekBatch(texts ...string) []models.Entry {
	out := make([]models.Entry, len(texts))
	for i, text := range texts {
		out[i] = models.Entry{Date: day(2024, 5, 1+i), Text: text}
	}
	return out
}

func newStore(t *testing.T) *storage.FS {
	t.Helper()
	s, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	return s
}

func record(batch []models.Entry, typ models.BatchType, text string) models.CachedSummary {
	return Record(batch, typ, text, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
}

// failingStore fails every listing.
type failingStore struct{ storage.Provider }

func (failingStore) List(context.Context, string) ([]models.ObjectInfo, error) {
	return nil, errors.New("store offline")
}

func TestContentHash(t *testing.T) {
	a := weekBatch("walked the dog", "rainy day")
	h := ContentHash(a)
	require.Len(t, h, HashLen)
	require.Regexp(t, `^[0-9a-f]{16}$`, h)
	require.Equal(t, h, ContentHash(weekBatch("walked the dog", "rainy day")))

	require.NotEqual(t, h, ContentHash(weekBatch("walked the cat", "rainy day")))

	moved := weekBatch("walked the dog rainy", "day")
	require.NotEqual(t, h, ContentHash(moved))

	swapped := weekBatch("walked the dog", "rainy day")
	swapped[0], swapped[1] = swapped[1], swapped[0]
	require.NotEqual(t, h, ContentHash(swapped))

	shifted := weekBatch("walked the dog", "rainy day")
	shifted[1].Date = shifted[1].Date.Add(time.Nanosecond)
	require.NotEqual(t, h, ContentHash(shifted))
}

func TestObjectNameRoundTrip(t *testing.T) {
	name := ObjectName(models.BatchWeekly, "2024-W18", "0123456789abcdef")
	require.Equal(t, "summary-weekly-2024-W18-0123456789abcdef", name)

	parsed, ok := ParseObjectName(name)
	require.True(t, ok)
	require.Equal(t, ParsedName{Type: models.BatchWeekly, Key: "2024-W18", Hash: "0123456789abcdef"}, parsed)

	require.Equal(t, "summary-monthly-2024_01-0123456789abcdef",
		ObjectName(models.BatchMonthly, "2024/01", "0123456789abcdef"))

	for _, bad := range []string{
		"note-weekly-2024-W18-0123456789abcdef",
		"summary-yearly-2024-0123456789abcdef",
		"summary-weekly-0123456789abcdef",
		"summary-weekly-2024-W18-XYZ",
	} {
		_, ok := ParseObjectName(bad)
		require.False(t, ok, bad)
	}
}

func TestFindUncached_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := New(newStore(t), nil)
	batch := weekBatch("one", "two")
	other := []models.Entry{{Date: day(2024, 5, 20), Text: "later"}}

	saved := record(batch, models.BatchWeekly, "a calm week")
	require.Equal(t, 1, cache.Save(ctx, []models.CachedSummary{saved}))

	cached, uncached := cache.FindUncached(ctx, [][]models.Entry{batch, other}, models.BatchWeekly)
	require.Equal(t, []int{1}, uncached)
	key := tiering.PeriodKey(batch, models.BatchWeekly)
	require.Contains(t, cached, key)
	require.Equal(t, saved, cached[key])

	hit := Hit(cached[key])
	require.True(t, hit.FromCache)
	require.False(t, hit.Fallback)
}

func TestFindUncached_EditedContentMisses(t *testing.T) {
	ctx := context.Background()
	cache := New(newStore(t), nil)
	batch := weekBatch("one", "two")
	cache.Save(ctx, []models.CachedSummary{record(batch, models.BatchWeekly, "summary")})

	edited := weekBatch("one", "two, amended")
	cached, uncached := cache.FindUncached(ctx, [][]models.Entry{edited}, models.BatchWeekly)
	require.Empty(t, cached)
	require.Equal(t, []int{0}, uncached)
}

func TestFindUncached_TypeIsolation(t *testing.T) {
	ctx := context.Background()
	cache := New(newStore(t), nil)
	batch := weekBatch("one")
	cache.Save(ctx, []models.CachedSummary{record(batch, models.BatchWeekly, "weekly")})

	_, uncached := cache.FindUncached(ctx, [][]models.Entry{batch}, models.BatchMonthly)
	require.Equal(t, []int{0}, uncached)
}

func TestFindUncached_DisabledCache(t *testing.T) {
	cache := New(nil, nil)
	require.False(t, cache.Enabled())

	batches := [][]models.Entry{weekBatch("a"), weekBatch("b")}
	cached, uncached := cache.FindUncached(context.Background(), batches, models.BatchWeekly)
	require.Empty(t, cached)
	require.Equal(t, []int{0, 1}, uncached)

	require.Zero(t, cache.Save(context.Background(), []models.CachedSummary{record(batches[0], models.BatchWeekly, "x")}))
	n, err := cache.Cleanup(context.Background(), models.BatchWeekly, map[string]string{"k": "h"})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestFindUncached_StoreFailureDegrades(t *testing.T) {
	cache := New(failingStore{newStore(t)}, nil)
	cached, uncached := cache.FindUncached(context.Background(), [][]models.Entry{weekBatch("a")}, models.BatchWeekly)
	require.Empty(t, cached)
	require.Equal(t, []int{0}, uncached)
}

func TestFindUncached_CorruptRecordIsMiss(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	cache := New(store, nil)
	batch := weekBatch("one")
	rec := record(batch, models.BatchWeekly, "fine")
	name := ObjectName(rec.Type, rec.PeriodKey, rec.ContentHash)

	_, err := store.Create(ctx, name, []byte("{not json"))
	require.NoError(t, err)
	_, uncached := cache.FindUncached(ctx, [][]models.Entry{batch}, models.BatchWeekly)
	require.Equal(t, []int{0}, uncached)

	require.NoError(t, store.Update(ctx, name, []byte(`{"periodKey":"`+rec.PeriodKey+`","type":"weekly","summary":"","entryCount":1,"contentHash":"`+rec.ContentHash+`","createdAt":"2024-08-01T00:00:00Z"}`)))
	_, uncached = cache.FindUncached(ctx, [][]models.Entry{batch}, models.BatchWeekly)
	require.Equal(t, []int{0}, uncached)
}

func TestSave_IdempotentAndRejectsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	cache := New(store, nil)
	batch := weekBatch("one")

	require.Equal(t, 1, cache.Save(ctx, []models.CachedSummary{record(batch, models.BatchWeekly, "first")}))
	require.Equal(t, 1, cache.Save(ctx, []models.CachedSummary{record(batch, models.BatchWeekly, "second")}))
	require.Zero(t, cache.Save(ctx, []models.CachedSummary{record(batch, models.BatchWeekly, "  ")}))

	objects, err := store.List(ctx, Prefix(models.BatchWeekly))
	require.NoError(t, err)
	require.Len(t, objects, 1)

	listed, err := cache.List(ctx, models.BatchWeekly)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "second", listed[0].Summary)
}

// racingStore hides objects from the first lookup and writes a competing
// object in its place, as a concurrent writer would.
type racingStore struct {
	*storage.FS
	raced bool
}

func (r *racingStore) List(ctx context.Context, prefix string) ([]models.ObjectInfo, error) {
	if !r.raced {
		r.raced = true
		if _, err := r.FS.Create(ctx, prefix, []byte(`{"summary":"other writer"}`)); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return r.FS.List(ctx, prefix)
}

func TestSave_ConcurrentCreateBecomesUpdate(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{FS: newStore(t)}
	cache := New(store, nil)
	rec := record(weekBatch("one"), models.BatchWeekly, "mine")

	require.Equal(t, 1, cache.Save(ctx, []models.CachedSummary{rec}))
	require.True(t, store.raced)

	listed, err := cache.List(ctx, models.BatchWeekly)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, rec, listed[0])
}

func TestCleanup_DeletesSupersededOnly(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	cache := New(store, nil)

	oldWeek := weekBatch("draft")
	newWeek := weekBatch("final")
	otherWeek := []models.Entry{{Date: day(2024, 6, 10), Text: "elsewhere"}}
	cache.Save(ctx, []models.CachedSummary{
		record(oldWeek, models.BatchWeekly, "old"),
		record(newWeek, models.BatchWeekly, "new"),
		record(otherWeek, models.BatchWeekly, "other"),
	})

	current := map[string]string{
		tiering.PeriodKey(newWeek, models.BatchWeekly): ContentHash(newWeek),
	}
	deleted, err := cache.Cleanup(ctx, models.BatchWeekly, current)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	listed, err := cache.List(ctx, models.BatchWeekly)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	summaries := []string{listed[0].Summary, listed[1].Summary}
	require.ElementsMatch(t, []string{"new", "other"}, summaries)
}

func TestCleanup_ListFailureReturnsError(t *testing.T) {
	cache := New(failingStore{newStore(t)}, nil)
	_, err := cache.Cleanup(context.Background(), models.BatchWeekly, map[string]string{})
	require.Error(t, err)
}
