// Package tiering partitions journal entries into age-based tiers and groups
// older entries into weekly and monthly batches.
package tiering

import (
	"sort"
	"time"

	"github.com/starford/chronicle/internal/models"
)

// Tier cutoffs, measured as now minus the entry date.
const (
	RecentWindow = 14 * 24 * time.Hour
	WeeklyWindow = 90 * 24 * time.Hour
)

// Partition classifies entries relative to now. An entry goes to the newer
// tier while its age is strictly below the cutoff, so an entry exactly 90 days
// old lands in tier 3.
func Partition(entries []models.Entry, now time.Time) models.TieredJournal {
	var (
		tier1        []models.Entry
		weekly       = newGrouper()
		monthly      = newGrouper()
		tier2, tier3 int
	)

	for _, e := range entries {
		age := now.Sub(e.Date)
		switch {
		case age < RecentWindow:
			tier1 = append(tier1, e)
		case age < WeeklyWindow:
			weekly.add(WeekKey(e.Date), e)
			tier2++
		default:
			monthly.add(MonthKey(e.Date), e)
			tier3++
		}
	}
	sortEntries(tier1)

	tj := models.TieredJournal{
		Tier1:        nonNil(tier1),
		Tier2Batches: weekly.batches(),
		Tier3Batches: monthly.batches(),
	}
	tj.Stats = models.TierStats{
		TotalEntries: len(entries),
		Tier1Entries: len(tier1),
		Tier2Entries: tier2,
		Tier3Entries: tier3,
		Tier2Batches: len(tj.Tier2Batches),
		Tier3Batches: len(tj.Tier3Batches),
	}
	return tj
}

// grouper collects entries by key, remembering first-seen order.
type grouper struct {
	order  []string
	groups map[string][]models.Entry
}

func newGrouper() *grouper {
	return &grouper{groups: make(map[string][]models.Entry)}
}

func (g *grouper) add(key string, e models.Entry) {
	if _, ok := g.groups[key]; !ok {
		g.order = append(g.order, key)
	}
	g.groups[key] = append(g.groups[key], e)
}

// batches returns the groups sorted ascending by key, each sorted by date.
func (g *grouper) batches() [][]models.Entry {
	keys := append([]string(nil), g.order...)
	sort.Strings(keys)
	out := make([][]models.Entry, 0, len(keys))
	for _, k := range keys {
		b := g.groups[k]
		sortEntries(b)
		out = append(out, b)
	}
	return out
}

func sortEntries(entries []models.Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
