package tiering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/chronicle/internal/models"
)

var testNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func entry(t time.Time, text string) models.Entry {
	return models.Entry{Date: t, Text: text}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestPartition_Boundaries(t *testing.T) {
	entries := []models.Entry{
		entry(testNow.Add(-RecentWindow+time.Second), "just recent"),
		entry(testNow.Add(-RecentWindow), "exactly 14 days"),
		entry(testNow.Add(-WeeklyWindow+time.Second), "just weekly"),
		entry(testNow.Add(-WeeklyWindow), "exactly 90 days"),
		entry(testNow.Add(time.Hour), "future"),
	}

	tj := Partition(entries, testNow)

	require.Len(t, tj.Tier1, 2)
	require.Equal(t, "just recent", tj.Tier1[0].Text)
	require.Equal(t, "future", tj.Tier1[1].Text)

	require.Equal(t, 2, tj.Stats.Tier2Entries)
	var tier2 []string
	for _, b := range tj.Tier2Batches {
		for _, e := range b {
			tier2 = append(tier2, e.Text)
		}
	}
	require.ElementsMatch(t, []string{"exactly 14 days", "just weekly"}, tier2)

	require.Len(t, tj.Tier3Batches, 1)
	require.Equal(t, "exactly 90 days", tj.Tier3Batches[0][0].Text)
}

func TestPartition_ThreeWeeksAscending(t *testing.T) {
	entries := []models.Entry{
		entry(day(2024, 5, 15), "w20"),
		entry(day(2024, 5, 1), "w18"),
		entry(day(2024, 5, 8), "w19"),
		entry(day(2024, 5, 2), "w18b"),
	}

	tj := Partition(entries, testNow)

	require.Len(t, tj.Tier2Batches, 3)
	keys := make([]string, len(tj.Tier2Batches))
	for i, b := range tj.Tier2Batches {
		keys[i] = PeriodKey(b, models.BatchWeekly)
	}
	require.Equal(t, []string{"2024-W18", "2024-W19", "2024-W20"}, keys)
	require.Equal(t, "w18", tj.Tier2Batches[0][0].Text)
	require.Equal(t, "w18b", tj.Tier2Batches[0][1].Text)
}

func TestPartition_MonthlyBatchesSorted(t *testing.T) {
	entries := []models.Entry{
		entry(day(2024, 1, 3), "jan"),
		entry(day(2023, 11, 15), "nov-b"),
		entry(day(2023, 11, 2), "nov-a"),
	}

	tj := Partition(entries, testNow)

	require.Len(t, tj.Tier3Batches, 2)
	require.Equal(t, "2023-11", PeriodKey(tj.Tier3Batches[0], models.BatchMonthly))
	require.Equal(t, "2024-01", PeriodKey(tj.Tier3Batches[1], models.BatchMonthly))
	require.Equal(t, "nov-a", tj.Tier3Batches[0][0].Text)
	require.Equal(t, "nov-b", tj.Tier3Batches[0][1].Text)
	require.Equal(t, models.TierStats{
		TotalEntries: 3,
		Tier3Entries: 3,
		Tier3Batches: 2,
	}, tj.Stats)
}

func TestPartition_Empty(t *testing.T) {
	tj := Partition(nil, testNow)
	require.NotNil(t, tj.Tier1)
	require.Empty(t, tj.Tier1)
	require.Empty(t, tj.Tier2Batches)
	require.Empty(t, tj.Tier3Batches)
}

func TestPartition_NeverEmptyBatches(t *testing.T) {
	var entries []models.Entry
	for d := 0; d < 200; d += 3 {
		entries = append(entries, entry(testNow.AddDate(0, 0, -d), "x"))
	}
	tj := Partition(entries, testNow)
	for _, b := range append(tj.Tier2Batches, tj.Tier3Batches...) {
		require.NotEmpty(t, b)
	}
	require.Equal(t, len(entries), tj.Stats.Tier1Entries+tj.Stats.Tier2Entries+tj.Stats.Tier3Entries)
}

func TestWeekKey_Formula(t *testing.T) {
	cases := map[time.Time]string{
		// 2024-01-01 is a Monday.
		day(2024, 1, 1):   "2024-W01",
		day(2024, 1, 6):   "2024-W01",
		day(2024, 1, 7):   "2024-W02",
		day(2024, 12, 31): "2024-W53",
		// 2023-01-01 is a Sunday.
		day(2023, 1, 1): "2023-W01",
		day(2023, 1, 8): "2023-W02",
	}
	for in, want := range cases {
		require.Equal(t, want, WeekKey(in), "WeekKey(%s)", in.Format("2006-01-02"))
	}
}

func TestPeriodLabelAndRange(t *testing.T) {
	batch := []models.Entry{entry(day(2024, 5, 8), "a"), entry(day(2024, 5, 10), "b")}
	require.Equal(t, "Week of May 8, 2024", PeriodLabel(batch, models.BatchWeekly))
	require.Equal(t, "May 2024", PeriodLabel(batch, models.BatchMonthly))
	require.Equal(t, "2024-05-08 to 2024-05-10", DateRange(batch))
	require.Equal(t, "2024-05-08", DateRange(batch[:1]))
}
