package tiering

import (
	"fmt"
	"time"

	"github.com/starford/chronicle/internal/models"
)

// WeekKey returns the YYYY-Www key of t.
//
// The week number is ceil((dayOfYear + weekdayOfJan1) / 7) with a 1-based
// day of year and Sunday = 0. This is not ISO-8601 week numbering: days at the
// start or end of a year can land in a different week than the ISO calendar
// would put them. Cached summaries are keyed on this scheme, so it must stay
// stable.
func WeekKey(t time.Time) string {
	t = t.UTC()
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	n := t.YearDay() + int(jan1.Weekday())
	week := (n + 6) / 7
	return fmt.Sprintf("%04d-W%02d", t.Year(), week)
}

// MonthKey returns the YYYY-MM key of t.
func MonthKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// PeriodKey derives a batch key from the earliest entry in the batch.
func PeriodKey(batch []models.Entry, typ models.BatchType) string {
	if len(batch) == 0 {
		return ""
	}
	first := earliest(batch)
	if typ == models.BatchMonthly {
		return MonthKey(first)
	}
	return WeekKey(first)
}

// PeriodLabel returns a human-readable label for a batch.
func PeriodLabel(batch []models.Entry, typ models.BatchType) string {
	if len(batch) == 0 {
		return ""
	}
	first := earliest(batch).UTC()
	if typ == models.BatchMonthly {
		return first.Format("January 2006")
	}
	return "Week of " + first.Format("Jan 2, 2006")
}

// DateRange returns "first to last" dates of a batch in YYYY-MM-DD form.
func DateRange(batch []models.Entry) string {
	if len(batch) == 0 {
		return ""
	}
	first, last := batch[0].Date, batch[0].Date
	for _, e := range batch[1:] {
		if e.Date.Before(first) {
			first = e.Date
		}
		if e.Date.After(last) {
			last = e.Date
		}
	}
	a, b := first.UTC().Format("2006-01-02"), last.UTC().Format("2006-01-02")
	if a == b {
		return a
	}
	return a + " to " + b
}

func earliest(batch []models.Entry) time.Time {
	first := batch[0].Date
	for _, e := range batch[1:] {
		if e.Date.Before(first) {
			first = e.Date
		}
	}
	return first
}
