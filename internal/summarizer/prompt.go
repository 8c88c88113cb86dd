package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/chronicle/internal/models"
	"github.com/starford/chronicle/internal/tiering"
)

// Fallback excerpt limits.
const (
	FallbackEntries = 5
	FallbackChars   = 200
)

// BuildPrompt renders the user message for one batch.
func BuildPrompt(batch []models.Entry, typ models.BatchType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Period: %s (%s)\n", tiering.PeriodLabel(batch, typ), tiering.PeriodKey(batch, typ))
	fmt.Fprintf(&b, "Dates: %s\n", tiering.DateRange(batch))
	fmt.Fprintf(&b, "Entries: %d\n", len(batch))
	fmt.Fprintf(&b, "Summary type: %s\n\n", typ)
	if typ == models.BatchMonthly {
		b.WriteString("Summarize this month of journal entries.\n")
	} else {
		b.WriteString("Summarize this week of journal entries.\n")
	}
	for _, e := range batch {
		b.WriteString("\n")
		b.WriteString(e.Heading())
		b.WriteString("\n")
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// Fallback builds the placeholder used when a batch cannot be summarized:
// the last FallbackEntries entries, each cut to FallbackChars characters.
func Fallback(batch []models.Entry, typ models.BatchType, now time.Time) models.BatchSummary {
	tail := batch
	if len(tail) > FallbackEntries {
		tail = tail[len(tail)-FallbackEntries:]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[Summary unavailable — excerpts from %d entries]", len(batch))
	for _, e := range tail {
		b.WriteString("\n\n[")
		b.WriteString(e.Date.UTC().Format("2006-01-02"))
		b.WriteString("] ")
		b.WriteString(truncate(strings.TrimSpace(e.Text), FallbackChars))
	}

	return models.BatchSummary{
		CachedSummary: models.CachedSummary{
			PeriodKey:   tiering.PeriodKey(batch, typ),
			PeriodLabel: tiering.PeriodLabel(batch, typ),
			Type:        typ,
			Summary:     b.String(),
			EntryCount:  len(batch),
			CreatedAt:   now.UTC(),
		},
		Fallback: true,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
