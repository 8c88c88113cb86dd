package report

import (
	"fmt"
	"strings"

	"github.com/starford/chronicle/internal/models"
	"github.com/starford/chronicle/internal/prompts"
)

// Section headings of the report outline, before any custom topics.
var baseSections = []string{
	"Overview",
	"Patterns and Themes",
	"Recent Focus",
}

// BuildPrompt renders the tiered user prompt: monthly summaries, then
// weekly summaries, then recent entries in full.
func BuildPrompt(set *prompts.Set, in Input) string {
	return buildPrompt(set, in, RecentText(in.Tier1))
}

// RecentText renders full-text entries oldest first.
func RecentText(entries []models.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString("\n")
		b.WriteString(e.Heading())
		b.WriteString("\n")
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func buildPrompt(set *prompts.Set, in Input, recent string) string {
	var b strings.Builder
	b.WriteString("Below is my journal, oldest material first.\n")

	if len(in.Monthly) > 0 {
		b.WriteString("\n## Monthly summaries (older period, AI-generated, lossy)\n")
		writeSummaries(&b, in.Monthly)
	}
	if len(in.Weekly) > 0 {
		b.WriteString("\n## Weekly summaries (intermediate period, AI-generated, lossy)\n")
		writeSummaries(&b, in.Weekly)
	}

	b.WriteString("\n## Recent entries (full text, authoritative)\n")
	if recent == "" {
		b.WriteString("\nNo entries in the recent period.\n")
	}
	b.WriteString(recent)

	writeOutline(&b, set, in.CustomTopics)
	return b.String()
}

// BuildLegacyPrompt renders the untiered prompt around raw journal text.
func BuildLegacyPrompt(set *prompts.Set, text string, topics []string) string {
	var b strings.Builder
	b.WriteString("Below is my journal.\n\n## Journal (full text, authoritative)\n\n")
	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	writeOutline(&b, set, topics)
	return b.String()
}

func writeSummaries(b *strings.Builder, summaries []models.BatchSummary) {
	for _, s := range summaries {
		fmt.Fprintf(b, "\n### %s (%d %s)", s.PeriodLabel, s.EntryCount, plural(s.EntryCount, "entry", "entries"))
		if s.Fallback {
			b.WriteString(" [raw excerpts, summary unavailable]")
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(s.Summary))
		b.WriteString("\n")
	}
}

func writeOutline(b *strings.Builder, set *prompts.Set, topics []string) {
	b.WriteString("\n---\n\nWrite the report with these sections, in order:\n")
	n := 1
	for _, s := range baseSections {
		fmt.Fprintf(b, "%d. %s\n", n, s)
		n++
	}
	topics = NormalizeTopics(topics)
	for _, t := range topics {
		fmt.Fprintf(b, "%d. %s\n", n, t)
		n++
	}
	fmt.Fprintf(b, "%d. %s\n", n, closingHeading(set.ReportClosing))

	if len(topics) > 0 {
		b.WriteString("\nThe following topics were requested and every listed topic must receive its own section, even when the journal says little about it:\n")
		for _, t := range topics {
			fmt.Fprintf(b, "- %s\n", t)
		}
	}
	b.WriteString("\nClosing section guidance:\n")
	b.WriteString(set.ReportClosing)
	b.WriteString("\n")
}

// closingHeading is the first line of the closing text without Markdown
// heading markers.
func closingHeading(closing string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(closing), "\n")
	first = strings.TrimSpace(strings.TrimLeft(first, "#"))
	if first == "" {
		return "Looking Ahead"
	}
	return first
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
