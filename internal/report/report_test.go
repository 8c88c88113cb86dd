package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/chronicle/internal/cost"
	"github.com/starford/chronicle/internal/llm"
	"github.com/starford/chronicle/internal/models"
	"github.com/starford/chronicle/internal/prompts"
	"github.com/starford/chronicle/internal/testutil"
)

func summary(label string, typ models.BatchType, text string, count int) models.BatchSummary {
	return models.BatchSummary{CachedSummary: models.CachedSummary{
		PeriodLabel: label, Type: typ, Summary: text, EntryCount: count,
	}}
}

func sampleInput() Input {
	return Input{
		Monthly: []models.BatchSummary{summary("January 2024", models.BatchMonthly, "MONTHLY-TEXT", 20)},
		Weekly:  []models.BatchSummary{summary("Week of Apr 7, 2024", models.BatchWeekly, "WEEKLY-TEXT", 4)},
		Tier1: []models.Entry{
			{Date: time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC), Text: "RECENT-TEXT", Location: "Home"},
		},
		FormattedDate: "May 25, 2024",
	}
}

func TestBuildPrompt_SectionOrder(t *testing.T) {
	p := BuildPrompt(prompts.Default(), sampleInput())

	monthly := strings.Index(p, "MONTHLY-TEXT")
	weekly := strings.Index(p, "WEEKLY-TEXT")
	recent := strings.Index(p, "RECENT-TEXT")
	require.True(t, monthly >= 0 && weekly > monthly && recent > weekly, p)

	require.Contains(t, p, "### January 2024 (20 entries)")
	require.Contains(t, p, "### Week of Apr 7, 2024 (4 entries)")
	require.Contains(t, p, "[2024-05-20] (Home)\nRECENT-TEXT")
}

func TestBuildPrompt_FallbackMarkerAndEmptySections(t *testing.T) {
	in := Input{Weekly: []models.BatchSummary{summary("Week of Apr 7, 2024", models.BatchWeekly, "excerpt", 1)}}
	in.Weekly[0].Fallback = true

	p := BuildPrompt(prompts.Default(), in)
	require.Contains(t, p, "(1 entry) [raw excerpts, summary unavailable]")
	require.NotContains(t, p, "Monthly summaries")
	require.Contains(t, p, "No entries in the recent period.")
}

func TestBuildPrompt_TopicsBeforeClosing(t *testing.T) {
	in := sampleInput()
	in.CustomTopics = []string{" Sleep ", "", "Career", "sleep"}
	p := BuildPrompt(prompts.Default(), in)

	require.Contains(t, p, "4. Sleep\n5. Career\n6. Looking Ahead\n")
	require.Contains(t, p, "every listed topic must receive its own section")
	require.Equal(t, 1, strings.Count(p, "- Sleep\n"))
	require.NotContains(t, p, "- sleep\n")
}

func TestBuildPrompt_NoTopicsNoEnumeration(t *testing.T) {
	p := BuildPrompt(prompts.Default(), sampleInput())
	require.Contains(t, p, "3. Recent Focus\n4. Looking Ahead\n")
	require.NotContains(t, p, "must receive its own section")
}

func TestAssemble_PrefillAndUsage(t *testing.T) {
	client := testutil.NewScriptedClient(testutil.Reply{Text: "\n\n## Overview\nA steady month.", InputTokens: 900, OutputTokens: 300})
	a := New(client, prompts.Default(), Config{Model: "expensive"}, nil)

	res, err := a.Assemble(context.Background(), sampleInput())
	require.NoError(t, err)
	require.Equal(t, "Journal Insights for May 25, 2024\n\n## Overview\nA steady month.", res.Report)
	require.Equal(t, 900, res.InputTokens)
	require.Equal(t, 300, res.OutputTokens)

	reqs := client.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	require.Equal(t, "expensive", req.Model)
	require.Equal(t, DefaultMaxTokens, req.MaxTokens)
	require.Equal(t, prompts.Default().ReportSystem, req.System)
	require.Len(t, req.Messages, 2)
	require.Equal(t, llm.RoleUser, req.Messages[0].Role)
	require.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "Journal Insights for May 25, 2024"}, req.Messages[1])
}

func TestAssemble_FailureIsFatal(t *testing.T) {
	client := testutil.NewScriptedClient(testutil.Reply{Err: testutil.Terminal()})
	a := New(client, nil, Config{}, nil)

	_, err := a.Assemble(context.Background(), sampleInput())
	require.Error(t, err)
	require.ErrorIs(t, err, llm.ErrEmptyResponse)
	require.Contains(t, err.Error(), "report: generate")
	require.Equal(t, 1, client.Calls())
}

func TestFitToBudget_UnderBudgetUnchanged(t *testing.T) {
	raw := "2024-01-01\nshort journal\n"
	got, truncated := FitToBudget(raw)
	require.False(t, truncated)
	require.Equal(t, raw, got)

	exact := strings.Repeat("a", InputBudget*4)
	got, truncated = FitToBudget(exact)
	require.False(t, truncated)
	require.Equal(t, exact, got)
}

func TestFitToBudget_DropsOldestAndSnapsToLine(t *testing.T) {
	line := strings.Repeat("x", 99) + "\n"
	oldest := "OLDEST-MARKER\n"
	raw := oldest + strings.Repeat(line, InputBudget*4/len(line)+50) + "NEWEST-MARKER"

	got, truncated := FitToBudget(raw)
	require.True(t, truncated)
	require.True(t, strings.HasPrefix(got, TruncationNote))
	require.NotContains(t, got, "OLDEST-MARKER")
	require.True(t, strings.HasSuffix(got, "NEWEST-MARKER"))

	body := strings.TrimPrefix(got, TruncationNote)
	require.True(t, strings.HasPrefix(body, strings.Repeat("x", 99)+"\n"), "kept text starts on a line boundary")
	require.LessOrEqual(t, cost.EstimateTokens(got), InputBudget, "note and kept text fit together")
}

func TestFitToBudget_NoLineBreak(t *testing.T) {
	raw := strings.Repeat("y", InputBudget*4+10)
	got, truncated := FitToBudget(raw)
	require.True(t, truncated)
	keep := (InputBudget - cost.EstimateTokens(TruncationNote)) * 4
	require.Equal(t, TruncationNote+strings.Repeat("y", keep), got)
	require.LessOrEqual(t, cost.EstimateTokens(got), InputBudget)
}

func TestFitWithin_TinyBudgetKeepsOnlyNote(t *testing.T) {
	got, truncated := FitWithin(strings.Repeat("z", 400), 5)
	require.True(t, truncated)
	require.Equal(t, TruncationNote, got)
}

func TestAssembleLegacy(t *testing.T) {
	client := testutil.NewScriptedClient(testutil.Reply{Text: " body", InputTokens: 50, OutputTokens: 10})
	a := New(client, nil, Config{Model: "expensive", MaxTokens: 1234}, nil)

	res, err := a.AssembleLegacy(context.Background(), "<entry>hello</entry>", "June 1, 2024", []string{"Health"})
	require.NoError(t, err)
	require.False(t, res.Truncated)
	require.Equal(t, "Journal Insights for June 1, 2024 body", res.Report)

	req := client.Requests()[0]
	require.Equal(t, 1234, req.MaxTokens)
	require.Contains(t, req.Messages[0].Content, "<entry>hello</entry>")
	require.Contains(t, req.Messages[0].Content, "4. Health\n")
}

func TestNormalizeTopics(t *testing.T) {
	require.Equal(t, []string{"Work", "family"}, NormalizeTopics([]string{"  Work", "family", "", "WORK", "Family"}))
	require.Empty(t, NormalizeTopics([]string{" ", ""}))
}

func TestFitPrompt_KeepsSummariesAndCutsRecent(t *testing.T) {
	in := sampleInput()
	in.Tier1 = []models.Entry{
		{Date: time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC), Text: "OLD-RECENT " + strings.Repeat("b", InputBudget*3)},
		{Date: time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC), Text: "NEW-RECENT " + strings.Repeat("c", InputBudget*2)},
	}

	prompt, truncated := FitPrompt(prompts.Default(), in)
	require.True(t, truncated)
	require.Contains(t, prompt, "MONTHLY-TEXT")
	require.Contains(t, prompt, "WEEKLY-TEXT")
	require.Contains(t, prompt, TruncationNote)
	require.NotContains(t, prompt, "OLD-RECENT")
	require.Contains(t, prompt, "NEW-RECENT")
	require.LessOrEqual(t, cost.EstimateTokens(prompt), InputBudget)

	small, truncated := FitPrompt(prompts.Default(), sampleInput())
	require.False(t, truncated)
	require.Equal(t, BuildPrompt(prompts.Default(), sampleInput()), small)
}
