// Package report builds the final journal report from full-text recent
// entries and the weekly and monthly batch summaries.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/chronicle/internal/cost"
	"github.com/starford/chronicle/internal/llm"
	"github.com/starford/chronicle/internal/models"
	"github.com/starford/chronicle/internal/prompts"
)

// DefaultMaxTokens is the output ceiling for the report call.
const DefaultMaxTokens = 4000

// Config selects the report model and its output ceiling.
type Config struct {
	Model     string
	MaxTokens int
}

// Input is everything the report is built from.
type Input struct {
	Tier1         []models.Entry
	Weekly        []models.BatchSummary
	Monthly       []models.BatchSummary
	FormattedDate string
	CustomTopics  []string
}

// Result is the generated report and its token usage.
type Result struct {
	Report       string `json:"report"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"inputTokens"`
	OutputTokens int    `json:"outputTokens"`
	Truncated    bool   `json:"truncated,omitempty"`
}

// Assembler issues the single expensive-model call that writes the report.
type Assembler struct {
	client  llm.Client
	prompts *prompts.Set
	cfg     Config
	logger  *slog.Logger
}

// New creates an Assembler.
func New(client llm.Client, set *prompts.Set, cfg Config, logger *slog.Logger) *Assembler {
	if set == nil {
		set = prompts.Default()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{client: client, prompts: set, cfg: cfg, logger: logger}
}

// Title returns the literal header every report starts with.
func (a *Assembler) Title(formattedDate string) string {
	return a.prompts.ReportTitle + " for " + formattedDate
}

// Assemble generates the tiered report. Recent entries are cut oldest first
// when the prompt would exceed InputBudget. Any model failure is returned.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Result, error) {
	prompt, truncated := FitPrompt(a.prompts, in)
	if truncated {
		a.logger.Info("recent entries truncated to fit context window",
			slog.Int("recent_entries", len(in.Tier1)),
		)
	}
	res, err := a.generate(ctx, prompt, in.FormattedDate)
	if err != nil {
		return nil, err
	}
	res.Truncated = truncated
	return res, nil
}

// FitPrompt renders the tiered prompt. The summaries and outline are kept
// whole; the recent section gets the remaining budget.
func FitPrompt(set *prompts.Set, in Input) (string, bool) {
	recent := RecentText(in.Tier1)
	fixed := cost.EstimateTokens(buildPrompt(set, in, ""))
	remaining := max(InputBudget-fixed, 0)
	recent, truncated := FitWithin(recent, remaining)
	return buildPrompt(set, in, recent), truncated
}

// AssembleLegacy generates a report from the raw journal text without
// tiering, truncating the oldest content to fit the context budget.
func (a *Assembler) AssembleLegacy(ctx context.Context, raw, formattedDate string, topics []string) (*Result, error) {
	text, truncated := FitToBudget(raw)
	if truncated {
		a.logger.Info("journal truncated to fit context window",
			slog.Int("kept_chars", len([]rune(text))),
		)
	}
	res, err := a.generate(ctx, BuildLegacyPrompt(a.prompts, text, topics), formattedDate)
	if err != nil {
		return nil, err
	}
	res.Truncated = truncated
	return res, nil
}

func (a *Assembler) generate(ctx context.Context, prompt, formattedDate string) (*Result, error) {
	title := a.Title(formattedDate)
	resp, err := a.client.Complete(ctx, llm.Request{
		Model:     a.cfg.Model,
		System:    a.prompts.ReportSystem,
		MaxTokens: a.cfg.MaxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt},
			{Role: llm.RoleAssistant, Content: title},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("report: generate: %w", err)
	}
	return &Result{
		Report:       title + resp.Text,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}

// NormalizeTopics trims topics and drops blanks and case-insensitive
// duplicates, keeping first-seen order.
func NormalizeTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	var out []string
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}
