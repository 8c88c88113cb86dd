// Package cost projects token usage and dollar cost of a report run without
// calling any model.
package cost

import (
	"strings"
	"unicode/utf8"

	"github.com/starford/chronicle/internal/models"
)

// Pricing in USD per million tokens.
const (
	SummaryInputPrice  = 1.00
	SummaryOutputPrice = 5.00
	ReportInputPrice   = 15.00
	ReportOutputPrice  = 75.00
)

// Expected sizes in tokens.
const (
	WeeklySummaryTokens  = 500
	MonthlySummaryTokens = 800
	ReportOutputTokens   = 4000
	CallOverheadTokens   = 500
	charsPerToken        = 4
)

// CostEstimate is a projected cost breakdown. Haiku* fields describe the cheap
// summarization model and Opus* fields the expensive report model.
type CostEstimate struct {
	Tier1Tokens    int `json:"tier1Tokens"`
	Tier2Tokens    int `json:"tier2Tokens"`
	Tier3Tokens    int `json:"tier3Tokens"`
	WeeklyBatches  int `json:"weeklyBatches"`
	MonthlyBatches int `json:"monthlyBatches"`
	CachedWeekly   int `json:"cachedWeekly"`
	CachedMonthly  int `json:"cachedMonthly"`

	HaikuInputTokens  int     `json:"haikuInputTokens"`
	HaikuOutputTokens int     `json:"haikuOutputTokens"`
	HaikuCost         float64 `json:"haikuCost"`
	OpusInputTokens   int     `json:"opusInputTokens"`
	OpusOutputTokens  int     `json:"opusOutputTokens"`
	OpusCost          float64 `json:"opusCost"`
	TotalCost         float64 `json:"totalCost"`
}

// EstimateTokens approximates a token count as ceil(characters / 4).
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + charsPerToken - 1) / charsPerToken
}

// BatchText renders a batch the way it is costed: each entry as its date and
// text, separated by blank lines.
func BatchText(batch []models.Entry) string {
	parts := make([]string, len(batch))
	for i, e := range batch {
		parts[i] = e.Date.UTC().Format("2006-01-02") + "\n" + e.Text
	}
	return strings.Join(parts, "\n\n")
}

// Estimate estimates cost when only cache-hit counts are known. The trailing
// batches of each tier are taken as the uncached ones.
func Estimate(tier1 []models.Entry, tier2, tier3 [][]models.Entry, cachedWeekly, cachedMonthly int) CostEstimate {
	return EstimateWithIndices(tier1, tier2, tier3,
		trailing(len(tier2), cachedWeekly), trailing(len(tier3), cachedMonthly))
}

// EstimateWithIndices estimates cost given the exact uncached batch indices.
func EstimateWithIndices(tier1 []models.Entry, tier2, tier3 [][]models.Entry, uncachedWeekly, uncachedMonthly []int) CostEstimate {
	est := CostEstimate{
		WeeklyBatches:  len(tier2),
		MonthlyBatches: len(tier3),
		CachedWeekly:   len(tier2) - len(uncachedWeekly),
		CachedMonthly:  len(tier3) - len(uncachedMonthly),
	}
	for _, e := range tier1 {
		est.Tier1Tokens += EstimateTokens(e.Text)
	}
	tier2Tokens := batchTokens(tier2)
	tier3Tokens := batchTokens(tier3)
	for _, n := range tier2Tokens {
		est.Tier2Tokens += n
	}
	for _, n := range tier3Tokens {
		est.Tier3Tokens += n
	}

	for _, i := range uncachedWeekly {
		est.HaikuInputTokens += tier2Tokens[i] + CallOverheadTokens
		est.HaikuOutputTokens += WeeklySummaryTokens
	}
	for _, i := range uncachedMonthly {
		est.HaikuInputTokens += tier3Tokens[i] + CallOverheadTokens
		est.HaikuOutputTokens += MonthlySummaryTokens
	}

	// Every summary, cached or new, is fed to the report model.
	if len(tier1) > 0 || len(tier2) > 0 || len(tier3) > 0 {
		est.OpusInputTokens = est.Tier1Tokens +
			len(tier2)*WeeklySummaryTokens +
			len(tier3)*MonthlySummaryTokens +
			CallOverheadTokens
		est.OpusOutputTokens = ReportOutputTokens
	}

	est.HaikuCost = price(est.HaikuInputTokens, SummaryInputPrice) + price(est.HaikuOutputTokens, SummaryOutputPrice)
	est.OpusCost = price(est.OpusInputTokens, ReportInputPrice) + price(est.OpusOutputTokens, ReportOutputPrice)
	est.TotalCost = est.HaikuCost + est.OpusCost
	return est
}

func batchTokens(batches [][]models.Entry) []int {
	out := make([]int, len(batches))
	for i, b := range batches {
		out[i] = EstimateTokens(BatchText(b))
	}
	return out
}

// trailing returns the indices cached..total-1, with cached clamped to [0,total].
func trailing(total, cached int) []int {
	if cached < 0 {
		cached = 0
	}
	if cached > total {
		cached = total
	}
	out := make([]int, 0, total-cached)
	for i := cached; i < total; i++ {
		out = append(out, i)
	}
	return out
}

func price(tokens int, perMillion float64) float64 {
	return float64(tokens) * perMillion / 1_000_000
}
