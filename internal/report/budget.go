package report

import (
	"strings"

	"github.com/starford/chronicle/internal/cost"
)

// Context budget for the report prompt, in estimated tokens.
const (
	ContextWindow   = 200_000
	ResponseReserve = 8_000
	InputBudget     = ContextWindow - ResponseReserve
)

// TruncationNote prefixes text that was cut to fit the budget.
const TruncationNote = "[Note: journal truncated — oldest entries omitted to fit the context window]\n\n"

// FitToBudget applies FitWithin with the full InputBudget.
func FitToBudget(raw string) (string, bool) {
	return FitWithin(raw, InputBudget)
}

// FitWithin keeps raw when its estimated size fits budget tokens. Otherwise
// it keeps the newest characters that fit next to TruncationNote, starting
// after the first line break in the kept text when there is one, and
// prefixes the note. The result never exceeds budget unless the note alone
// does.
func FitWithin(raw string, budget int) (string, bool) {
	if cost.EstimateTokens(raw) <= budget {
		return raw, false
	}
	keep := (budget - cost.EstimateTokens(TruncationNote)) * 4
	if keep <= 0 {
		return TruncationNote, true
	}
	runes := []rune(raw)
	kept := string(runes[len(runes)-keep:])
	if i := strings.IndexByte(kept, '\n'); i >= 0 && i < len(kept)-1 {
		kept = kept[i+1:]
	}
	return TruncationNote + kept, true
}
