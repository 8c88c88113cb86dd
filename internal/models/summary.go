package models

import "time"

// BatchType distinguishes weekly (tier 2) from monthly (tier 3) batches.
type BatchType string

// Batch types.
const (
	BatchWeekly  BatchType = "weekly"
	BatchMonthly BatchType = "monthly"
)

// Valid reports whether t is a known batch type.
func (t BatchType) Valid() bool {
	return t == BatchWeekly || t == BatchMonthly
}

// CachedSummary is the persisted form of a batch summary.
type CachedSummary struct {
	PeriodKey   string    `json:"periodKey"`
	PeriodLabel string    `json:"periodLabel"`
	Type        BatchType `json:"type"`
	Summary     string    `json:"summary"`
	EntryCount  int       `json:"entryCount"`
	ContentHash string    `json:"contentHash"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BatchSummary is the runtime result for one batch. Fallback summaries are
// never persisted.
type BatchSummary struct {
	CachedSummary
	InputTokens  int  `json:"inputTokens"`
	OutputTokens int  `json:"outputTokens"`
	FromCache    bool `json:"fromCache"`
	Fallback     bool `json:"fallback"`
}
