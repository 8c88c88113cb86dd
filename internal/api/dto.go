package api

import (
	"time"

	"github.com/starford/chronicle/internal/cost"
	"github.com/starford/chronicle/internal/insight"
	"github.com/starford/chronicle/internal/models"
)

// ReportRequest is the request body for generating a report.
type ReportRequest struct {
	Journal string    `json:"journal" validate:"required"`
	Date    string    `json:"date" example:"March 3, 2025" validate:"required"`
	Topics  []string  `json:"topics,omitempty" example:"sleep,work"`
	Now     time.Time `json:"now,omitempty"`
}

// JournalRequest carries a journal for estimates, cleanup and prewarm.
type JournalRequest struct {
	Journal string    `json:"journal" validate:"required"`
	Now     time.Time `json:"now,omitempty"`
}

// ReportResponse is a generated report (aliased from the domain layer).
type ReportResponse = insight.Result

// EstimateResponse is a cost estimate (aliased from the domain layer).
type EstimateResponse = cost.CostEstimate

// CleanupResponse counts deleted summaries (aliased from the domain layer).
type CleanupResponse = insight.CleanupResult

// PrewarmResponse counts prewarmed summaries (aliased from the domain layer).
type PrewarmResponse = insight.PrewarmResult

// SummaryListResponse wraps stored summaries.
type SummaryListResponse struct {
	Summaries []models.CachedSummary `json:"summaries" validate:"required"`
	Total     int                    `json:"total" example:"12" validate:"required"`
}
