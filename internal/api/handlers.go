package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/chronicle/internal/insight"
	"github.com/starford/chronicle/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *insight.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *insight.Service) *Handler {
	return &Handler{svc: svc}
}

// CreateReport handles POST /api/reports.
//
//	@Summary		Generate an insight report from a journal
//	@Tags			reports
//	@Accept			json
//	@Produce		json
//	@Param			X-Chronicle-User	header	string			false	"User scope for the summary cache"
//	@Param			body				body	ReportRequest	true	"Journal and report options"
//	@Success		200		{object}	ReportResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reports [post]
func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Journal) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("journal is required"))
		return
	}
	if strings.TrimSpace(req.Date) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("date is required"))
		return
	}

	res, err := h.svc.Generate(r.Context(), insight.Request{
		User:          UserFrom(r.Context()),
		Journal:       req.Journal,
		FormattedDate: req.Date,
		Topics:        req.Topics,
		Now:           req.Now,
	})
	if err != nil {
		writeError(w, err, "could not generate report")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Estimate handles POST /api/estimates.
//
//	@Summary		Estimate the cost of a report
//	@Tags			reports
//	@Accept			json
//	@Produce		json
//	@Param			body	body		JournalRequest	true	"Journal"
//	@Success		200		{object}	EstimateResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/estimates [post]
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req JournalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	est, err := h.svc.Estimate(r.Context(), UserFrom(r.Context()), req.Journal, req.Now)
	if err != nil {
		writeError(w, err, "estimate failed")
		return
	}
	writeJSON(w, http.StatusOK, est)
}

// ListSummaries handles GET /api/summaries.
//
//	@Summary		List cached period summaries
//	@Tags			summaries
//	@Produce		json
//	@Param			type	query		string	false	"Summary type"	Enums(weekly, monthly)
//	@Success		200		{object}	SummaryListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/summaries [get]
func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	typ := models.BatchType(r.URL.Query().Get("type"))
	if typ != "" && !typ.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("type must be weekly or monthly"))
		return
	}
	items, err := h.svc.Summaries(r.Context(), UserFrom(r.Context()), typ)
	if err != nil {
		writeError(w, err, "list summaries failed")
		return
	}
	writeJSON(w, http.StatusOK, SummaryListResponse{Summaries: items, Total: len(items)})
}

// CleanupSummaries handles POST /api/summaries/cleanup.
//
//	@Summary		Delete summaries superseded by the journal
//	@Tags			summaries
//	@Accept			json
//	@Produce		json
//	@Param			body	body		JournalRequest	true	"Journal"
//	@Success		200		{object}	CleanupResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/summaries/cleanup [post]
func (h *Handler) CleanupSummaries(w http.ResponseWriter, r *http.Request) {
	var req JournalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user := UserFrom(r.Context())
	res, err := h.svc.Cleanup(r.Context(), user, req.Journal, req.Now)
	if err != nil {
		writeError(w, err, "cleanup failed")
		return
	}
	slog.Info("summaries cleaned up",
		slog.String("user", user),
		slog.Int("weekly", res.Weekly),
		slog.Int("monthly", res.Monthly))
	writeJSON(w, http.StatusOK, res)
}

// PrewarmSummaries handles POST /api/summaries/prewarm.
//
//	@Summary		Summarize and store every uncached batch
//	@Tags			summaries
//	@Accept			json
//	@Produce		json
//	@Param			body	body		JournalRequest	true	"Journal"
//	@Success		200		{object}	PrewarmResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/summaries/prewarm [post]
func (h *Handler) PrewarmSummaries(w http.ResponseWriter, r *http.Request) {
	var req JournalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.svc.Prewarm(r.Context(), UserFrom(r.Context()), req.Journal, req.Now)
	if err != nil {
		writeError(w, err, "prewarm failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
