package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/chronicle/internal/insight"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *insight.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))
	r.Use(UserMiddleware)

	r.Post("/reports", h.CreateReport)
	r.Post("/estimates", h.Estimate)

	r.Get("/summaries", h.ListSummaries)
	r.Post("/summaries/cleanup", h.CleanupSummaries)
	r.Post("/summaries/prewarm", h.PrewarmSummaries)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
