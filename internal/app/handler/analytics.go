package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/linkcore/internal/models"
)

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request, kind models.LinkKind) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	rng, err := parseDateRange(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	s, err := h.analytics.Summarize(ctx, kind, chi.URLParam(r, "id"), companyID, rng, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// CompanySummary handles GET /api/analytics/summary.
func (h *Handler) CompanySummary(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	s, err := h.analytics.CompanySummary(ctx, companyID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// RecentActivity handles GET /api/analytics/activity?limit=.
func (h *Handler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	entries, err := h.links.RecentActivity(ctx, companyID, queryInt(r, "limit"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []models.LinkActivity{}
	}
	writeJSON(w, http.StatusOK, models.ActivityResponse{Activities: entries})
}
