package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/linkcore/internal/models"
)

type shortLinkPage struct {
	ShortLinks []models.ShortLinkResponse `json:"shortlinks"`
	Pagination models.Pagination          `json:"pagination"`
}

func (h *Handler) shortLinkResponse(l *models.ShortLink) models.ShortLinkResponse {
	return models.ShortLinkResponse{
		ShortLink: *l,
		ShortURL:  h.baseURL + "/r/s/" + l.ShortCode,
	}
}

// linkFilter reads the list parameters shared by both link kinds.
func linkFilter(r *http.Request, companyID string) models.LinkFilter {
	q := r.URL.Query()
	return models.LinkFilter{
		CompanyID:  companyID,
		Status:     q.Get("status"),
		CategoryID: q.Get("categoryId"),
		Search:     q.Get("search"),
		Page:       queryInt(r, "page"),
		Limit:      queryInt(r, "limit"),
		SortBy:     q.Get("sortBy"),
		SortOrder:  q.Get("sortOrder"),
	}
}

// CreateShortLink handles POST /api/links.
func (h *Handler) CreateShortLink(w http.ResponseWriter, r *http.Request) {
	companyID, userID, ok := identity(w, r)
	if !ok {
		return
	}

	var in models.ShortLinkInput
	if err := decodeJSONBody(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	l, err := h.links.CreateShortLink(ctx, in, companyID, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.shortLinkResponse(l))
}

// ListShortLinks handles GET /api/links.
func (h *Handler) ListShortLinks(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	page, err := h.links.ListShortLinks(ctx, linkFilter(r, companyID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	res := shortLinkPage{
		ShortLinks: make([]models.ShortLinkResponse, 0, len(page.ShortLinks)),
		Pagination: page.Pagination,
	}
	for i := range page.ShortLinks {
		res.ShortLinks = append(res.ShortLinks, h.shortLinkResponse(&page.ShortLinks[i]))
	}
	writeJSON(w, http.StatusOK, res)
}

// GetShortLink handles GET /api/links/{id}.
func (h *Handler) GetShortLink(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	l, err := h.links.GetShortLink(ctx, chi.URLParam(r, "id"), companyID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.shortLinkResponse(l))
}

// UpdateShortLink handles PUT /api/links/{id}.
func (h *Handler) UpdateShortLink(w http.ResponseWriter, r *http.Request) {
	companyID, userID, ok := identity(w, r)
	if !ok {
		return
	}

	var patch models.ShortLinkPatch
	if err := decodeJSONBody(w, r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	l, err := h.links.UpdateShortLink(ctx, chi.URLParam(r, "id"), companyID, patch, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.shortLinkResponse(l))
}

// DeleteShortLink handles DELETE /api/links/{id}.
func (h *Handler) DeleteShortLink(w http.ResponseWriter, r *http.Request) {
	companyID, userID, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.links.DeleteShortLink(ctx, chi.URLParam(r, "id"), companyID, userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ShortLinkAnalytics handles GET /api/links/{id}/analytics.
func (h *Handler) ShortLinkAnalytics(w http.ResponseWriter, r *http.Request) {
	h.summarize(w, r, models.KindShortLink)
}
