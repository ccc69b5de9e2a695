package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/linkcore/internal/models"
)

const linkTypeGS1 = "gs1"

type digitalLinkPage struct {
	DigitalLinks []models.DigitalLinkResponse `json:"digitallinks"`
	Pagination   models.Pagination            `json:"pagination"`
}

func (h *Handler) digitalLinkResponse(l *models.DigitalLink) models.DigitalLinkResponse {
	res := models.DigitalLinkResponse{DigitalLink: *l}
	switch {
	case l.GS1URL != nil:
		res.URL = h.baseURL + "/r/d/" + *l.GS1URL
	case l.GS1Key != nil:
		res.URL = h.baseURL + "/r/d/" + *l.GS1Key
	}
	return res
}

// digitalLinkRequest turns the request body into the service's tagged
// variant and the shared descriptive fields.
func digitalLinkRequest(body models.CreateDigitalLinkRequest) (models.DigitalLinkRequest, models.DigitalLinkMeta) {
	meta := models.DigitalLinkMeta{
		Title:       body.Title,
		Description: body.Description,
		Tags:        body.Tags,
		Status:      body.Status,
		ExpiresAt:   body.ExpiresAt,
		CategoryID:  body.CategoryID,
	}

	if body.LinkType == "" || body.LinkType == linkTypeGS1 {
		return models.GS1Link{
			Key:          body.GS1Key,
			KeyType:      body.GS1KeyType,
			RedirectType: body.RedirectType,
			CustomURL:    body.CustomURL,
			ProductID:    body.ProductID,
		}, meta
	}

	return models.SpecialLink{
		Kind:      models.SpecialKind(body.LinkType),
		TargetURL: body.TargetURL,
		Key:       body.GS1Key,
		KeyType:   body.GS1KeyType,
	}, meta
}

// CreateDigitalLink handles POST /api/digitallinks.
func (h *Handler) CreateDigitalLink(w http.ResponseWriter, r *http.Request) {
	companyID, userID, ok := identity(w, r)
	if !ok {
		return
	}

	var body models.CreateDigitalLinkRequest
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req, meta := digitalLinkRequest(body)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	l, err := h.links.CreateDigitalLink(ctx, req, meta, companyID, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.digitalLinkResponse(l))
}

// ListDigitalLinks handles GET /api/digitallinks.
func (h *Handler) ListDigitalLinks(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	page, err := h.links.ListDigitalLinks(ctx, linkFilter(r, companyID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	res := digitalLinkPage{
		DigitalLinks: make([]models.DigitalLinkResponse, 0, len(page.DigitalLinks)),
		Pagination:   page.Pagination,
	}
	for i := range page.DigitalLinks {
		res.DigitalLinks = append(res.DigitalLinks, h.digitalLinkResponse(&page.DigitalLinks[i]))
	}
	writeJSON(w, http.StatusOK, res)
}

// GetDigitalLink handles GET /api/digitallinks/{id}.
func (h *Handler) GetDigitalLink(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	l, err := h.links.GetDigitalLink(ctx, chi.URLParam(r, "id"), companyID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.digitalLinkResponse(l))
}

// UpdateDigitalLink handles PUT /api/digitallinks/{id}.
func (h *Handler) UpdateDigitalLink(w http.ResponseWriter, r *http.Request) {
	companyID, userID, ok := identity(w, r)
	if !ok {
		return
	}

	var patch models.DigitalLinkPatch
	if err := decodeJSONBody(w, r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	l, err := h.links.UpdateDigitalLink(ctx, chi.URLParam(r, "id"), companyID, patch, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.digitalLinkResponse(l))
}

// DeleteDigitalLink handles DELETE /api/digitallinks/{id}.
func (h *Handler) DeleteDigitalLink(w http.ResponseWriter, r *http.Request) {
	companyID, userID, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.links.DeleteDigitalLink(ctx, chi.URLParam(r, "id"), companyID, userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DigitalLinkAnalytics handles GET /api/digitallinks/{id}/analytics.
func (h *Handler) DigitalLinkAnalytics(w http.ResponseWriter, r *http.Request) {
	h.summarize(w, r, models.KindDigitalLink)
}
