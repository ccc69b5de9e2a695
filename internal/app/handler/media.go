package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/linkcore/internal/apperr"
	"github.com/atinyakov/linkcore/internal/models"
)

// maxUploadSize bounds a single uploaded file.
const maxUploadSize = 32 << 20

// UploadMedia handles multipart POST /api/media. The file travels in the
// "file" part; folderId, section, title, description and alt are optional
// form values.
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "upload is too large"})
			return
		}
		writeError(w, h.logger, apperr.Validation("invalid multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.logger, apperr.Validation("file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	meta := models.MediaMetadata{
		CompanyID:   companyID,
		FolderID:    models.NullIfEmpty(models.StringPtr(r.FormValue("folderId"))),
		Section:     r.FormValue("section"),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Alt:         r.FormValue("alt"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), uploadTimeout)
	defer cancel()

	m, err := h.media.Upload(ctx, data, header.Filename, meta)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ListMedia handles GET /api/media.
func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := models.MediaFilter{
		CompanyID: companyID,
		Type:      models.MediaType(strings.ToUpper(q.Get("type"))),
		Section:   q.Get("section"),
		FolderID:  queryRef(r, "folderId"),
		RootOnly:  queryBool(r, "root"),
		Search:    q.Get("search"),
		Page:      queryInt(r, "page"),
		Limit:     queryInt(r, "limit"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	page, err := h.media.List(ctx, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetMedia handles GET /api/media/{id}.
func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	m, err := h.media.Get(ctx, chi.URLParam(r, "id"), companyID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// UpdateMedia handles PATCH /api/media/{id}: metadata edits, a move, or both.
func (h *Handler) UpdateMedia(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	var body models.UpdateMediaRequest
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}

	p := body.MediaPatch
	edit := p.Title != nil || p.Description != nil || p.Alt != nil || p.Section != nil
	move := body.FolderID != nil || body.MoveToRoot
	if !edit && !move {
		writeError(w, h.logger, apperr.Validation("nothing to update"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	var (
		m   *models.Media
		err error
	)
	if edit {
		if m, err = h.media.Update(ctx, id, companyID, p); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	if move {
		folder := models.NullIfEmpty(body.FolderID)
		if body.MoveToRoot {
			folder = nil
		}
		if m, err = h.media.Move(ctx, id, companyID, folder); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteMedia handles DELETE /api/media/{id}.
func (h *Handler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.media.Delete(ctx, chi.URLParam(r, "id"), companyID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
