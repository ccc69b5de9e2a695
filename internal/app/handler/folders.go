package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atinyakov/linkcore/internal/app/service"
	"github.com/atinyakov/linkcore/internal/models"
)

// CreateFolder handles POST /api/folders.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	var body models.CreateFolderRequest
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	f, err := h.namespace.CreateFolder(ctx, companyID, body.Name, models.NullIfEmpty(body.ParentID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// ListFolders handles GET /api/folders?parentId=&root=&search=.
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	folders, err := h.namespace.ListFolders(ctx, models.FolderFilter{
		CompanyID: companyID,
		ParentID:  queryRef(r, "parentId"),
		RootOnly:  queryBool(r, "root"),
		Search:    r.URL.Query().Get("search"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if folders == nil {
		folders = []models.Folder{}
	}
	writeJSON(w, http.StatusOK, folders)
}

// FolderTree handles GET /api/folders/tree?rootId=&includeFiles=.
func (h *Handler) FolderTree(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	tree, err := h.namespace.BuildTree(ctx, companyID, queryRef(r, "rootId"), queryBool(r, "includeFiles"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if tree == nil {
		tree = []*models.TreeNode{}
	}
	writeJSON(w, http.StatusOK, tree)
}

// GetFolder handles GET /api/folders/{id}.
func (h *Handler) GetFolder(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	f, err := h.namespace.GetFolder(ctx, chi.URLParam(r, "id"), companyID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// FolderDescendants handles GET /api/folders/{id}/descendants.
func (h *Handler) FolderDescendants(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	folders, err := h.namespace.ListDescendants(ctx, chi.URLParam(r, "id"), companyID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if folders == nil {
		folders = []models.Folder{}
	}
	writeJSON(w, http.StatusOK, folders)
}

// UpdateFolder handles PATCH /api/folders/{id}. A rename and a move in the
// same request are applied together or not at all.
func (h *Handler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	var body models.UpdateFolderRequest
	if err := decodeJSONBody(w, r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ch := service.FolderChange{
		Name:     body.Name,
		Move:     body.ParentID != nil || body.MoveToRoot,
		ParentID: body.ParentID,
	}
	if body.MoveToRoot {
		ch.ParentID = nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	f, err := h.namespace.UpdateFolder(ctx, chi.URLParam(r, "id"), companyID, ch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// DeleteFolder handles DELETE /api/folders/{id}?recursive=.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	companyID, _, ok := identity(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.namespace.DeleteFolder(ctx, chi.URLParam(r, "id"), companyID, queryBool(r, "recursive")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
