package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/app/service"
	"github.com/atinyakov/linkcore/internal/apperr"
	"github.com/atinyakov/linkcore/internal/middleware"
	"github.com/atinyakov/linkcore/internal/models"
)

func classify(r *http.Request) models.Classification {
	client := middleware.ClientFrom(r.Context())
	return service.Classify(r.UserAgent(), client.IP, r.Referer(), client.Country)
}

// ResolveShortLink handles GET /r/s/{code}: records the visit and redirects
// to the original URL.
func (h *Handler) ResolveShortLink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	code := chi.URLParam(r, "code")
	l, err := h.analytics.RecordShortLinkVisit(ctx, code, classify(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Debug("resolved short link", zap.String("shortCode", code), zap.String("linkId", l.ID))
	http.Redirect(w, r, l.OriginalURL, http.StatusTemporaryRedirect)
}

// ResolveDigitalLink handles GET /r/d/*: the rest of the path is a GS1
// Digital Link path or a bare key.
func (h *Handler) ResolveDigitalLink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	path := chi.URLParam(r, "*")
	l, err := h.analytics.RecordDigitalLinkVisit(ctx, path, classify(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	target := l.Target(h.baseURL + "/products")
	if target == "" {
		writeError(w, h.logger, apperr.NotFound("digital link has no target"))
		return
	}

	h.logger.Debug("resolved digital link", zap.String("path", path), zap.String("linkId", l.ID))
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// Ping handles GET /ping.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.pinger.PingContext(ctx); err != nil {
		h.logger.Error("ping failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
