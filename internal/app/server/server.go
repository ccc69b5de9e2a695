// Package server assembles the chi router of the API.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/app/handler"
	"github.com/atinyakov/linkcore/internal/app/service"
	"github.com/atinyakov/linkcore/internal/blobstore"
	"github.com/atinyakov/linkcore/internal/middleware"
)

// Options configures the router beyond the handlers themselves.
type Options struct {
	Auth          service.AuthIface
	TrustedSubnet string
	// UploadsDir is served under blobstore.URLPrefix when set.
	UploadsDir string
}

// Init builds the router: public redirect endpoints under /r, the ping
// endpoint, the uploaded objects and the authenticated API under /api.
func Init(h *handler.Handler, opts Options, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.WithClient(opts.TrustedSubnet))

	r.Get("/ping", h.Ping)

	r.Route("/r", func(r chi.Router) {
		r.Get("/s/{code}", h.ResolveShortLink)
		r.Get("/d/*", h.ResolveDigitalLink)
	})

	if opts.UploadsDir != "" {
		fs := http.StripPrefix(blobstore.URLPrefix+"/", http.FileServer(http.Dir(opts.UploadsDir)))
		r.Handle(blobstore.URLPrefix+"/*", fs)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.WithJWT(opts.Auth))
		r.Use(middleware.WithGzipRequest)
		r.Use(middleware.WithGzipResponse)

		r.Route("/links", func(r chi.Router) {
			r.Post("/", h.CreateShortLink)
			r.Get("/", h.ListShortLinks)
			r.Get("/{id}", h.GetShortLink)
			r.Put("/{id}", h.UpdateShortLink)
			r.Delete("/{id}", h.DeleteShortLink)
			r.Get("/{id}/analytics", h.ShortLinkAnalytics)
		})

		r.Route("/digitallinks", func(r chi.Router) {
			r.Post("/", h.CreateDigitalLink)
			r.Get("/", h.ListDigitalLinks)
			r.Get("/{id}", h.GetDigitalLink)
			r.Put("/{id}", h.UpdateDigitalLink)
			r.Delete("/{id}", h.DeleteDigitalLink)
			r.Get("/{id}/analytics", h.DigitalLinkAnalytics)
		})

		r.Route("/folders", func(r chi.Router) {
			r.Post("/", h.CreateFolder)
			r.Get("/", h.ListFolders)
			r.Get("/tree", h.FolderTree)
			r.Get("/{id}", h.GetFolder)
			r.Get("/{id}/descendants", h.FolderDescendants)
			r.Patch("/{id}", h.UpdateFolder)
			r.Delete("/{id}", h.DeleteFolder)
		})

		r.Route("/media", func(r chi.Router) {
			r.Post("/", h.UploadMedia)
			r.Get("/", h.ListMedia)
			r.Get("/{id}", h.GetMedia)
			r.Patch("/{id}", h.UpdateMedia)
			r.Delete("/{id}", h.DeleteMedia)
		})

		r.Get("/analytics/summary", h.CompanySummary)
		r.Get("/analytics/activity", h.RecentActivity)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Route not found", http.StatusNotFound)
	})

	return r
}
