package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/linkcore/internal/app/service"
)

const (
	requestTimeout = 3 * time.Second
	uploadTimeout  = 30 * time.Second
)

// Pinger reports whether persistence is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services bundles what the handlers delegate to.
type Services struct {
	Links     *service.Links
	Namespace *service.Namespace
	Media     *service.MediaCatalog
	Analytics *service.Analytics
	Pinger    Pinger
}

// Handler serves the JSON API and the public redirect endpoints.
type Handler struct {
	links     *service.Links
	namespace *service.Namespace
	media     *service.MediaCatalog
	analytics *service.Analytics
	pinger    Pinger
	baseURL   string
	logger    *zap.Logger
}

func New(s Services, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{
		links:     s.Links,
		namespace: s.Namespace,
		media:     s.Media,
		analytics: s.Analytics,
		pinger:    s.Pinger,
		baseURL:   baseURL,
		logger:    logger,
	}
}
