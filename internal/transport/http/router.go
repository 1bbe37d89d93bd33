package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"licenser/internal/config"
	"licenser/internal/infrastructure"
	"licenser/internal/services"
)

// NewRouter assembles the HTTP surface: license endpoints under
// /api/license, health under /healthz, and the prometheus scrape endpoint
// under /metrics when metrics are enabled.
func NewRouter(cfg *config.Config, service services.LicenseService, logger *slog.Logger, providers *infrastructure.OTelProviders) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(RequestLogger(logger))

	r.Method(http.MethodGet, "/healthz", NewHealthHandler(infrastructure.ServiceName, infrastructure.ServiceVersion))
	if providers != nil && providers.PrometheusHTTP != nil {
		r.Method(http.MethodGet, "/metrics", providers.PrometheusHTTP)
	}

	r.Route("/api/license", func(api chi.Router) {
		if cfg.Limits.Enabled {
			api.Use(RateLimit(cfg.Limits))
		}
		api.Mount("/", NewLicenseHandler(service, logger).Routes())
	})

	return r
}
