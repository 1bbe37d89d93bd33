package http

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Render implements render.Renderer.
func (resp *HealthResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// HealthHandler reports process liveness.
type HealthHandler struct {
	service string
	version string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(service, version string) *HealthHandler {
	return &HealthHandler{service: service, version: version}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, &HealthResponse{
		Status:    "healthy",
		Service:   h.service,
		Version:   h.version,
		Timestamp: time.Now().UTC(),
	})
}
