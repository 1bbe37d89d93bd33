// Package http exposes the license service over HTTP using chi and
// chi/render: issue, verify, and inspect endpoints plus health and metrics.
package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "licenser/internal/errors"
	"licenser/internal/license"
	"licenser/internal/services"
)

// LicenseHandler handles the license endpoints.
type LicenseHandler struct {
	service services.LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates a new license handler.
func NewLicenseHandler(service services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// Routes returns the license routes.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/issue", h.handleIssue)
	r.Post("/verify", h.handleVerify)
	r.Post("/inspect", h.handleInspect)
	return r
}

// IssueRequest is the issue endpoint payload.
type IssueRequest struct {
	services.IssueRequest
}

// Bind implements render.Binder.
func (req *IssueRequest) Bind(r *http.Request) error {
	return nil
}

// IssueResponse wraps the service response for rendering.
type IssueResponse struct {
	*services.IssueResponse
}

// Render implements render.Renderer.
func (resp *IssueResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusCreated)
	return nil
}

// VerifyRequest carries the license document to check.
type VerifyRequest struct {
	License string `json:"license"`
}

// Bind implements render.Binder.
func (req *VerifyRequest) Bind(r *http.Request) error {
	if req.License == "" {
		return errors.New("license is required")
	}
	return nil
}

// VerifyResponse wraps the verification result for rendering.
type VerifyResponse struct {
	*services.VerifyResult
}

// Render implements render.Renderer.
func (resp *VerifyResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// InspectResponse wraps the parsed record view for rendering.
type InspectResponse struct {
	*services.RecordInfo
}

// Render implements render.Renderer.
func (resp *InspectResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (h *LicenseHandler) handleIssue(w http.ResponseWriter, r *http.Request) {
	req := &IssueRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	resp, err := h.service.Issue(r.Context(), &req.IssueRequest)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	h.renderJSON(w, r, &IssueResponse{resp})
}

func (h *LicenseHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	req := &VerifyRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	result, err := h.service.Verify(r.Context(), req.License)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	h.renderJSON(w, r, &VerifyResponse{result})
}

func (h *LicenseHandler) handleInspect(w http.ResponseWriter, r *http.Request) {
	req := &VerifyRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	info, err := h.service.Inspect(r.Context(), req.License)
	if err != nil {
		h.renderServiceError(w, r, err)
		return
	}
	h.renderJSON(w, r, &InspectResponse{info})
}

// renderServiceError maps service errors onto the API error taxonomy.
func (h *LicenseHandler) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		malformed    *license.MalformedRecordError
		verification *license.VerificationError
		signing      *license.SigningError
		validation   validator.ValidationErrors
	)
	switch {
	case errors.As(err, &malformed):
		h.renderError(w, r, apierrors.MalformedLicenseError(err))
	case errors.As(err, &verification):
		h.renderError(w, r, apierrors.NewWithDetails(
			http.StatusUnprocessableEntity,
			"UNVERIFIABLE_LICENSE",
			"License document cannot be verified",
			err.Error(),
		))
	case errors.As(err, &validation):
		h.renderError(w, r, apierrors.InvalidRequestWithError(err))
	case errors.Is(err, services.ErrIssuingDisabled):
		h.renderError(w, r, apierrors.New(
			http.StatusServiceUnavailable,
			"ISSUING_DISABLED",
			"This deployment has no signing key and cannot issue licenses",
		))
	case errors.As(err, &signing):
		h.renderError(w, r, apierrors.SigningFailedError(err))
	default:
		h.logger.ErrorContext(r.Context(), "unhandled service error",
			slog.String("error", err.Error()),
		)
		h.renderError(w, r, apierrors.ErrInternalServer)
	}
}

func (h *LicenseHandler) renderError(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError) {
	if err := render.Render(w, r, apierrors.NewErrorResponse(apiErr)); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render error response",
			slog.String("error", err.Error()),
		)
	}
}

func (h *LicenseHandler) renderJSON(w http.ResponseWriter, r *http.Request, v render.Renderer) {
	if err := render.Render(w, r, v); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render response",
			slog.String("error", err.Error()),
		)
	}
}
