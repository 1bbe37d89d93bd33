// Package errors defines the structured error responses used by the HTTP
// surface. Core license errors live in internal/license; this package maps
// them onto wire-level responses.
package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details.
func NewWithDetails(statusCode int, errorCode, message string, details any) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrMalformedLicense = New(http.StatusBadRequest, "MALFORMED_LICENSE", "License document could not be parsed")

	// 422 Unprocessable Entity
	ErrUnverifiableLicense = New(http.StatusUnprocessableEntity, "UNVERIFIABLE_LICENSE", "License document cannot be verified")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	// 500 Internal Server Error
	ErrInternalServer = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrSigningFailed  = New(http.StatusInternalServerError, "SIGNING_FAILED", "License could not be signed")
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrValidation creates a validation error with field details.
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// InvalidRequestWithError creates an invalid request error with details.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// MalformedLicenseError creates a malformed-license error carrying the
// offending field from the parser.
func MalformedLicenseError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "MALFORMED_LICENSE", "License document could not be parsed", err.Error())
}

// SigningFailedError creates an internal error for signing failures.
func SigningFailedError(err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "SIGNING_FAILED", "License could not be signed", err.Error())
}

// NewInternalError creates a simple internal server error.
func NewInternalError(message string) *APIError {
	return New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message)
}

// NotFoundError creates a not found error with details.
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), resource)
}

// ErrorResponse represents a standard error response envelope.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response.
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Success: false, Error: err}
}

// Render implements the render.Renderer interface.
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}
