// Package response provides JSON response helpers for API handlers.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/k4631938-beep/Dangwar/internal/pkg/apperrors"
)

// Response represents a standard API response envelope.
type Response struct {
	Data  any `json:"data,omitempty"`
	Error any `json:"error,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Data: data}); err != nil {
		http.Error(w, `{"error":{"code":"internal_error","message":"Failed to encode response"}}`, http.StatusInternalServerError)
	}
}

// OK writes a 200 OK response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error response. All platform failures are converted to a
// non-blocking banner payload here; nothing escapes to the generic handler.
func Error(w http.ResponseWriter, err error) {
	apiErr := apperrors.AsAPIError(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	json.NewEncoder(w).Encode(Response{Error: apiErr})
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, apperrors.NewValidationError("", message))
}

// Unauthorized writes a 401 response for actions requiring a session.
func Unauthorized(w http.ResponseWriter) {
	Error(w, apperrors.ErrNotAuthenticated)
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, resource string) {
	Error(w, apperrors.NewNotFoundError(resource))
}
