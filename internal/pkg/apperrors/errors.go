// Package apperrors provides standardized API error types.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/k4631938-beep/Dangwar/internal/platform"
)

// APIError represents a standardized API error response.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// WithMessage returns a copy of the error with a custom message.
func (e *APIError) WithMessage(message string) *APIError {
	return &APIError{
		Code:       e.Code,
		Message:    message,
		StatusCode: e.StatusCode,
		Details:    e.Details,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *APIError) WithDetails(details any) *APIError {
	return &APIError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Details:    details,
	}
}

// Standard error definitions
var (
	// ErrNotAuthenticated is returned when an action requires a session that is absent.
	ErrNotAuthenticated = &APIError{
		Code:       "not_authenticated",
		Message:    "You must be signed in to do that",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrUsernameTaken is returned when a signup collides with a reserved username.
	ErrUsernameTaken = &APIError{
		Code:       "username_taken",
		Message:    "Username is already taken. Please choose another one.",
		StatusCode: http.StatusConflict,
	}

	// ErrSelfFollow is returned when an account tries to follow itself.
	ErrSelfFollow = &APIError{
		Code:       "self_follow",
		Message:    "You cannot follow yourself",
		StatusCode: http.StatusBadRequest,
	}

	// ErrInvalidImage is returned when an uploaded file fails the image policy.
	ErrInvalidImage = &APIError{
		Code:       "invalid_image",
		Message:    "Please select a valid image to share",
		StatusCode: http.StatusBadRequest,
	}

	// ErrInvalidQuery is returned when a search term is too short.
	ErrInvalidQuery = &APIError{
		Code:       "invalid_query",
		Message:    "Please enter at least 2 characters to search",
		StatusCode: http.StatusBadRequest,
	}

	// ErrNotFound is returned when a referenced record is missing.
	ErrNotFound = &APIError{
		Code:       "not_found",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	// ErrRateLimited is returned when rate limits are exceeded.
	ErrRateLimited = &APIError{
		Code:       "rate_limited",
		Message:    "Too many requests. Please try again later.",
		StatusCode: http.StatusTooManyRequests,
	}

	// ErrTransientNetwork is returned when a platform call failed in a retryable way.
	// No automatic retry exists anywhere; the user re-triggers the action.
	ErrTransientNetwork = &APIError{
		Code:       "transient_network",
		Message:    "Network error. Please try again.",
		StatusCode: http.StatusBadGateway,
	}

	// ErrInternal is returned for unexpected faults.
	ErrInternal = &APIError{
		Code:       "internal_error",
		Message:    "Something went wrong. Please refresh the page.",
		StatusCode: http.StatusInternalServerError,
	}
)

// NewValidationError creates a validation error for a specific field.
// Validation errors are local and pre-flight; they never reach the network.
func NewValidationError(field, message string) *APIError {
	return &APIError{
		Code:       "validation_error",
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Details: map[string]string{
			"field": field,
		},
	}
}

// NewAuthError creates an auth error mapped from an identity-service error code.
func NewAuthError(message string) *APIError {
	return &APIError{
		Code:       "auth_error",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewNotFoundError creates a not found error for a specific resource type.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "not_found",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// IsValidation reports whether err is a local validation error.
func IsValidation(err error) bool {
	return IsCode(err, "validation_error")
}

// FromPlatform converts a record/file service failure into the banner taxonomy.
// APIErrors pass through unchanged.
func FromPlatform(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if pErr, ok := platform.AsError(err); ok {
		switch {
		case pErr.Code == platform.CodeNetworkFailure:
			return ErrTransientNetwork
		case pErr.IsNotFound():
			return ErrNotFound
		case pErr.IsRateLimited():
			return ErrRateLimited
		}
	}
	return ErrInternal
}

// AsAPIError converts an error to an APIError if possible.
// Returns ErrInternal if the error is not an APIError.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal
}
