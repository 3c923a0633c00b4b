package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced by the platform services.
const (
	CodeUnknownAccount     = "unknown_account"
	CodeInvalidCredential  = "invalid_credential"
	CodeInvalidEmailFormat = "invalid_email"
	CodeEmailAlreadyUsed   = "email_in_use"
	CodeWeakPassword       = "weak_password"
	CodeRateLimited        = "rate_limited"
	CodeNetworkFailure     = "network_failure"
	CodeNotFound           = "not_found"
)

// Error represents a platform API error response.
type Error struct {
	// StatusCode is the HTTP status code.
	StatusCode int `json:"-"`
	// Code is the platform error code (e.g. "invalid_credential").
	Code string `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// IsNotFound returns true if the error is a not found error.
func (e *Error) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == CodeNotFound
}

// IsRateLimited returns true if the error is a rate limit error.
func (e *Error) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == CodeRateLimited
}

// parseError parses an error response from the platform.
func parseError(statusCode int, body []byte) error {
	var apiError struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &apiError); err == nil && apiError.Error.Code != "" {
		return &Error{
			StatusCode: statusCode,
			Code:       apiError.Error.Code,
			Message:    apiError.Error.Message,
		}
	}

	var simpleError struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}

	if err := json.Unmarshal(body, &simpleError); err == nil && simpleError.Code != "" {
		return &Error{
			StatusCode: statusCode,
			Code:       simpleError.Code,
			Message:    simpleError.Message,
		}
	}

	return &Error{
		StatusCode: statusCode,
		Code:       http.StatusText(statusCode),
		Message:    string(body),
	}
}

// networkError wraps transport-level failures under a stable code so callers
// can map them to a "try again" banner.
func networkError(err error) error {
	return &Error{
		StatusCode: 0,
		Code:       CodeNetworkFailure,
		Message:    err.Error(),
	}
}

// AsError checks if an error is a platform error and returns it.
func AsError(err error) (*Error, bool) {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr, true
	}
	return nil, false
}

// ErrorCode returns the platform error code for err, or "" when err is not a
// platform error.
func ErrorCode(err error) string {
	if pErr, ok := AsError(err); ok {
		return pErr.Code
	}
	return ""
}
