package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"voyage/pkg/platform/sentinel"
)

// APIError is a non-2xx response from the audit store.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("audit store: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// Unwrap maps the status code onto a sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusBadRequest:
		return sentinel.ErrInvalidInput
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return sentinel.ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return sentinel.ErrUnavailable
	default:
		return nil
	}
}

// parseAPIError attempts to decode a JSON error body; falls back to raw text.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = "unknown"
		apiErr.Description = string(body)
	}
	return apiErr
}
