package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoAPIKey indicates the API key is missing.
	ErrNoAPIKey = errors.New("API key is required")

	// ErrEmptyResponse indicates the API returned no candidates.
	ErrEmptyResponse = errors.New("empty response from API")
)

// errorResponse matches the Gemini error envelope:
// {"error":{"code":400,"message":"...","status":"INVALID_ARGUMENT"}}
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// APIError is a structured error from the Gemini API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini API error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini API error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the call may succeed on retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimit reports whether this is a rate limit error.
func (e *APIError) IsRateLimit() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsAuthError reports whether this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func parseAPIError(statusCode int, body []byte) error {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Message == "" {
		return &APIError{StatusCode: statusCode, Message: string(body)}
	}
	return &APIError{
		StatusCode: statusCode,
		Status:     envelope.Error.Status,
		Message:    envelope.Error.Message,
	}
}
