package conversation

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse is returned when the backend body cannot be
	// decoded or lacks new_history.
	ErrMalformedResponse = errors.New("conversation: malformed response")

	// ErrEmptyEndpoint is returned when the client has no URL.
	ErrEmptyEndpoint = errors.New("conversation: endpoint is required")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("conversation: API error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("conversation: API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the request can be retried.
func (e *APIError) IsRetryable() bool {
	return e.Retryable
}

// NewAPIError creates an APIError; 429 and 5xx are retryable.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Retryable:  statusCode == 429 || statusCode >= 500,
	}
}

// IsRetryable reports whether err is worth another attempt. Malformed
// responses, client errors and caller cancellation are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return true
}

// IsMalformed reports whether err is a decoding failure.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
