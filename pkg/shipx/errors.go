package shipx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// ErrorPayload is the error document the API returns with non-2xx responses.
type ErrorPayload struct {
	Status  int            `json:"status"`
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
	Payload    *ErrorPayload
}

func (e *APIError) Error() string {
	if e.Payload != nil && (e.Payload.Error != "" || e.Payload.Message != "") {
		return fmt.Sprintf("shipx: status %d: %s: %s", e.StatusCode, e.Payload.Error, e.Payload.Message)
	}
	return fmt.Sprintf("shipx: status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether the server side failed.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// AsAPIError extracts the typed carrier error from err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsRetryable reports whether err is a 5xx response or a dropped connection.
// Caller cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Retryable()
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
