package upstream

import (
	"fmt"
	"time"
)

// ConnectError indicates the backend could not be reached at all
// (connection refused, DNS failure, reset mid-request).
type ConnectError struct {
	// URL is the request URL that failed.
	URL string

	// Cause is the underlying transport error.
	Cause error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("upstream unreachable at %s: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ConnectError) Unwrap() error {
	return e.Cause
}

// TimeoutError indicates the backend did not respond within the deadline.
type TimeoutError struct {
	// URL is the request URL that timed out.
	URL string

	// Timeout is the deadline that was exceeded.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream request to %s timed out after %s", e.URL, e.Timeout)
}

// StatusError indicates the backend replied with a non-2xx status.
type StatusError struct {
	// StatusCode is the HTTP status returned by the backend.
	StatusCode int

	// Body is the (truncated) error body for diagnostics.
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}
