package threatconnect

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is returned for HTTP 401 (bad credentials or clock skew).
	ErrUnauthorized = errors.New("threatconnect: authentication failed")

	// ErrNotFound is returned for HTTP 404.
	ErrNotFound = errors.New("threatconnect: resource not found")

	// ErrRateLimited is returned for HTTP 429.
	ErrRateLimited = errors.New("threatconnect: rate limit exceeded")
)

// APIError describes a non-success response. It unwraps to one of the
// sentinel errors when the status code has one.
type APIError struct {
	StatusCode int
	Body       string
	kind       error
}

func newAPIError(code int, body []byte) *APIError {
	e := &APIError{StatusCode: code, Body: truncate(string(body), maxErrorBody)}
	switch code {
	case http.StatusUnauthorized:
		e.kind = ErrUnauthorized
	case http.StatusNotFound:
		e.kind = ErrNotFound
	case http.StatusTooManyRequests:
		e.kind = ErrRateLimited
	}
	return e
}

func (e *APIError) Error() string {
	if e.kind != nil {
		return fmt.Sprintf("%v (status %d)", e.kind, e.StatusCode)
	}
	return fmt.Sprintf("threatconnect returned %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return e.kind }
