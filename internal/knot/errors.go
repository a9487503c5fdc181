package knot

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by session API calls when the API key or
// client id is missing.
var ErrNotConfigured = errors.New("knot API not configured")

// APIError is a non-200 response from a Knot endpoint.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("knot: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}
