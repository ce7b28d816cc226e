package apiclient

import (
	"fmt"
	"net/http"
)

// HTTPError is returned for any non-2xx response. The response body is not
// parsed; StatusCode is all the backend contract guarantees.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("apiclient: request failed with status %d", e.StatusCode)
}

// IsUnauthorized reports whether the backend rejected the credentials.
func (e *HTTPError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsNotFound reports a 404.
func (e *HTTPError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }
