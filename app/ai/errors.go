package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means no API key is set; no network call is made.
	ErrNotConfigured = errors.New("generative API key not configured")

	// ErrNoItems means a digest was requested for a feed with nothing to
	// digest and empty digests are disabled.
	ErrNoItems = errors.New("no new items to include in the digest")

	// ErrEmptyResponse means the API answered without usable text.
	ErrEmptyResponse = errors.New("empty response from generative API")
)

// APIError is returned when the generative API rejects a call, either with
// a non-200 status or with an error envelope in a 200 response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generative API error (%d): %s", e.Status, e.Message)
}
