package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFeedURL means a source has neither a feed URL nor a main URL.
	ErrNoFeedURL = errors.New("no feed URL configured")

	// ErrInvalidURL means a URL failed syntax validation.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrEmptyResponse means a fetch returned a 200 with no body.
	ErrEmptyResponse = errors.New("empty response")

	// ErrNoContent means content extraction found nothing, even in the
	// body fallback.
	ErrNoContent = errors.New("could not extract content from the page")
)

// HTTPError is returned when a fetch gets a non-200 status.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %d", e.Status)
}
