// Package fetcher retrieves grant listing pages over HTTP with retry and per-host pacing.
package fetcher

import (
	"context"
	"fmt"
)

// Fetcher retrieves the raw body of a page.
type Fetcher interface {
	// Fetch returns the response body for url, or an error once every attempt has failed.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}
