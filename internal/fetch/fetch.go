// Package fetch defines the page fetching seam shared by the site crawlers.
package fetch

import (
	"context"
	"fmt"
	"time"
)

// Request captures everything needed to fetch one page.
type Request struct {
	URL string
	// WaitSelector, when set, delays completion until the selector is
	// visible. Both harvested sites render their content via client-side
	// script, so the initial DOM is often an empty shell.
	WaitSelector string
}

// Response is the result returned by a Fetcher implementation.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Fetcher fetches a URL and returns the body plus metadata. Implementations
// return an error only for transport-level problems; HTTP error statuses are
// reported through Response.StatusCode.
type Fetcher interface {
	Fetch(ctx context.Context, request Request) (Response, error)
	Close()
}

// HTTPError marks a response that carried an HTTP error status. It is a soft
// failure: recorded against the URL, never retried.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d fetching %s", e.StatusCode, e.URL)
}
