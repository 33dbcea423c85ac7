// Package fetcher defines the HTTP fetch abstraction used by the
// update pipeline. Implementations perform a single conditional GET;
// HTTP-level outcomes (not modified, server errors) are reported as
// statuses on the response, not as Go errors.
package fetcher

import (
	"context"
	"net/http"
	"time"
)

// Request describes one conditional fetch.
type Request struct {
	URL string
	// IfModifiedSince, when non-zero, is sent as an If-Modified-Since
	// precondition so unchanged content short-circuits with 304.
	IfModifiedSince time.Time
}

// Response is the outcome of a fetch that reached the server.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// NotModified reports whether the server declined to resend unchanged
// content.
func (r Response) NotModified() bool {
	return r.StatusCode == http.StatusNotModified
}

// OK reports whether the response carries fresh content to store.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher performs a single HTTP GET.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}
