package types

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Request represents one venue page to be fetched.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// Timeout overrides the configured request timeout for this request.
	Timeout time.Duration

	// FetcherType specifies which fetcher to use: "http" or "browser".
	FetcherType string

	// Meta stores fetcher hints (e.g. "wait_selector" for the browser fetcher).
	Meta map[string]any

	// CreatedAt is when this request was created.
	CreatedAt time.Time
}

// NewRequest creates a new Request with sensible defaults.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	return &Request{
		URL:         u,
		Method:      http.MethodGet,
		Headers:     make(http.Header),
		FetcherType: "http",
		Meta:        make(map[string]any),
		CreatedAt:   time.Now(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}
