package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout       = errors.New("request timed out")
	ErrEmptyResponse = errors.New("empty response body")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrNoFetcher     = errors.New("no fetcher available for request")
	ErrNilDocument   = errors.New("nil document reference")
)

// FetchError wraps errors that occur while retrieving a page. The harvest
// boundary recovers it into "zero candidates"; it never crosses the pipeline.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur while parsing a document.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors from persistence backends.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
