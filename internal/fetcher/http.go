package fetcher

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/cityhound/cityhound/internal/config"
	"github.com/cityhound/cityhound/internal/types"
)

// HTTPFetcher retrieves pages over plain HTTP with retry, body-size limits,
// and transparent gzip/brotli decompression.
type HTTPFetcher struct {
	client *http.Client
	cfg    config.Fetcher
	logger *slog.Logger
}

func NewHTTPFetcher(cfg config.Fetcher, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
		// Compression is negotiated and decoded by hand so brotli works too.
		DisableCompression: true,
	}
	if cfg.TLSInsecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if cfg.MaxRedirects > 0 {
		max := cfg.MaxRedirects
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= max {
				return fmt.Errorf("stopped after %d redirects", max)
			}
			return nil
		}
	}

	return &HTTPFetcher{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "fetcher", "fetcher", "http"),
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Fetch performs the request with up to MaxRetries additional attempts.
// Only retryable failures (network errors, 429, 5xx) are retried, honoring
// Retry-After when the server sends one.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if req == nil || req.URL == nil {
		return nil, types.ErrInvalidURL
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := f.cfg.RetryDelay * time.Duration(attempt)
			var fe *types.FetchError
			if errors.As(lastErr, &fe) && fe.RetryAfter > delay {
				delay = fe.RetryAfter
			}
			f.logger.Debug("retrying fetch", "url", req.URLString(), "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := f.fetchOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var fe *types.FetchError
		if !errors.As(err, &fe) || !fe.IsRetryable() {
			break
		}
	}
	return nil, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, req *types.Request) (*types.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URLString(), nil)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}

	httpReq.Header.Set("User-Agent", f.userAgent())
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml")
	httpReq.Header.Set("Accept-Encoding", "gzip, br")
	httpReq.Header.Set("Accept-Language", "en-CA,en;q=0.9,fr-CA;q=0.8")
	for key, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = types.ErrTimeout
		}
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	defer httpResp.Body.Close()

	if ferr := classifyStatus(req.URLString(), httpResp); ferr != nil {
		return nil, ferr
	}

	body, err := f.readBody(httpResp)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Err: err, Retryable: true}
	}
	if len(body) == 0 {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Err: types.ErrEmptyResponse}
	}

	duration := time.Since(start)
	f.logger.Debug("fetched page",
		"url", req.URLString(),
		"status", httpResp.StatusCode,
		"bytes", len(body),
		"duration", duration,
	)
	return types.NewResponse(req, httpResp, body, duration), nil
}

func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize)
	}

	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(reader)
	}

	return io.ReadAll(reader)
}

func (f *HTTPFetcher) userAgent() string {
	if len(f.cfg.UserAgents) == 0 {
		return "cityhound/1.0"
	}
	return f.cfg.UserAgents[rand.Intn(len(f.cfg.UserAgents))]
}

// classifyStatus maps response codes to fetch errors. 429 and 5xx are
// retryable; other 4xx are permanent for this run.
func classifyStatus(url string, resp *http.Response) *types.FetchError {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &types.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        errors.New("rate limited"),
			Retryable:  true,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return &types.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("server error %d", resp.StatusCode),
			Retryable:  true,
		}
	case resp.StatusCode >= 400:
		return &types.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("client error %d", resp.StatusCode),
		}
	}
	return nil
}

// parseRetryAfter handles both the delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
