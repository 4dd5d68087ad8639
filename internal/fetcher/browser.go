package fetcher

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/cityhound/cityhound/internal/config"
	"github.com/cityhound/cityhound/internal/types"
)

// BrowserFetcher renders pages in headless Chromium for sites that build
// their event list from script. After load it runs a fixed number of scroll
// passes with a fixed wait, enough for lazy listing pages, with no unbounded
// "scroll until stable" loop.
type BrowserFetcher struct {
	cfg    config.Fetcher
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

func NewBrowserFetcher(cfg config.Fetcher, logger *slog.Logger) *BrowserFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserFetcher{
		cfg:    cfg,
		logger: logger.With("component", "fetcher", "fetcher", "browser"),
	}
}

func (f *BrowserFetcher) Name() string { return "browser" }

// connect launches Chromium on first use and reuses it for the rest of the
// run.
func (f *BrowserFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	controlURL, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, err
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, err
	}

	f.logger.Debug("browser launched")
	f.browser = browser
	return browser, nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if req == nil || req.URL == nil {
		return nil, types.ErrInvalidURL
	}

	browser, err := f.connect()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	start := time.Now()

	page, err := stealth.Page(browser.Context(ctx))
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	defer page.Close()

	timeout := req.Timeout
	if timeout == 0 {
		timeout = f.cfg.RequestTimeout
	}
	if timeout > 0 {
		page = page.Timeout(timeout)
	}

	if err := page.Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	if err := page.WaitLoad(); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	f.scroll(ctx, page)

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if html == "" {
		return nil, &types.FetchError{URL: req.URLString(), Err: types.ErrEmptyResponse}
	}

	info, err := page.Info()
	finalURL := req.URLString()
	if err == nil && info.URL != "" {
		finalURL = info.URL
	}

	duration := time.Since(start)
	f.logger.Debug("rendered page",
		"url", req.URLString(),
		"bytes", len(html),
		"scroll_passes", f.cfg.ScrollPasses,
		"duration", duration,
	)
	return types.NewBrowserResponse(req, http.StatusOK, []byte(html), finalURL, duration), nil
}

func (f *BrowserFetcher) scroll(ctx context.Context, page *rod.Page) {
	passes := f.cfg.ScrollPasses
	wait := f.cfg.ScrollWait
	if passes <= 0 {
		return
	}
	if wait <= 0 {
		wait = time.Second
	}

	for i := 0; i < passes; i++ {
		if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			f.logger.Debug("scroll pass failed", "pass", i, "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}
