// Package cityhound provides a public API for embedding the event harvester
// as a library.
//
// Example usage:
//
//	h, err := cityhound.NewHarvester(
//	    cityhound.WithFetcher("browser"),
//	    cityhound.WithOutput("jsonl", "./events.jsonl"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close(context.Background())
//
//	events, err := h.Harvest(context.Background(), []cityhound.Source{
//	    {Name: "Poetry Jazz Cafe", URL: "https://poetryjazzcafe.com/livemusic", Category: "nightlife"},
//	})
package cityhound

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/cityhound/cityhound/internal/config"
	"github.com/cityhound/cityhound/internal/fetcher"
	"github.com/cityhound/cityhound/internal/observability"
	"github.com/cityhound/cityhound/internal/pipeline"
	"github.com/cityhound/cityhound/internal/storage"
	"github.com/cityhound/cityhound/internal/types"
)

// Event is a harvested, normalized event.
type Event = types.NormalizedEvent

// Venue identifies where an event happens.
type Venue = types.Venue

// Source is one listing page to harvest.
type Source struct {
	// Name of the venue, used for identity and city lookup.
	Name string
	// URL of the events listing page.
	URL string
	// Address helps the city scan when pages omit one.
	Address string
	// City pins the city outright, overriding every other signal.
	City string
	// Category selects default event hours: nightlife, exhibit, or events.
	Category string
	// Standing marks long-running listings whose start may be months past.
	Standing bool
}

// Option configures a Harvester.
type Option func(*config.Config)

// WithFetcher selects the page fetcher: "http" or "browser".
func WithFetcher(typ string) Option {
	return func(cfg *config.Config) { cfg.Fetcher.Type = typ }
}

// WithOutput persists harvested events: format is json, jsonl, or csv.
func WithOutput(format, path string) Option {
	return func(cfg *config.Config) {
		cfg.Storage.Type = format
		cfg.Storage.OutputPath = path
	}
}

// WithMongo persists harvested events to MongoDB, upserting on re-runs.
func WithMongo(uri string) Option {
	return func(cfg *config.Config) {
		cfg.Storage.Type = "mongodb"
		cfg.Storage.MongoURI = uri
	}
}

// WithTimeout sets the per-page fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config.Config) { cfg.Fetcher.RequestTimeout = d }
}

// WithCandidateBound caps how many candidate blocks one page may yield.
func WithCandidateBound(n int) Option {
	return func(cfg *config.Config) { cfg.Harvest.CandidateBound = n }
}

// WithLogLevel sets the log level: debug, info, warn, or error.
func WithLogLevel(level string) Option {
	return func(cfg *config.Config) { cfg.Logging.Level = level }
}

// Harvester is the high-level API for harvesting event listings.
type Harvester struct {
	cfg     *config.Config
	fetcher fetcher.Fetcher
	store   storage.Storage
	pipe    *pipeline.Pipeline
	logger  *slog.Logger
}

// NewHarvester builds a Harvester from the default config plus options.
func NewHarvester(opts ...Option) (*Harvester, error) {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Logging)

	f, err := fetcher.New(cfg.Fetcher, logger)
	if err != nil {
		return nil, err
	}

	var store storage.Storage
	if cfg.Storage.OutputPath != "" || cfg.Storage.Type == "mongodb" {
		store, err = storage.New(cfg.Storage, logger)
		if err != nil {
			f.Close()
			return nil, err
		}
	}

	return &Harvester{
		cfg:     cfg,
		fetcher: f,
		store:   store,
		pipe:    pipeline.New(cfg, f, store, observability.NewMetrics(), logger),
		logger:  logger,
	}, nil
}

// Harvest fetches every source and returns the normalized events. Sources
// that fail to fetch are logged and skipped.
func (h *Harvester) Harvest(ctx context.Context, sources []Source) ([]Event, error) {
	venues := make([]config.VenueConfig, 0, len(sources))
	for _, s := range sources {
		venues = append(venues, config.VenueConfig(s))
	}
	return h.pipe.Harvest(ctx, venues)
}

// ExtractEvents runs extraction and normalization over an already-parsed
// page, with no fetching or persistence. Useful for tests and for callers
// that manage their own HTTP.
func (h *Harvester) ExtractEvents(doc *goquery.Document, source Source) ([]Event, error) {
	return h.pipe.ExtractFromDocument(doc, config.VenueConfig(source))
}

// Close releases the fetcher and flushes storage.
func (h *Harvester) Close(ctx context.Context) error {
	err := h.fetcher.Close()
	if h.store != nil {
		if cerr := h.store.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
