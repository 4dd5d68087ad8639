// Package pipeline drives a harvest run: fetch each source page, find event
// candidates, extract and normalize them, assign cities, dedup, and hand the
// survivors to storage.
package pipeline

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/cityhound/cityhound/internal/cityref"
	"github.com/cityhound/cityhound/internal/config"
	"github.com/cityhound/cityhound/internal/dates"
	"github.com/cityhound/cityhound/internal/extract"
	"github.com/cityhound/cityhound/internal/fetcher"
	"github.com/cityhound/cityhound/internal/locate"
	"github.com/cityhound/cityhound/internal/observability"
	"github.com/cityhound/cityhound/internal/storage"
	"github.com/cityhound/cityhound/internal/types"
)

type Pipeline struct {
	cfg       *config.Config
	fetcher   fetcher.Fetcher
	store     storage.Storage
	locator   *locate.Locator
	extractor *extract.Extractor
	resolver  *cityref.Resolver
	metrics   *observability.Metrics
	logger    *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New wires a pipeline. store and metrics may be nil; results are then only
// returned, not persisted or counted.
func New(cfg *config.Config, f fetcher.Fetcher, store storage.Storage, metrics *observability.Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	h := cfg.Harvest
	return &Pipeline{
		cfg:       cfg,
		fetcher:   f,
		store:     store,
		locator:   locate.New(h.CandidateBound, logger),
		extractor: extract.New(h.TitleMinLen, h.TitleMaxLen, h.DescriptionMaxLen, logger),
		resolver:  cityref.New(logger),
		metrics:   metrics,
		logger:    logger.With("component", "pipeline"),
		now:       time.Now,
	}
}

// Harvest runs every source and returns the combined events. Per-source
// fetch failures are logged and counted, never fatal; the returned error is
// reserved for persistence failures.
func (p *Pipeline) Harvest(ctx context.Context, venues []config.VenueConfig) ([]types.NormalizedEvent, error) {
	var all []types.NormalizedEvent

	for _, venue := range venues {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		if p.blacklisted(venue.URL) {
			p.logger.Warn("skipping blacklisted source", "venue", venue.Name, "url", venue.URL)
			continue
		}

		events, err := p.HarvestVenue(ctx, venue)
		if err != nil {
			p.metrics.FetchFailed()
			p.logger.Error("source failed", "venue", venue.Name, "url", venue.URL, "error", err)
			continue
		}
		all = append(all, events...)
	}

	if p.store != nil && len(all) > 0 {
		if err := p.store.Save(ctx, all); err != nil {
			return all, err
		}
	}
	return all, nil
}

// HarvestVenue fetches and processes a single source page.
func (p *Pipeline) HarvestVenue(ctx context.Context, venue config.VenueConfig) ([]types.NormalizedEvent, error) {
	req, err := types.NewRequest(venue.URL)
	if err != nil {
		return nil, err
	}

	resp, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	p.metrics.PageFetched()

	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: venue.URL, Err: err}
	}

	return p.ExtractFromDocument(doc, venue)
}

// ExtractFromDocument runs the extraction stages over an already-parsed
// page. JSON-LD events take the fast path; the DOM heuristics only run when
// a page publishes none.
func (p *Pipeline) ExtractFromDocument(doc *goquery.Document, venue config.VenueConfig) ([]types.NormalizedEvent, error) {
	if doc == nil {
		return nil, types.ErrNilDocument
	}

	base, err := url.Parse(venue.URL)
	if err != nil {
		base = nil
	}

	drafts := extract.ParseStructured(doc, base)
	if len(drafts) > 0 {
		p.metrics.StructuredDrafts(len(drafts))
	} else {
		drafts = p.domDrafts(doc, base)
	}

	return p.normalize(drafts, venue), nil
}

func (p *Pipeline) domDrafts(doc *goquery.Document, base *url.URL) []types.Draft {
	candidates := p.locator.Candidates(doc)
	p.metrics.CandidatesFound(len(candidates))

	drafts := make([]types.Draft, 0, len(candidates))
	for _, c := range candidates {
		d, err := p.extractor.Draft(c, base)
		if err != nil {
			p.metrics.CandidateRejected(rejectReason(err))
			continue
		}
		drafts = append(drafts, *d)
	}
	return drafts
}

// normalize turns drafts into events: date window, city decision, identity,
// and per-run dedup, in that order. Drafts failing any stage are dropped
// individually.
func (p *Pipeline) normalize(drafts []types.Draft, venue config.VenueConfig) []types.NormalizedEvent {
	now := p.now()
	defaults := p.cfg.Harvest.DefaultsFor(venue.Category)
	dedup := newRunDedup()

	var events []types.NormalizedEvent
	for _, d := range drafts {
		window := dates.Normalize(d.DateText, dates.Options{
			Now:      now,
			Defaults: dates.Defaults{StartHour: defaults.StartHour, EndHour: defaults.EndHour},
			Standing: venue.Standing,
		})
		if window == nil {
			p.metrics.CandidateRejected("date")
			continue
		}

		venueName := d.VenueName
		if venueName == "" {
			venueName = venue.Name
		}

		decision := p.resolver.Assign(cityref.Input{
			ConfiguredCity: venue.City,
			VenueName:      venueName,
			SourceURL:      venue.URL,
			Text:           strings.TrimSpace(d.Location + " " + venue.Address),
			Title:          d.Title,
		})
		if !decision.Resolved() {
			p.metrics.CandidateRejected("city")
			p.logger.Debug("dropping event with unresolved city", "title", d.Title, "venue", venueName)
			continue
		}

		if dedup.observed(d.Title, window.Start) {
			p.metrics.DuplicateSkipped()
			continue
		}

		link := d.Link
		if link == "" {
			link = venue.URL
		}

		// Known-venue matches back-fill address fields the source config
		// left empty.
		address := venue.Address
		if address == "" {
			address = decision.Address
		}
		country := decision.Country
		if country == "" {
			country = "Canada"
		}

		events = append(events, types.NormalizedEvent{
			ID:          types.EventID(venueName, d.Title, window.Start),
			Title:       d.Title,
			Description: d.Description,
			StartDate:   window.Start,
			EndDate:     window.End,
			Venue: types.Venue{
				Name:    venueName,
				Address: address,
				City:    decision.City,
				Region:  decision.Region,
				Country: country,
			},
			URL:       link,
			ImageURL:  d.Image,
			Source:    venue.URL,
			FetchedAt: now,
		})
		p.metrics.EventEmitted()
	}

	p.logger.Info("source processed",
		"venue", venue.Name,
		"drafts", len(drafts),
		"events", len(events),
	)
	return events
}

func (p *Pipeline) blacklisted(rawURL string) bool {
	if len(p.cfg.Harvest.DomainBlacklist) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, blocked := range p.cfg.Harvest.DomainBlacklist {
		blocked = strings.ToLower(blocked)
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

func rejectReason(err error) string {
	switch err {
	case extract.ErrNoTitle:
		return "no_title"
	case extract.ErrJunkTitle:
		return "junk_title"
	case extract.ErrTitleLength:
		return "title_length"
	case extract.ErrNoDate:
		return "no_date"
	}
	return "other"
}
