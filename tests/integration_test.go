package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cityhound/cityhound/internal/config"
	"github.com/cityhound/cityhound/internal/fetcher"
	"github.com/cityhound/cityhound/internal/observability"
	"github.com/cityhound/cityhound/internal/pipeline"
	"github.com/cityhound/cityhound/internal/storage"
	"github.com/cityhound/cityhound/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fixtures carry dates relative to the wall clock, since the pipeline
// applies its staleness bounds against time.Now.
func fixturePages() (listing, structured string, jazzDay, festivalDay time.Time) {
	jazzDay = time.Now().UTC().AddDate(0, 1, 0)
	festivalDay = jazzDay.AddDate(0, 1, 0)

	listing = fmt.Sprintf(`<html><body>
	<div class="event-card">
		<h3>Jazz Night with the Quartet</h3>
		<span class="date">%s</span>
		<a href="/events/jazz">Details</a>
		<img data-src="/img/jazz.jpg" src="/img/placeholder.gif" alt="">
	</div>
	<div class="event-card">
		<h3>Late Night Open Mic</h3>
		<span class="date">%s at 9:00 PM</span>
	</div>
	<div class="event-card">
		<h3>View All Events</h3>
		<span class="date">%s</span>
	</div>
</body></html>`,
		jazzDay.Format("January 2, 2006"),
		jazzDay.AddDate(0, 0, 1).Format("January 2, 2006"),
		jazzDay.Format("January 2, 2006"),
	)

	structured = fmt.Sprintf(`<html><head>
	<script type="application/ld+json">{
		"@type": "Event",
		"name": "Harbour Lights Festival",
		"startDate": "%sT18:00",
		"endDate": "%sT23:00",
		"location": {
			"name": "Waterfront Stage",
			"address": {"addressLocality": "Vancouver", "addressRegion": "BC"}
		}
	}</script>
</head><body></body></html>`,
		festivalDay.Format("2006-01-02"),
		festivalDay.Format("2006-01-02"),
	)
	return listing, structured, jazzDay, festivalDay
}

// TestHarvestEndToEnd drives the whole chain: HTTP fetch, candidate
// location, extraction, normalization, city assignment, dedup, and file
// persistence.
func TestHarvestEndToEnd(t *testing.T) {
	listing, structured, jazzDay, festivalDay := fixturePages()

	mux := http.NewServeMux()
	mux.HandleFunc("/livemusic", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listing))
	})
	mux.HandleFunc("/festival", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(structured))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Storage.Type = "jsonl"
	cfg.Storage.OutputPath = filepath.Join(t.TempDir(), "events.jsonl")

	f := fetcher.NewHTTPFetcher(cfg.Fetcher, testLogger)
	defer f.Close()

	store, err := storage.New(cfg.Storage, testLogger)
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}

	metrics := observability.NewMetrics()
	pipe := pipeline.New(cfg, f, store, metrics, testLogger)

	venues := []config.VenueConfig{
		{Name: "Poetry Jazz Cafe", URL: srv.URL + "/livemusic", Address: "1078 Queen St W", Category: "nightlife"},
		{Name: "Waterfront Stage", URL: srv.URL + "/festival", Category: "events"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events, err := pipe.Harvest(ctx, venues)
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if err := store.Close(ctx); err != nil {
		t.Fatalf("close storage: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("events = %d, want 3 (junk card dropped)", len(events))
	}

	byTitle := make(map[string]types.NormalizedEvent, len(events))
	for _, e := range events {
		byTitle[e.Title] = e
		if e.ID == "" || e.Venue.City == "" {
			t.Errorf("incomplete event: %+v", e)
		}
	}

	jazz, ok := byTitle["Jazz Night with the Quartet"]
	if !ok {
		t.Fatal("jazz event missing")
	}
	if got, want := jazz.StartDate.Format("2006-01-02"), jazzDay.Format("2006-01-02"); got != want {
		t.Errorf("jazz start = %s, want %s", got, want)
	}
	if jazz.StartDate.Hour() != 19 {
		t.Errorf("jazz hour = %d, want nightlife default 19", jazz.StartDate.Hour())
	}
	if jazz.Venue.City != "Toronto" {
		t.Errorf("jazz city = %q, want Toronto via known venue", jazz.Venue.City)
	}
	if jazz.ImageURL != srv.URL+"/img/jazz.jpg" {
		t.Errorf("jazz image = %q, want lazy-load source", jazz.ImageURL)
	}

	mic, ok := byTitle["Late Night Open Mic"]
	if !ok {
		t.Fatal("open mic event missing")
	}
	if mic.StartDate.Hour() != 21 {
		t.Errorf("open mic hour = %d, want explicit 21", mic.StartDate.Hour())
	}

	festival, ok := byTitle["Harbour Lights Festival"]
	if !ok {
		t.Fatal("structured event missing")
	}
	if festival.Venue.City != "Vancouver" {
		t.Errorf("festival city = %q, want Vancouver via address scan", festival.Venue.City)
	}
	if got, want := festival.StartDate.Format("2006-01-02"), festivalDay.Format("2006-01-02"); got != want {
		t.Errorf("festival start = %s, want %s", got, want)
	}
	if festival.EndDate == nil || festival.EndDate.Hour() != 23 {
		t.Errorf("festival end = %v, want 23:00", festival.EndDate)
	}

	// The file backend saw everything the pipeline emitted.
	file, err := os.Open(cfg.Storage.OutputPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	var persisted int
	dec := json.NewDecoder(file)
	for dec.More() {
		var e types.NormalizedEvent
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		persisted++
	}
	if persisted != len(events) {
		t.Errorf("persisted = %d, want %d", persisted, len(events))
	}

	if metrics.EventsEmitted() != int64(len(events)) {
		t.Errorf("emitted metric = %d, want %d", metrics.EventsEmitted(), len(events))
	}
}
