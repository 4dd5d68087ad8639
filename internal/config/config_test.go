package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad fetcher type", func(c *Config) { c.Fetcher.Type = "telegraph" }},
		{"zero timeout", func(c *Config) { c.Fetcher.RequestTimeout = 0 }},
		{"zero body size", func(c *Config) { c.Fetcher.MaxBodySize = 0 }},
		{"negative retries", func(c *Config) { c.Fetcher.MaxRetries = -1 }},
		{"scroll passes out of range", func(c *Config) { c.Fetcher.ScrollPasses = 50 }},
		{"zero candidate bound", func(c *Config) { c.Harvest.CandidateBound = 0 }},
		{"title max below min", func(c *Config) { c.Harvest.TitleMaxLen = 2 }},
		{"category hour out of range", func(c *Config) {
			c.Harvest.Categories["nightlife"] = CategoryDefaults{StartHour: 25}
		}},
		{"bad storage type", func(c *Config) { c.Storage.Type = "parchment" }},
		{"mongodb without uri", func(c *Config) { c.Storage.Type = "mongodb"; c.Storage.MongoURI = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestDefaultsFor(t *testing.T) {
	h := DefaultConfig().Harvest

	if d := h.DefaultsFor("nightlife"); d.StartHour != 19 || d.EndHour != 22 {
		t.Errorf("nightlife = %+v", d)
	}
	if d := h.DefaultsFor("exhibit"); d.StartHour != 10 || d.EndHour != 17 {
		t.Errorf("exhibit = %+v", d)
	}
	if d := h.DefaultsFor("book-club"); d.StartHour != 19 {
		t.Errorf("unknown category = %+v, want events fallback", d)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cityhound.yaml")
	body := `
fetcher:
  type: browser
  request_timeout: 45s
  scroll_passes: 5
harvest:
  candidate_bound: 50
storage:
  type: jsonl
  output_path: ./events.jsonl
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Fetcher.Type != "browser" {
		t.Errorf("fetcher type = %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.RequestTimeout != 45*time.Second {
		t.Errorf("timeout = %v", cfg.Fetcher.RequestTimeout)
	}
	if cfg.Fetcher.ScrollPasses != 5 {
		t.Errorf("scroll passes = %d", cfg.Fetcher.ScrollPasses)
	}
	if cfg.Harvest.CandidateBound != 50 {
		t.Errorf("candidate bound = %d", cfg.Harvest.CandidateBound)
	}
	// Unset keys keep their defaults.
	if cfg.Harvest.TitleMinLen != 5 {
		t.Errorf("title min = %d, want default", cfg.Harvest.TitleMinLen)
	}
	if cfg.Storage.Type != "jsonl" {
		t.Errorf("storage type = %q", cfg.Storage.Type)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CITYHOUND_FETCHER_TYPE", "browser")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Fetcher.Type != "browser" {
		t.Errorf("fetcher type = %q, want env override", cfg.Fetcher.Type)
	}
}

func TestLoadVenues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venues.yaml")
	body := `
venues:
  - name: Poetry Jazz Cafe
    url: https://poetryjazzcafe.com/livemusic
    address: 1078 Queen St W
    category: nightlife
  - name: Polygon Gallery
    url: https://thepolygon.ca/exhibitions
    city: Vancouver
    category: exhibit
    standing: true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	venues, err := LoadVenues(path)
	if err != nil {
		t.Fatalf("LoadVenues: %v", err)
	}
	if len(venues) != 2 {
		t.Fatalf("venues = %d, want 2", len(venues))
	}
	if venues[0].Name != "Poetry Jazz Cafe" || venues[0].Category != "nightlife" {
		t.Errorf("first venue = %+v", venues[0])
	}
	if !venues[1].Standing || venues[1].City != "Vancouver" {
		t.Errorf("second venue = %+v", venues[1])
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://venue.example/events"); err != nil {
		t.Errorf("valid URL rejected: %v", err)
	}
	for _, bad := range []string{"ftp://venue.example", "not a url at all", "/relative/path"} {
		if err := ValidateURL(bad); err == nil {
			t.Errorf("ValidateURL(%q) = nil, want error", bad)
		}
	}
}
