package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for CityHound.
type Config struct {
	Fetcher Fetcher       `mapstructure:"fetcher" yaml:"fetcher"`
	Harvest HarvestConfig `mapstructure:"harvest" yaml:"harvest"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// Fetcher controls page retrieval.
type Fetcher struct {
	Type            string        `mapstructure:"type"              yaml:"type"` // http or browser
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	MaxRetries      int           `mapstructure:"max_retries"       yaml:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"       yaml:"retry_delay"`
	UserAgents      []string      `mapstructure:"user_agents"       yaml:"user_agents"`

	// Browser fetcher: scroll passes are a fixed count with a fixed wait so
	// lazy-loading pages terminate deterministically.
	ScrollPasses int           `mapstructure:"scroll_passes" yaml:"scroll_passes"`
	ScrollWait   time.Duration `mapstructure:"scroll_wait"   yaml:"scroll_wait"`
}

// HarvestConfig controls the extraction pipeline.
type HarvestConfig struct {
	CandidateBound    int      `mapstructure:"candidate_bound"     yaml:"candidate_bound"`
	TitleMinLen       int      `mapstructure:"title_min_len"       yaml:"title_min_len"`
	TitleMaxLen       int      `mapstructure:"title_max_len"       yaml:"title_max_len"`
	DescriptionMaxLen int      `mapstructure:"description_max_len" yaml:"description_max_len"`
	DomainBlacklist   []string `mapstructure:"domain_blacklist"    yaml:"domain_blacklist"`

	// Categories maps a venue category to its default event hours, applied
	// when a page gives a date with no explicit time.
	Categories map[string]CategoryDefaults `mapstructure:"categories" yaml:"categories"`
}

// CategoryDefaults is the default time-of-day policy for one venue category.
// StartHour is used when no explicit time was extracted; EndHour, when greater
// than StartHour, also yields the default event duration.
type CategoryDefaults struct {
	StartHour int `mapstructure:"start_hour" yaml:"start_hour"`
	EndHour   int `mapstructure:"end_hour"   yaml:"end_hour"`
}

// VenueConfig describes one venue to harvest: its page, its static identity,
// and which category's defaults apply. Passed into the pipeline per run.
type VenueConfig struct {
	Name     string `mapstructure:"name"     yaml:"name"`
	URL      string `mapstructure:"url"      yaml:"url"`
	Address  string `mapstructure:"address"  yaml:"address"`
	City     string `mapstructure:"city"     yaml:"city"`
	Category string `mapstructure:"category" yaml:"category"`

	// Standing marks exhibition-style listings whose start dates may sit
	// months in the past without being stale.
	Standing bool `mapstructure:"standing" yaml:"standing"`
}

// StorageConfig controls output/persistence.
type StorageConfig struct {
	Type       string `mapstructure:"type"        yaml:"type"` // json, jsonl, csv, mongodb
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
	MongoURI   string `mapstructure:"mongo_uri"   yaml:"mongo_uri"`
	Database   string `mapstructure:"database"    yaml:"database"`
	Collection string `mapstructure:"collection"  yaml:"collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Fetcher: Fetcher{
			Type:            "http",
			RequestTimeout:  30 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			MaxRetries:      3,
			RetryDelay:      2 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			ScrollPasses: 3,
			ScrollWait:   500 * time.Millisecond,
		},
		Harvest: HarvestConfig{
			CandidateBound:    200,
			TitleMinLen:       5,
			TitleMaxLen:       200,
			DescriptionMaxLen: 500,
			DomainBlacklist: []string{
				"google.com",
				"ticketmaster.ca",
				"songkick.com",
				"allevents.in",
			},
			Categories: map[string]CategoryDefaults{
				"nightlife": {StartHour: 19, EndHour: 22},
				"exhibit":   {StartHour: 10, EndHour: 17},
				"events":    {StartHour: 19, EndHour: 22},
			},
		},
		Storage: StorageConfig{
			Type:       "json",
			OutputPath: "./output",
			Database:   "cityhound",
			Collection: "events",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// DefaultsFor returns the category time defaults, falling back to the
// generic "events" policy for unknown categories.
func (h HarvestConfig) DefaultsFor(category string) CategoryDefaults {
	if d, ok := h.Categories[category]; ok {
		return d
	}
	if d, ok := h.Categories["events"]; ok {
		return d
	}
	return CategoryDefaults{StartHour: 19, EndHour: 22}
}
