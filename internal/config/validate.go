package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.MaxRetries < 0 {
		return fmt.Errorf("fetcher.max_retries must be >= 0, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.ScrollPasses < 0 || cfg.Fetcher.ScrollPasses > 20 {
		return fmt.Errorf("fetcher.scroll_passes must be 0-20, got %d", cfg.Fetcher.ScrollPasses)
	}

	if cfg.Harvest.CandidateBound < 1 {
		return fmt.Errorf("harvest.candidate_bound must be >= 1, got %d", cfg.Harvest.CandidateBound)
	}
	if cfg.Harvest.TitleMinLen < 1 || cfg.Harvest.TitleMaxLen < cfg.Harvest.TitleMinLen {
		return fmt.Errorf("harvest title bounds invalid: min=%d max=%d",
			cfg.Harvest.TitleMinLen, cfg.Harvest.TitleMaxLen)
	}
	for name, d := range cfg.Harvest.Categories {
		if d.StartHour < 0 || d.StartHour > 23 || d.EndHour < 0 || d.EndHour > 23 {
			return fmt.Errorf("harvest.categories.%s hours must be 0-23", name)
		}
	}

	validStorageTypes := map[string]bool{
		"json": true, "jsonl": true, "csv": true, "mongodb": true,
	}
	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: json, jsonl, csv, mongodb)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "mongodb" && cfg.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri is required when storage.type is mongodb")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is valid for harvesting.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
