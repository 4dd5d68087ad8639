package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("CITYHOUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("cityhound")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".cityhound"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// LoadVenues reads a venue list from a YAML file. The file holds a single
// "venues" key with a list of VenueConfig entries.
func LoadVenues(path string) ([]VenueConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read venues file: %w", err)
	}

	var out struct {
		Venues []VenueConfig `mapstructure:"venues"`
	}
	if err := v.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal venues file: %w", err)
	}
	return out.Venues, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.max_retries", cfg.Fetcher.MaxRetries)
	v.SetDefault("fetcher.retry_delay", cfg.Fetcher.RetryDelay)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)
	v.SetDefault("fetcher.scroll_passes", cfg.Fetcher.ScrollPasses)
	v.SetDefault("fetcher.scroll_wait", cfg.Fetcher.ScrollWait)

	v.SetDefault("harvest.candidate_bound", cfg.Harvest.CandidateBound)
	v.SetDefault("harvest.title_min_len", cfg.Harvest.TitleMinLen)
	v.SetDefault("harvest.title_max_len", cfg.Harvest.TitleMaxLen)
	v.SetDefault("harvest.description_max_len", cfg.Harvest.DescriptionMaxLen)
	v.SetDefault("harvest.domain_blacklist", cfg.Harvest.DomainBlacklist)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.database", cfg.Storage.Database)
	v.SetDefault("storage.collection", cfg.Storage.Collection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
