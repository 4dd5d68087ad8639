package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cityhound/cityhound/internal/config"
	"github.com/cityhound/cityhound/internal/fetcher"
	"github.com/cityhound/cityhound/internal/observability"
	"github.com/cityhound/cityhound/internal/pipeline"
	"github.com/cityhound/cityhound/internal/storage"
)

var (
	cfgFile      string
	verbose      bool
	venuesFile   string
	outputPath   string
	outputType   string
	useBrowser   bool
	fetchTimeout time.Duration
	mongoURI     string
	venueName    string
	venueAddress string
	venueCity    string
	category     string
	standing     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cityhound",
		Short: "CityHound — city event harvester",
		Long: `CityHound harvests event listings from venue websites and normalizes
them into structured events: canonical dates, deterministic identities,
and a resolved city for every event.

Sources are ordinary listing pages. No per-site scrapers are needed;
candidate blocks are located heuristically, with schema.org JSON-LD as
a fast path when a site publishes it.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(harvestCmd())
	rootCmd.AddCommand(venuesCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func harvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest [url...]",
		Short: "Harvest events from listing pages",
		Long: `Harvest events from the given listing URLs, or from a venues file
when --venues is set. Each URL is one source page.`,
		RunE: runHarvest,
	}

	cmd.Flags().StringVar(&venuesFile, "venues", "", "venues YAML file (overrides url arguments)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path")
	cmd.Flags().StringVarP(&outputType, "format", "f", "", "output format: json, jsonl, csv, mongodb")
	cmd.Flags().BoolVar(&useBrowser, "browser", false, "render pages with the headless browser fetcher")
	cmd.Flags().DurationVar(&fetchTimeout, "timeout", 0, "per-request fetch timeout")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI (implies mongodb output)")
	cmd.Flags().StringVar(&venueName, "venue", "", "venue name for url arguments")
	cmd.Flags().StringVar(&venueAddress, "address", "", "venue street address for url arguments")
	cmd.Flags().StringVar(&venueCity, "city", "", "city for url arguments, skipping city resolution")
	cmd.Flags().StringVar(&category, "category", "", "category for url arguments: nightlife, exhibit, events")
	cmd.Flags().BoolVar(&standing, "standing", false, "listings may have started months ago (exhibitions)")

	return cmd
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	venues, err := resolveVenues(args)
	if err != nil {
		return err
	}
	if len(venues) == 0 {
		return fmt.Errorf("no sources: pass listing URLs or --venues")
	}
	for _, v := range venues {
		if err := config.ValidateURL(v.URL); err != nil {
			return fmt.Errorf("invalid source URL %q: %w", v.URL, err)
		}
	}

	f, err := fetcher.New(cfg.Fetcher, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	var store storage.Storage
	if cfg.Storage.OutputPath != "" || cfg.Storage.Type == "mongodb" {
		store, err = storage.New(cfg.Storage, logger)
		if err != nil {
			return fmt.Errorf("create storage: %w", err)
		}
	}

	metrics := observability.NewMetrics()
	if cfg.Metrics.Enabled {
		srv := observability.Serve(metrics, cfg.Metrics.Port, cfg.Metrics.Path, logger)
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting harvest",
		"sources", len(venues),
		"fetcher", f.Name(),
		"output", cfg.Storage.OutputPath,
	)

	start := time.Now()
	events, err := pipeline.New(cfg, f, store, metrics, logger).Harvest(ctx, venues)
	if err != nil {
		return fmt.Errorf("harvest: %w", err)
	}
	if store != nil {
		if err := store.Close(context.Background()); err != nil {
			return fmt.Errorf("close storage: %w", err)
		}
	}

	elapsed := time.Since(start)
	logger.Info("harvest complete", "events", len(events), "elapsed", elapsed)

	fmt.Printf("\nHarvest complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("   Sources:  %d\n", len(venues))
	fmt.Printf("   Events:   %d\n", len(events))
	if cfg.Storage.OutputPath != "" {
		fmt.Printf("   Output:   %s\n", cfg.Storage.OutputPath)
	}
	return nil
}

// resolveVenues builds the source list from --venues or from URL arguments.
func resolveVenues(args []string) ([]config.VenueConfig, error) {
	if venuesFile != "" {
		venues, err := config.LoadVenues(venuesFile)
		if err != nil {
			return nil, fmt.Errorf("load venues: %w", err)
		}
		return venues, nil
	}

	venues := make([]config.VenueConfig, 0, len(args))
	for _, rawURL := range args {
		venues = append(venues, config.VenueConfig{
			Name:     venueName,
			URL:      rawURL,
			Address:  venueAddress,
			City:     venueCity,
			Category: category,
			Standing: standing,
		})
	}
	return venues, nil
}

// venuesCmd validates a venues file and lists what it declares.
func venuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "venues [file]",
		Short: "Validate and list a venues file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			venues, err := config.LoadVenues(args[0])
			if err != nil {
				return err
			}
			for _, v := range venues {
				city := v.City
				if city == "" {
					city = "(resolved at harvest)"
				}
				fmt.Printf("%-30s %-12s %s\n", v.Name, city, v.URL)
			}
			fmt.Printf("\n%d venues\n", len(venues))
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Fetcher:\n")
			fmt.Printf("  Type:             %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Request Timeout:  %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  Max Body Size:    %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("  Max Retries:      %d\n", cfg.Fetcher.MaxRetries)
			fmt.Printf("  Scroll Passes:    %d\n", cfg.Fetcher.ScrollPasses)
			fmt.Printf("\nHarvest:\n")
			fmt.Printf("  Candidate Bound:  %d\n", cfg.Harvest.CandidateBound)
			fmt.Printf("  Title Length:     %d-%d\n", cfg.Harvest.TitleMinLen, cfg.Harvest.TitleMaxLen)
			fmt.Printf("  Description Max:  %d\n", cfg.Harvest.DescriptionMaxLen)
			fmt.Printf("  Categories:       %d configured\n", len(cfg.Harvest.Categories))
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:             %s\n", cfg.Storage.Type)
			fmt.Printf("  Output Path:      %s\n", cfg.Storage.OutputPath)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:          %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:             %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("CityHound %s\n", config.Version)
		},
	}
}

func applyCLIOverrides(cfg *config.Config) {
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if outputType != "" {
		cfg.Storage.Type = outputType
	}
	if useBrowser {
		cfg.Fetcher.Type = "browser"
	}
	if fetchTimeout > 0 {
		cfg.Fetcher.RequestTimeout = fetchTimeout
	}
	if mongoURI != "" {
		cfg.Storage.Type = "mongodb"
		cfg.Storage.MongoURI = mongoURI
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
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
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
