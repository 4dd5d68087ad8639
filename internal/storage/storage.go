// Package storage persists harvested events. File backends cover one-off
// runs and exports; MongoDB covers the recurring harvest where re-runs must
// upsert rather than duplicate.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cityhound/cityhound/internal/config"
	"github.com/cityhound/cityhound/internal/types"
)

type Storage interface {
	Save(ctx context.Context, events []types.NormalizedEvent) error
	Close(ctx context.Context) error
}

// New builds the backend named by cfg.Type.
func New(cfg config.StorageConfig, logger *slog.Logger) (Storage, error) {
	switch cfg.Type {
	case "json", "jsonl", "csv":
		return NewFileStorage(cfg, logger)
	case "mongodb":
		return NewMongoStorage(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
