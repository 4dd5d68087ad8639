// Package fetcher retrieves listing pages. The HTTP fetcher covers most
// venue sites; the browser fetcher exists for pages that only render their
// event list from script.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cityhound/cityhound/internal/config"
	"github.com/cityhound/cityhound/internal/types"
)

// Fetcher retrieves the content for a request.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
	Name() string
	Close() error
}

// New builds the fetcher named by cfg.Type.
func New(cfg config.Fetcher, logger *slog.Logger) (Fetcher, error) {
	switch cfg.Type {
	case "", "http":
		return NewHTTPFetcher(cfg, logger), nil
	case "browser":
		return NewBrowserFetcher(cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrNoFetcher, cfg.Type)
	}
}
