package platforms

import (
	"context"

	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"github.com/scoutline-hq/prospect-discovery/pkg/httpclient"
)

// Adapter retrieves raw data for one scrape task against a platform.
// Concrete implementations are selected through the AdapterRegistry; most
// platforms are served by the generic adapter driven purely by config.
type Adapter interface {
	ID() string
	Fetch(ctx context.Context, cfg Platform, task domain.ScrapeTask) (*domain.RawRecord, error)
}

// AdapterRegistry resolves the adapter implementation for a platform config.
type AdapterRegistry interface {
	AdapterFor(cfg Platform) (Adapter, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within platforms.
type HTTPClient = httpclient.Client
