package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/domain"
)

// Package storage provides the local prospect archive and target dedup cache.

// Store persists scored prospects and remembers recently scraped targets so
// repeated discovery runs skip work that is still fresh.
type Store interface {
	Close() error
	SaveProspect(p *domain.Prospect) error
	Prospect(taskID string) (*domain.Prospect, bool, error)
	SeenTarget(platform, target string) (bool, error)
	MarkTarget(platform, target string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

const (
	defaultTTL             = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                               { return nil }
func (noopStore) SaveProspect(*domain.Prospect) error        { return nil }
func (noopStore) Prospect(string) (*domain.Prospect, bool, error) {
	return nil, false, nil
}
func (noopStore) SeenTarget(string, string) (bool, error) { return false, nil }
func (noopStore) MarkTarget(string, string) error         { return nil }
