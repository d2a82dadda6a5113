package platforms

import (
	"context"
	"fmt"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"github.com/scoutline-hq/prospect-discovery/internal/logger"
	"github.com/scoutline-hq/prospect-discovery/internal/monitoring"
)

// Service resolves a task's platform config and dispatches it to the
// registered adapter. It satisfies the scheduler's Runner contract.
type Service struct {
	registry AdapterRegistry
	log      logger.Logger
	sink     monitoring.Sink
	now      func() time.Time
}

// NewService builds a Service over the given adapter registry.
func NewService(registry AdapterRegistry, log logger.Logger, sink monitoring.Sink) *Service {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Service{
		registry: registry,
		log:      log,
		sink:     monitoring.Ensure(sink),
		now:      time.Now,
	}
}

// Run fetches the raw record for one task through its platform's adapter.
func (s *Service) Run(ctx context.Context, task domain.ScrapeTask) (*domain.RawRecord, error) {
	cfg, ok := PlatformByID(task.Platform)
	if !ok {
		return nil, fmt.Errorf("platform %q is not configured", task.Platform)
	}

	adapter, err := s.registry.AdapterFor(cfg)
	if err != nil {
		return nil, err
	}

	started := s.now()
	rec, err := adapter.Fetch(ctx, cfg, task)
	elapsed := s.now().Sub(started)

	if err != nil {
		s.sink.LogError("platform fetch failed", "fetch_failure", "platforms", map[string]any{
			"platform": cfg.ID,
			"task_id":  task.ID,
			"error":    err.Error(),
		})
		return nil, err
	}

	s.sink.RecordMetric("platform_fetch_seconds", elapsed.Seconds(), map[string]string{"platform": cfg.ID})
	s.log.DebugObj("platform fetch finished", "fetch", map[string]any{
		"platform": cfg.ID,
		"task_id":  task.ID,
		"elapsed":  elapsed.String(),
	})

	return rec, nil
}
