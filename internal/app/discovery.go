package app

import (
	"context"
	"fmt"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/config"
	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"github.com/scoutline-hq/prospect-discovery/internal/logger"
	"github.com/scoutline-hq/prospect-discovery/internal/monitoring"
	"github.com/scoutline-hq/prospect-discovery/internal/pipeline"
	"github.com/scoutline-hq/prospect-discovery/internal/proxy"
	"github.com/scoutline-hq/prospect-discovery/internal/ratelimit"
	"github.com/scoutline-hq/prospect-discovery/internal/scheduler"
	"github.com/scoutline-hq/prospect-discovery/internal/storage"
	"github.com/scoutline-hq/prospect-discovery/internal/tasks"
	"github.com/scoutline-hq/prospect-discovery/pkg/platforms"
	"github.com/scoutline-hq/prospect-discovery/pkg/publishers"
)

// Discovery represents the prospect discovery runtime. It owns the scheduler
// loop and coordinates platform adapters, the processing pipeline, storage
// and downstream publishers.
type Discovery struct {
	cfg      *config.Config
	tasks    *tasks.Manager
	sched    *scheduler.Scheduler
	pipe     *pipeline.Pipeline
	fanout   *publishers.Fanout
	store    storage.Store
	targets  []domain.DiscoveryRequest
	interval time.Duration
	log      logger.Logger
	sink     monitoring.Sink
}

// NewDiscovery builds a discovery runtime from config files.
func NewDiscovery(ctx context.Context, cfg *config.Config, log logger.Logger, sink monitoring.Sink) (*Discovery, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sink = monitoring.Ensure(sink)

	if err := platforms.LoadPlatforms(cfg.PlatformsFile); err != nil {
		return nil, fmt.Errorf("load platforms registry: %w", err)
	}
	platformList := platforms.Platforms()
	platformIDs := make([]string, 0, len(platformList))
	for _, p := range platformList {
		platformIDs = append(platformIDs, p.ID)
	}
	log.InfoObj("platforms registry loaded", "platforms_meta", map[string]any{
		"count": len(platformIDs),
		"ids":   platformIDs,
	})

	limiter := ratelimit.New(nil, sink)
	for _, p := range platformList {
		limiter.SetLimits(p.ID, p.RateLimits)
	}

	var prober proxy.Prober
	if len(cfg.Proxy.Proxies()) > 0 {
		prober = proxy.NewRestyProber(cfg.Proxy.ProbeURL, cfg.Proxy.ProbeTimeout)
	}
	proxies := proxy.New(cfg.Proxy, prober, log, sink)

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		TTL:             cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"prospect_ttl_seconds":     int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	targets, err := LoadTargets(cfg.TargetsFile)
	if err != nil {
		return nil, fmt.Errorf("load targets: %w", err)
	}

	adapter := platforms.NewGenericAdapter(limiter, proxies, cfg.HTTPTimeout, log)
	adapterReg := platforms.NewTypeAdapterRegistry(map[string]platforms.Adapter{
		platforms.PlatformTypeGeneric: adapter,
	})
	fetchService := platforms.NewService(adapterReg, log, sink)

	d := &Discovery{
		cfg:      cfg,
		tasks:    tasks.New(log, sink),
		pipe:     pipeline.New(cfg.Scoring, log, sink),
		fanout:   fanout,
		store:    store,
		targets:  targets,
		interval: cfg.DiscoveryInterval,
		log:      log,
		sink:     sink,
	}

	d.sched = scheduler.New(scheduler.Options{
		Tasks:    d.tasks,
		Runner:   fetchService,
		Config:   cfg.Scheduler,
		Log:      log,
		Sink:     sink,
		OnRecord: d.handleRecord,
	})
	for _, p := range platformList {
		d.sched.SetPatterns(p.ID, scheduler.Patterns{
			PeakHours: p.PeakHours,
			OffHours:  p.OffHours,
			BusyDays:  weekdays(p.BusyDays),
		})
	}

	return d, nil
}

// Run drives the discovery loop until the context is cancelled: the target
// list is submitted immediately, then re-submitted every discovery interval
// while the scheduler dispatches due work in the background.
func (d *Discovery) Run(ctx context.Context) error {
	if d == nil || d.sched == nil {
		return fmt.Errorf("discovery runtime is not initialized")
	}
	defer d.closeStore()

	if len(d.targets) == 0 {
		d.log.WarnObj("no targets configured; discovery idle", "targets_file", d.cfg.TargetsFile)
		<-ctx.Done()
		return ctx.Err()
	}

	d.log.InfoObj("discovery loop starting", "discovery_state", map[string]any{
		"targets_count":      len(d.targets),
		"publishers_count":   d.fanout.Size(),
		"discovery_interval": d.interval.String(),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.sched.Run(ctx)
	}()

	d.submitTargets()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.InfoObj("discovery loop exiting", "reason", ctx.Err())
			<-done
			return nil
		case <-ticker.C:
			d.submitTargets()
		}
	}
}

// submitTargets pushes every configured target into the scheduler, skipping
// targets whose previous result is still fresh in storage.
func (d *Discovery) submitTargets() {
	start := time.Now()
	submitted := 0
	skipped := 0

	for _, req := range d.targets {
		seen, err := d.store.SeenTarget(req.Platform, req.Target)
		if err != nil {
			d.log.WarnObj("target dedup check failed", "target", map[string]any{
				"platform": req.Platform,
				"target":   req.Target,
				"error":    err.Error(),
			})
		}
		if seen {
			skipped++
			d.sink.RecordMetric("targets_skipped_total", 1, map[string]string{"platform": req.Platform})
			continue
		}
		if _, err := d.sched.Submit(req); err != nil {
			d.log.ErrorObj("target submission failed", "target", map[string]any{
				"platform": req.Platform,
				"target":   req.Target,
				"error":    err.Error(),
			})
			continue
		}
		submitted++
	}

	d.log.InfoObj("discovery round submitted", "round_meta", map[string]any{
		"submitted":  submitted,
		"skipped":    skipped,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
}

// handleRecord feeds a fetched record through the pipeline and ships the
// scored prospect to storage and publishers.
func (d *Discovery) handleRecord(ctx context.Context, task domain.ScrapeTask, rec *domain.RawRecord) {
	prospect, err := d.pipe.Process(rec)
	if err != nil {
		d.log.WarnObj("record dropped by pipeline", "record_meta", map[string]any{
			"task_id":  task.ID,
			"platform": task.Platform,
			"error":    err.Error(),
		})
		return
	}

	if err := d.store.SaveProspect(prospect); err != nil {
		d.log.ErrorObj("prospect archive failed", "storage_error", map[string]any{
			"task_id": task.ID,
			"error":   err.Error(),
		})
	}
	if err := d.store.MarkTarget(task.Platform, task.Target); err != nil {
		d.log.WarnObj("target dedup mark failed", "storage_error", map[string]any{
			"task_id": task.ID,
			"error":   err.Error(),
		})
	}

	evt := publishers.NewEvent(task.Platform, task.Target, *prospect)
	delivered, err := d.fanout.Publish(ctx, evt)
	if err != nil {
		d.log.ErrorObj("prospect publish partially failed", "publish_error", map[string]any{
			"task_id":   task.ID,
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
	d.sink.RecordMetric("prospects_published_total", float64(delivered), map[string]string{
		"platform": task.Platform,
	})
}

// ProspectFor returns the archived prospect for a finished task.
func (d *Discovery) ProspectFor(taskID string) (*domain.Prospect, bool, error) {
	return d.store.Prospect(taskID)
}

// TaskStatus returns the lifecycle snapshot of a task.
func (d *Discovery) TaskStatus(id string) (domain.ScrapeTask, bool) {
	return d.tasks.Status(id)
}

// Summary aggregates task lifecycle counts and scheduler depth.
func (d *Discovery) Summary() (tasks.Summary, scheduler.Snapshot) {
	return d.tasks.Summarize(), d.sched.Status()
}

// closeStore safely closes the storage backend, logging any errors encountered.
func (d *Discovery) closeStore() {
	if d == nil || d.store == nil {
		return
	}
	if err := d.store.Close(); err != nil {
		d.log.ErrorObj("storage close failed", "error", err)
	}
}

// weekdays converts config day numbers (0 = Sunday) into time.Weekday.
func weekdays(days []int) []time.Weekday {
	if len(days) == 0 {
		return nil
	}
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			continue
		}
		out = append(out, time.Weekday(d))
	}
	return out
}
