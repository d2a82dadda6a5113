package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/config"
	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"github.com/scoutline-hq/prospect-discovery/internal/logger"
	"github.com/scoutline-hq/prospect-discovery/internal/monitoring"
	"github.com/scoutline-hq/prospect-discovery/internal/tasks"
)

// Package scheduler decides when discovery tasks run. Submissions get an
// optimal execution time derived from priority and platform activity
// patterns; a dispatch loop pops due work under a concurrency cap.

// Runner executes one scrape task and returns its raw record.
type Runner interface {
	Run(ctx context.Context, task domain.ScrapeTask) (*domain.RawRecord, error)
}

// Patterns describes when a platform is busy. Peak hours push work out,
// off hours pull it in, busy weekdays add a smaller penalty.
type Patterns struct {
	PeakHours []int          `yaml:"peak_hours"`
	OffHours  []int          `yaml:"off_hours"`
	BusyDays  []time.Weekday `yaml:"busy_days"`
}

// Snapshot reports scheduler state for monitoring.
type Snapshot struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
}

// Scheduler owns the pending backlog and the dispatch loop.
type Scheduler struct {
	mu       sync.Mutex
	backlog  backlog
	seq      uint64
	patterns map[string]Patterns
	running  int

	tasks    *tasks.Manager
	runner   Runner
	onRecord func(ctx context.Context, task domain.ScrapeTask, rec *domain.RawRecord)

	sem          chan struct{}
	pollInterval time.Duration
	deferBackoff time.Duration

	log  logger.Logger
	sink monitoring.Sink
	now  func() time.Time
	wg   sync.WaitGroup
}

// Options wires the scheduler's collaborators.
type Options struct {
	Tasks  *tasks.Manager
	Runner Runner
	Config config.SchedulerConfig
	Log    logger.Logger
	Sink   monitoring.Sink

	// OnRecord is invoked for every successfully fetched record, typically
	// feeding the processing pipeline. May be nil.
	OnRecord func(ctx context.Context, task domain.ScrapeTask, rec *domain.RawRecord)
}

// New builds a scheduler and hooks task retries back into the backlog.
func New(opts Options) *Scheduler {
	if opts.Log == nil {
		opts.Log = &logger.NopLogger{}
	}
	maxConcurrent := opts.Config.MaxConcurrentTasks
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	pollInterval := opts.Config.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	deferBackoff := opts.Config.DeferBackoff
	if deferBackoff <= 0 {
		deferBackoff = 5 * time.Second
	}

	s := &Scheduler{
		patterns:     make(map[string]Patterns),
		tasks:        opts.Tasks,
		runner:       opts.Runner,
		onRecord:     opts.OnRecord,
		sem:          make(chan struct{}, maxConcurrent),
		pollInterval: pollInterval,
		deferBackoff: deferBackoff,
		log:          opts.Log,
		sink:         monitoring.Ensure(opts.Sink),
		now:          time.Now,
	}
	opts.Tasks.SetRetryHook(s.requeue)
	return s
}

// SetPatterns registers the activity pattern for one platform.
func (s *Scheduler) SetPatterns(platform string, p Patterns) {
	s.mu.Lock()
	s.patterns[platform] = p
	s.mu.Unlock()
}

// Submit creates a task from the request, computes its optimal execution
// time and places it on the backlog. The task id is returned for tracking.
func (s *Scheduler) Submit(req domain.DiscoveryRequest) (string, error) {
	req = req.Normalize()
	at := s.optimalTime(req.Platform, req.Priority)

	task, err := s.tasks.Create(req, at)
	if err != nil {
		return "", err
	}
	if err := s.tasks.MarkScheduled(task.ID, at); err != nil {
		return "", err
	}
	task.Status = domain.StatusScheduled

	s.push(task)
	s.log.InfoObj("task scheduled", "task", map[string]any{
		"task_id":  task.ID,
		"platform": task.Platform,
		"priority": task.Priority.String(),
		"at":       at,
	})
	return task.ID, nil
}

// Cancel removes a scheduled task from the backlog. Running tasks are not
// cancellable.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	removed := false
	for i, it := range s.backlog {
		if it.task.ID == id {
			heap.Remove(&s.backlog, i)
			removed = true
			break
		}
	}
	s.mu.Unlock()

	if !removed {
		return false
	}
	if err := s.tasks.Cancel(id); err != nil {
		s.log.WarnObj("cancelled task not tracked", "task_id", id)
	}
	return true
}

// Run drives the dispatch loop until the context is cancelled, then waits
// for in-flight tasks to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// Status snapshots backlog depth and in-flight count.
func (s *Scheduler) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Pending: len(s.backlog), Running: s.running}
}

// dispatchDue removes every due task and hands it to a worker slot. When all
// slots are busy the remaining due work is pushed back with a short backoff
// instead of blocking the loop.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	now := s.now()
	for {
		s.mu.Lock()
		idx := s.backlog.nextDue(now)
		if idx < 0 {
			s.mu.Unlock()
			return
		}
		it := heap.Remove(&s.backlog, idx).(*item)
		s.mu.Unlock()

		select {
		case s.sem <- struct{}{}:
		default:
			it.task.ScheduledTime = now.Add(s.deferBackoff)
			_ = s.tasks.MarkScheduled(it.task.ID, it.task.ScheduledTime)
			s.push(it.task)
			s.sink.RecordMetric("scheduler_deferrals_total", 1, map[string]string{
				"platform": it.task.Platform,
			})
			return
		}

		s.mu.Lock()
		s.running++
		s.mu.Unlock()
		s.wg.Add(1)
		go s.execute(ctx, it.task)
	}
}

// execute runs one task end to end: dependency gate, fetch, lifecycle
// bookkeeping and the record hook.
func (s *Scheduler) execute(ctx context.Context, task domain.ScrapeTask) {
	defer func() {
		<-s.sem
		s.mu.Lock()
		s.running--
		s.mu.Unlock()
		s.wg.Done()
	}()

	started, err := s.tasks.Start(task.ID)
	if err != nil {
		// Terminally failed dependency, a stale duplicate of a running
		// task, or an already archived task. Nothing to run.
		return
	}
	if !started {
		task.ScheduledTime = s.now().Add(s.deferBackoff)
		_ = s.tasks.MarkScheduled(task.ID, task.ScheduledTime)
		s.push(task)
		return
	}

	startedAt := s.now()
	runCtx := ctx
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}
	rec, err := s.runner.Run(runCtx, task)
	if err != nil {
		_, _ = s.tasks.Fail(task.ID, err)
		return
	}

	s.sink.RecordMetric("task_duration_seconds", s.now().Sub(startedAt).Seconds(), map[string]string{
		"platform": task.Platform,
	})
	if err := s.tasks.Complete(task.ID); err != nil {
		// The timeout timer force-failed this attempt first.
		return
	}
	if s.onRecord != nil {
		s.onRecord(ctx, task, rec)
	}
}

// requeue puts a retried task back on the backlog at its next attempt time.
func (s *Scheduler) requeue(task domain.ScrapeTask) {
	s.push(task)
}

func (s *Scheduler) push(task domain.ScrapeTask) {
	s.mu.Lock()
	s.seq++
	heap.Push(&s.backlog, &item{task: task, seq: s.seq})
	s.mu.Unlock()
}

// baseDelay maps priority to the default scheduling delay.
func baseDelay(p domain.Priority) time.Duration {
	switch p {
	case domain.PriorityCritical:
		return time.Minute
	case domain.PriorityHigh:
		return 5 * time.Minute
	case domain.PriorityLow:
		return time.Hour
	default:
		return 30 * time.Minute
	}
}

// optimalTime derives when a submission should run: the priority's base
// delay stretched during peak hours (x1.5) and busy weekdays (x1.2), and
// shortened during off hours (x0.5).
func (s *Scheduler) optimalTime(platform string, p domain.Priority) time.Time {
	now := s.now()
	delay := float64(baseDelay(p))

	s.mu.Lock()
	pattern, ok := s.patterns[platform]
	s.mu.Unlock()

	if ok {
		hour := now.Hour()
		if containsInt(pattern.PeakHours, hour) {
			delay *= 1.5
		} else if containsInt(pattern.OffHours, hour) {
			delay *= 0.5
		}
		for _, d := range pattern.BusyDays {
			if d == now.Weekday() {
				delay *= 1.2
				break
			}
		}
	}
	return now.Add(time.Duration(delay))
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
