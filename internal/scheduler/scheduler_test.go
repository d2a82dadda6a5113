package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/config"
	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"github.com/scoutline-hq/prospect-discovery/internal/tasks"
)

type recordingRunner struct {
	mu  sync.Mutex
	ran []string
	err error
}

func (r *recordingRunner) Run(_ context.Context, task domain.ScrapeTask) (*domain.RawRecord, error) {
	r.mu.Lock()
	r.ran = append(r.ran, task.ID)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return domain.NewRawRecord(task.Platform, map[string]any{"target": task.Target}, task.ID), nil
}

func newTestScheduler(t *testing.T, runner Runner, maxConcurrent int) (*Scheduler, *tasks.Manager, *time.Time) {
	t.Helper()
	tm := tasks.New(nil, nil)
	s := New(Options{
		Tasks:  tm,
		Runner: runner,
		Config: config.SchedulerConfig{
			MaxConcurrentTasks: maxConcurrent,
			PollInterval:       time.Second,
			DeferBackoff:       5 * time.Second,
		},
	})
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) // a Monday, midday
	s.now = func() time.Time { return now }
	return s, tm, &now
}

func TestBacklogOrdersCriticalFirst(t *testing.T) {
	base := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	var b backlog
	heap.Push(&b, &item{seq: 1, task: domain.ScrapeTask{
		ID: "low", Priority: domain.PriorityLow, ScheduledTime: base,
	}})
	heap.Push(&b, &item{seq: 2, task: domain.ScrapeTask{
		ID: "medium", Priority: domain.PriorityMedium, ScheduledTime: base.Add(time.Second),
	}})
	heap.Push(&b, &item{seq: 3, task: domain.ScrapeTask{
		ID: "critical", Priority: domain.PriorityCritical, ScheduledTime: base.Add(2 * time.Second),
	}})

	want := []string{"critical", "medium", "low"}
	for i, id := range want {
		it := heap.Pop(&b).(*item)
		if it.task.ID != id {
			t.Fatalf("pop %d: expected %s, got %s", i, id, it.task.ID)
		}
	}
}

func TestBacklogBreaksTiesByScheduledTimeThenInsertion(t *testing.T) {
	base := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	var b backlog
	heap.Push(&b, &item{seq: 1, task: domain.ScrapeTask{
		ID: "later", Priority: domain.PriorityHigh, ScheduledTime: base.Add(time.Minute),
	}})
	heap.Push(&b, &item{seq: 2, task: domain.ScrapeTask{
		ID: "first", Priority: domain.PriorityHigh, ScheduledTime: base,
	}})
	heap.Push(&b, &item{seq: 3, task: domain.ScrapeTask{
		ID: "second", Priority: domain.PriorityHigh, ScheduledTime: base,
	}})

	want := []string{"first", "second", "later"}
	for i, id := range want {
		it := heap.Pop(&b).(*item)
		if it.task.ID != id {
			t.Fatalf("pop %d: expected %s, got %s", i, id, it.task.ID)
		}
	}
}

func TestBacklogNextDueSkipsFutureHeapRoot(t *testing.T) {
	base := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	var b backlog
	heap.Push(&b, &item{seq: 1, task: domain.ScrapeTask{
		ID: "low-due", Priority: domain.PriorityLow, ScheduledTime: base.Add(-time.Second),
	}})
	heap.Push(&b, &item{seq: 2, task: domain.ScrapeTask{
		ID: "critical-later", Priority: domain.PriorityCritical, ScheduledTime: base.Add(8 * time.Minute),
	}})

	idx := b.nextDue(base)
	if idx < 0 || b[idx].task.ID != "low-due" {
		t.Fatalf("expected the due low task, got index %d", idx)
	}

	if idx := b.nextDue(base.Add(-time.Minute)); idx != -1 {
		t.Fatalf("expected nothing due, got index %d", idx)
	}
}

func TestOptimalTimeBaseDelays(t *testing.T) {
	s, _, nowPtr := newTestScheduler(t, &recordingRunner{}, 5)
	base := *nowPtr

	cases := []struct {
		priority domain.Priority
		want     time.Duration
	}{
		{domain.PriorityCritical, time.Minute},
		{domain.PriorityHigh, 5 * time.Minute},
		{domain.PriorityMedium, 30 * time.Minute},
		{domain.PriorityLow, time.Hour},
	}
	for _, c := range cases {
		if got := s.optimalTime("twitter", c.priority).Sub(base); got != c.want {
			t.Fatalf("%s: expected delay %v, got %v", c.priority, c.want, got)
		}
	}
}

func TestOptimalTimeAppliesPlatformPatterns(t *testing.T) {
	s, _, nowPtr := newTestScheduler(t, &recordingRunner{}, 5)
	base := *nowPtr // 12:00 on a Monday

	s.SetPatterns("peaky", Patterns{PeakHours: []int{12}})
	if got := s.optimalTime("peaky", domain.PriorityHigh).Sub(base); got != 450*time.Second {
		t.Fatalf("peak hour: expected 7m30s, got %v", got)
	}

	s.SetPatterns("quiet", Patterns{OffHours: []int{12}})
	if got := s.optimalTime("quiet", domain.PriorityHigh).Sub(base); got != 150*time.Second {
		t.Fatalf("off hour: expected 2m30s, got %v", got)
	}

	s.SetPatterns("busy", Patterns{BusyDays: []time.Weekday{time.Monday}})
	if got := s.optimalTime("busy", domain.PriorityHigh).Sub(base); got != 6*time.Minute {
		t.Fatalf("busy day: expected 6m, got %v", got)
	}
}

func TestDispatchExecutesDueTasksAndFeedsRecords(t *testing.T) {
	runner := &recordingRunner{}
	s, tm, nowPtr := newTestScheduler(t, runner, 5)

	var gotRecords []*domain.RawRecord
	var mu sync.Mutex
	s.onRecord = func(_ context.Context, _ domain.ScrapeTask, rec *domain.RawRecord) {
		mu.Lock()
		gotRecords = append(gotRecords, rec)
		mu.Unlock()
	}

	id, err := s.Submit(domain.DiscoveryRequest{
		Platform: "twitter", Target: "someone", PriorityName: "critical",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Not due yet: critical tasks wait their one minute base delay.
	s.dispatchDue(context.Background())
	s.wg.Wait()
	if len(runner.ran) != 0 {
		t.Fatal("task executed before its scheduled time")
	}

	*nowPtr = nowPtr.Add(2 * time.Minute)
	s.dispatchDue(context.Background())
	s.wg.Wait()

	if len(runner.ran) != 1 || runner.ran[0] != id {
		t.Fatalf("expected task %s to run, got %v", id, runner.ran)
	}
	got, ok := tm.Status(id)
	if !ok || got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed task, got %+v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(gotRecords) != 1 || gotRecords[0].Metadata.TaskID != id {
		t.Fatalf("expected one record for %s, got %+v", id, gotRecords)
	}
}

func TestDispatchRunsDueWorkBehindFutureCriticalTask(t *testing.T) {
	runner := &recordingRunner{}
	s, tm, nowPtr := newTestScheduler(t, runner, 5)

	lowID, err := s.Submit(domain.DiscoveryRequest{
		Platform: "twitter", Target: "backfill", PriorityName: "low",
	})
	if err != nil {
		t.Fatalf("submit low: %v", err)
	}

	// The low task comes due, then a critical task lands with a scheduled
	// time still in the future. The critical entry sits at the heap root
	// but must not hold back work that is already due.
	*nowPtr = nowPtr.Add(61 * time.Minute)
	criticalID, err := s.Submit(domain.DiscoveryRequest{
		Platform: "twitter", Target: "breaking", PriorityName: "critical",
	})
	if err != nil {
		t.Fatalf("submit critical: %v", err)
	}

	s.dispatchDue(context.Background())
	s.wg.Wait()

	if len(runner.ran) != 1 || runner.ran[0] != lowID {
		t.Fatalf("expected due task %s to run, got %v", lowID, runner.ran)
	}
	if got, _ := tm.Status(criticalID); got.Status != domain.StatusScheduled {
		t.Fatalf("future critical task should stay scheduled, got %+v", got)
	}
}

type deadlineRunner struct {
	hasDeadline bool
}

func (r *deadlineRunner) Run(ctx context.Context, task domain.ScrapeTask) (*domain.RawRecord, error) {
	_, r.hasDeadline = ctx.Deadline()
	return domain.NewRawRecord(task.Platform, nil, task.ID), nil
}

func TestExecuteBoundsRunnerByTaskTimeout(t *testing.T) {
	runner := &deadlineRunner{}
	s, tm, nowPtr := newTestScheduler(t, runner, 5)

	id, err := s.Submit(domain.DiscoveryRequest{
		Platform: "twitter", Target: "someone", PriorityName: "critical",
		Timeout: time.Minute,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	*nowPtr = nowPtr.Add(2 * time.Minute)
	s.dispatchDue(context.Background())
	s.wg.Wait()

	if !runner.hasDeadline {
		t.Fatal("runner context carried no deadline despite the task timeout")
	}
	if got, _ := tm.Status(id); got.Status != domain.StatusCompleted {
		t.Fatalf("expected completed task, got %+v", got)
	}
}

type blockingRunner struct {
	started chan string
	release chan struct{}
}

func (r *blockingRunner) Run(_ context.Context, task domain.ScrapeTask) (*domain.RawRecord, error) {
	r.started <- task.ID
	<-r.release
	return domain.NewRawRecord(task.Platform, nil, task.ID), nil
}

func TestDispatchDefersBeyondConcurrencyCap(t *testing.T) {
	runner := &blockingRunner{
		started: make(chan string, 3),
		release: make(chan struct{}),
	}
	s, _, nowPtr := newTestScheduler(t, runner, 2)

	for i := 0; i < 3; i++ {
		if _, err := s.Submit(domain.DiscoveryRequest{
			Platform: "twitter", Target: "someone", PriorityName: "critical",
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	*nowPtr = nowPtr.Add(2 * time.Minute)
	s.dispatchDue(context.Background())

	<-runner.started
	<-runner.started
	if st := s.Status(); st.Pending != 1 {
		t.Fatalf("expected one deferred task in backlog, got %+v", st)
	}

	close(runner.release)
	s.wg.Wait()
}

func TestFailedRunRequeuesWithRetry(t *testing.T) {
	runner := &recordingRunner{err: errors.New("fetch blocked")}
	s, tm, nowPtr := newTestScheduler(t, runner, 5)

	id, err := s.Submit(domain.DiscoveryRequest{
		Platform: "linkedin", Target: "someone", PriorityName: "critical",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	*nowPtr = nowPtr.Add(2 * time.Minute)
	s.dispatchDue(context.Background())
	s.wg.Wait()

	got, ok := tm.Status(id)
	if !ok || got.Status != domain.StatusScheduled || got.RetryCount != 1 {
		t.Fatalf("expected rescheduled task with one retry, got %+v", got)
	}
	if st := s.Status(); st.Pending != 1 {
		t.Fatalf("expected task back on backlog, got %+v", st)
	}
}

func TestCancelRemovesScheduledTask(t *testing.T) {
	s, tm, _ := newTestScheduler(t, &recordingRunner{}, 5)

	id, err := s.Submit(domain.DiscoveryRequest{
		Platform: "twitter", Target: "someone",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if !s.Cancel(id) {
		t.Fatal("expected cancel to succeed for a scheduled task")
	}
	if st := s.Status(); st.Pending != 0 {
		t.Fatalf("backlog not empty after cancel: %+v", st)
	}
	got, ok := tm.Status(id)
	if !ok || got.Status != domain.StatusFailed {
		t.Fatalf("expected archived cancelled task, got %+v", got)
	}
	if s.Cancel(id) {
		t.Fatal("cancelling twice should fail")
	}
}
