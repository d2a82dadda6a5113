package tasks

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"github.com/scoutline-hq/prospect-discovery/internal/logger"
	"github.com/scoutline-hq/prospect-discovery/internal/monitoring"
)

// Package tasks owns the scrape task lifecycle: creation, dependency gating,
// timeout enforcement, retry bookkeeping and the archive of finished work.

var (
	ErrNotFound       = errors.New("task not found")
	ErrNotRunning     = errors.New("task is not running")
	ErrAlreadyRunning = errors.New("task is already running")
)

// Result is the archived outcome of a finished task.
type Result struct {
	Task       domain.ScrapeTask `json:"task"`
	Error      string            `json:"error,omitempty"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Outcome reports what Fail decided for a task.
type Outcome struct {
	Terminal    bool      `json:"terminal"`
	NextAttempt time.Time `json:"next_attempt,omitempty"`
}

// Summary aggregates lifecycle counts for monitoring.
type Summary struct {
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Manager tracks active tasks and archives finished ones. All state changes
// go through the manager so status transitions stay consistent under
// concurrent scheduler workers.
type Manager struct {
	mu       sync.Mutex
	active   map[string]*domain.ScrapeTask
	archived map[string]*Result
	timers   map[string]*time.Timer

	// onRetry is invoked (outside the lock) when a failed task has retry
	// budget left and was rescheduled.
	onRetry func(task domain.ScrapeTask)

	log  logger.Logger
	sink monitoring.Sink
	now  func() time.Time
}

// New builds an empty task manager.
func New(log logger.Logger, sink monitoring.Sink) *Manager {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Manager{
		active:   make(map[string]*domain.ScrapeTask),
		archived: make(map[string]*Result),
		timers:   make(map[string]*time.Timer),
		log:      log,
		sink:     monitoring.Ensure(sink),
		now:      time.Now,
	}
}

// SetRetryHook registers the callback fired when a failed task is
// rescheduled for another attempt.
func (m *Manager) SetRetryHook(fn func(task domain.ScrapeTask)) {
	m.mu.Lock()
	m.onRetry = fn
	m.mu.Unlock()
}

// Create registers a new task from a discovery request and returns a copy.
func (m *Manager) Create(req domain.DiscoveryRequest, scheduledTime time.Time) (domain.ScrapeTask, error) {
	req = req.Normalize()
	if req.Platform == "" {
		return domain.ScrapeTask{}, fmt.Errorf("create task: platform is required")
	}
	if req.Target == "" {
		return domain.ScrapeTask{}, fmt.Errorf("create task: target is required")
	}

	task := &domain.ScrapeTask{
		ID:            uuid.NewString(),
		Platform:      req.Platform,
		Target:        req.Target,
		Type:          req.TargetType,
		Priority:      req.Priority,
		ScheduledTime: scheduledTime,
		MaxRetries:    domain.DefaultMaxRetries,
		Dependencies:  append([]string(nil), req.Dependencies...),
		Timeout:       req.Timeout,
		Status:        domain.StatusCreated,
		CreatedAt:     m.now(),
	}

	m.mu.Lock()
	m.active[task.ID] = task
	m.mu.Unlock()

	m.log.InfoObj("task created", "task", task)
	m.sink.RecordMetric("tasks_created_total", 1, map[string]string{"platform": task.Platform})
	return *task, nil
}

// MarkScheduled transitions a created task into the scheduled state.
func (m *Manager) MarkScheduled(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.active[id]
	if !ok {
		return ErrNotFound
	}
	task.Status = domain.StatusScheduled
	task.ScheduledTime = at
	return nil
}

// Start attempts to move a task into the running state. It returns false
// without error when an unfinished dependency blocks the task; the caller is
// expected to defer and retry. A dependency that failed terminally fails this
// task as well.
func (m *Manager) Start(id string) (bool, error) {
	m.mu.Lock()
	task, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return false, ErrNotFound
	}
	if task.Status == domain.StatusRunning {
		m.mu.Unlock()
		return false, ErrAlreadyRunning
	}

	for _, dep := range task.Dependencies {
		if res, done := m.archived[dep]; done {
			if res.Task.Status == domain.StatusFailed {
				// A terminally failed dependency can never complete, so
				// retrying this task is pointless. Fail it outright.
				reason := fmt.Errorf("dependency %s failed", dep)
				task.Status = domain.StatusFailed
				delete(m.active, id)
				m.archived[id] = &Result{Task: *task, Error: reason.Error(), FinishedAt: m.now()}
				m.mu.Unlock()
				m.sink.LogError("task failed permanently", "dependency_failure", "tasks", map[string]any{
					"task_id":    id,
					"dependency": dep,
				})
				return false, reason
			}
			continue
		}
		// Dependency still pending (or unknown): the task stays gated.
		m.mu.Unlock()
		return false, nil
	}

	task.Status = domain.StatusRunning
	task.Progress = 0
	if task.Timeout > 0 {
		taskID := task.ID
		m.timers[taskID] = time.AfterFunc(task.Timeout, func() {
			m.timeoutTask(taskID)
		})
	}
	m.mu.Unlock()

	m.log.DebugObj("task started", "task_id", id)
	return true, nil
}

// UpdateProgress sets the completion fraction of a running task, clamped to
// [0, 1]. Progress on non-running tasks is rejected.
func (m *Manager) UpdateProgress(id string, progress float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.active[id]
	if !ok {
		return ErrNotFound
	}
	if task.Status != domain.StatusRunning {
		return ErrNotRunning
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	task.Progress = progress
	return nil
}

// Complete archives a running task as successfully finished. A task whose
// attempt already ended (timed out, force-failed) is not completable.
func (m *Manager) Complete(id string) error {
	m.mu.Lock()
	task, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if task.Status != domain.StatusRunning {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.stopTimerLocked(id)
	task.Status = domain.StatusCompleted
	task.Progress = 1
	delete(m.active, id)
	m.archived[id] = &Result{Task: *task, FinishedAt: m.now()}
	m.mu.Unlock()

	m.log.InfoObj("task completed", "task_id", id)
	m.sink.RecordMetric("tasks_completed_total", 1, map[string]string{"platform": task.Platform})
	return nil
}

// Fail records the failure of a running attempt. With retry budget left the
// task is put back into the scheduled state with exponential backoff and the
// retry hook fires; otherwise it is archived as terminally failed. A second
// report for the same attempt (the timeout timer and the worker can race) is
// rejected so one attempt never burns retry budget twice.
func (m *Manager) Fail(id string, cause error) (Outcome, error) {
	m.mu.Lock()
	task, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return Outcome{}, ErrNotFound
	}
	if task.Status != domain.StatusRunning {
		m.mu.Unlock()
		return Outcome{}, ErrNotRunning
	}
	m.stopTimerLocked(id)

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	if task.RetryCount < task.MaxRetries {
		backoff := time.Duration(1<<uint(task.RetryCount)) * time.Minute
		task.RetryCount++
		next := m.now().Add(backoff)
		task.Status = domain.StatusScheduled
		task.ScheduledTime = next
		task.Progress = 0
		snapshot := *task
		hook := m.onRetry
		m.mu.Unlock()

		m.log.WarnObj("task failed, rescheduling", "task", map[string]any{
			"task_id":      id,
			"retry_count":  snapshot.RetryCount,
			"next_attempt": next,
			"error":        reason,
		})
		m.sink.RecordMetric("tasks_retried_total", 1, map[string]string{"platform": snapshot.Platform})
		if hook != nil {
			hook(snapshot)
		}
		return Outcome{Terminal: false, NextAttempt: next}, nil
	}

	task.Status = domain.StatusFailed
	delete(m.active, id)
	m.archived[id] = &Result{Task: *task, Error: reason, FinishedAt: m.now()}
	m.mu.Unlock()

	m.sink.LogError("task failed permanently", "task_failure", "tasks", map[string]any{
		"task_id":  id,
		"platform": task.Platform,
		"error":    reason,
	})
	return Outcome{Terminal: true}, nil
}

// Cancel archives a task that has not started running. Running tasks cannot
// be cancelled; they either finish or time out.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.active[id]
	if !ok {
		return ErrNotFound
	}
	if task.Status == domain.StatusRunning {
		return fmt.Errorf("cannot cancel running task %s", id)
	}
	m.stopTimerLocked(id)
	task.Status = domain.StatusFailed
	delete(m.active, id)
	m.archived[id] = &Result{Task: *task, Error: "cancelled", FinishedAt: m.now()}
	return nil
}

// timeoutTask force-fails a task whose execution deadline elapsed.
func (m *Manager) timeoutTask(id string) {
	m.mu.Lock()
	task, ok := m.active[id]
	if !ok || task.Status != domain.StatusRunning {
		m.mu.Unlock()
		return
	}
	timeout := task.Timeout
	m.mu.Unlock()

	_, _ = m.Fail(id, fmt.Errorf("task timed out after %s", timeout))
}

// Status returns a snapshot of a task, active or archived.
func (m *Manager) Status(id string) (domain.ScrapeTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.active[id]; ok {
		return *task, true
	}
	if res, ok := m.archived[id]; ok {
		return res.Task, true
	}
	return domain.ScrapeTask{}, false
}

// ResultFor returns the archived result of a finished task.
func (m *Manager) ResultFor(id string) (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if res, ok := m.archived[id]; ok {
		return *res, true
	}
	return Result{}, false
}

// Summarize aggregates lifecycle counts across active and archived tasks.
func (m *Manager) Summarize() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{Active: len(m.active)}
	for _, res := range m.archived {
		switch res.Task.Status {
		case domain.StatusCompleted:
			s.Completed++
		case domain.StatusFailed:
			s.Failed++
		}
	}
	s.Total = s.Active + s.Completed + s.Failed
	return s
}

func (m *Manager) stopTimerLocked(id string) {
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
}
