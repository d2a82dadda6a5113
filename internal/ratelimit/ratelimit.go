package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/monitoring"
)

// Package ratelimit admits platform requests against sliding
// minute/hour/day windows. Saturated callers are delayed, never rejected.

// Limits caps requests per platform over the three tracked windows.
type Limits struct {
	PerMinute int `json:"per_minute" yaml:"per_minute"`
	PerHour   int `json:"per_hour" yaml:"per_hour"`
	PerDay    int `json:"per_day" yaml:"per_day"`
}

// GenericPlatform is the fallback key for platforms without explicit limits.
const GenericPlatform = "generic"

// DefaultLimits returns the built-in per-platform quotas.
func DefaultLimits() map[string]Limits {
	return map[string]Limits{
		"linkedin":      {PerMinute: 100, PerHour: 1000, PerDay: 10000},
		"twitter":       {PerMinute: 300, PerHour: 3000, PerDay: 30000},
		"youtube":       {PerMinute: 60, PerHour: 1000, PerDay: 10000},
		"tiktok":        {PerMinute: 60, PerHour: 1000, PerDay: 10000},
		"instagram":     {PerMinute: 60, PerHour: 1000, PerDay: 10000},
		"reddit":        {PerMinute: 60, PerHour: 1000, PerDay: 10000},
		GenericPlatform: {PerMinute: 60, PerHour: 1000, PerDay: 10000},
	}
}

// Remaining reports quota headroom per window.
type Remaining struct {
	Minute int `json:"minute"`
	Hour   int `json:"hour"`
	Day    int `json:"day"`
}

// platformWindow is the request history for one platform. The mutex is the
// per-platform exclusive section: check, wait and record happen under it so
// two concurrent callers can never both observe capacity and both proceed.
type platformWindow struct {
	mu      sync.Mutex
	history []time.Time
}

// Limiter tracks request history per platform and delays callers that would
// exceed the configured windows.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*platformWindow
	limits  map[string]Limits
	sink    monitoring.Sink

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

// New builds a limiter with the given per-platform limits; missing platforms
// fall back to the generic quota.
func New(limits map[string]Limits, sink monitoring.Sink) *Limiter {
	merged := DefaultLimits()
	for platform, lim := range limits {
		merged[normalizeKey(platform)] = lim
	}
	return &Limiter{
		windows: make(map[string]*platformWindow),
		limits:  merged,
		sink:    monitoring.Ensure(sink),
		now:     time.Now,
		wait:    sleepContext,
	}
}

// SetLimits overrides the quota for one platform (e.g. from the platform
// registry file).
func (l *Limiter) SetLimits(platform string, lim Limits) {
	if lim.PerMinute <= 0 || lim.PerHour <= 0 || lim.PerDay <= 0 {
		return
	}
	l.mu.Lock()
	l.limits[normalizeKey(platform)] = lim
	l.mu.Unlock()
}

// Acquire blocks until a request for the platform is admitted. Saturation is
// handled with a single computed wait: the time until the oldest timestamp in
// the most restrictive saturated window falls out of that window.
func (l *Limiter) Acquire(ctx context.Context, platform string) error {
	win := l.windowFor(platform)
	lim := l.limitsFor(platform)

	win.mu.Lock()
	defer win.mu.Unlock()

	now := l.now()
	win.prune(now)

	if wait := saturationWait(win.history, lim, now); wait > 0 {
		l.sink.RecordMetric("rate_limit_wait_seconds", wait.Seconds(), map[string]string{
			"platform": platform,
		})
		if err := l.wait(ctx, wait); err != nil {
			return err
		}
		now = l.now()
		win.prune(now)
	}

	win.history = append(win.history, now)
	return nil
}

// Remaining returns the unused quota per window for a platform.
func (l *Limiter) Remaining(platform string) Remaining {
	win := l.windowFor(platform)
	lim := l.limitsFor(platform)

	win.mu.Lock()
	defer win.mu.Unlock()

	now := l.now()
	win.prune(now)

	return Remaining{
		Minute: lim.PerMinute - countSince(win.history, now.Add(-time.Minute)),
		Hour:   lim.PerHour - countSince(win.history, now.Add(-time.Hour)),
		Day:    lim.PerDay - countSince(win.history, now.Add(-24*time.Hour)),
	}
}

// Reset clears tracked history for one platform.
func (l *Limiter) Reset(platform string) {
	win := l.windowFor(platform)
	win.mu.Lock()
	win.history = nil
	win.mu.Unlock()
}

// ResetAll clears tracked history for every platform.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, win := range l.windows {
		win.mu.Lock()
		win.history = nil
		win.mu.Unlock()
	}
}

func (l *Limiter) windowFor(platform string) *platformWindow {
	key := normalizeKey(platform)
	l.mu.Lock()
	defer l.mu.Unlock()
	win, ok := l.windows[key]
	if !ok {
		win = &platformWindow{}
		l.windows[key] = win
	}
	return win
}

func (l *Limiter) limitsFor(platform string) Limits {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limits[normalizeKey(platform)]; ok {
		return lim
	}
	return l.limits[GenericPlatform]
}

// prune drops history older than the widest tracked window (24h).
func (w *platformWindow) prune(now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	idx := 0
	for idx < len(w.history) && !w.history[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.history = append(w.history[:0], w.history[idx:]...)
	}
}

// saturationWait computes the delay required before one more request fits in
// every window. Zero means the request is admissible now.
func saturationWait(history []time.Time, lim Limits, now time.Time) time.Duration {
	checks := []struct {
		window time.Duration
		limit  int
	}{
		{time.Minute, lim.PerMinute},
		{time.Hour, lim.PerHour},
		{24 * time.Hour, lim.PerDay},
	}

	var wait time.Duration
	for _, c := range checks {
		cutoff := now.Add(-c.window)
		count := countSince(history, cutoff)
		if count < c.limit {
			continue
		}
		oldest, ok := oldestSince(history, cutoff)
		if !ok {
			continue
		}
		if w := c.window - now.Sub(oldest); w > wait {
			wait = w
		}
	}
	return wait
}

func countSince(history []time.Time, cutoff time.Time) int {
	n := 0
	for _, t := range history {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

func oldestSince(history []time.Time, cutoff time.Time) (time.Time, bool) {
	for _, t := range history {
		if t.After(cutoff) {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeKey(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// sleepContext waits for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
