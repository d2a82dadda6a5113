package proxy

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/scoutline-hq/prospect-discovery/internal/config"
	"github.com/scoutline-hq/prospect-discovery/internal/logger"
	"github.com/scoutline-hq/prospect-discovery/internal/monitoring"
)

// Package proxy assigns egress proxies to platforms and rotates them away
// from endpoints that start failing. An empty pool means direct connections.

// Prober checks that a proxy can reach the outside world.
type Prober interface {
	Probe(ctx context.Context, proxyURL string) error
}

// record tracks the health of one proxy in the shared pool. failures is the
// lifetime count feeding the reliability score; consecutive drives rotation
// and resets on success.
type record struct {
	url         string
	successes   int
	failures    int
	consecutive int
	lastUsed    time.Time
}

// score ranks a proxy by observed reliability. The +1 keeps fresh proxies
// from ranking above proven ones.
func (r *record) score() float64 {
	return float64(r.successes) / float64(r.successes+r.failures+1)
}

// Status is a read-only snapshot of one pool entry.
type Status struct {
	URL       string    `json:"url"`
	Successes int       `json:"successes"`
	Failures  int       `json:"failures"`
	LastUsed  time.Time `json:"last_used"`
}

// Manager owns the proxy pool and remembers which proxy each platform last
// used so success and failure reports land on the right entry.
type Manager struct {
	mu        sync.Mutex
	pool      []*record
	current   map[string]*record
	validated bool

	cfg    config.ProxyConfig
	prober Prober
	log    logger.Logger
	sink   monitoring.Sink

	now     func() time.Time
	randInt func(n int) int
}

// New builds a manager over the configured proxy list. The prober may be nil,
// in which case proxies are trusted without a connectivity check.
func New(cfg config.ProxyConfig, prober Prober, log logger.Logger, sink monitoring.Sink) *Manager {
	if log == nil {
		log = &logger.NopLogger{}
	}
	m := &Manager{
		current: make(map[string]*record),
		cfg:     cfg,
		prober:  prober,
		log:     log,
		sink:    monitoring.Ensure(sink),
		now:     time.Now,
		randInt: rand.Intn,
	}
	for _, url := range cfg.Proxies() {
		m.pool = append(m.pool, &record{url: url})
	}
	return m
}

// GetProxy selects a proxy for the platform. Selection runs on every call so
// a proxy used moments ago sits out its cool-down window before it is picked
// again. An empty string means no proxy is available and the caller should
// connect directly.
func (m *Manager) GetProxy(ctx context.Context, platform string) string {
	m.ensureValidated(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignLocked(platform)
}

// ReportSuccess records a successful request through the platform's proxy.
func (m *Manager) ReportSuccess(platform string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.current[platform]; ok {
		cur.successes++
		cur.consecutive = 0
	}
}

// ReportFailure records a failed request and rotates the platform to a new
// proxy once the consecutive failure threshold is reached.
func (m *Manager) ReportFailure(platform string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.current[platform]
	if !ok {
		return
	}
	cur.failures++
	cur.consecutive++
	if cur.consecutive < m.cfg.MaxFailures {
		return
	}

	m.log.WarnObj("rotating proxy after repeated failures", "proxy", map[string]any{
		"platform": platform,
		"url":      cur.url,
		"failures": cur.consecutive,
	})
	m.sink.RecordMetric("proxy_rotations_total", 1, map[string]string{"platform": platform})
	delete(m.current, platform)
	m.assignLocked(platform)
}

// CurrentProxy reports the proxy assigned to the platform, if any.
func (m *Manager) CurrentProxy(platform string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.current[platform]
	if !ok {
		return "", false
	}
	return cur.url, true
}

// PoolStatus snapshots the health of every proxy in the pool.
func (m *Manager) PoolStatus() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, 0, len(m.pool))
	for _, r := range m.pool {
		out = append(out, Status{
			URL:       r.url,
			Successes: r.successes,
			Failures:  r.failures,
			LastUsed:  r.lastUsed,
		})
	}
	return out
}

// assignLocked picks a proxy for the platform. Candidates outside the
// cooldown window are ranked by reliability and one of the top three is
// chosen at random to spread load. Callers must hold m.mu.
func (m *Manager) assignLocked(platform string) string {
	if len(m.pool) == 0 {
		return ""
	}

	now := m.now()
	cutoff := now.Add(-m.cfg.Cooldown)
	candidates := make([]*record, 0, len(m.pool))
	for _, r := range m.pool {
		if r.lastUsed.Before(cutoff) || r.lastUsed.IsZero() {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		candidates = append(candidates, m.pool...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score() > candidates[j].score()
	})

	top := len(candidates)
	if top > 3 {
		top = 3
	}
	chosen := candidates[m.randInt(top)]
	chosen.lastUsed = now
	m.current[platform] = chosen

	m.log.DebugObj("proxy assigned", "proxy", map[string]any{
		"platform": platform,
		"url":      chosen.url,
	})
	return chosen.url
}

// ensureValidated probes the pool once, dropping proxies that fail the
// connectivity check. Probing happens outside the manager lock.
func (m *Manager) ensureValidated(ctx context.Context) {
	m.mu.Lock()
	if m.validated || m.prober == nil || len(m.pool) == 0 {
		m.validated = true
		m.mu.Unlock()
		return
	}
	pool := make([]*record, len(m.pool))
	copy(pool, m.pool)
	m.mu.Unlock()

	alive := make([]*record, 0, len(pool))
	for _, r := range pool {
		if err := m.prober.Probe(ctx, r.url); err != nil {
			m.log.WarnObj("dropping unreachable proxy", "proxy", map[string]any{
				"url":   r.url,
				"error": err.Error(),
			})
			continue
		}
		alive = append(alive, r)
	}

	m.mu.Lock()
	if !m.validated {
		m.pool = alive
		m.validated = true
	}
	m.mu.Unlock()
}
