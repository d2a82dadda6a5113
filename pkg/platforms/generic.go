package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/scoutline-hq/prospect-discovery/internal/domain"
	"github.com/scoutline-hq/prospect-discovery/internal/logger"
	"github.com/scoutline-hq/prospect-discovery/internal/proxy"
	"github.com/scoutline-hq/prospect-discovery/internal/ratelimit"
	"github.com/scoutline-hq/prospect-discovery/pkg/httpclient"
)

// PlatformTypeGeneric serves any platform whose data is reachable with a
// templated GET and an html or json response.
const PlatformTypeGeneric = "generic"

const (
	maxBodyBytes      = 1 << 20 // cap parsed bodies at 1MiB
	defaultRetryAfter = 60 * time.Second
	targetPlaceholder = "{target}"
)

// GenericAdapter executes config-driven fetches: rate limit, proxy
// selection, templated GET, throttle handling and payload extraction.
type GenericAdapter struct {
	limiter *ratelimit.Limiter
	proxies *proxy.Manager
	timeout time.Duration
	log     logger.Logger

	mu      sync.Mutex
	clients map[string]HTTPClient

	clientFor func(timeout time.Duration, proxyURL string) HTTPClient
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewGenericAdapter builds the shared config-driven adapter.
func NewGenericAdapter(limiter *ratelimit.Limiter, proxies *proxy.Manager, timeout time.Duration, log logger.Logger) *GenericAdapter {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &GenericAdapter{
		limiter: limiter,
		proxies: proxies,
		timeout: timeout,
		log:     log,
		clients: make(map[string]HTTPClient),
		clientFor: func(timeout time.Duration, proxyURL string) HTTPClient {
			return httpclient.NewRestyClientWithProxy(timeout, proxyURL)
		},
		now:   time.Now,
		sleep: sleepContext,
	}
}

func (a *GenericAdapter) ID() string { return PlatformTypeGeneric }

// Fetch retrieves the task's target through the platform config. Throttle
// responses (429) are absorbed here: the adapter honors Retry-After and
// tries again without surfacing an error, so throttling never consumes the
// task's retry budget.
func (a *GenericAdapter) Fetch(ctx context.Context, cfg Platform, task domain.ScrapeTask) (*domain.RawRecord, error) {
	if strings.TrimSpace(task.Target) == "" {
		return nil, fmt.Errorf("task %s has no target", task.ID)
	}
	if strings.TrimSpace(cfg.SourceURL) == "" {
		return nil, fmt.Errorf("platform %q source_url is empty", cfg.ID)
	}

	sourceURL := strings.ReplaceAll(cfg.SourceURL, targetPlaceholder, url.PathEscape(task.Target))
	headers := Headers(cfg)

	for {
		if err := a.limiter.Acquire(ctx, cfg.ID); err != nil {
			return nil, err
		}

		proxyURL := a.proxies.GetProxy(ctx, cfg.ID)
		resp, err := a.client(proxyURL).Get(ctx, sourceURL, headers)
		if err != nil {
			a.proxies.ReportFailure(cfg.ID)
			return nil, fmt.Errorf("fetch %s target: %w", cfg.ID, err)
		}

		if resp.StatusCode() == http.StatusTooManyRequests {
			wait := retryAfter(resp.Header("Retry-After"), a.now())
			a.log.WarnObj("platform throttled request", "throttle", map[string]any{
				"platform": cfg.ID,
				"task_id":  task.ID,
				"wait":     wait.String(),
			})
			if err := a.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		body := resp.Body()
		if resp.StatusCode() != http.StatusOK {
			a.proxies.ReportFailure(cfg.ID)
			return nil, fmt.Errorf("%s returned status %d body: %s", cfg.ID, resp.StatusCode(), responseSnippet(body))
		}
		a.proxies.ReportSuccess(cfg.ID)

		payload, err := a.extract(cfg, body, task)
		if err != nil {
			return nil, err
		}
		return domain.NewRawRecord(cfg.ID, payload, task.ID), nil
	}
}

func (a *GenericAdapter) client(proxyURL string) HTTPClient {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[proxyURL]; ok {
		return c
	}
	c := a.clientFor(a.timeout, proxyURL)
	a.clients[proxyURL] = c
	return c
}

func (a *GenericAdapter) extract(cfg Platform, body []byte, task domain.ScrapeTask) (map[string]any, error) {
	if len(body) > maxBodyBytes {
		body = body[:maxBodyBytes]
	}

	switch cfg.ResponseFormat {
	case "json":
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode %s json payload: %w", cfg.ID, err)
		}
		return payload, nil
	case "html":
		return parseProfileHTML(body, task.Target)
	default:
		return nil, fmt.Errorf("platform %q has unsupported response_format %q", cfg.ID, cfg.ResponseFormat)
	}
}

// parseProfileHTML pulls profile fields out of page metadata. OpenGraph tags
// are the most reliable cross-platform source; plain meta and title tags are
// the fallback.
func parseProfileHTML(body []byte, target string) (map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse profile html: %w", err)
	}

	name := firstNonEmpty(
		metaProperty(doc, "og:title"),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	bio := firstNonEmpty(
		metaProperty(doc, "og:description"),
		metaName(doc, "description"),
	)

	info := map[string]any{
		"username": target,
		"name":     name,
		"bio":      bio,
	}
	if image := metaProperty(doc, "og:image"); image != "" {
		info["profile_picture"] = image
	}
	if site := metaProperty(doc, "og:url"); site != "" {
		info["website"] = site
	}

	return map[string]any{"basic_info": info}, nil
}

func metaProperty(doc *goquery.Document, property string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First().Attr("content")
	return strings.TrimSpace(content)
}

func metaName(doc *goquery.Document, name string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).First().Attr("content")
	return strings.TrimSpace(content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// retryAfter interprets a Retry-After header as either delay seconds or an
// HTTP date; absent or malformed values get the default backoff.
func retryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 1 {
			secs = 1
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if wait := t.Sub(now); wait > 0 {
			return wait
		}
		return time.Second
	}
	return defaultRetryAfter
}

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
