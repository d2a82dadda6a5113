package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyProber validates a proxy by fetching a known endpoint through it.
type RestyProber struct {
	probeURL string
	timeout  time.Duration
}

// NewRestyProber builds a prober against the given check URL.
func NewRestyProber(probeURL string, timeout time.Duration) *RestyProber {
	return &RestyProber{probeURL: probeURL, timeout: timeout}
}

func (p *RestyProber) Probe(ctx context.Context, proxyURL string) error {
	client := resty.New().
		SetProxy(proxyURL).
		SetTimeout(p.timeout)

	resp, err := client.R().SetContext(ctx).Get(p.probeURL)
	if err != nil {
		return fmt.Errorf("probe via %s: %w", proxyURL, err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("probe via %s: status %d", proxyURL, resp.StatusCode())
	}
	return nil
}
