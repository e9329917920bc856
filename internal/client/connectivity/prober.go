package connectivity

import (
	"context"
	"time"
)

// HealthChecker is satisfied by remote.Client
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HTTPProber probes the remote store health endpoint
type HTTPProber struct {
	client  HealthChecker
	timeout time.Duration
}

// NewHTTPProber creates a prober; each probe is bounded by timeout
func NewHTTPProber(client HealthChecker, timeout time.Duration) *HTTPProber {
	return &HTTPProber{client: client, timeout: timeout}
}

// Probe implements Prober
func (p *HTTPProber) Probe(ctx context.Context) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.client.Health(ctx)
}
