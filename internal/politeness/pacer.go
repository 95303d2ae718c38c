// Package politeness spaces out outbound requests made during a crawl run.
package politeness

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/govjobs-pipeline/internal/metrics"
)

// Pacer enforces a minimum gap between consecutive outbound requests. The
// first request proceeds immediately.
type Pacer struct {
	limiter *rate.Limiter
	delay   time.Duration
}

// New builds a Pacer allowing one request per delay. A non-positive delay
// disables pacing.
func New(delay time.Duration) *Pacer {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Pacer{limiter: rate.NewLimiter(limit, 1), delay: delay}
}

// Delay returns the configured gap.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

// Wait blocks until the next request may be sent or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("politeness wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePolitenessWait(waited)
	}
	return nil
}
