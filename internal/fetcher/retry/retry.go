// Package retry wraps a Fetcher with bounded, jittered exponential backoff.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
	"github.com/JakeFAU/govjobs-pipeline/internal/metrics"
)

// Policy decides whether and when a failed fetch is retried.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultPolicy retries twice starting at 500ms, capped at 5s.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// ShouldRetry reports whether err is transient: network failures, timeouts,
// 429 and 5xx. Malformed URLs, other 4xx and cancellation are final.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var malformed *jobs.MalformedURLError
	if errors.As(err, &malformed) {
		return false
	}
	var fetchErr *jobs.FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
		return fetchErr.StatusCode == http.StatusTooManyRequests || fetchErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// Backoff returns the wait before retry number attempt (zero based): half of
// the exponential delay plus up to the same again in random jitter.
func (p Policy) Backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay/2) + randomJitter(time.Duration(delay)/2)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// Fetcher decorates another Fetcher with retries.
type Fetcher struct {
	inner  jobs.Fetcher
	policy Policy
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewFetcher wraps inner with policy.
func NewFetcher(inner jobs.Fetcher, policy Policy, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{inner: inner, policy: policy, logger: logger.Named("retry"), sleep: sleepContext}
}

// Fetch calls the wrapped fetcher, retrying transient failures.
func (f *Fetcher) Fetch(ctx context.Context, url string) (jobs.Page, error) {
	for attempt := 0; ; attempt++ {
		page, err := f.inner.Fetch(ctx, url)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil || !f.policy.ShouldRetry(err, attempt) {
			return jobs.Page{}, err
		}
		delay := f.policy.Backoff(attempt)
		f.logger.Warn("Retrying fetch after transient error",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", f.policy.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		metrics.ObserveFetchRetry()
		if serr := f.sleep(ctx, delay); serr != nil {
			return jobs.Page{}, fmt.Errorf("retry canceled: %w", err)
		}
	}
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
