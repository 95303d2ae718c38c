package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/metrics"
)

// allowAllRobots is served when a portal's robots.txt cannot be read.
const allowAllRobots = "User-agent: *\nAllow: /"

var defaultRobotsBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsAwareTransport probes robots.txt with retries. Government portals
// often time out or 5xx on robots.txt while serving notices fine, so an
// unreadable file is treated as allow-all. Notice requests pass through once.
type robotsAwareTransport struct {
	base    http.RoundTripper
	logger  *zap.Logger
	backoff []time.Duration
}

func (t *robotsAwareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("robots transport: nil request")
	}
	if !strings.EqualFold(req.URL.Path, "/robots.txt") {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("roundtrip %s: %w", req.URL.Host, err)
		}
		return resp, nil
	}
	return t.probe(req)
}

func (t *robotsAwareTransport) probe(req *http.Request) (*http.Response, error) {
	backoff := t.backoff
	if backoff == nil {
		backoff = defaultRobotsBackoff
	}

	var lastErr error
	for attempt := 0; attempt <= len(backoff); attempt++ {
		if attempt > 0 {
			if err := wait(req.Context(), backoff[attempt-1]); err != nil {
				return nil, err
			}
		}
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		switch {
		case err == nil && resp.StatusCode < http.StatusInternalServerError:
			return resp, nil
		case err == nil:
			lastErr = fmt.Errorf("robots.txt returned HTTP %d", resp.StatusCode)
			_ = resp.Body.Close()
		case unstable(err):
			lastErr = err
		default:
			return nil, fmt.Errorf("robots.txt %s: %w", req.URL.Host, err)
		}
	}

	if t.logger != nil {
		t.logger.Warn("robots.txt unreadable; allowing all paths",
			zap.String("host", req.URL.Host), zap.Error(lastErr))
	}
	metrics.ObserveRobotsFallback()
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(allowAllRobots)),
		ContentLength: int64(len(allowAllRobots)),
		Header:        make(http.Header),
		Request:       req,
	}, nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("robots.txt backoff: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// unstable reports timeouts and stalled TLS handshakes.
func unstable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
