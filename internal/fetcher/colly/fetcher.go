// Package collyfetcher implements the page Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

// DefaultUserAgent identifies requests as a desktop browser; several
// recruitment portals reject unfamiliar clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 10 << 20
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxBodyBytes  int
}

// Fetcher implements jobs.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// fetchState carries the outcome of one visit out of the colly callbacks.
type fetchState struct {
	page jobs.Page
	err  error
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("fetcher")

	c := colly.NewCollector(colly.Async(false))
	transport := &robotsAwareTransport{base: newHTTPTransport(), logger: logger}
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET using Colly. Non-2xx responses, network
// failures and malformed URLs are reported as *jobs.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (jobs.Page, error) {
	if err := jobs.ValidateURL(rawURL); err != nil {
		return jobs.Page{}, &jobs.FetchError{URL: rawURL, Err: err}
	}
	start := time.Now()
	state := &fetchState{}
	collector := f.buildCollector(ctx)
	f.configureCollectorHooks(collector, start, state)

	if err := f.runCollector(ctx, collector, rawURL, state); err != nil {
		return jobs.Page{}, err
	}
	f.logger.Debug("Fetched page",
		zap.String("url", rawURL),
		zap.Int("status", state.page.StatusCode),
		zap.Int("bytes", len(state.page.Body)),
		zap.Duration("duration", state.page.Duration),
	)
	return state.page, nil
}

func (f *Fetcher) buildCollector(ctx context.Context) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.MaxBodySize = f.cfg.MaxBodyBytes
	collector.Context = ctx
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.transport)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, start time.Time, state *fetchState) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-IN,en;q=0.9,hi;q=0.8")
	})

	hooks.OnResponse(func(r *colly.Response) {
		state.page = jobs.Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
		if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
			state.err = &jobs.FetchError{
				URL:        r.Request.URL.String(),
				StatusCode: r.StatusCode,
			}
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		fetchErr := &jobs.FetchError{Err: err}
		if r != nil {
			fetchErr.StatusCode = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				fetchErr.URL = r.Request.URL.String()
			}
		}
		state.err = fetchErr
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, rawURL string, state *fetchState) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return &jobs.FetchError{URL: rawURL, Err: fmt.Errorf("colly fetch canceled: %w", ctx.Err())}
	case err := <-done:
		if state.err != nil {
			var fetchErr *jobs.FetchError
			if errors.As(state.err, &fetchErr) && fetchErr.URL == "" {
				fetchErr.URL = rawURL
			}
			return state.err
		}
		if err != nil {
			return &jobs.FetchError{URL: rawURL, Err: fmt.Errorf("colly visit failed: %w", err)}
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
