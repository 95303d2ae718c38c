// Package metrics exposes Prometheus collectors for the extraction pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	attemptsTotal              *prometheus.CounterVec
	attemptDurationSeconds     *prometheus.HistogramVec
	qualityScore               prometheus.Histogram
	jobsPersistedTotal         *prometheus.CounterVec
	fetchRetriesTotal          prometheus.Counter
	robotsFallbackTotal        prometheus.Counter
	linksDiscoveredTotal       *prometheus.CounterVec
	runsTotal                  *prometheus.CounterVec
	runDurationSeconds         prometheus.Histogram
	runActive                  prometheus.Gauge
	politenessWaitSeconds      prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		attemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_attempts_total",
				Help: "Extraction attempts by terminal status.",
			},
			[]string{"status"},
		)

		attemptDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_attempt_duration_seconds",
				Help:    "Wall-clock time of extraction attempts, labeled by terminal status.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"status"},
		)

		qualityScore = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipeline_quality_score",
				Help:    "Distribution of quality scores computed for extracted jobs.",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
		)

		jobsPersistedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_jobs_persisted_total",
				Help: "Job persistence outcomes: created, duplicate or error.",
			},
			[]string{"outcome"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_fetch_retries_total",
				Help: "Fetch retries issued after transient failures.",
			},
		)

		robotsFallbackTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_robots_fallback_total",
				Help: "robots.txt probes that failed repeatedly and were treated as allow-all.",
			},
		)

		linksDiscoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_links_discovered_total",
				Help: "Job links discovered on source listing pages, labeled by site.",
			},
			[]string{"site"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scheduler_runs_total",
				Help: "Scheduled runs by outcome: completed, skipped or failed.",
			},
			[]string{"outcome"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scheduler_run_duration_seconds",
				Help:    "Duration of completed scheduled runs.",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
			},
		)

		runActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scheduler_run_active",
				Help: "1 while a scheduled run holds the guard in this process.",
			},
		)

		politenessWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "politeness_wait_seconds",
				Help:    "Time spent waiting on the politeness pacer before outbound requests.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAttempt records a finished extraction attempt.
func ObserveAttempt(status string, duration time.Duration) {
	Init()
	attemptsTotal.WithLabelValues(status).Inc()
	attemptDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveScore records a computed quality score.
func ObserveScore(score float64) {
	Init()
	qualityScore.Observe(score)
}

// ObservePersist records a job persistence outcome.
func ObservePersist(outcome string) {
	Init()
	jobsPersistedTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetchRetry counts a fetch retry.
func ObserveFetchRetry() {
	Init()
	fetchRetriesTotal.Inc()
}

// ObserveRobotsFallback counts a robots.txt allow-all fallback.
func ObserveRobotsFallback() {
	Init()
	robotsFallbackTotal.Inc()
}

// ObserveLinksDiscovered adds n discovered links for the listing page's site.
func ObserveLinksDiscovered(listingURL string, n int) {
	Init()
	linksDiscoveredTotal.WithLabelValues(SanitizeSite(listingURL)).Add(float64(n))
}

// ObserveRun records a scheduler run outcome. Duration is recorded only for
// runs that executed.
func ObserveRun(outcome string, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		runDurationSeconds.Observe(duration.Seconds())
	}
}

// SetRunActive flips the active-run gauge.
func SetRunActive(active bool) {
	Init()
	if active {
		runActive.Set(1)
		return
	}
	runActive.Set(0)
}

// ObservePolitenessWait records time spent waiting on the pacer.
func ObservePolitenessWait(d time.Duration) {
	Init()
	politenessWaitSeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
