package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://upsc.gov.in/path", "upsc.gov.in"},
		{"standard https", "https://UPSC.gov.in/path", "upsc.gov.in"},
		{"no scheme", "upsc.gov.in/path", "upsc.gov.in"},
		{"just host", "upsc.gov.in", "upsc.gov.in"},
		{"host with port", "upsc.gov.in:8080", "upsc.gov.in"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if attemptsTotal == nil || qualityScore == nil ||
		httpRequestsTotal == nil || runsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveHelpers(t *testing.T) {
	before := testutil.ToFloat64(attemptsTotalFor("review_required"))
	ObserveAttempt("review_required", 1500*time.Millisecond)
	if got := testutil.ToFloat64(attemptsTotalFor("review_required")); got != before+1 {
		t.Errorf("expected review_required attempts to grow by 1, got %f -> %f", before, got)
	}

	ObserveLinksDiscovered("https://SSC.nic.in/notices", 3)
	if got := testutil.ToFloat64(linksDiscoveredTotal.WithLabelValues("ssc.nic.in")); got < 3 {
		t.Errorf("expected at least 3 discovered links for ssc.nic.in, got %f", got)
	}

	SetRunActive(true)
	if got := testutil.ToFloat64(runActive); got != 1 {
		t.Errorf("expected active gauge 1, got %f", got)
	}
	SetRunActive(false)
	if got := testutil.ToFloat64(runActive); got != 0 {
		t.Errorf("expected active gauge 0, got %f", got)
	}
}

func attemptsTotalFor(status string) prometheus.Counter {
	Init()
	return attemptsTotal.WithLabelValues(status)
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://upsc.gov.in", "https://ssc.nic.in", "ftp://upsc.gov.in"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
