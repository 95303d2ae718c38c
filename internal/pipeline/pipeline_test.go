package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/dedup"
	"github.com/JakeFAU/govjobs-pipeline/internal/extract"
	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
	"github.com/JakeFAU/govjobs-pipeline/internal/normalize"
	"github.com/JakeFAU/govjobs-pipeline/internal/storage/memory"
	"github.com/JakeFAU/govjobs-pipeline/internal/template"
)

const scenarioAPage = `<html><head><title>SSC</title></head><body>
<h1>SSC CGL Recruitment 2025 Notification</h1>
<p class="eligibility">Graduate</p>
<p>Last date for online application: 15-03-2025</p>
<p>Pay: ₹35,400</p>
</body></html>`

const scenarioBPage = `<html><head><title>Home</title></head><body><h1>Welcome</h1></body></html>`

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]jobs.Page
	errs  map[string]error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (jobs.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[url]; ok {
		return jobs.Page{}, err
	}
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	return jobs.Page{}, &jobs.FetchError{URL: url, StatusCode: http.StatusNotFound}
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%d", s.n), nil
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2025, 2, 20, 6, 0, 0, 0, time.UTC) }

type failingCreator struct{}

func (failingCreator) Create(context.Context, jobs.CanonicalJob, float64) (jobs.Job, bool, error) {
	return jobs.Job{}, false, errors.New("unique index unavailable")
}

type harness struct {
	orch    *Orchestrator
	fetcher *fakeFetcher
	logs    *memory.LogStore
	store   *memory.JobStore
}

func newHarness(t *testing.T, creator JobCreator) harness {
	t.Helper()
	ctx := context.Background()
	clock := fixedClock{}
	ids := &seqIDs{}

	registry := template.NewRegistry(memory.NewTemplateStore(), clock, zap.NewNop())
	require.NoError(t, registry.Seed(ctx, template.Builtins()))

	fetcher := &fakeFetcher{
		pages: map[string]jobs.Page{
			"https://ssc.nic.in/notice/cgl-2025": {URL: "https://ssc.nic.in/notice/cgl-2025", StatusCode: 200, Body: []byte(scenarioAPage)},
			"https://example.org/page":           {URL: "https://example.org/page", StatusCode: 200, Body: []byte(scenarioBPage)},
		},
		errs: map[string]error{},
	}
	store := memory.NewJobStore()
	if creator == nil {
		creator = dedup.New(store, ids, clock, zap.NewNop())
	}
	logs := memory.NewLogStore()
	orch := New(
		fetcher,
		registry,
		extract.New(extract.NewHeuristics(nil, nil), zap.NewNop()),
		normalize.New(clock, nil),
		creator,
		logs,
		ids,
		clock,
		Config{AutoPublishThreshold: 0.8},
		zap.NewNop(),
	)
	return harness{orch: orch, fetcher: fetcher, logs: logs, store: store}
}

func TestScenarioAAutoPublishes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.orch.ProcessURL(ctx, Request{URL: "https://ssc.nic.in/notice/cgl-2025", AutoPublish: true})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, jobs.LogStatusCompleted, res.Status)
	require.NotEmpty(t, res.JobID)
	require.InDelta(t, 0.9, res.Score, 1e-9)
	require.Equal(t, "Staff Selection Commission", res.Job.Department)
	require.Equal(t, jobs.DefaultLocation, res.Job.Location)
	require.Equal(t, "15/03/2025", res.Job.Deadline)

	entry, err := h.logs.Get(ctx, res.LogID)
	require.NoError(t, err)
	require.Equal(t, jobs.LogStatusCompleted, entry.Status)
	require.Equal(t, res.JobID, entry.JobID)
	require.Equal(t, "ssc", entry.TemplateID)
	require.Equal(t, jobs.SystemOperator, entry.Operator)
	require.NotNil(t, entry.FinishedAt)

	// A second crawl of the same notice reuses the stored job.
	again, err := h.orch.ProcessURL(ctx, Request{URL: "https://ssc.nic.in/notice/cgl-2025", AutoPublish: true})
	require.NoError(t, err)
	require.Equal(t, res.JobID, again.JobID)
	all, err := h.store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestHighScoreWithoutAutoPublishNeedsReview(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	res, err := h.orch.ProcessURL(context.Background(), Request{URL: "https://ssc.nic.in/notice/cgl-2025", Operator: "admin@portal"})
	require.NoError(t, err)
	require.Equal(t, jobs.LogStatusReviewRequired, res.Status)
	require.Empty(t, res.JobID)

	entry, err := h.logs.Get(context.Background(), res.LogID)
	require.NoError(t, err)
	require.Equal(t, "admin@portal", entry.Operator)
	require.Equal(t, "SSC CGL Recruitment 2025 Notification", entry.Extracted[jobs.FieldTitle])
}

func TestScenarioBLowScoreNeedsReview(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	res, err := h.orch.ProcessURL(context.Background(), Request{URL: "https://example.org/page", AutoPublish: true})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, jobs.LogStatusReviewRequired, res.Status)
	require.Empty(t, res.JobID)
	require.Less(t, res.Score, 0.8)
	require.Equal(t, jobs.PlaceholderTitle, res.Job.Title)
	require.Equal(t, jobs.DefaultDepartment, res.Job.Department)

	entry, err := h.logs.Get(context.Background(), res.LogID)
	require.NoError(t, err)
	require.Equal(t, jobs.LogStatusReviewRequired, entry.Status)
	require.Empty(t, entry.JobID)
	require.Equal(t, template.WildcardID, entry.TemplateID)
}

func TestScenarioCFetchFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	res, err := h.orch.ProcessURL(context.Background(), Request{URL: "https://ssc.nic.in/missing", AutoPublish: true})

	var fetchErr *jobs.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.False(t, res.Success)
	require.Equal(t, jobs.LogStatusFailed, res.Status)
	require.Contains(t, res.Error, "HTTP 404")

	entry, gerr := h.logs.Get(context.Background(), res.LogID)
	require.NoError(t, gerr)
	require.Equal(t, jobs.LogStatusFailed, entry.Status)
	require.Contains(t, entry.ErrorText, "HTTP 404")
	require.Empty(t, entry.JobID)

	all, lerr := h.store.List(context.Background(), 0)
	require.NoError(t, lerr)
	require.Empty(t, all)
}

func TestMalformedURLCreatesNoLog(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	res, err := h.orch.ProcessURL(context.Background(), Request{URL: "ssc dot nic dot in", AutoPublish: true})

	var malformed *jobs.MalformedURLError
	require.True(t, errors.As(err, &malformed))
	require.False(t, res.Success)
	require.Empty(t, res.LogID)
	require.Zero(t, h.fetcher.calls)

	entries, lerr := h.logs.List(context.Background(), jobs.LogFilter{})
	require.NoError(t, lerr)
	require.Empty(t, entries)
}

func TestPersistenceFailureDegradesToReview(t *testing.T) {
	t.Parallel()

	h := newHarness(t, failingCreator{})
	res, err := h.orch.ProcessURL(context.Background(), Request{URL: "https://ssc.nic.in/notice/cgl-2025", AutoPublish: true})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, jobs.LogStatusReviewRequired, res.Status)
	require.Empty(t, res.JobID)
	require.Contains(t, res.Error, "unique index unavailable")

	entry, gerr := h.logs.Get(context.Background(), res.LogID)
	require.NoError(t, gerr)
	require.Equal(t, jobs.LogStatusReviewRequired, entry.Status)
	require.Contains(t, entry.ErrorText, "unique index unavailable")
	require.NotEmpty(t, entry.Extracted)
}

func TestExplicitTemplateIsHonoured(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	res, err := h.orch.ProcessURL(context.Background(), Request{URL: "https://ssc.nic.in/notice/cgl-2025", TemplateID: "upsc"})
	require.NoError(t, err)
	entry, err := h.logs.Get(context.Background(), res.LogID)
	require.NoError(t, err)
	require.Equal(t, "upsc", entry.TemplateID)

	res, err = h.orch.ProcessURL(context.Background(), Request{URL: "https://ssc.nic.in/notice/cgl-2025", TemplateID: "nope"})
	require.NoError(t, err)
	entry, err = h.logs.Get(context.Background(), res.LogID)
	require.NoError(t, err)
	require.Equal(t, "ssc", entry.TemplateID)
}

func TestPublishReviewedEntry(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()
	res, err := h.orch.ProcessURL(ctx, Request{URL: "https://example.org/page"})
	require.NoError(t, err)
	require.Equal(t, jobs.LogStatusReviewRequired, res.Status)

	edited := jobs.RawExtraction{
		jobs.FieldTitle:         "Assistant Section Officer Recruitment",
		jobs.FieldDepartment:    "Example Board",
		jobs.FieldQualification: "Graduate",
	}
	job, err := h.orch.Publish(ctx, res.LogID, "reviewer@portal", edited)
	require.NoError(t, err)
	require.Equal(t, "Assistant Section Officer Recruitment", job.Title)

	entry, err := h.logs.Get(ctx, res.LogID)
	require.NoError(t, err)
	require.Equal(t, jobs.LogStatusReviewRequired, entry.Status)
	require.Equal(t, job.ID, entry.JobID)
	require.Equal(t, "reviewer@portal", entry.ReviewedBy)
	require.Equal(t, "Example Board", entry.Validated[jobs.FieldDepartment])

	_, err = h.orch.Publish(ctx, res.LogID, "reviewer@portal", edited)
	require.ErrorIs(t, err, jobs.ErrNotReviewable)

	_, err = h.orch.Publish(ctx, "missing", "reviewer@portal", nil)
	require.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestPublishRejectsFinishedEntries(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()
	res, err := h.orch.ProcessURL(ctx, Request{URL: "https://ssc.nic.in/notice/cgl-2025", AutoPublish: true})
	require.NoError(t, err)
	require.Equal(t, jobs.LogStatusCompleted, res.Status)

	_, err = h.orch.Publish(ctx, res.LogID, "reviewer", nil)
	require.ErrorIs(t, err, jobs.ErrNotReviewable)
}

// ctxLogStore fails writes on a finished context, as the SQL stores do.
type ctxLogStore struct {
	*memory.LogStore
}

func (s ctxLogStore) Complete(ctx context.Context, id string, done jobs.LogCompletion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.LogStore.Complete(ctx, id, done)
}

// cancellingFetcher simulates a caller giving up while the page is in flight.
type cancellingFetcher struct {
	cancel context.CancelFunc
}

func (f cancellingFetcher) Fetch(_ context.Context, url string) (jobs.Page, error) {
	f.cancel()
	return jobs.Page{}, &jobs.FetchError{URL: url, Err: context.Canceled}
}

func TestCancelledAttemptStillFinalizesLog(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.orch.logs = ctxLogStore{h.logs}
	h.orch.fetcher = cancellingFetcher{cancel: cancel}

	res, err := h.orch.ProcessURL(ctx, Request{URL: "https://ssc.nic.in/notice/cgl-2025", AutoPublish: true})
	require.Error(t, err)
	require.NotEmpty(t, res.LogID)

	entry, err := h.logs.Get(context.Background(), res.LogID)
	require.NoError(t, err)
	require.Equal(t, jobs.LogStatusFailed, entry.Status)
	require.NotNil(t, entry.FinishedAt)
}
