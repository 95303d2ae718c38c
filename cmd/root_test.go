package cmd

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/config"
	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
	"github.com/JakeFAU/govjobs-pipeline/internal/pipeline"
	"github.com/JakeFAU/govjobs-pipeline/internal/scheduler"
)

// MockApp mocks the App interface.
type MockApp struct {
	mock.Mock
}

func (m *MockApp) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockApp) Logger() *zap.Logger { return zap.NewNop() }

func (m *MockApp) Config() config.Config {
	args := m.Called()
	return args.Get(0).(config.Config)
}

func (m *MockApp) Handler() http.Handler { return http.NotFoundHandler() }

func (m *MockApp) ProcessURL(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(pipeline.Result), args.Error(1)
}

func (m *MockApp) RunOnce(ctx context.Context) (scheduler.RunSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(scheduler.RunSummary), args.Error(1)
}

func (m *MockApp) StartScheduler(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockApp) StopScheduler() {
	m.Called()
}

// withMockApp swaps the application factory for the duration of a test.
func withMockApp(t *testing.T, mockApp *MockApp, factoryErr error) *string {
	t.Helper()
	var gotPath string
	original := newApp
	newApp = func(_ context.Context, configPath string) (App, error) {
		gotPath = configPath
		if factoryErr != nil {
			return nil, factoryErr
		}
		return mockApp, nil
	}
	t.Cleanup(func() { newApp = original })
	return &gotPath
}

func execute(ctx context.Context, args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestProcessCommand(t *testing.T) {
	mockApp := new(MockApp)
	path := withMockApp(t, mockApp, nil)

	want := pipeline.Request{URL: "https://ssc.nic.in/notice", TemplateID: "upsc", AutoPublish: false, Operator: "admin@portal"}
	mockApp.On("ProcessURL", mock.Anything, want).Return(pipeline.Result{
		LogID:  "log-1",
		Status: jobs.LogStatusReviewRequired,
		Score:  0.9,
	}, nil).Once()
	mockApp.On("Close").Return(nil).Once()

	out, err := execute(context.Background(), "--config", "cfg.yaml", "process", "https://ssc.nic.in/notice",
		"--template", "upsc", "--no-publish", "--operator", "admin@portal")
	require.NoError(t, err)
	assert.Equal(t, "cfg.yaml", *path)
	assert.Contains(t, out, `"status": "review_required"`)
	assert.Contains(t, out, `"log_id": "log-1"`)
	mockApp.AssertExpectations(t)
}

func TestProcessCommandDefaultsAndFailure(t *testing.T) {
	mockApp := new(MockApp)
	withMockApp(t, mockApp, nil)

	want := pipeline.Request{URL: "https://ssc.nic.in/missing", AutoPublish: true, Operator: cliOperator}
	mockApp.On("ProcessURL", mock.Anything, want).Return(pipeline.Result{
		LogID:  "log-2",
		Status: jobs.LogStatusFailed,
		Error:  "HTTP 404",
	}, errors.New("HTTP 404")).Once()

	out, err := execute(context.Background(), "process", "https://ssc.nic.in/missing")
	require.ErrorContains(t, err, "HTTP 404")
	assert.Contains(t, out, `"status": "failed"`)
	mockApp.AssertExpectations(t)
}

func TestProcessCommandRequiresURL(t *testing.T) {
	mockApp := new(MockApp)
	withMockApp(t, mockApp, nil)

	_, err := execute(context.Background(), "process")
	require.Error(t, err)
	mockApp.AssertNotCalled(t, "ProcessURL", mock.Anything, mock.Anything)
}

func TestCrawlCommand(t *testing.T) {
	mockApp := new(MockApp)
	withMockApp(t, mockApp, nil)

	mockApp.On("RunOnce", mock.Anything).Return(scheduler.RunSummary{Sources: 5, Links: 7, Completed: 4, ReviewRequired: 2, Failed: 1}, nil).Once()
	mockApp.On("Close").Return(nil).Once()

	out, err := execute(context.Background(), "crawl")
	require.NoError(t, err)
	assert.Contains(t, out, `"links": 7`)
	mockApp.AssertExpectations(t)
}

func TestCrawlCommandRunInProgress(t *testing.T) {
	mockApp := new(MockApp)
	withMockApp(t, mockApp, nil)

	mockApp.On("RunOnce", mock.Anything).Return(scheduler.RunSummary{}, jobs.ErrRunInProgress).Once()

	_, err := execute(context.Background(), "crawl")
	require.ErrorIs(t, err, jobs.ErrRunInProgress)
}

func TestServeCommandShutsDownOnCancel(t *testing.T) {
	mockApp := new(MockApp)
	withMockApp(t, mockApp, nil)

	cfg := config.Config{}
	cfg.Pipeline.SchedulerEnabled = true
	mockApp.On("Config").Return(cfg)
	mockApp.On("StartScheduler", mock.Anything).Return(nil).Once()
	mockApp.On("StopScheduler").Return().Once()
	mockApp.On("Close").Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := execute(ctx, "serve", "--addr", "127.0.0.1:0")
	require.NoError(t, err)
	mockApp.AssertExpectations(t)
}

func TestServeCommandListenFailureStopsScheduler(t *testing.T) {
	mockApp := new(MockApp)
	withMockApp(t, mockApp, nil)

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = busy.Close() }()

	cfg := config.Config{}
	cfg.Pipeline.SchedulerEnabled = true
	var schedCtx context.Context
	mockApp.On("Config").Return(cfg)
	mockApp.On("StartScheduler", mock.Anything).Run(func(args mock.Arguments) {
		schedCtx = args.Get(0).(context.Context)
	}).Return(nil).Once()
	mockApp.On("StopScheduler").Run(func(mock.Arguments) {
		assert.Error(t, schedCtx.Err(), "scheduler context must be cancelled before StopScheduler")
	}).Return().Once()

	_, err = execute(context.Background(), "serve", "--addr", busy.Addr().String())
	require.ErrorContains(t, err, "serve:")
	mockApp.AssertExpectations(t)
}

func TestServeCommandWithoutScheduler(t *testing.T) {
	mockApp := new(MockApp)
	withMockApp(t, mockApp, nil)

	mockApp.On("Config").Return(config.Config{})
	mockApp.On("Close").Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := execute(ctx, "serve", "--addr", "127.0.0.1:0")
	require.NoError(t, err)
	mockApp.AssertNotCalled(t, "StartScheduler", mock.Anything)
}

func TestAppFactoryFailure(t *testing.T) {
	withMockApp(t, nil, errors.New("boom"))

	_, err := execute(context.Background(), "crawl")
	require.ErrorContains(t, err, "failed to initialize application services: boom")
}

func TestResolveAppWithoutApp(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
