// Package scheduler runs the unattended crawl: at fixed local hours it walks
// every configured source, discovers job links and feeds each one through the
// pipeline. Runs never overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
	"github.com/JakeFAU/govjobs-pipeline/internal/metrics"
	"github.com/JakeFAU/govjobs-pipeline/internal/pipeline"
)

// DefaultHours are the local hours at which a run starts.
var DefaultHours = []int{6, 14, 22}

// DefaultStartupDelay is the wait before the run that follows process start.
const DefaultStartupDelay = 30 * time.Second

// DefaultSources lists the listing pages crawled when none are configured.
func DefaultSources() []jobs.Source {
	return []jobs.Source{
		{Name: "Staff Selection Commission", BaseURL: "https://ssc.nic.in/"},
		{Name: "Union Public Service Commission", BaseURL: "https://upsc.gov.in/recruitment/recruitment-advertisement"},
		{Name: "Institute of Banking Personnel Selection", BaseURL: "https://www.ibps.in/"},
		{Name: "National Career Service", BaseURL: "https://www.ncs.gov.in/"},
		{Name: "Railway Recruitment Board", BaseURL: "https://www.rrbcdg.gov.in/"},
	}
}

// Processor runs one URL through the pipeline.
type Processor interface {
	ProcessURL(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// LinkDiscoverer finds job-detail links on a listing page.
type LinkDiscoverer interface {
	Discover(page jobs.Page, source jobs.Source) []string
}

// Pacer spaces outbound requests.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Config controls when runs start and what they visit.
type Config struct {
	Hours        []int
	Location     *time.Location
	StartupDelay time.Duration
	Sources      []jobs.Source
}

// RunSummary reports what one run did.
type RunSummary struct {
	Sources        int           `json:"sources"`
	SourcesFailed  int           `json:"sources_failed"`
	Links          int           `json:"links"`
	Completed      int           `json:"completed"`
	ReviewRequired int           `json:"review_required"`
	Failed         int           `json:"failed"`
	Duration       time.Duration `json:"duration"`
}

// Scheduler triggers guarded crawl runs on a cron schedule.
type Scheduler struct {
	fetcher    jobs.Fetcher
	discoverer LinkDiscoverer
	processor  Processor
	pacer      Pacer
	guard      RunGuard
	cfg        Config
	logger     *zap.Logger

	cron *cron.Cron
	wg   sync.WaitGroup

	// done is cancelled by Stop and ends every run this scheduler started.
	done     context.Context
	shutdown context.CancelFunc
}

// New constructs a Scheduler. Zero-valued Config fields take the defaults.
func New(
	fetcher jobs.Fetcher,
	discoverer LinkDiscoverer,
	processor Processor,
	pacer Pacer,
	guard RunGuard,
	cfg Config,
	logger *zap.Logger,
) (*Scheduler, error) {
	if len(cfg.Hours) == 0 {
		cfg.Hours = DefaultHours
	}
	for _, h := range cfg.Hours {
		if h < 0 || h > 23 {
			return nil, fmt.Errorf("schedule hour %d out of range", h)
		}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.StartupDelay < 0 {
		cfg.StartupDelay = 0
	}
	if guard == nil {
		guard = NewLocalGuard()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")

	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cronLogger{sugar: logger.Sugar()}),
	)
	done, shutdown := context.WithCancel(context.Background())
	return &Scheduler{
		done:       done,
		shutdown:   shutdown,
		fetcher:    fetcher,
		discoverer: discoverer,
		processor:  processor,
		pacer:      pacer,
		guard:      guard,
		cfg:        cfg,
		logger:     logger,
		cron:       c,
	}, nil
}

// Expression returns the cron expression for the configured hours.
func (s *Scheduler) Expression() string {
	hours := append([]int(nil), s.cfg.Hours...)
	sort.Ints(hours)
	parts := make([]string, 0, len(hours))
	for _, h := range hours {
		parts = append(parts, strconv.Itoa(h))
	}
	return "0 " + strings.Join(parts, ",") + " * * *"
}

// Start registers the timer and the startup run. Runs use ctx and stop when
// it is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, release := s.bind(ctx)
	expr := s.Expression()
	if _, err := s.cron.AddFunc(expr, func() { s.trigger(ctx, "cron") }); err != nil {
		release()
		return fmt.Errorf("cron.AddFunc(%q): %w", expr, err)
	}
	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("cron", expr),
		zap.String("location", s.cfg.Location.String()),
		zap.Duration("startup_delay", s.cfg.StartupDelay),
		zap.Int("sources", len(s.cfg.Sources)),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(s.cfg.StartupDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			s.trigger(ctx, "startup")
		}
	}()
	return nil
}

// Stop cancels in-flight runs, halts the timer and waits for runs to return.
func (s *Scheduler) Stop() {
	s.shutdown()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) trigger(ctx context.Context, reason string) {
	summary, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, jobs.ErrRunInProgress):
		s.logger.Warn("Previous run still active; skipping", zap.String("trigger", reason))
	case err != nil:
		s.logger.Error("Run ended with error", zap.String("trigger", reason), zap.Error(err))
	default:
		s.logger.Info("Run triggered", zap.String("trigger", reason), zap.Int("links", summary.Links))
	}
}

// RunOnce performs one guarded run over all sources. When another run holds
// the guard it returns jobs.ErrRunInProgress without touching the network.
func (s *Scheduler) RunOnce(ctx context.Context) (RunSummary, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	return s.run(ctx, release)
}

// TriggerAsync acquires the guard and runs in the background. It returns
// jobs.ErrRunInProgress at once when a run is active. The run keeps ctx's
// values but not its cancellation; Stop ends it.
func (s *Scheduler) TriggerAsync(ctx context.Context) error {
	release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	runCtx, cancel := s.bind(context.WithoutCancel(ctx))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if _, err := s.run(runCtx, release); err != nil {
			s.logger.Error("Triggered run ended with error", zap.Error(err))
		}
	}()
	return nil
}

// bind returns a child of ctx that is also cancelled by Stop. The returned
// func releases it.
func (s *Scheduler) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	unregister := context.AfterFunc(s.done, cancel)
	return ctx, func() {
		unregister()
		cancel()
	}
}

func (s *Scheduler) acquire(ctx context.Context) (func(), error) {
	release, ok, err := s.guard.TryAcquire(ctx)
	if err != nil {
		metrics.ObserveRun("error", 0)
		return nil, fmt.Errorf("acquire run guard: %w", err)
	}
	if !ok {
		metrics.ObserveRun("skipped", 0)
		return nil, jobs.ErrRunInProgress
	}
	return release, nil
}

// run performs one run while holding the guard and releases it on return.
func (s *Scheduler) run(ctx context.Context, release func()) (summary RunSummary, err error) {
	start := time.Now()
	metrics.SetRunActive(true)
	defer func() {
		metrics.SetRunActive(false)
		release()
	}()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Run panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("run panicked: %v", r)
		}
		summary.Duration = time.Since(start)
		outcome := "completed"
		if err != nil {
			outcome = "error"
		}
		metrics.ObserveRun(outcome, summary.Duration)
		s.logger.Info("Run finished",
			zap.String("outcome", outcome),
			zap.Int("sources", summary.Sources),
			zap.Int("sources_failed", summary.SourcesFailed),
			zap.Int("links", summary.Links),
			zap.Int("completed", summary.Completed),
			zap.Int("review_required", summary.ReviewRequired),
			zap.Int("failed", summary.Failed),
			zap.Duration("duration", summary.Duration),
		)
	}()

	s.logger.Info("Run started", zap.Int("sources", len(s.cfg.Sources)))
	for _, src := range s.cfg.Sources {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := s.visitSource(ctx, src, &summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// visitSource crawls one listing page. Only cancellation is returned; fetch
// and pipeline failures are counted and logged.
func (s *Scheduler) visitSource(ctx context.Context, src jobs.Source, summary *RunSummary) error {
	logger := s.logger.With(zap.String("source", src.Name), zap.String("listing_url", src.BaseURL))
	summary.Sources++

	if err := s.pacer.Wait(ctx); err != nil {
		return err
	}
	page, err := s.fetcher.Fetch(ctx, src.BaseURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		summary.SourcesFailed++
		logger.Warn("Listing fetch failed", zap.Error(err))
		return nil
	}

	links := s.discoverer.Discover(page, src)
	summary.Links += len(links)
	metrics.ObserveLinksDiscovered(src.BaseURL, len(links))
	logger.Debug("Discovered links", zap.Int("count", len(links)))

	for _, link := range links {
		if err := s.pacer.Wait(ctx); err != nil {
			return err
		}
		res, err := s.processor.ProcessURL(ctx, pipeline.Request{
			URL:         link,
			AutoPublish: true,
			Operator:    jobs.SystemOperator,
		})
		switch res.Status {
		case jobs.LogStatusCompleted:
			summary.Completed++
		case jobs.LogStatusReviewRequired:
			summary.ReviewRequired++
		default:
			summary.Failed++
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			logger.Debug("Link failed", zap.String("url", link), zap.Error(err))
		}
	}
	return nil
}
