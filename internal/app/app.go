// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/api"
	"github.com/JakeFAU/govjobs-pipeline/internal/clock/system"
	"github.com/JakeFAU/govjobs-pipeline/internal/config"
	"github.com/JakeFAU/govjobs-pipeline/internal/dedup"
	"github.com/JakeFAU/govjobs-pipeline/internal/discovery"
	"github.com/JakeFAU/govjobs-pipeline/internal/extract"
	collyfetcher "github.com/JakeFAU/govjobs-pipeline/internal/fetcher/colly"
	"github.com/JakeFAU/govjobs-pipeline/internal/fetcher/retry"
	"github.com/JakeFAU/govjobs-pipeline/internal/id/uuid"
	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
	"github.com/JakeFAU/govjobs-pipeline/internal/metrics"
	"github.com/JakeFAU/govjobs-pipeline/internal/normalize"
	"github.com/JakeFAU/govjobs-pipeline/internal/pipeline"
	"github.com/JakeFAU/govjobs-pipeline/internal/politeness"
	"github.com/JakeFAU/govjobs-pipeline/internal/scheduler"
	"github.com/JakeFAU/govjobs-pipeline/internal/storage/memory"
	"github.com/JakeFAU/govjobs-pipeline/internal/storage/postgres"
	"github.com/JakeFAU/govjobs-pipeline/internal/storage/sqlite"
	"github.com/JakeFAU/govjobs-pipeline/internal/template"
)

// App holds all the shared, long-lived services for the application. It is
// built once at startup and handed to the command that runs.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	jobStore     jobs.JobStore
	logStore     jobs.LogStore
	registry     *template.Registry
	orchestrator *pipeline.Orchestrator
	scheduler    *scheduler.Scheduler
	server       *api.Server

	closers []func() error
}

// Stores groups the persistence backends selected by storage.driver.
type Stores struct {
	Jobs      jobs.JobStore
	Logs      jobs.LogStore
	Templates jobs.TemplateStore
	Close     func() error
}

// Options overrides collaborators, mainly for tests.
type Options struct {
	Fetcher jobs.Fetcher
	Stores  *Stores
	Guard   scheduler.RunGuard
}

// New wires every service from cfg. It fails fast when a backend cannot be
// reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Initializing application services...", zap.String("storage_driver", cfg.Storage.Driver))
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clock := system.New(loc)
	ids := uuid.New()

	stores := opts.Stores
	if stores == nil {
		stores, err = OpenStores(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	if stores.Close != nil {
		a.closers = append(a.closers, stores.Close)
	}
	a.jobStore = stores.Jobs
	a.logStore = stores.Logs

	a.registry = template.NewRegistry(stores.Templates, clock, logger)
	if err := a.registry.Seed(ctx, template.Builtins()); err != nil {
		return nil, fmt.Errorf("seed templates: %w", err)
	}
	if cfg.Templates.File != "" {
		fromFile, err := template.LoadFile(cfg.Templates.File)
		if err != nil {
			return nil, fmt.Errorf("load templates: %w", err)
		}
		if _, err := a.registry.SeedFile(ctx, cfg.Templates.File, fromFile); err != nil {
			return nil, fmt.Errorf("seed templates: %w", err)
		}
		logger.Info("Loaded templates file", zap.String("path", cfg.Templates.File), zap.Int("templates", len(fromFile)))
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = retry.NewFetcher(
			collyfetcher.New(collyfetcher.Config{
				UserAgent:     cfg.HTTP.UserAgent,
				RespectRobots: cfg.HTTP.RespectRobots,
				Timeout:       cfg.FetchTimeout(),
				MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
			}, logger),
			retry.Policy{
				MaxRetries: cfg.HTTP.MaxRetries,
				BaseDelay:  time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
				MaxDelay:   time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
			},
			logger,
		)
	}

	a.orchestrator = pipeline.New(
		fetcher,
		a.registry,
		extract.New(extract.NewHeuristics(nil, nil), logger),
		normalize.New(clock, nil),
		dedup.New(stores.Jobs, ids, clock, logger),
		stores.Logs,
		ids,
		clock,
		pipeline.Config{AutoPublishThreshold: cfg.Pipeline.AutoPublishThreshold},
		logger,
	)

	guard := opts.Guard
	if guard == nil {
		guard, err = a.newGuard(ctx, ids)
		if err != nil {
			return nil, err
		}
	}
	sources := cfg.Sources
	if len(sources) == 0 {
		sources = scheduler.DefaultSources()
	}
	a.scheduler, err = scheduler.New(
		fetcher,
		discovery.New(cfg.Pipeline.MaxLinksPerSource, logger),
		a.orchestrator,
		politeness.New(cfg.PolitenessDelay()),
		guard,
		scheduler.Config{
			Hours:        cfg.Pipeline.ScheduleHoursLocal,
			Location:     loc,
			StartupDelay: cfg.StartupDelay(),
			Sources:      sources,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}

	a.server = api.NewServer(a.orchestrator, a.registry, a.logStore, a.jobStore, a.scheduler, cfg, logger)

	ok = true
	logger.Info("Application services initialized successfully.")
	return a, nil
}

// OpenStores opens the backend named by cfg.Storage.Driver.
func OpenStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory, "":
		logger.Info("Using in-memory storage. Jobs and logs are lost on exit.")
		return &Stores{
			Jobs:      memory.NewJobStore(),
			Logs:      memory.NewLogStore(),
			Templates: memory.NewTemplateStore(),
		}, nil
	case config.DriverPostgres:
		logger.Info("Connecting to PostgreSQL...")
		pool, err := postgres.Open(ctx, postgres.Config{DSN: cfg.Storage.DSN, MaxConns: cfg.Storage.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		jobStore, _ := postgres.NewJobStore(pool)
		logStore, _ := postgres.NewLogStore(pool)
		templateStore, _ := postgres.NewTemplateStore(pool)
		return &Stores{
			Jobs:      jobStore,
			Logs:      logStore,
			Templates: templateStore,
			Close: func() error {
				pool.Close()
				return nil
			},
		}, nil
	case config.DriverSQLite:
		logger.Info("Opening SQLite database", zap.String("path", cfg.Storage.Path))
		db, err := sqlite.Open(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return &Stores{
			Jobs:      sqlite.NewJobStore(db),
			Logs:      sqlite.NewLogStore(db),
			Templates: sqlite.NewTemplateStore(db),
			Close:     db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

func (a *App) newGuard(ctx context.Context, ids jobs.IDGenerator) (scheduler.RunGuard, error) {
	if !a.cfg.Redis.Enabled {
		return scheduler.NewLocalGuard(), nil
	}
	a.logger.Info("Connecting to Redis for the run lock...")
	client, err := scheduler.NewRedisClient(ctx, a.cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return scheduler.NewRedisGuard(client, a.cfg.Redis.LockKey, a.cfg.LockTTL(), ids, a.logger), nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Handler returns the admin HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// ProcessURL runs the pipeline for a single URL.
func (a *App) ProcessURL(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	return a.orchestrator.ProcessURL(ctx, req)
}

// RunOnce performs one crawl over the configured sources.
func (a *App) RunOnce(ctx context.Context) (scheduler.RunSummary, error) {
	return a.scheduler.RunOnce(ctx)
}

// StartScheduler registers the daily runs and the startup run.
func (a *App) StartScheduler(ctx context.Context) error {
	return a.scheduler.Start(ctx)
}

// StopScheduler stops the cron and waits for an in-flight run.
func (a *App) StopScheduler() { a.scheduler.Stop() }

// Close releases backends in reverse order of acquisition and flushes the logger.
func (a *App) Close() error {
	a.logger.Info("Shutting down application services...")
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
