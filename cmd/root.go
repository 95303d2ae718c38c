// Package cmd defines and implements the CLI commands for the govjobs executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/govjobs-pipeline/internal/app"
	"github.com/JakeFAU/govjobs-pipeline/internal/config"
	"github.com/JakeFAU/govjobs-pipeline/internal/logging"
	"github.com/JakeFAU/govjobs-pipeline/internal/pipeline"
	"github.com/JakeFAU/govjobs-pipeline/internal/scheduler"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a mock app during tests.
type App interface {
	Close() error
	Logger() *zap.Logger
	Config() config.Config
	Handler() http.Handler
	ProcessURL(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
	RunOnce(ctx context.Context) (scheduler.RunSummary, error)
	StartScheduler(ctx context.Context) error
	StopScheduler()
}

// newApp is the application factory. It's a variable so we can
// replace it with a mock factory in our tests.
var newApp = func(ctx context.Context, configPath string) (App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "govjobs",
		Short: "Extracts government job notices into a canonical catalogue.",
		Long: `govjobs fetches recruitment notices from government portals, extracts
and normalizes their fields, and publishes de-duplicated jobs. Low-quality
extractions are kept for manual review through the admin API.`,
		SilenceUsage: true,

		// Build the application once the flags are parsed and hand it to the
		// subcommand through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				if err := appInstance.Close(); err != nil {
					appInstance.Logger().Warn("Failed to close application services", zap.Error(err))
				}
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); JOBPIPE_* environment variables override it")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newProcessCmd())
	cmd.AddCommand(newCrawlCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
