package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the admin API and the crawl scheduler",
		Long: `Serves the admin HTTP API and, unless pipeline.scheduler_enabled is false,
crawls the configured sources at the scheduled local hours plus once shortly
after startup. SIGINT or SIGTERM drains in-flight requests and runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeCommand(cmd, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default \":<server.port>\")")
	return cmd
}

func runServeCommand(cmd *cobra.Command, addr string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	cfg := appInstance.Config()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Server.Port)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           appInstance.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Pipeline.SchedulerEnabled {
		if err := appInstance.StartScheduler(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			// Cancel runs before waiting on them, including on listen failure.
			stop()
			appInstance.StopScheduler()
		}()
	} else {
		logger.Info("Scheduler disabled; serving API only")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Admin API listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down admin API...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
