package cmd

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCrawlCmd creates the 'crawl' subcommand, which performs a single run over
// every configured source and exits.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawls every configured source once",
		Long: `Fetches each source listing page, discovers job links and processes them
through the pipeline with automatic publication. Honors the same run lock as
the scheduler, so it refuses to start while another run is active.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := appInstance.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	appInstance.Logger().Info("Crawl command finished.", zap.Int("links", summary.Links))
	return nil
}
