package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/govjobs-pipeline/internal/pipeline"
)

const cliOperator = "cli"

// newProcessCmd runs the pipeline for a single URL and prints the outcome.
func newProcessCmd() *cobra.Command {
	var (
		templateID string
		noPublish  bool
		operator   string
	)

	cmd := &cobra.Command{
		Use:   "process <url>",
		Short: "Extracts one job notice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, procErr := appInstance.ProcessURL(cmd.Context(), pipeline.Request{
				URL:         args[0],
				TemplateID:  templateID,
				AutoPublish: !noPublish,
				Operator:    operator,
			})
			if res.LogID != "" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
			}
			if procErr != nil {
				return fmt.Errorf("process %s: %w", args[0], procErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "template id to use instead of domain selection")
	cmd.Flags().BoolVar(&noPublish, "no-publish", false, "always stop at review_required")
	cmd.Flags().StringVar(&operator, "operator", cliOperator, "operator recorded on the log entry")
	return cmd
}
