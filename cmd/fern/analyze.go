package main

import (
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(c *cli) *cobra.Command {
	var sourceID, targetID string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report how merging a source into a target would go",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a := newApp(c.cfg, c.logger)
			defer a.stop()
			if err := a.start(ctx, startOptions{}); err != nil {
				return err
			}

			report, err := a.service.Analyze(ctx, sourceID, targetID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&sourceID, "source", "", "entity that would be merged away")
	cmd.Flags().StringVar(&targetID, "target", "", "entity that would survive")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}
