package main

import (
	"github.com/spf13/cobra"
)

func newDetectCmd(c *cli) *cobra.Command {
	var folderID string
	var minScore float64
	var suggest bool
	var minConfidence float64

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "List likely duplicate clusters in a folder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a := newApp(c.cfg, c.logger)
			defer a.stop()
			if err := a.start(ctx, startOptions{}); err != nil {
				return err
			}

			if suggest {
				suggestions, err := a.service.Suggest(ctx, folderID, minConfidence)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), suggestions)
			}

			clusters, err := a.service.DetectDuplicates(ctx, folderID, minScore)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), clusters)
		},
	}

	cmd.Flags().StringVar(&folderID, "folder", "", "folder to scan")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "minimum raw score to join a cluster (0 uses MATCH_MIN_SCORE)")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "print ranked merge suggestions instead of clusters")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "minimum confidence of a suggestion (0 uses MATCH_MIN_CONFIDENCE)")
	_ = cmd.MarkFlagRequired("folder")
	return cmd
}
