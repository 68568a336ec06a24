package main

import (
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/pkg/models"
)

func newMergeCmd(c *cli) *cobra.Command {
	var targetID string
	var sourceIDs []string
	var strategy, prefer string
	var keepSource, noTransfer, skipMissing bool

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge source entities into a target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			opts := models.MergeOptions{
				Strategy:           models.Strategy(strategy),
				Prefer:             models.Prefer(prefer),
				SkipMissingSources: skipMissing,
			}
			if keepSource {
				opts.DeleteSource = models.BoolPtr(false)
			}
			if noTransfer {
				opts.TransferRelationships = models.BoolPtr(false)
			}

			a := newApp(c.cfg, c.logger)
			defer a.stop()
			if err := a.start(ctx, startOptions{sideEffects: true}); err != nil {
				return err
			}

			result, err := a.service.Merge(ctx, targetID, sourceIDs, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&targetID, "target", "", "entity that survives the merge")
	cmd.Flags().StringSliceVar(&sourceIDs, "source", nil, "entity to merge into the target (repeatable)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "target_priority, source_priority, merge_all or deep_merge")
	cmd.Flags().StringVar(&prefer, "prefer", "", "side that wins scalar conflicts in deep_merge: target or source")
	cmd.Flags().BoolVar(&keepSource, "keep-source", false, "keep the source entities after merging")
	cmd.Flags().BoolVar(&noTransfer, "no-transfer", false, "do not move relationships and files to the target")
	cmd.Flags().BoolVar(&skipMissing, "skip-missing", false, "skip sources that no longer exist")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
