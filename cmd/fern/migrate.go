package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	var version uint
	var force int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("version") {
				c.cfg.DatabaseMigrationVersion = int(version)
			}
			if cmd.Flags().Changed("force") {
				c.cfg.DatabaseMigrationForce = force
			}

			a := newApp(c.cfg, c.logger)
			defer a.stop()
			if err := a.start(cmd.Context(), startOptions{migrate: true}); err != nil {
				return err
			}

			c.logger.WithContext(cmd.Context()).Info("Migrations applied")
			return nil
		},
	}

	cmd.Flags().UintVar(&version, "version", 0, "target version (0 migrates to latest)")
	cmd.Flags().IntVar(&force, "force", 0, "force the schema version before migrating")
	return cmd
}
