package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thyroid-risk-assessor/internal/database"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL feedback schema",
		Long: `Apply or roll back the feedback schema migrations embedded in this binary.

The database URL defaults to the configured database settings.`,
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (overrides configuration)")

	run := func(action string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load(cmd)
			if err != nil {
				return err
			}
			url := databaseURL
			if url == "" {
				url = database.ConfigFromDomain(cfg.Database).URL()
			}

			runner, err := database.NewMigrationRunner(url, logger)
			if err != nil {
				return err
			}
			defer runner.Close()

			switch action {
			case "up":
				err = runner.Up(cmd.Context())
			case "down":
				err = runner.Down(cmd.Context())
			}
			if err != nil {
				return err
			}

			version, dirty, err := runner.Version()
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Schema version: none")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d (dirty: %t)\n", version, dirty)
			return nil
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  run("up"),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Args:  cobra.NoArgs,
		RunE:  run("down"),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE:  run("version"),
	})

	return cmd
}
