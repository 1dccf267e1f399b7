package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/thyroid-risk-assessor/internal/app"
	"github.com/thyroid-risk-assessor/internal/feedback"
)

type feedbackOptions struct {
	backend    string
	sqlitePath string
}

func newFeedbackCommand(root *rootOptions) *cobra.Command {
	opts := &feedbackOptions{}

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Export or import clinician feedback",
	}
	cmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "Feedback backend: sqlite or postgres (overrides configuration)")
	cmd.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite-path", "", "SQLite database path (overrides configuration)")

	cmd.AddCommand(newFeedbackExportCommand(root, opts))
	cmd.AddCommand(newFeedbackImportCommand(root, opts))
	return cmd
}

// openStore opens the configured store with flag overrides applied.
func (o *feedbackOptions) openStore(cmd *cobra.Command, root *rootOptions) (feedback.Store, func() error, error) {
	cfg, logger, err := root.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	if o.backend != "" {
		cfg.Feedback.Backend = o.backend
	}
	if o.sqlitePath != "" {
		cfg.Feedback.SQLitePath = o.sqlitePath
	}

	store, closer, err := app.OpenFeedbackStore(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, fmt.Errorf("feedback backend %q has no store", cfg.Feedback.Backend)
	}
	return store, closer, nil
}

func newFeedbackExportCommand(root *rootOptions, opts *feedbackOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all feedback as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := opts.openStore(cmd, root)
			if err != nil {
				return err
			}
			defer closer()

			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if err := store.ExportJSON(cmd.Context(), w); err != nil {
				return err
			}
			if output != "-" {
				count, _ := store.Count(cmd.Context())
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d feedback entries to %s\n", count, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file, or - for stdout")
	return cmd
}

func newFeedbackImportCommand(root *rootOptions, opts *feedbackOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load feedback from an export file, skipping assessments already on record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closer, err := opts.openStore(cmd, root)
			if err != nil {
				return err
			}
			defer closer()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer f.Close()

			imported, skipped, err := store.ImportJSON(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d feedback entries, skipped %d duplicates\n", imported, skipped)
			return nil
		},
	}
}
