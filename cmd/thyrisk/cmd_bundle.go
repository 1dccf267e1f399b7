package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/thyroid-risk-assessor/internal/model"
	"github.com/thyroid-risk-assessor/internal/service"
)

// bundleError marks a bundle that failed to load or validate.
type bundleError struct {
	dir string
	err error
}

func (e *bundleError) Error() string {
	return fmt.Sprintf("bundle %s is invalid: %v", e.dir, e.err)
}

func (e *bundleError) Unwrap() error { return e.err }

func newValidateBundleCommand(root *rootOptions) *cobra.Command {
	var bundleDir string

	cmd := &cobra.Command{
		Use:   "validate-bundle",
		Short: "Check that a model bundle loads and its artifacts agree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load(cmd)
			if err != nil {
				return err
			}
			if bundleDir == "" {
				bundleDir = cfg.Artifacts.BundleDir
			}

			bundle, err := model.LoadBundle(bundleDir)
			if err != nil {
				return &bundleError{dir: bundleDir, err: err}
			}
			deps, err := service.DependenciesFromBundle(bundle, logger)
			if err != nil {
				return &bundleError{dir: bundleDir, err: err}
			}
			if _, err := service.NewAssessor(deps); err != nil {
				return &bundleError{dir: bundleDir, err: err}
			}

			zoned := make([]string, 0, len(bundle.DangerZones))
			for name := range bundle.DangerZones {
				zoned = append(zoned, name)
			}
			sort.Strings(zoned)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bundle:             %s\n", bundleDir)
			fmt.Fprintf(out, "Model version:      %s\n", bundle.Version)
			fmt.Fprintf(out, "Diagnoses:          %v\n", bundle.Classifier.Classes())
			fmt.Fprintf(out, "Classifier inputs:  %d\n", len(bundle.FeatureColumns))
			fmt.Fprintf(out, "Phenotype inputs:   %d\n", len(bundle.PhenotypeFeatures))
			fmt.Fprintf(out, "Phenotype clusters: %d\n", bundle.Clusters.NumClusters())
			fmt.Fprintf(out, "Zoned features:     %v\n", zoned)
			fmt.Fprintln(out, "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&bundleDir, "bundle", "", "Model bundle directory (overrides configuration)")
	return cmd
}
