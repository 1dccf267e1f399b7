package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/thyroid-risk-assessor/internal/app"
	"github.com/thyroid-risk-assessor/internal/domain"
	"github.com/thyroid-risk-assessor/internal/intake"
)

type assessOptions struct {
	bundleDir  string
	input      string
	noDefaults bool
}

func newAssessCommand(root *rootOptions) *cobra.Command {
	opts := &assessOptions{}

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess patient records",
		Long: `Assess one patient record (a JSON object) or a batch (a JSON array of objects).

Reports are written to stdout as JSON in input order. Missing numeric
attributes take the form defaults unless --no-defaults is set.`,
		Example: `  thyrisk assess --input patient.json
  cat patients.json | thyrisk assess --bundle ./artifacts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssess(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.bundleDir, "bundle", "", "Model bundle directory (overrides configuration)")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", "Input file, or - for stdin")
	cmd.Flags().BoolVar(&opts.noDefaults, "no-defaults", false, "Reject records with missing numeric attributes")

	return cmd
}

func runAssess(cmd *cobra.Command, root *rootOptions, opts *assessOptions) error {
	cfg, logger, err := root.load(cmd)
	if err != nil {
		return err
	}
	if opts.bundleDir != "" {
		cfg.Artifacts.BundleDir = opts.bundleDir
	}
	// One-shot runs gain nothing from the report cache or the feedback store.
	cfg.Cache.Backend = "none"
	cfg.Feedback.Backend = "none"

	records, batch, err := readRecords(cmd.InOrStdin(), opts.input)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	runtime, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer runtime.Close()

	parser := intake.NewParser(intake.Options{ApplyDefaults: !opts.noDefaults})
	reports := make([]*domain.AssessmentReport, 0, len(records))
	for i, raw := range records {
		patient, err := parser.Parse(raw)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		report, err := runtime.Assessor.Assess(ctx, patient)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		reports = append(reports, report)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if batch {
		return enc.Encode(reports)
	}
	return enc.Encode(reports[0])
}

// readRecords decodes a single object or an array of objects. batch reports which one it was.
func readRecords(stdin io.Reader, path string) (records []map[string]any, batch bool, err error) {
	var data []byte
	if path == "-" || path == "" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read input: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false, domain.NewValidationError("input", "is empty", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if data[0] == '[' {
		if err := dec.Decode(&records); err != nil {
			return nil, false, domain.NewValidationError("input", fmt.Sprintf("invalid JSON array: %v", err), nil)
		}
		if len(records) == 0 {
			return nil, false, domain.NewValidationError("input", "contains no records", nil)
		}
		return records, true, nil
	}

	var single map[string]any
	if err := dec.Decode(&single); err != nil {
		return nil, false, domain.NewValidationError("input", fmt.Sprintf("invalid JSON object: %v", err), nil)
	}
	return []map[string]any{single}, false, nil
}
