package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thyroid-risk-assessor/internal/domain"
)

const testBundleDir = "../../internal/model/testdata/bundle"

const malignantPatient = `{
  "Age": 60, "TSH_Level": 0.05, "T3_Level": 3.5, "T4_Level": 15, "Nodule_Size": 4.2,
  "Gender": "Male", "Ethnicity": "Caucasian", "Family_History": "No",
  "Radiation_Exposure": "No", "Iodine_Deficiency": "No", "Smoking": "No",
  "Obesity": "No", "Diabetes": "No", "Thyroid_Cancer_Risk": "Low"
}`

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

func TestAssess_SingleRecordFromStdin(t *testing.T) {
	out, err := runCLI(t, malignantPatient, "assess", "--bundle", testBundleDir, "--log-level", "error")
	require.NoError(t, err)

	var report domain.AssessmentReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "Malignant", report.Diagnosis)
	assert.Equal(t, 1, report.Phenotype.ID)
	assert.Equal(t, "test-2024.1", report.ModelVersion)
}

func TestAssess_BatchFromFile(t *testing.T) {
	input := filepath.Join(t.TempDir(), "patients.json")
	require.NoError(t, os.WriteFile(input, []byte("["+malignantPatient+`, {"Age": 30}]`), 0o644))

	out, err := runCLI(t, "", "assess", "--bundle", testBundleDir, "--input", input, "--log-level", "error")
	require.NoError(t, err)

	var reports []domain.AssessmentReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "Malignant", reports[0].Diagnosis)
	assert.NotEqual(t, reports[0].ID, reports[1].ID)
}

func TestAssess_Errors(t *testing.T) {
	tests := []struct {
		name     string
		stdin    string
		args     []string
		exitCode int
	}{
		{"empty input", "", nil, ExitInvalid},
		{"empty batch", "[]", nil, ExitInvalid},
		{"bad option", `{"Gender": "Other"}`, nil, ExitInvalid},
		{"missing value without defaults", `{"Age": 40}`, []string{"--no-defaults"}, ExitInvalid},
		{"missing bundle", malignantPatient, []string{"--bundle", "/nonexistent/bundle"}, ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"assess", "--bundle", testBundleDir, "--log-level", "error"}, tt.args...)

			_, err := runCLI(t, tt.stdin, args...)

			require.Error(t, err)
			assert.Equal(t, tt.exitCode, exitCode(err))
		})
	}
}

func TestValidateBundle(t *testing.T) {
	out, err := runCLI(t, "", "validate-bundle", "--bundle", testBundleDir, "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "test-2024.1")
	assert.Contains(t, out, "Phenotype clusters: 2")
	assert.Contains(t, out, "OK")

	_, err = runCLI(t, "", "validate-bundle", "--bundle", t.TempDir(), "--log-level", "error")
	require.Error(t, err)
	var bundleErr *bundleError
	assert.True(t, errors.As(err, &bundleErr))
	assert.Equal(t, ExitInvalid, exitCode(err))
}

func TestFeedbackExportImport(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.db")
	target := filepath.Join(dir, "target.db")
	exportFile := filepath.Join(dir, "export.json")

	require.NoError(t, os.WriteFile(exportFile, []byte(`{
  "version": "1.0",
  "count": 2,
  "feedback": [
    {"assessment_id": "a-1", "suggested_diagnosis": "Benign", "confidence": 0.7, "clinician_diagnosis": "Benign"},
    {"assessment_id": "a-2", "suggested_diagnosis": "Malignant", "confidence": 0.9, "clinician_diagnosis": "Benign"}
  ]
}`), 0o644))

	out, err := runCLI(t, "", "feedback", "import", exportFile, "--backend", "sqlite", "--sqlite-path", source, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 feedback entries, skipped 0")

	out, err = runCLI(t, "", "feedback", "export", "--backend", "sqlite", "--sqlite-path", source, "--log-level", "error")
	require.NoError(t, err)
	var export struct {
		Count    int              `json:"count"`
		Feedback []map[string]any `json:"feedback"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &export))
	assert.Equal(t, 2, export.Count)

	roundTrip := filepath.Join(dir, "roundtrip.json")
	_, err = runCLI(t, "", "feedback", "export", "-o", roundTrip, "--backend", "sqlite", "--sqlite-path", source, "--log-level", "error")
	require.NoError(t, err)

	out, err = runCLI(t, "", "feedback", "import", roundTrip, "--backend", "sqlite", "--sqlite-path", target, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2")

	out, err = runCLI(t, "", "feedback", "import", roundTrip, "--backend", "sqlite", "--sqlite-path", target, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "skipped 2")
}

func TestFeedback_NoneBackend(t *testing.T) {
	_, err := runCLI(t, "", "feedback", "export", "--backend", "none", "--log-level", "error")

	assert.Error(t, err)
}

func TestSetupRegisterAndStatus(t *testing.T) {
	dir := t.TempDir()
	clientConfig := filepath.Join(dir, "client.json")
	binary := filepath.Join(dir, "mcp-server-lite")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755))

	out, err := runCLI(t, "", "setup", "register", "--client-config", clientConfig, "--binary", binary, "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Registered")

	out, err = runCLI(t, "", "setup", "status", "--client-config", clientConfig)
	require.NoError(t, err)
	var status struct {
		Registered bool     `json:"registered"`
		DataDir    string   `json:"data_dir"`
		Issues     []string `json:"issues"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Registered)
	assert.Equal(t, dir, status.DataDir)
	assert.Empty(t, status.Issues)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitInvalid, exitCode(domain.NewValidationError("Age", "is required", nil)))
	assert.Equal(t, ExitError, exitCode(errors.New("connection refused")))
}
