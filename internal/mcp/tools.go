package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/thyroid-risk-assessor/internal/domain"
	"github.com/thyroid-risk-assessor/internal/feedback"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func floatPtr(f float64) *float64 { return &f }

func objectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

// assessPatientTool derives its input schema from the bundle's feature schema so clients see the
// same option sets and defaults the parser enforces.
func assessPatientTool(schema domain.Schema) *mcp.Tool {
	props := make(map[string]*jsonschema.Schema, len(schema.Features))
	for _, f := range schema.Features {
		prop := &jsonschema.Schema{Description: describeFeature(f)}
		if f.Kind == "categorical" {
			prop.Type = "string"
			for _, opt := range f.Options {
				prop.Enum = append(prop.Enum, opt)
			}
		} else {
			prop.Type = "number"
			prop.Minimum = floatPtr(0)
		}
		props[f.Name] = prop
	}

	return &mcp.Tool{
		Name: "assess_patient",
		Description: "Assess one patient's thyroid cancer risk. Returns the predicted diagnosis with " +
			"confidence, the phenotype cluster description and the risk zone of each zoned lab value. " +
			"Missing numeric attributes fall back to form defaults.",
		InputSchema: objectSchema(props),
	}
}

func describeFeature(f domain.FeatureSchema) string {
	desc := f.Kind + " attribute"
	if f.Default != nil {
		desc += fmt.Sprintf(", default %g", *f.Default)
	}
	if len(f.Thresholds) > 0 {
		desc += fmt.Sprintf(", risk thresholds %v", f.Thresholds)
	}
	return desc
}

func describeSchemaTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "describe_schema",
		Description: "Describe the patient attributes accepted by the deployed model bundle, with option sets, defaults and risk thresholds.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{}),
	}
}

func submitFeedbackTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "submit_feedback",
		Description: "Record a clinician's confirmed diagnosis for a previous assessment. Resubmitting for the same assessment replaces the earlier entry.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"assessment_id":       {Type: "string", Description: "ID of the assessment report"},
			"model_version":       {Type: "string", Description: "Model version that produced the report"},
			"suggested_diagnosis": {Type: "string", Description: "Diagnosis suggested by the model"},
			"confidence":          {Type: "number", Description: "Model confidence for the suggestion", Minimum: floatPtr(0), Maximum: floatPtr(1)},
			"phenotype_id":        {Type: "integer", Description: "Phenotype cluster of the assessment", Minimum: floatPtr(0)},
			"clinician_diagnosis": {Type: "string", Description: "Diagnosis confirmed by the clinician"},
			"notes":               {Type: "string", Description: "Free-text reasoning (optional)"},
		}, "assessment_id", "suggested_diagnosis", "clinician_diagnosis"),
	}
}

func queryFeedbackTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "query_feedback",
		Description: "Look up the feedback recorded for one assessment.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"assessment_id": {Type: "string", Description: "ID of the assessment report"},
		}, "assessment_id"),
	}
}

func listFeedbackTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_feedback",
		Description: "List recorded feedback, newest first, with pagination.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"limit":  {Type: "integer", Description: "Maximum entries to return (default 50, max 500)", Minimum: floatPtr(0)},
			"offset": {Type: "integer", Description: "Entries to skip", Minimum: floatPtr(0)},
		}),
	}
}

func exportFeedbackTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "export_feedback",
		Description: "Export all recorded feedback to a JSON file for backup.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{}),
	}
}

func importFeedbackTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "import_feedback",
		Description: "Import feedback from a JSON export file. Entries for assessments already on record are skipped.",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"file_path": {Type: "string", Description: "Path of the export file"},
		}, "file_path"),
	}
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("arguments", err.Error(), nil)
	}
	return nil
}

func (s *Server) assessPatient(ctx context.Context, args json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	patient, err := s.deps.Parser.ParseJSON(bytes.NewReader(args))
	if err != nil {
		return nil, err
	}
	return s.deps.Assessor.Assess(ctx, patient)
}

func (s *Server) describeSchema(_ context.Context, _ json.RawMessage) (any, error) {
	return s.deps.Schema, nil
}

// SubmitFeedbackParams are the arguments of submit_feedback.
type SubmitFeedbackParams struct {
	AssessmentID       string  `json:"assessment_id"`
	ModelVersion       string  `json:"model_version,omitempty"`
	SuggestedDiagnosis string  `json:"suggested_diagnosis"`
	Confidence         float64 `json:"confidence"`
	PhenotypeID        int     `json:"phenotype_id"`
	ClinicianDiagnosis string  `json:"clinician_diagnosis"`
	Notes              string  `json:"notes,omitempty"`
}

// SubmitFeedbackResult is the outcome of submit_feedback.
type SubmitFeedbackResult struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message"`
	Feedback *feedback.Feedback `json:"feedback"`
}

func (s *Server) submitFeedback(ctx context.Context, args json.RawMessage) (any, error) {
	var params SubmitFeedbackParams
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.ModelVersion == "" {
		params.ModelVersion = s.deps.Schema.ModelVersion
	}

	fb := &feedback.Feedback{
		AssessmentID:       params.AssessmentID,
		ModelVersion:       params.ModelVersion,
		SuggestedDiagnosis: params.SuggestedDiagnosis,
		Confidence:         params.Confidence,
		PhenotypeID:        params.PhenotypeID,
		ClinicianDiagnosis: params.ClinicianDiagnosis,
		Notes:              params.Notes,
	}
	if err := s.deps.Feedback.Save(ctx, fb); err != nil {
		return nil, err
	}

	msg := "Feedback saved: clinician agreed with the suggested diagnosis"
	if !fb.Agreed {
		msg = fmt.Sprintf("Feedback saved: diagnosis corrected from %s to %s", fb.SuggestedDiagnosis, fb.ClinicianDiagnosis)
	}
	return SubmitFeedbackResult{Success: true, Message: msg, Feedback: fb}, nil
}

// QueryFeedbackResult is the outcome of query_feedback.
type QueryFeedbackResult struct {
	Found    bool               `json:"found"`
	Message  string             `json:"message"`
	Feedback *feedback.Feedback `json:"feedback,omitempty"`
}

func (s *Server) queryFeedback(ctx context.Context, args json.RawMessage) (any, error) {
	var params struct {
		AssessmentID string `json:"assessment_id"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.AssessmentID == "" {
		return nil, domain.NewValidationError("assessment_id", "is required", nil)
	}

	fb, err := s.deps.Feedback.Get(ctx, params.AssessmentID)
	if err != nil {
		return nil, err
	}
	if fb == nil {
		return QueryFeedbackResult{Found: false, Message: "No feedback recorded for assessment " + params.AssessmentID}, nil
	}
	return QueryFeedbackResult{Found: true, Message: "Feedback found", Feedback: fb}, nil
}

// ListFeedbackResult is one page of list_feedback.
type ListFeedbackResult struct {
	Feedback []*feedback.Feedback `json:"feedback"`
	Total    int64                `json:"total"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
}

func (s *Server) listFeedback(ctx context.Context, args json.RawMessage) (any, error) {
	var params struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.Limit < 0 || params.Offset < 0 {
		return nil, domain.NewValidationError("limit", "limit and offset must be non-negative", nil)
	}
	if params.Limit == 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}

	entries, err := s.deps.Feedback.List(ctx, params.Limit, params.Offset)
	if err != nil {
		return nil, err
	}
	total, err := s.deps.Feedback.Count(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*feedback.Feedback{}
	}
	return ListFeedbackResult{Feedback: entries, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

// ExportFeedbackResult is the outcome of export_feedback.
type ExportFeedbackResult struct {
	Success  bool   `json:"success"`
	FilePath string `json:"file_path"`
	Count    int64  `json:"count"`
	Message  string `json:"message"`
}

func (s *Server) exportFeedback(ctx context.Context, _ json.RawMessage) (any, error) {
	dir := s.deps.ExportDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	filePath := filepath.Join(dir, fmt.Sprintf("feedback_export_%s.json", time.Now().Format("20060102_150405")))
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := s.deps.Feedback.ExportJSON(ctx, file); err != nil {
		return nil, err
	}
	count, err := s.deps.Feedback.Count(ctx)
	if err != nil {
		return nil, err
	}

	return ExportFeedbackResult{
		Success:  true,
		FilePath: filePath,
		Count:    count,
		Message:  fmt.Sprintf("Exported %d feedback entries to %s", count, filePath),
	}, nil
}

// ImportFeedbackResult is the outcome of import_feedback.
type ImportFeedbackResult struct {
	Success  bool   `json:"success"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message"`
}

func (s *Server) importFeedback(ctx context.Context, args json.RawMessage) (any, error) {
	var params struct {
		FilePath string `json:"file_path"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.FilePath == "" {
		return nil, domain.NewValidationError("file_path", "is required", nil)
	}

	file, err := os.Open(params.FilePath)
	if err != nil {
		return nil, domain.NewValidationError("file_path", err.Error(), params.FilePath)
	}
	defer file.Close()

	imported, skipped, err := s.deps.Feedback.ImportJSON(ctx, file)
	if err != nil {
		return nil, err
	}
	return ImportFeedbackResult{
		Success:  true,
		Imported: imported,
		Skipped:  skipped,
		Message:  fmt.Sprintf("Imported %d feedback entries, skipped %d duplicates", imported, skipped),
	}, nil
}
