// Package feedback stores clinician feedback on assessment reports: whether the clinician
// agreed with the suggested diagnosis and, if not, what they concluded instead.
package feedback

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// Feedback represents a clinician's review of one assessment.
type Feedback struct {
	ID                 int64     `json:"id,omitempty"`
	AssessmentID       string    `json:"assessment_id"`
	ModelVersion       string    `json:"model_version,omitempty"`
	SuggestedDiagnosis string    `json:"suggested_diagnosis"`
	Confidence         float64   `json:"confidence"`
	PhenotypeID        int       `json:"phenotype_id"`
	ClinicianDiagnosis string    `json:"clinician_diagnosis"`
	Agreed             bool      `json:"agreed"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// FromReport prefills feedback with the report's suggestion.
func FromReport(report *domain.AssessmentReport, clinicianDiagnosis, notes string) *Feedback {
	return &Feedback{
		AssessmentID:       report.ID,
		ModelVersion:       report.ModelVersion,
		SuggestedDiagnosis: report.Diagnosis,
		Confidence:         report.Confidence,
		PhenotypeID:        report.Phenotype.ID,
		ClinicianDiagnosis: clinicianDiagnosis,
		Notes:              notes,
	}
}

// Validate checks required fields and derives Agreed.
func (f *Feedback) Validate() error {
	if f.AssessmentID == "" {
		return domain.NewValidationError("assessment_id", "is required", f.AssessmentID)
	}
	if f.SuggestedDiagnosis == "" {
		return domain.NewValidationError("suggested_diagnosis", "is required", f.SuggestedDiagnosis)
	}
	if f.ClinicianDiagnosis == "" {
		return domain.NewValidationError("clinician_diagnosis", "is required", f.ClinicianDiagnosis)
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return domain.NewValidationError("confidence", fmt.Sprintf("must be within [0, 1], got %v", f.Confidence), f.Confidence)
	}
	f.Agreed = f.SuggestedDiagnosis == f.ClinicianDiagnosis
	return nil
}

// Store defines the interface for feedback storage operations.
type Store interface {
	// Save stores or updates feedback. Feedback for the same assessment is overwritten.
	Save(ctx context.Context, feedback *Feedback) error

	// Get retrieves feedback for an assessment, or nil when there is none.
	Get(ctx context.Context, assessmentID string) (*Feedback, error)

	// List returns feedback entries, newest first.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	// Count returns the total number of feedback entries.
	Count(ctx context.Context) (int64, error)

	// Delete removes a feedback entry by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all feedback to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports feedback from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// FeedbackExport represents the JSON export format.
type FeedbackExport struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}

// exportVersion is the current export format version.
const exportVersion = "1.0"

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

const selectColumns = `id, assessment_id, model_version, suggested_diagnosis, confidence,
	phenotype_id, clinician_diagnosis, agreed, notes, created_at, updated_at`

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanFeedback scans a row into a Feedback struct.
func scanFeedback(s scanner) (*Feedback, error) {
	fb := &Feedback{}
	err := s.Scan(
		&fb.ID, &fb.AssessmentID, &fb.ModelVersion, &fb.SuggestedDiagnosis, &fb.Confidence,
		&fb.PhenotypeID, &fb.ClinicianDiagnosis, &fb.Agreed, &fb.Notes, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return fb, nil
}
