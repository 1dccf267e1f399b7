package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thyroid-risk-assessor/internal/domain"
)

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "feedback.db")

	// Act
	store, err := NewSQLiteStore(dbPath)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestFeedback_Validate(t *testing.T) {
	tests := []struct {
		name    string
		fb      Feedback
		field   string
		agreed  bool
		wantErr bool
	}{
		{"agreement", newFeedback("a-1", "Malignant", "Malignant"), "", true, false},
		{"disagreement", newFeedback("a-1", "Malignant", "Benign"), "", false, false},
		{"missing assessment", newFeedback("", "Malignant", "Benign"), "assessment_id", false, true},
		{"missing suggestion", newFeedback("a-1", "", "Benign"), "suggested_diagnosis", false, true},
		{"missing clinician", newFeedback("a-1", "Benign", ""), "clinician_diagnosis", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fb.Validate()
			if tt.wantErr {
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tt.field, verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.agreed, tt.fb.Agreed)
		})
	}

	bad := newFeedback("a-1", "Benign", "Benign")
	bad.Confidence = 1.2
	assert.Error(t, bad.Validate())
}

func TestFromReport(t *testing.T) {
	report := &domain.AssessmentReport{
		ID:           "rep-1",
		Diagnosis:    "Malignant",
		Confidence:   0.7,
		Phenotype:    domain.PhenotypeDescription{ID: 2},
		ModelVersion: "v3",
	}

	fb := FromReport(report, "Benign", "fine-needle aspiration negative")

	assert.Equal(t, "rep-1", fb.AssessmentID)
	assert.Equal(t, "v3", fb.ModelVersion)
	assert.Equal(t, "Malignant", fb.SuggestedDiagnosis)
	assert.Equal(t, 0.7, fb.Confidence)
	assert.Equal(t, 2, fb.PhenotypeID)
	assert.Equal(t, "Benign", fb.ClinicianDiagnosis)
	assert.Equal(t, "fine-needle aspiration negative", fb.Notes)
}

func TestSQLiteStore_Save(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	feedback := newFeedback("assess-1", "Malignant", "Benign")
	feedback.Notes = "Biopsy negative"

	// Act
	err := store.Save(ctx, &feedback)

	// Assert
	require.NoError(t, err)
	assert.NotZero(t, feedback.ID, "ID should be assigned")
	assert.False(t, feedback.Agreed)
	assert.False(t, feedback.CreatedAt.IsZero(), "CreatedAt should be set")
	assert.False(t, feedback.UpdatedAt.IsZero(), "UpdatedAt should be set")
}

func TestSQLiteStore_Save_RejectsInvalid(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	feedback := newFeedback("", "Malignant", "Benign")
	err := store.Save(context.Background(), &feedback)

	assert.True(t, domain.IsClientError(err))
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteStore_Save_Update(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	feedback := newFeedback("assess-1", "Malignant", "Benign")
	require.NoError(t, store.Save(ctx, &feedback))
	originalID := feedback.ID

	// Clinician revises after review
	revised := newFeedback("assess-1", "Malignant", "Malignant")
	revised.Notes = "Updated after pathology"
	require.NoError(t, store.Save(ctx, &revised))

	assert.Equal(t, originalID, revised.ID, "ID should remain the same on update")

	retrieved, err := store.Get(ctx, "assess-1")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, "Malignant", retrieved.ClinicianDiagnosis)
	assert.True(t, retrieved.Agreed)
	assert.Equal(t, "Updated after pathology", retrieved.Notes)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteStore_Get(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	saved := newFeedback("assess-7", "Benign", "Benign")
	saved.ModelVersion = "2024.1"
	saved.PhenotypeID = 3
	require.NoError(t, store.Save(ctx, &saved))

	retrieved, err := store.Get(ctx, "assess-7")

	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, saved.ID, retrieved.ID)
	assert.Equal(t, "2024.1", retrieved.ModelVersion)
	assert.Equal(t, 3, retrieved.PhenotypeID)
	assert.Equal(t, 0.8, retrieved.Confidence)
	assert.True(t, retrieved.Agreed)
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	retrieved, err := store.Get(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestSQLiteStore_List_Pagination(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		store.now = func() time.Time { return at }
		fb := newFeedback("assess-"+string(rune('a'+i)), "Benign", "Benign")
		require.NoError(t, store.Save(ctx, &fb))
	}

	first, err := store.List(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, "assess-e", first[0].AssessmentID, "newest first")

	rest, err := store.List(ctx, 3, 3)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "assess-a", rest[1].AssessmentID)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	fb := newFeedback("assess-1", "Benign", "Benign")
	require.NoError(t, store.Save(ctx, &fb))

	require.NoError(t, store.Delete(ctx, fb.ID))

	retrieved, err := store.Get(ctx, "assess-1")
	require.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestSQLiteStore_ExportJSON(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	for _, id := range []string{"assess-1", "assess-2"} {
		fb := newFeedback(id, "Malignant", "Benign")
		require.NoError(t, store.Save(ctx, &fb))
	}

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &buf))

	var export FeedbackExport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, 2, export.Count)
	assert.Len(t, export.Feedback, 2)
}

func TestSQLiteStore_ExportJSON_Empty(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(context.Background(), &buf))

	assert.Contains(t, buf.String(), `"feedback": []`)
}

func TestSQLiteStore_ImportJSON_SkipDuplicates(t *testing.T) {
	source := createTestStore(t)
	defer source.Close()

	ctx := context.Background()
	for _, id := range []string{"assess-1", "assess-2", "assess-3"} {
		fb := newFeedback(id, "Malignant", "Malignant")
		require.NoError(t, source.Save(ctx, &fb))
	}
	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))

	target := createTestStore(t)
	defer target.Close()
	existing := newFeedback("assess-2", "Malignant", "Benign")
	require.NoError(t, target.Save(ctx, &existing))

	imported, skipped, err := target.ImportJSON(ctx, &buf)

	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 1, skipped)

	kept, err := target.Get(ctx, "assess-2")
	require.NoError(t, err)
	assert.Equal(t, "Benign", kept.ClinicianDiagnosis, "existing entries are not overwritten")
}

func TestSQLiteStore_ImportJSON_InvalidInput(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	_, _, err := store.ImportJSON(context.Background(), strings.NewReader("{not json"))

	assert.Error(t, err)
}

func TestSQLiteStore_ImportJSON_RejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"null entry", `{"version":"1.0","feedback":[null]}`, "feedback[0]"},
		{"null after valid entry", `{"version":"1.0","feedback":[
			{"assessment_id":"a-1","suggested_diagnosis":"Benign","clinician_diagnosis":"Benign","confidence":0.7},
			null]}`, "feedback[1]"},
		{"missing assessment id", `{"version":"1.0","feedback":[
			{"suggested_diagnosis":"Benign","clinician_diagnosis":"Benign","confidence":0.7}]}`, "assessment_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := createTestStore(t)
			defer store.Close()
			ctx := context.Background()

			imported, skipped, err := store.ImportJSON(ctx, strings.NewReader(tt.input))

			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Contains(t, err.Error(), tt.field)
			assert.Zero(t, imported)
			assert.Zero(t, skipped)

			count, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, count, "nothing is written when any entry is rejected")
		})
	}
}

func newFeedback(assessmentID, suggested, clinician string) Feedback {
	return Feedback{
		AssessmentID:       assessmentID,
		SuggestedDiagnosis: suggested,
		ClinicianDiagnosis: clinician,
		Confidence:         0.8,
	}
}

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	return store
}
