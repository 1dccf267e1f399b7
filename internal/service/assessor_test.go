package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thyroid-risk-assessor/internal/domain"
)

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestAssessor(t *testing.T, logger *logrus.Logger) *Assessor {
	t.Helper()
	deps, err := DependenciesFromBundle(loadTestBundle(t), logger)
	require.NoError(t, err)
	deps.Clock = func() time.Time { return fixedTime }
	deps.NewID = func() string { return "assessment-1" }

	a, err := NewAssessor(deps)
	require.NoError(t, err)
	return a
}

func TestAssessor_EndToEnd(t *testing.T) {
	a := newTestAssessor(t, quietLogger())

	report, err := a.Assess(context.Background(), malignantPatient())

	require.NoError(t, err)
	assert.Equal(t, "assessment-1", report.ID)
	assert.Equal(t, "test-2024.1", report.ModelVersion)
	assert.Equal(t, fixedTime, report.AssessedAt)
	assert.Equal(t, "Malignant", report.Diagnosis)
	assert.InDelta(t, 0.55, report.Confidence, 1e-9)

	assert.Equal(t, domain.PhenotypeDescription{
		ID:            1,
		Summary:       "higher age, lower TSH, higher T3, higher T4, higher nodule size; typical risk: Medium",
		Gender:        "Male",
		Iodine:        "No",
		Radiation:     "No",
		FamilyHistory: "Yes",
	}, report.Phenotype)

	assert.Equal(t, domain.RiskZoneResult{Value: 0.05, Zone: domain.ZoneLow, Thresholds: []float64{0.4, 4.0}},
		report.RiskAssessment["TSH_Level"])
	assert.Equal(t, domain.ZoneHigh, report.RiskAssessment["T3_Level"].Zone)
	assert.Equal(t, domain.ZoneHigh, report.RiskAssessment["T4_Level"].Zone)
	assert.Equal(t, domain.ZoneHigh, report.RiskAssessment["Nodule_Size"].Zone)
	assert.Equal(t, domain.ZoneHigh, report.RiskAssessment["Age"].Zone)
	assert.Len(t, report.RiskAssessment, 5)
}

func TestAssessor_SecondPhenotype(t *testing.T) {
	a := newTestAssessor(t, quietLogger())

	report, err := a.Assess(context.Background(), youngPatient())

	require.NoError(t, err)
	assert.Equal(t, "Malignant", report.Diagnosis)
	assert.InDelta(t, 0.7, report.Confidence, 1e-9)
	assert.Equal(t, 0, report.Phenotype.ID)
	assert.Equal(t, "lower age, higher TSH, lower T3, lower T4, lower nodule size; typical risk: Low", report.Phenotype.Summary)
	assert.Equal(t, "Female", report.Phenotype.Gender)
	assert.Equal(t, domain.ZoneModerate, report.RiskAssessment["TSH_Level"].Zone)
	assert.Equal(t, domain.ZoneHigh, report.RiskAssessment["T3_Level"].Zone)
	assert.Equal(t, domain.ZoneLow, report.RiskAssessment["Age"].Zone)
}

func TestAssessor_BenignLeaf(t *testing.T) {
	a := newTestAssessor(t, quietLogger())
	patient := malignantPatient()
	patient.NoduleSize = 2.0

	report, err := a.Assess(context.Background(), patient)

	require.NoError(t, err)
	assert.Equal(t, "Benign", report.Diagnosis)
	assert.InDelta(t, 0.8, report.Confidence, 1e-9)
}

func TestAssessor_MissingClassifierColumn(t *testing.T) {
	logger, hook := test.NewNullLogger()
	a := newTestAssessor(t, logger)
	patient := malignantPatient()
	patient.Smoking = ""

	_, err := a.Assess(context.Background(), patient)

	var schemaErr *domain.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "Smoking", schemaErr.Field)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestAssessor_ModelFailureIsLoggedAsError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	deps, err := DependenciesFromBundle(loadTestBundle(t), logger)
	require.NoError(t, err)

	failing := new(MockClassifierModel)
	failing.On("PredictWithProba", mock.Anything, mock.Anything).Return("", nil, errors.New("runtime crashed"))
	deps.Classifier = failing

	a, err := NewAssessor(deps)
	require.NoError(t, err)

	_, err = a.Assess(context.Background(), malignantPatient())

	var inferenceErr *domain.ModelInferenceError
	require.True(t, errors.As(err, &inferenceErr))
	assert.Contains(t, err.Error(), "diagnosis")
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "diagnosis", hook.LastEntry().Data["stage"])
}

func TestAssessor_CancelledContext(t *testing.T) {
	a := newTestAssessor(t, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Assess(ctx, malignantPatient())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewAssessor_RequiresDependencies(t *testing.T) {
	_, err := NewAssessor(Dependencies{})
	assert.Error(t, err)

	deps, err := DependenciesFromBundle(loadTestBundle(t), nil)
	require.NoError(t, err)
	deps.PhenotypeSummary = nil
	_, err = NewAssessor(deps)
	assert.Error(t, err)
}

func TestAssessor_ConcurrentUse(t *testing.T) {
	deps, err := DependenciesFromBundle(loadTestBundle(t), quietLogger())
	require.NoError(t, err)
	a, err := NewAssessor(deps)
	require.NoError(t, err)

	var wg sync.WaitGroup
	reports := make([]*domain.AssessmentReport, 32)
	errs := make([]error, len(reports))
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			patient := malignantPatient()
			if i%2 == 1 {
				patient = youngPatient()
			}
			reports[i], errs[i] = a.Assess(context.Background(), patient)
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	for i, report := range reports {
		require.NoError(t, errs[i])
		wantPhenotype := 1
		if i%2 == 1 {
			wantPhenotype = 0
		}
		assert.Equal(t, wantPhenotype, report.Phenotype.ID)
		ids[report.ID] = true
	}
	assert.Len(t, ids, len(reports))
}
