package service

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thyroid-risk-assessor/internal/domain"
	"github.com/thyroid-risk-assessor/internal/model"
)

const testBundleDir = "../model/testdata/bundle"

// MockClassifierModel is a mock implementation of domain.ClassifierModel
type MockClassifierModel struct {
	mock.Mock
}

func (m *MockClassifierModel) Classes() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockClassifierModel) Predict(ctx context.Context, vec domain.FeatureVector) (string, error) {
	args := m.Called(ctx, vec)
	return args.String(0), args.Error(1)
}

func (m *MockClassifierModel) PredictProba(ctx context.Context, vec domain.FeatureVector) ([]float64, error) {
	args := m.Called(ctx, vec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

func (m *MockClassifierModel) PredictWithProba(ctx context.Context, vec domain.FeatureVector) (string, []float64, error) {
	args := m.Called(ctx, vec)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).([]float64), args.Error(2)
}

// MockClusterModel is a mock implementation of domain.ClusterModel
type MockClusterModel struct {
	mock.Mock
}

func (m *MockClusterModel) NumClusters() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockClusterModel) Predict(ctx context.Context, x []float64) (int, error) {
	args := m.Called(ctx, x)
	return args.Int(0), args.Error(1)
}

// MockPreprocessor is a mock implementation of domain.Preprocessor
type MockPreprocessor struct {
	mock.Mock
}

func (m *MockPreprocessor) Transform(vec domain.FeatureVector) ([]float64, error) {
	args := m.Called(vec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

// MockReportCache is a mock implementation of domain.ReportCache
type MockReportCache struct {
	mock.Mock
}

func (m *MockReportCache) Get(ctx context.Context, key string) (*domain.AssessmentReport, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.AssessmentReport), args.Bool(1), args.Error(2)
}

func (m *MockReportCache) Set(ctx context.Context, key string, report *domain.AssessmentReport) error {
	args := m.Called(ctx, key, report)
	return args.Error(0)
}

// MockAssessor is a mock implementation of domain.Assessor
type MockAssessor struct {
	mock.Mock
}

func (m *MockAssessor) Assess(ctx context.Context, patient domain.PatientRecord) (*domain.AssessmentReport, error) {
	args := m.Called(ctx, patient)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AssessmentReport), args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func loadTestBundle(t *testing.T) *model.Bundle {
	t.Helper()
	b, err := model.LoadBundle(testBundleDir)
	require.NoError(t, err)
	return b
}

// malignantPatient lands in the high-risk leaf of the test tree and in cluster 1.
func malignantPatient() domain.PatientRecord {
	return domain.PatientRecord{
		Age:               60,
		TSHLevel:          0.05,
		T3Level:           3.5,
		T4Level:           15,
		NoduleSize:        4.2,
		Gender:            "Male",
		Ethnicity:         "Caucasian",
		FamilyHistory:     "No",
		RadiationExposure: "No",
		IodineDeficiency:  "No",
		Smoking:           "No",
		Obesity:           "No",
		Diabetes:          "No",
		CancerRisk:        "Low",
	}
}

// youngPatient lands in cluster 0.
func youngPatient() domain.PatientRecord {
	return domain.PatientRecord{
		Age:               40,
		TSHLevel:          2.5,
		T3Level:           2.0,
		T4Level:           8,
		NoduleSize:        1.5,
		Gender:            "Female",
		Ethnicity:         "Asian",
		FamilyHistory:     "No",
		RadiationExposure: "No",
		IodineDeficiency:  "No",
		Smoking:           "Yes",
		Obesity:           "No",
		Diabetes:          "No",
		CancerRisk:        "High",
	}
}
