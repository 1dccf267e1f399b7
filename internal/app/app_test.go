package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thyroid-risk-assessor/internal/domain"
	"github.com/thyroid-risk-assessor/internal/feedback"
	"github.com/thyroid-risk-assessor/internal/service"
)

const testBundleDir = "../model/testdata/bundle"

func testConfig(t *testing.T) *domain.Config {
	t.Helper()
	return &domain.Config{
		Artifacts: domain.ArtifactsConfig{BundleDir: testBundleDir},
		Inference: domain.InferenceConfig{Mode: "local"},
		Feedback: domain.FeedbackConfig{
			Backend:    "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "feedback.db"),
		},
		Cache: domain.CacheConfig{Backend: "memory", MaxItems: 10},
	}
}

func quietLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func TestNew_LocalPipeline(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), quietLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "test-2024.1", a.Bundle.Version)
	assert.Equal(t, "test-2024.1", a.Schema.ModelVersion)
	assert.IsType(t, &service.CachedAssessor{}, a.Assessor)
	require.NotNil(t, a.Feedback)

	patient, err := a.Parser.Parse(map[string]any{
		"Age": 60, "TSH_Level": 0.05, "T3_Level": 3.5, "T4_Level": 15, "Nodule_Size": 4.2,
		"Gender": "Male", "Ethnicity": "Caucasian", "Family_History": "No",
		"Radiation_Exposure": "No", "Iodine_Deficiency": "No", "Smoking": "No",
		"Obesity": "No", "Diabetes": "No", "Thyroid_Cancer_Risk": "Low",
	})
	require.NoError(t, err)

	report, err := a.Assessor.Assess(ctx, patient)
	require.NoError(t, err)
	assert.Equal(t, "Malignant", report.Diagnosis)
	assert.Equal(t, 1, report.Phenotype.ID)
	assert.Equal(t, domain.ZoneLow, report.RiskAssessment[domain.FeatureTSHLevel].Zone)

	fb := feedback.FromReport(report, "Malignant", "")
	require.NoError(t, a.Feedback.Save(ctx, fb))
	assert.True(t, fb.Agreed)
}

func TestNew_WithoutCacheOrFeedback(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "none"
	cfg.Feedback.Backend = "none"

	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &service.Assessor{}, a.Assessor)
	assert.Nil(t, a.Feedback)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Config)
		errMsg string
	}{
		{"missing bundle", func(c *domain.Config) { c.Artifacts.BundleDir = "/nonexistent/bundle" }, "failed to load model bundle"},
		{"unknown cache", func(c *domain.Config) { c.Cache.Backend = "disk" }, "unknown cache backend"},
		{"unknown feedback", func(c *domain.Config) { c.Feedback.Backend = "mongo" }, "unknown feedback backend"},
		{"bad remote url", func(c *domain.Config) {
			c.Inference = domain.InferenceConfig{Mode: "remote", BaseURL: "::nope"}
		}, "invalid inference base URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			_, err := New(context.Background(), cfg, quietLogger())

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNew_RemoteClusterCountMustMatchSummary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models/dt", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "dt", "classes": []string{"Benign", "Malignant"}})
	})
	mux.HandleFunc("GET /v1/models/km", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "km", "num_clusters": 3})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Inference = domain.InferenceConfig{
		Mode:           "remote",
		BaseURL:        srv.URL,
		ClassifierName: "dt",
		ClusterName:    "km",
		RateLimit:      100,
	}

	_, err := New(context.Background(), cfg, quietLogger())

	var consistency *domain.ConsistencyError
	require.ErrorAs(t, err, &consistency)
	assert.Equal(t, "2", consistency.Key)
}

func newRemoteModelServer(t *testing.T, classifierVersion *atomic.Value) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models/dt", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name": "dt", "version": classifierVersion.Load(), "classes": []string{"Benign", "Malignant"},
		})
	})
	mux.HandleFunc("POST /v1/models/dt/predict", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]any{{"label": "Benign", "probabilities": []float64{0.9, 0.1}}},
		})
	})
	mux.HandleFunc("GET /v1/models/km", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "km", "num_clusters": 2})
	})
	mux.HandleFunc("POST /v1/models/km/predict", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"predictions": []map[string]any{{"cluster": 0}}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func remoteConfig(t *testing.T, baseURL string) *domain.Config {
	t.Helper()
	cfg := testConfig(t)
	cfg.Cache.Backend = "none"
	cfg.Feedback.Backend = "none"
	cfg.Inference = domain.InferenceConfig{
		Mode:           "remote",
		BaseURL:        baseURL,
		ClassifierName: "dt",
		ClusterName:    "km",
		RateLimit:      100,
	}
	return cfg
}

func remotePatient() domain.PatientRecord {
	return domain.PatientRecord{
		Age: 60, TSHLevel: 0.05, T3Level: 3.5, T4Level: 15, NoduleSize: 4.2,
		Gender: "Male", Ethnicity: "Caucasian", FamilyHistory: "No", RadiationExposure: "No",
		IodineDeficiency: "No", Smoking: "No", Obesity: "No", Diabetes: "No", CancerRisk: "Low",
	}
}

func TestNew_RemoteModels(t *testing.T) {
	var version atomic.Value
	version.Store("7")
	srv := newRemoteModelServer(t, &version)

	a, err := New(context.Background(), remoteConfig(t, srv.URL), quietLogger())
	require.NoError(t, err)
	defer a.Close()

	report, err := a.Assessor.Assess(context.Background(), remotePatient())
	require.NoError(t, err)
	assert.Equal(t, "Benign", report.Diagnosis)
	assert.Equal(t, 0.9, report.Confidence)
	assert.Equal(t, 0, report.Phenotype.ID)
	assert.Equal(t, "test-2024.1+dt@7+km", report.ModelVersion)
	assert.Equal(t, report.ModelVersion, a.Schema.ModelVersion)
}

func TestNew_RemoteRedeployChangesVersionAndCacheKey(t *testing.T) {
	var version atomic.Value
	version.Store("7")
	srv := newRemoteModelServer(t, &version)
	ctx := context.Background()

	before, err := New(ctx, remoteConfig(t, srv.URL), quietLogger())
	require.NoError(t, err)
	defer before.Close()

	version.Store("8")
	after, err := New(ctx, remoteConfig(t, srv.URL), quietLogger())
	require.NoError(t, err)
	defer after.Close()

	require.NotEqual(t, before.Schema.ModelVersion, after.Schema.ModelVersion)

	keyBefore, err := service.CacheKey(before.Schema.ModelVersion, remotePatient())
	require.NoError(t, err)
	keyAfter, err := service.CacheKey(after.Schema.ModelVersion, remotePatient())
	require.NoError(t, err)
	assert.NotEqual(t, keyBefore, keyAfter)

	report, err := after.Assessor.Assess(ctx, remotePatient())
	require.NoError(t, err)
	assert.Equal(t, "test-2024.1+dt@8+km", report.ModelVersion)
}

func TestRemoteVersion(t *testing.T) {
	assert.Equal(t, "v1+dt@3+km@5", remoteVersion("v1", "dt", "3", "km", "5"))
	assert.Equal(t, "v1+dt+km", remoteVersion("v1", "dt", "", "km", ""))
	assert.Equal(t, "v1", remoteVersion("v1"))
}
