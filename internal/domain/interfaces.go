package domain

import (
	"context"
)

// ClassifierModel is a trained diagnostic classifier. For a given input and model version its
// output is deterministic.
type ClassifierModel interface {
	Classes() []string
	Predict(ctx context.Context, vec FeatureVector) (string, error)
	PredictProba(ctx context.Context, vec FeatureVector) ([]float64, error)
	// PredictWithProba returns the label and the probabilities from a single evaluation.
	PredictWithProba(ctx context.Context, vec FeatureVector) (string, []float64, error)
}

// Preprocessor maps a phenotype feature vector into the numeric space of the cluster model.
type Preprocessor interface {
	Transform(vec FeatureVector) ([]float64, error)
}

// ClusterModel assigns a transformed vector to exactly one cluster in [0, NumClusters()).
type ClusterModel interface {
	NumClusters() int
	Predict(ctx context.Context, x []float64) (int, error)
}

// Assessor produces a composite report for one patient.
type Assessor interface {
	Assess(ctx context.Context, patient PatientRecord) (*AssessmentReport, error)
}

// ReportCache memoizes assessment reports under an opaque key.
type ReportCache interface {
	Get(ctx context.Context, key string) (*AssessmentReport, bool, error)
	Set(ctx context.Context, key string, report *AssessmentReport) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	Validate() error
	GetDatabaseConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
