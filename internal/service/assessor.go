package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/thyroid-risk-assessor/internal/domain"
	"github.com/thyroid-risk-assessor/internal/features"
	"github.com/thyroid-risk-assessor/internal/model"
)

// Dependencies are the read-only collaborators of an Assessor.
type Dependencies struct {
	Builder          *features.Builder
	Classifier       domain.ClassifierModel
	Preprocessor     domain.Preprocessor
	ClusterModel     domain.ClusterModel
	PhenotypeSummary map[int]domain.PhenotypeProfile
	OverallMeans     map[string]float64
	DangerZones      domain.DangerZoneSpec
	ModelVersion     string
	Logger           *logrus.Logger

	// Clock and NewID default to time.Now and uuid.NewString.
	Clock func() time.Time
	NewID func() string
}

// DependenciesFromBundle wires every collaborator from a loaded bundle using the in-process
// models.
func DependenciesFromBundle(b *model.Bundle, logger *logrus.Logger) (Dependencies, error) {
	builder, err := features.NewBuilder(b.FeatureColumns, b.PhenotypeFeatures)
	if err != nil {
		return Dependencies{}, fmt.Errorf("failed to create feature builder: %w", err)
	}

	return Dependencies{
		Builder:          builder,
		Classifier:       b.Classifier,
		Preprocessor:     b.Preprocessor,
		ClusterModel:     b.Clusters,
		PhenotypeSummary: b.PhenotypeSummary,
		OverallMeans:     b.OverallMeans,
		DangerZones:      b.DangerZones,
		ModelVersion:     b.Version,
		Logger:           logger,
	}, nil
}

// Assessor combines diagnosis, phenotyping and risk zoning into one report. It holds no mutable
// state and is safe for concurrent use.
type Assessor struct {
	builder    *features.Builder
	classifier *DiagnosticClassifier
	clusterer  *PhenotypeClusterer
	describer  *PhenotypeDescriber
	zones      *RiskZoneEvaluator
	version    string
	logger     *logrus.Logger
	clock      func() time.Time
	newID      func() string
}

var _ domain.Assessor = (*Assessor)(nil)

// NewAssessor creates a new assessor
func NewAssessor(deps Dependencies) (*Assessor, error) {
	switch {
	case deps.Builder == nil:
		return nil, errors.New("feature builder is required")
	case deps.Classifier == nil:
		return nil, errors.New("classifier model is required")
	case deps.Preprocessor == nil:
		return nil, errors.New("phenotype preprocessor is required")
	case deps.ClusterModel == nil:
		return nil, errors.New("cluster model is required")
	case deps.PhenotypeSummary == nil:
		return nil, errors.New("phenotype summary is required")
	case deps.OverallMeans == nil:
		return nil, errors.New("overall means are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Assessor{
		builder:    deps.Builder,
		classifier: NewDiagnosticClassifier(deps.Classifier),
		clusterer:  NewPhenotypeClusterer(deps.Preprocessor, deps.ClusterModel),
		describer:  NewPhenotypeDescriber(deps.PhenotypeSummary, deps.OverallMeans),
		zones:      NewRiskZoneEvaluator(deps.DangerZones),
		version:    deps.ModelVersion,
		logger:     logger,
		clock:      clock,
		newID:      newID,
	}, nil
}

// ModelVersion returns the version of the artifacts behind the assessor.
func (a *Assessor) ModelVersion() string {
	return a.version
}

// Builder returns the feature builder, which exposes the model column lists.
func (a *Assessor) Builder() *features.Builder {
	return a.builder
}

// Assess runs the full assessment for one patient.
func (a *Assessor) Assess(ctx context.Context, patient domain.PatientRecord) (*domain.AssessmentReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("assessment cancelled: %w", err)
	}

	startTime := a.clock()
	a.logger.WithField("model_version", a.version).Debug("Starting patient assessment")

	attrs := patient.Attributes()

	vecs, err := a.builder.Build(attrs)
	if err != nil {
		return nil, a.fail("feature vectors", err)
	}

	diagnosis, confidence, err := a.classifier.Diagnose(ctx, vecs.Classifier)
	if err != nil {
		return nil, a.fail("diagnosis", err)
	}

	clusterID, err := a.clusterer.Assign(ctx, vecs.Phenotype)
	if err != nil {
		return nil, a.fail("phenotype assignment", err)
	}

	phenotype, err := a.describer.Describe(clusterID)
	if err != nil {
		return nil, a.fail("phenotype description", err)
	}

	zones, err := a.zones.Evaluate(attrs)
	if err != nil {
		return nil, a.fail("risk zones", err)
	}

	report := &domain.AssessmentReport{
		ID:             a.newID(),
		Diagnosis:      diagnosis,
		Confidence:     confidence,
		Phenotype:      phenotype,
		RiskAssessment: zones,
		ModelVersion:   a.version,
		AssessedAt:     startTime.UTC(),
	}

	a.logger.WithFields(logrus.Fields{
		"assessment_id":   report.ID,
		"diagnosis":       report.Diagnosis,
		"confidence":      report.Confidence,
		"phenotype_id":    report.Phenotype.ID,
		"zoned_features":  len(report.RiskAssessment),
		"processing_time": a.clock().Sub(startTime),
	}).Info("Patient assessment completed")

	return report, nil
}

// fail wraps err with its stage and logs it at a level matching who is at fault.
func (a *Assessor) fail(stage string, err error) error {
	entry := a.logger.WithError(err).WithField("stage", stage)
	if domain.IsClientError(err) {
		entry.Warn("Patient assessment rejected")
	} else {
		entry.Error("Patient assessment failed")
	}
	return fmt.Errorf("%s: %w", stage, err)
}
