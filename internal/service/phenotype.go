package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/thyroid-risk-assessor/internal/domain"
)

const clusterModelName = "phenotype cluster model"

// summaryLabels names each compared feature in a phenotype summary.
var summaryLabels = map[string]string{
	domain.FeatureAge:        "age",
	domain.FeatureTSHLevel:   "TSH",
	domain.FeatureT3Level:    "T3",
	domain.FeatureT4Level:    "T4",
	domain.FeatureNoduleSize: "nodule size",
}

// PhenotypeClusterer assigns a phenotype vector to a cluster.
type PhenotypeClusterer struct {
	preprocessor domain.Preprocessor
	model        domain.ClusterModel
}

// NewPhenotypeClusterer pairs a preprocessor with the cluster model fitted on its output.
func NewPhenotypeClusterer(preprocessor domain.Preprocessor, model domain.ClusterModel) *PhenotypeClusterer {
	return &PhenotypeClusterer{preprocessor: preprocessor, model: model}
}

// Assign returns the cluster id of vec, always in [0, k).
func (c *PhenotypeClusterer) Assign(ctx context.Context, vec domain.FeatureVector) (int, error) {
	x, err := c.preprocessor.Transform(vec)
	if err != nil {
		return 0, domain.NewModelInferenceError(clusterModelName, fmt.Errorf("transform: %w", err))
	}

	id, err := c.model.Predict(ctx, x)
	if err != nil {
		return 0, domain.NewModelInferenceError(clusterModelName, fmt.Errorf("predict: %w", err))
	}

	if k := c.model.NumClusters(); id < 0 || id >= k {
		return 0, domain.NewModelInferenceError(clusterModelName,
			fmt.Errorf("cluster id %d outside [0, %d)", id, k))
	}
	return id, nil
}

// PhenotypeDescriber explains a cluster relative to the whole population.
type PhenotypeDescriber struct {
	summary      map[int]domain.PhenotypeProfile
	overallMeans map[string]float64
}

// NewPhenotypeDescriber builds a describer over precomputed cluster profiles and population
// means. Both maps are treated as read-only.
func NewPhenotypeDescriber(summary map[int]domain.PhenotypeProfile, overallMeans map[string]float64) *PhenotypeDescriber {
	return &PhenotypeDescriber{summary: summary, overallMeans: overallMeans}
}

// Describe summarizes cluster id. A feature is "higher" only when the cluster mean is strictly
// above the population mean.
func (d *PhenotypeDescriber) Describe(id int) (domain.PhenotypeDescription, error) {
	profile, ok := d.summary[id]
	if !ok {
		return domain.PhenotypeDescription{}, &domain.ConsistencyError{What: "phenotype summary row", Key: strconv.Itoa(id)}
	}

	parts := make([]string, 0, len(domain.ProfileNumericFeatures))
	for _, name := range domain.ProfileNumericFeatures {
		clusterMean, ok := profile.Numeric[name]
		if !ok {
			return domain.PhenotypeDescription{}, &domain.ConsistencyError{
				What: fmt.Sprintf("cluster %d numeric column", id), Key: name,
			}
		}
		overall, ok := d.overallMeans[name]
		if !ok {
			return domain.PhenotypeDescription{}, &domain.ConsistencyError{What: "overall mean", Key: name}
		}

		direction := "lower"
		if clusterMean > overall {
			direction = "higher"
		}
		parts = append(parts, direction+" "+summaryLabels[name])
	}

	categorical := make(map[string]string, len(domain.ProfileCategoricalFeatures))
	for _, name := range domain.ProfileCategoricalFeatures {
		value, ok := profile.Categorical[name]
		if !ok {
			return domain.PhenotypeDescription{}, &domain.ConsistencyError{
				What: fmt.Sprintf("cluster %d categorical column", id), Key: name,
			}
		}
		categorical[name] = value
	}

	return domain.PhenotypeDescription{
		ID:            id,
		Summary:       strings.Join(parts, ", ") + "; typical risk: " + categorical[domain.FeatureCancerRisk],
		Gender:        categorical[domain.FeatureGender],
		Iodine:        categorical[domain.FeatureIodineDeficiency],
		Radiation:     categorical[domain.FeatureRadiationExposure],
		FamilyHistory: categorical[domain.FeatureFamilyHistory],
	}, nil
}
