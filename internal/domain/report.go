package domain

import "time"

// RiskZone is the band a numeric feature falls into under its danger-zone thresholds.
type RiskZone string

const (
	ZoneLow      RiskZone = "Low Risk"
	ZoneModerate RiskZone = "Moderate Risk"
	ZoneHigh     RiskZone = "High Risk"
	ZoneUnknown  RiskZone = "Unknown"
)

// DangerZone holds the ascending thresholds partitioning one feature's range.
type DangerZone struct {
	Thresholds []float64 `json:"thresholds" yaml:"thresholds"`
}

// DangerZoneSpec maps feature names to their danger zones.
type DangerZoneSpec map[string]DangerZone

// PhenotypeProfile is the representative row of one cluster: mean numeric values and modal
// categorical values, computed at training time.
type PhenotypeProfile struct {
	Numeric     map[string]float64 `json:"numeric"`
	Categorical map[string]string  `json:"categorical"`
}

// ProfileNumericFeatures are compared against the population means when describing a phenotype.
var ProfileNumericFeatures = []string{
	FeatureAge,
	FeatureTSHLevel,
	FeatureT3Level,
	FeatureT4Level,
	FeatureNoduleSize,
}

// ProfileCategoricalFeatures are read verbatim from a phenotype's summary row.
var ProfileCategoricalFeatures = []string{
	FeatureGender,
	FeatureIodineDeficiency,
	FeatureRadiationExposure,
	FeatureFamilyHistory,
	FeatureCancerRisk,
}

// PhenotypeDescription is the human readable summary of the cluster a patient belongs to.
type PhenotypeDescription struct {
	ID            int    `json:"id"`
	Summary       string `json:"summary"`
	Gender        string `json:"gender"`
	Iodine        string `json:"iodine"`
	Radiation     string `json:"radiation"`
	FamilyHistory string `json:"family_history"`
}

// RiskZoneResult is the zoning outcome for one feature.
type RiskZoneResult struct {
	Value      float64   `json:"value"`
	Zone       RiskZone  `json:"zone"`
	Thresholds []float64 `json:"thresholds"`
}

// AssessmentReport is the composite outcome of one assessment. It is built fresh for every
// request and never stored.
type AssessmentReport struct {
	ID             string                    `json:"id"`
	Diagnosis      string                    `json:"diagnosis"`
	Confidence     float64                   `json:"confidence"`
	Phenotype      PhenotypeDescription      `json:"phenotype"`
	RiskAssessment map[string]RiskZoneResult `json:"risk_assessment"`
	ModelVersion   string                    `json:"model_version,omitempty"`
	AssessedAt     time.Time                 `json:"assessed_at"`
}

// Clone returns a deep copy of the report.
func (r *AssessmentReport) Clone() *AssessmentReport {
	if r == nil {
		return nil
	}
	out := *r
	if r.RiskAssessment != nil {
		out.RiskAssessment = make(map[string]RiskZoneResult, len(r.RiskAssessment))
		for name, res := range r.RiskAssessment {
			res.Thresholds = append([]float64(nil), res.Thresholds...)
			out.RiskAssessment[name] = res
		}
	}
	return &out
}
