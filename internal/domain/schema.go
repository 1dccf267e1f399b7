package domain

// FeatureSchema describes one patient attribute as accepted by the assessment surfaces.
type FeatureSchema struct {
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	Options    []string  `json:"options,omitempty"`
	Default    *float64  `json:"default,omitempty"`
	Required   bool      `json:"required"`
	UsedBy     []string  `json:"used_by"`
	Thresholds []float64 `json:"thresholds,omitempty"`
}

// Schema is the input contract of a deployed model bundle.
type Schema struct {
	ModelVersion string          `json:"model_version"`
	Features     []FeatureSchema `json:"features"`
}

// Feature consumers reported in FeatureSchema.UsedBy.
const (
	UsedByClassifier = "classifier"
	UsedByPhenotype  = "phenotype"
	UsedByRiskZones  = "risk_zones"
)
