// Package domain contains the core entities for thyroid cancer risk assessment: the patient
// record fed to the trained models, the composite assessment report, the model ports and the
// typed errors raised while computing a report.
package domain

import "sort"

// Feature names as they appear in the trained model schemas.
const (
	FeatureAge               = "Age"
	FeatureGender            = "Gender"
	FeatureEthnicity         = "Ethnicity"
	FeatureFamilyHistory     = "Family_History"
	FeatureRadiationExposure = "Radiation_Exposure"
	FeatureIodineDeficiency  = "Iodine_Deficiency"
	FeatureSmoking           = "Smoking"
	FeatureObesity           = "Obesity"
	FeatureDiabetes          = "Diabetes"
	FeatureTSHLevel          = "TSH_Level"
	FeatureT3Level           = "T3_Level"
	FeatureT4Level           = "T4_Level"
	FeatureNoduleSize        = "Nodule_Size"
	FeatureCancerRisk        = "Thyroid_Cancer_Risk"
)

// FeatureKind distinguishes numeric model inputs from enumerated ones.
type FeatureKind int

const (
	NumericFeature FeatureKind = iota
	CategoricalFeature
)

// String returns the artifact spelling of the kind.
func (k FeatureKind) String() string {
	switch k {
	case NumericFeature:
		return "numeric"
	case CategoricalFeature:
		return "categorical"
	default:
		return "unknown"
	}
}

// NumericFeatures lists the floating-point features in record order.
var NumericFeatures = []string{
	FeatureAge,
	FeatureTSHLevel,
	FeatureT3Level,
	FeatureT4Level,
	FeatureNoduleSize,
}

// CategoricalFeatures lists the enumerated features in record order.
var CategoricalFeatures = []string{
	FeatureGender,
	FeatureEthnicity,
	FeatureFamilyHistory,
	FeatureRadiationExposure,
	FeatureIodineDeficiency,
	FeatureSmoking,
	FeatureObesity,
	FeatureDiabetes,
	FeatureCancerRisk,
}

var yesNo = []string{"No", "Yes"}

var categoricalOptions = map[string][]string{
	FeatureGender:            {"Female", "Male"},
	FeatureEthnicity:         {"African", "Asian", "Caucasian", "Hispanic", "Middle Eastern"},
	FeatureFamilyHistory:     yesNo,
	FeatureRadiationExposure: yesNo,
	FeatureIodineDeficiency:  yesNo,
	FeatureSmoking:           yesNo,
	FeatureObesity:           yesNo,
	FeatureDiabetes:          yesNo,
	FeatureCancerRisk:        {"High", "Low", "Medium"},
}

// KindOf reports the kind of a known feature.
func KindOf(feature string) (FeatureKind, bool) {
	if _, ok := categoricalOptions[feature]; ok {
		return CategoricalFeature, true
	}
	for _, name := range NumericFeatures {
		if name == feature {
			return NumericFeature, true
		}
	}
	return 0, false
}

// Options returns the allowed values of a categorical feature, or nil for any other feature.
func Options(feature string) []string {
	opts, ok := categoricalOptions[feature]
	if !ok {
		return nil
	}
	return append([]string(nil), opts...)
}

// AllOptions returns a copy of every categorical option set keyed by feature name.
func AllOptions() map[string][]string {
	out := make(map[string][]string, len(categoricalOptions))
	for name, opts := range categoricalOptions {
		out[name] = append([]string(nil), opts...)
	}
	return out
}

// IsValidOption reports whether value belongs to the option set of feature.
func IsValidOption(feature, value string) bool {
	for _, opt := range categoricalOptions[feature] {
		if opt == value {
			return true
		}
	}
	return false
}

// PatientRecord is the validated clinical input of one assessment. Numeric fields are always
// set; categorical fields are optional and left empty when unknown.
type PatientRecord struct {
	Age        float64 `json:"Age"`
	TSHLevel   float64 `json:"TSH_Level"`
	T3Level    float64 `json:"T3_Level"`
	T4Level    float64 `json:"T4_Level"`
	NoduleSize float64 `json:"Nodule_Size"`

	Gender            string `json:"Gender,omitempty"`
	Ethnicity         string `json:"Ethnicity,omitempty"`
	FamilyHistory     string `json:"Family_History,omitempty"`
	RadiationExposure string `json:"Radiation_Exposure,omitempty"`
	IodineDeficiency  string `json:"Iodine_Deficiency,omitempty"`
	Smoking           string `json:"Smoking,omitempty"`
	Obesity           string `json:"Obesity,omitempty"`
	Diabetes          string `json:"Diabetes,omitempty"`
	CancerRisk        string `json:"Thyroid_Cancer_Risk,omitempty"`
}

// Attributes is a feature-name keyed view of a patient. Numeric values are float64,
// categorical values are strings.
type Attributes map[string]any

// Names returns the attribute names in lexical order.
func (a Attributes) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Attributes converts the record into its mapping form. Unset categorical fields are omitted.
func (p PatientRecord) Attributes() Attributes {
	attrs := Attributes{
		FeatureAge:        p.Age,
		FeatureTSHLevel:   p.TSHLevel,
		FeatureT3Level:    p.T3Level,
		FeatureT4Level:    p.T4Level,
		FeatureNoduleSize: p.NoduleSize,
	}

	categorical := map[string]string{
		FeatureGender:            p.Gender,
		FeatureEthnicity:         p.Ethnicity,
		FeatureFamilyHistory:     p.FamilyHistory,
		FeatureRadiationExposure: p.RadiationExposure,
		FeatureIodineDeficiency:  p.IodineDeficiency,
		FeatureSmoking:           p.Smoking,
		FeatureObesity:           p.Obesity,
		FeatureDiabetes:          p.Diabetes,
		FeatureCancerRisk:        p.CancerRisk,
	}
	for name, value := range categorical {
		if value != "" {
			attrs[name] = value
		}
	}
	return attrs
}

// SetCategorical assigns a categorical field by feature name. It returns false for names that
// are not categorical features.
func (p *PatientRecord) SetCategorical(feature, value string) bool {
	switch feature {
	case FeatureGender:
		p.Gender = value
	case FeatureEthnicity:
		p.Ethnicity = value
	case FeatureFamilyHistory:
		p.FamilyHistory = value
	case FeatureRadiationExposure:
		p.RadiationExposure = value
	case FeatureIodineDeficiency:
		p.IodineDeficiency = value
	case FeatureSmoking:
		p.Smoking = value
	case FeatureObesity:
		p.Obesity = value
	case FeatureDiabetes:
		p.Diabetes = value
	case FeatureCancerRisk:
		p.CancerRisk = value
	default:
		return false
	}
	return true
}

// SetNumeric assigns a numeric field by feature name. It returns false for names that are not
// numeric features.
func (p *PatientRecord) SetNumeric(feature string, value float64) bool {
	switch feature {
	case FeatureAge:
		p.Age = value
	case FeatureTSHLevel:
		p.TSHLevel = value
	case FeatureT3Level:
		p.T3Level = value
	case FeatureT4Level:
		p.T4Level = value
	case FeatureNoduleSize:
		p.NoduleSize = value
	default:
		return false
	}
	return true
}
