package intake

import (
	"github.com/thyroid-risk-assessor/internal/domain"
)

// DescribeSchema lists every patient attribute with its options, form default and the
// components that read it. A feature is required when either model consumes it.
func DescribeSchema(version string, classifierCols, phenotypeCols []string, zones domain.DangerZoneSpec) domain.Schema {
	inClassifier := toSet(classifierCols)
	inPhenotype := toSet(phenotypeCols)

	all := append(append([]string{}, domain.NumericFeatures...), domain.CategoricalFeatures...)
	out := domain.Schema{
		ModelVersion: version,
		Features:     make([]domain.FeatureSchema, 0, len(all)),
	}

	for _, name := range all {
		kind, _ := domain.KindOf(name)
		fs := domain.FeatureSchema{
			Name:   name,
			Kind:   kind.String(),
			UsedBy: []string{},
		}
		if kind == domain.CategoricalFeature {
			fs.Options = domain.Options(name)
		} else if def, ok := numericDefaults[name]; ok {
			d := def
			fs.Default = &d
		}
		if inClassifier[name] {
			fs.UsedBy = append(fs.UsedBy, domain.UsedByClassifier)
		}
		if inPhenotype[name] {
			fs.UsedBy = append(fs.UsedBy, domain.UsedByPhenotype)
		}
		if zone, ok := zones[name]; ok {
			fs.UsedBy = append(fs.UsedBy, domain.UsedByRiskZones)
			fs.Thresholds = append([]float64(nil), zone.Thresholds...)
		}
		fs.Required = inClassifier[name] || inPhenotype[name]
		out.Features = append(out.Features, fs)
	}
	return out
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
