// Package features projects a patient's attributes onto the ordered column lists the trained
// models were fitted on.
package features

import (
	"fmt"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// Value is one typed cell of a model input.
type Value = domain.FeatureValue

// Vectors holds the two model inputs derived from one patient.
type Vectors struct {
	Classifier domain.FeatureVector
	Phenotype  domain.FeatureVector
}

// Builder turns attribute mappings into classifier and phenotype vectors. It is immutable and
// safe for concurrent use.
type Builder struct {
	classifierColumns []string
	phenotypeColumns  []string
}

// NewBuilder validates both column lists against the feature registry.
func NewBuilder(classifierColumns, phenotypeColumns []string) (*Builder, error) {
	if err := validateColumns("classifier", classifierColumns); err != nil {
		return nil, err
	}
	if err := validateColumns("phenotype", phenotypeColumns); err != nil {
		return nil, err
	}

	return &Builder{
		classifierColumns: append([]string(nil), classifierColumns...),
		phenotypeColumns:  append([]string(nil), phenotypeColumns...),
	}, nil
}

func validateColumns(list string, columns []string) error {
	if len(columns) == 0 {
		return &domain.SchemaError{Field: list, Reason: "column list is empty"}
	}

	seen := make(map[string]bool, len(columns))
	for i, name := range columns {
		if _, ok := domain.KindOf(name); !ok {
			return &domain.SchemaError{Field: name, Reason: fmt.Sprintf("unknown column at index %d of %s list", i, list)}
		}
		if seen[name] {
			return &domain.SchemaError{Field: name, Reason: fmt.Sprintf("duplicate column in %s list", list)}
		}
		seen[name] = true
	}
	return nil
}

// ClassifierColumns returns the classifier column order.
func (b *Builder) ClassifierColumns() []string {
	return append([]string(nil), b.classifierColumns...)
}

// PhenotypeColumns returns the phenotype column order.
func (b *Builder) PhenotypeColumns() []string {
	return append([]string(nil), b.phenotypeColumns...)
}

// Build projects attrs onto both column lists. Attributes not named by a list are ignored.
func (b *Builder) Build(attrs domain.Attributes) (Vectors, error) {
	classifier, err := project(attrs, b.classifierColumns)
	if err != nil {
		return Vectors{}, err
	}
	phenotype, err := project(attrs, b.phenotypeColumns)
	if err != nil {
		return Vectors{}, err
	}
	return Vectors{Classifier: classifier, Phenotype: phenotype}, nil
}

func project(attrs domain.Attributes, columns []string) (domain.FeatureVector, error) {
	vec := make(domain.FeatureVector, 0, len(columns))
	for _, name := range columns {
		raw, ok := attrs[name]
		if !ok {
			return nil, &domain.SchemaError{Field: name, Reason: "required column is missing"}
		}

		kind, _ := domain.KindOf(name)
		value := Value{Name: name, Kind: kind}

		switch kind {
		case domain.NumericFeature:
			num, ok := numeric(raw)
			if !ok {
				return nil, &domain.SchemaError{Field: name, Reason: fmt.Sprintf("expected a number, got %T", raw)}
			}
			value.Num = num
		case domain.CategoricalFeature:
			str, ok := raw.(string)
			if !ok {
				return nil, &domain.SchemaError{Field: name, Reason: fmt.Sprintf("expected a string, got %T", raw)}
			}
			value.Str = str
		}

		vec = append(vec, value)
	}
	return vec, nil
}

// numeric accepts Go number types only. Strings are rejected so that coercion stays with the
// input boundary.
func numeric(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
