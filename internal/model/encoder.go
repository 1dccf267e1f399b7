// Package model runs the trained artifacts in process: the column encoder shared by both
// pipelines, the decision tree diagnostic classifier and the k-means phenotype model.
package model

import (
	"fmt"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// ColumnSpec describes how one input column is encoded. Numeric columns are standardized as
// (x - Mean) / Scale; categorical columns are one-hot encoded over Categories.
type ColumnSpec struct {
	Name       string   `json:"name" yaml:"name"`
	Kind       string   `json:"kind" yaml:"kind"`
	Mean       float64  `json:"mean,omitempty" yaml:"mean"`
	Scale      float64  `json:"scale,omitempty" yaml:"scale"`
	Categories []string `json:"categories,omitempty" yaml:"categories"`
}

func (c ColumnSpec) width() int {
	if c.Kind == domain.CategoricalFeature.String() {
		return len(c.Categories)
	}
	return 1
}

// Encoder maps a feature vector onto the numeric space a model was fitted in.
type Encoder struct {
	Columns []ColumnSpec `json:"columns" yaml:"columns"`
}

// Validate checks the encoder is usable.
func (e *Encoder) Validate() error {
	if len(e.Columns) == 0 {
		return fmt.Errorf("encoder has no columns")
	}
	for i, col := range e.Columns {
		kind, ok := domain.KindOf(col.Name)
		if !ok {
			return fmt.Errorf("encoder column at index %d: unknown feature %q", i, col.Name)
		}
		if col.Kind != kind.String() {
			return fmt.Errorf("encoder column %q: kind %q, want %q", col.Name, col.Kind, kind)
		}
		if kind == domain.CategoricalFeature && len(col.Categories) == 0 {
			return fmt.Errorf("encoder column %q: no categories", col.Name)
		}
		if col.Scale < 0 {
			return fmt.Errorf("encoder column %q: negative scale %v", col.Name, col.Scale)
		}
	}
	return nil
}

// Names returns the input column order.
func (e *Encoder) Names() []string {
	names := make([]string, len(e.Columns))
	for i, col := range e.Columns {
		names[i] = col.Name
	}
	return names
}

// Width is the length of an encoded row.
func (e *Encoder) Width() int {
	n := 0
	for _, col := range e.Columns {
		n += col.width()
	}
	return n
}

// Transform encodes vec. Unknown categories encode as all zeros.
func (e *Encoder) Transform(vec domain.FeatureVector) ([]float64, error) {
	if len(vec) != len(e.Columns) {
		return nil, fmt.Errorf("encoder expects %d columns, got %d", len(e.Columns), len(vec))
	}

	out := make([]float64, 0, e.Width())
	for i, col := range e.Columns {
		v := vec[i]
		if v.Name != col.Name {
			return nil, fmt.Errorf("column %d: expected %q, got %q", i, col.Name, v.Name)
		}
		if v.Kind.String() != col.Kind {
			return nil, fmt.Errorf("column %q: expected %s value, got %s", col.Name, col.Kind, v.Kind)
		}

		if v.Kind == domain.NumericFeature {
			scale := col.Scale
			if scale == 0 {
				scale = 1
			}
			out = append(out, (v.Num-col.Mean)/scale)
			continue
		}

		for _, category := range col.Categories {
			if v.Str == category {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out, nil
}
