package model

import (
	"context"
	"fmt"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// Node is one node of a fitted decision tree. Leaves have Feature < 0 and carry per-class
// sample weights in Value; internal nodes send x[Feature] <= Threshold to Left.
type Node struct {
	Feature   int       `json:"feature" yaml:"feature"`
	Threshold float64   `json:"threshold" yaml:"threshold"`
	Left      int       `json:"left" yaml:"left"`
	Right     int       `json:"right" yaml:"right"`
	Value     []float64 `json:"value,omitempty" yaml:"value"`
}

// IsLeaf reports whether n terminates a path.
func (n Node) IsLeaf() bool {
	return n.Feature < 0
}

// TreeClassifier is an encoder followed by a single decision tree.
type TreeClassifier struct {
	ClassLabels []string `json:"classes" yaml:"classes"`
	Encoder     Encoder  `json:"encoder" yaml:"encoder"`
	Nodes       []Node   `json:"nodes" yaml:"nodes"`
}

var _ domain.ClassifierModel = (*TreeClassifier)(nil)

// Validate checks classes, encoder and tree structure agree.
func (t *TreeClassifier) Validate() error {
	if len(t.ClassLabels) == 0 {
		return fmt.Errorf("classifier has no classes")
	}
	seen := make(map[string]bool, len(t.ClassLabels))
	for _, c := range t.ClassLabels {
		if seen[c] {
			return fmt.Errorf("classifier has duplicate class %q", c)
		}
		seen[c] = true
	}

	if err := t.Encoder.Validate(); err != nil {
		return fmt.Errorf("classifier encoder: %w", err)
	}
	if len(t.Nodes) == 0 {
		return fmt.Errorf("classifier tree has no nodes")
	}

	width := t.Encoder.Width()
	for i, n := range t.Nodes {
		if n.IsLeaf() {
			if len(n.Value) != len(t.ClassLabels) {
				return fmt.Errorf("leaf %d has %d class weights, want %d", i, len(n.Value), len(t.ClassLabels))
			}
			total := 0.0
			for _, w := range n.Value {
				if w < 0 {
					return fmt.Errorf("leaf %d has negative weight", i)
				}
				total += w
			}
			if total == 0 {
				return fmt.Errorf("leaf %d has zero total weight", i)
			}
			continue
		}
		if n.Feature >= width {
			return fmt.Errorf("node %d splits on feature %d, encoded width is %d", i, n.Feature, width)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// Classes returns the class labels in probability order.
func (t *TreeClassifier) Classes() []string {
	return append([]string(nil), t.ClassLabels...)
}

// PredictProba returns the normalized leaf weights reached by vec.
func (t *TreeClassifier) PredictProba(ctx context.Context, vec domain.FeatureVector) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x, err := t.Encoder.Transform(vec)
	if err != nil {
		return nil, err
	}

	leaf, err := t.leaf(x)
	if err != nil {
		return nil, err
	}

	total := 0.0
	for _, w := range leaf.Value {
		total += w
	}
	proba := make([]float64, len(leaf.Value))
	for i, w := range leaf.Value {
		proba[i] = w / total
	}
	return proba, nil
}

// Predict returns the most probable class. Ties go to the earliest class.
func (t *TreeClassifier) Predict(ctx context.Context, vec domain.FeatureVector) (string, error) {
	label, _, err := t.PredictWithProba(ctx, vec)
	return label, err
}

// PredictWithProba returns the most probable class and the leaf probabilities it was read from.
func (t *TreeClassifier) PredictWithProba(ctx context.Context, vec domain.FeatureVector) (string, []float64, error) {
	proba, err := t.PredictProba(ctx, vec)
	if err != nil {
		return "", nil, err
	}

	best := 0
	for i := 1; i < len(proba); i++ {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return t.ClassLabels[best], proba, nil
}

func (t *TreeClassifier) leaf(x []float64) (Node, error) {
	i := 0
	for steps := 0; steps < len(t.Nodes); steps++ {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n, nil
		}
		if n.Feature >= len(x) {
			return Node{}, fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, len(x))
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		if i < 0 || i >= len(t.Nodes) {
			return Node{}, fmt.Errorf("tree walk left the node table at %d", i)
		}
	}
	return Node{}, fmt.Errorf("tree walk did not reach a leaf")
}
