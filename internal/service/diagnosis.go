package service

import (
	"context"
	"fmt"

	"github.com/thyroid-risk-assessor/internal/domain"
)

const classifierModelName = "diagnostic classifier"

// DiagnosticClassifier turns a classifier vector into a diagnosis and its confidence.
type DiagnosticClassifier struct {
	model domain.ClassifierModel
}

// NewDiagnosticClassifier wraps model.
func NewDiagnosticClassifier(model domain.ClassifierModel) *DiagnosticClassifier {
	return &DiagnosticClassifier{model: model}
}

// Diagnose returns the predicted label and the probability the model assigns to that same label.
// Both come from one model evaluation, and the label must be the most probable class.
func (d *DiagnosticClassifier) Diagnose(ctx context.Context, vec domain.FeatureVector) (string, float64, error) {
	label, proba, err := d.model.PredictWithProba(ctx, vec)
	if err != nil {
		return "", 0, domain.NewModelInferenceError(classifierModelName, fmt.Errorf("predict: %w", err))
	}

	classes := d.model.Classes()
	if len(proba) != len(classes) {
		return "", 0, domain.NewModelInferenceError(classifierModelName,
			fmt.Errorf("probability vector has %d entries for %d classes", len(proba), len(classes)))
	}

	idx := -1
	for i, class := range classes {
		if class == label {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", 0, domain.NewModelInferenceError(classifierModelName,
			fmt.Errorf("predicted label %q is not one of %v", label, classes))
	}

	for i, p := range proba {
		if p > proba[idx] {
			return "", 0, domain.NewModelInferenceError(classifierModelName,
				fmt.Errorf("predicted label %q (p=%.4f) is less probable than %q (p=%.4f)", label, proba[idx], classes[i], p))
		}
	}
	return label, proba[idx], nil
}
