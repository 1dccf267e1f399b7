package inference

import (
	"context"
	"fmt"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// RemoteClassifier is a domain.ClassifierModel served by the model server.
type RemoteClassifier struct {
	client  *Client
	model   string
	version string
	classes []string
}

var _ domain.ClassifierModel = (*RemoteClassifier)(nil)

type classifierPrediction struct {
	Predictions []struct {
		Label         string    `json:"label"`
		Probabilities []float64 `json:"probabilities"`
	} `json:"predictions"`
}

// NewRemoteClassifier fetches the class order of model.
func NewRemoteClassifier(ctx context.Context, client *Client, model string) (*RemoteClassifier, error) {
	info, err := client.ModelInfo(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch classifier metadata: %w", err)
	}
	if len(info.Classes) == 0 {
		return nil, fmt.Errorf("classifier %q reports no classes", model)
	}
	return &RemoteClassifier{client: client, model: model, version: info.Version, classes: info.Classes}, nil
}

// Version returns the model version reported at start-up.
func (r *RemoteClassifier) Version() string {
	return r.version
}

// Classes returns the class order reported at start-up.
func (r *RemoteClassifier) Classes() []string {
	return append([]string(nil), r.classes...)
}

// Predict returns the server's label for vec.
func (r *RemoteClassifier) Predict(ctx context.Context, vec domain.FeatureVector) (string, error) {
	label, _, err := r.predict(ctx, vec)
	return label, err
}

// PredictProba returns the server's class probabilities for vec.
func (r *RemoteClassifier) PredictProba(ctx context.Context, vec domain.FeatureVector) ([]float64, error) {
	_, proba, err := r.predict(ctx, vec)
	return proba, err
}

// PredictWithProba returns the label and probabilities from one server response.
func (r *RemoteClassifier) PredictWithProba(ctx context.Context, vec domain.FeatureVector) (string, []float64, error) {
	return r.predict(ctx, vec)
}

func (r *RemoteClassifier) predict(ctx context.Context, vec domain.FeatureVector) (string, []float64, error) {
	var resp classifierPrediction
	if err := r.client.predict(ctx, r.model, vec.Map(), &resp); err != nil {
		return "", nil, err
	}
	if len(resp.Predictions) != 1 {
		return "", nil, fmt.Errorf("expected 1 prediction, got %d", len(resp.Predictions))
	}
	p := resp.Predictions[0]
	return p.Label, p.Probabilities, nil
}

// RemoteClusterModel is a domain.ClusterModel served by the model server.
type RemoteClusterModel struct {
	client  *Client
	model   string
	version string
	k       int
}

var _ domain.ClusterModel = (*RemoteClusterModel)(nil)

type clusterPrediction struct {
	Predictions []struct {
		Cluster int `json:"cluster"`
	} `json:"predictions"`
}

// NewRemoteClusterModel fetches the cluster count of model.
func NewRemoteClusterModel(ctx context.Context, client *Client, model string) (*RemoteClusterModel, error) {
	info, err := client.ModelInfo(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cluster model metadata: %w", err)
	}
	if info.NumClusters <= 0 {
		return nil, fmt.Errorf("cluster model %q reports %d clusters", model, info.NumClusters)
	}
	return &RemoteClusterModel{client: client, model: model, version: info.Version, k: info.NumClusters}, nil
}

// Version returns the model version reported at start-up.
func (r *RemoteClusterModel) Version() string {
	return r.version
}

// NumClusters returns k as reported at start-up.
func (r *RemoteClusterModel) NumClusters() int {
	return r.k
}

// Predict returns the server's cluster for the encoded row x.
func (r *RemoteClusterModel) Predict(ctx context.Context, x []float64) (int, error) {
	var resp clusterPrediction
	if err := r.client.predict(ctx, r.model, x, &resp); err != nil {
		return 0, err
	}
	if len(resp.Predictions) != 1 {
		return 0, fmt.Errorf("expected 1 prediction, got %d", len(resp.Predictions))
	}
	return resp.Predictions[0].Cluster, nil
}
