package model

import (
	"context"
	"fmt"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// KMeans assigns encoded rows to the nearest fitted centroid.
type KMeans struct {
	Centroids [][]float64 `json:"centroids" yaml:"centroids"`
}

var _ domain.ClusterModel = (*KMeans)(nil)

// Validate checks every centroid has the given width.
func (k *KMeans) Validate(width int) error {
	if len(k.Centroids) == 0 {
		return fmt.Errorf("kmeans has no centroids")
	}
	for i, c := range k.Centroids {
		if len(c) != width {
			return fmt.Errorf("centroid %d has width %d, want %d", i, len(c), width)
		}
	}
	return nil
}

// NumClusters returns k.
func (k *KMeans) NumClusters() int {
	return len(k.Centroids)
}

// Predict returns the index of the nearest centroid by squared Euclidean distance. Ties go to
// the lowest index.
func (k *KMeans) Predict(ctx context.Context, x []float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(k.Centroids) == 0 {
		return 0, fmt.Errorf("kmeans has no centroids")
	}

	best, bestDist := -1, 0.0
	for i, c := range k.Centroids {
		if len(c) != len(x) {
			return 0, fmt.Errorf("row width %d does not match centroid %d width %d", len(x), i, len(c))
		}
		d := 0.0
		for j := range c {
			diff := x[j] - c[j]
			d += diff * diff
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}
