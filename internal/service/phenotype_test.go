package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/thyroid-risk-assessor/internal/domain"
)

func TestPhenotypeClusterer_Assign(t *testing.T) {
	ctx := context.Background()
	vec := domain.FeatureVector{{Name: "Age", Kind: domain.NumericFeature, Num: 50}}
	x := []float64{0.1, 0.2}

	t.Run("in_range", func(t *testing.T) {
		pre := new(MockPreprocessor)
		pre.On("Transform", vec).Return(x, nil)
		km := new(MockClusterModel)
		km.On("Predict", mock.Anything, x).Return(2, nil)
		km.On("NumClusters").Return(3)

		id, err := NewPhenotypeClusterer(pre, km).Assign(ctx, vec)

		require.NoError(t, err)
		assert.Equal(t, 2, id)
	})

	t.Run("out_of_range", func(t *testing.T) {
		pre := new(MockPreprocessor)
		pre.On("Transform", vec).Return(x, nil)
		km := new(MockClusterModel)
		km.On("Predict", mock.Anything, x).Return(3, nil)
		km.On("NumClusters").Return(3)

		_, err := NewPhenotypeClusterer(pre, km).Assign(ctx, vec)

		var inferenceErr *domain.ModelInferenceError
		assert.True(t, errors.As(err, &inferenceErr))
	})

	t.Run("transform_failure", func(t *testing.T) {
		pre := new(MockPreprocessor)
		pre.On("Transform", vec).Return(nil, errors.New("shape mismatch"))
		km := new(MockClusterModel)

		_, err := NewPhenotypeClusterer(pre, km).Assign(ctx, vec)

		var inferenceErr *domain.ModelInferenceError
		assert.True(t, errors.As(err, &inferenceErr))
		km.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
	})
}

func testProfile(age float64) domain.PhenotypeProfile {
	return domain.PhenotypeProfile{
		Numeric: map[string]float64{
			"Age": age, "TSH_Level": 3.0, "T3_Level": 1.0, "T4_Level": 9.0, "Nodule_Size": 2.0,
		},
		Categorical: map[string]string{
			"Gender": "Female", "Iodine_Deficiency": "Yes", "Radiation_Exposure": "No",
			"Family_History": "Yes", "Thyroid_Cancer_Risk": "High",
		},
	}
}

var testMeans = map[string]float64{
	"Age": 50, "TSH_Level": 2.5, "T3_Level": 2.0, "T4_Level": 8.0, "Nodule_Size": 2.5,
}

func TestPhenotypeDescriber_Describe(t *testing.T) {
	d := NewPhenotypeDescriber(map[int]domain.PhenotypeProfile{0: testProfile(55)}, testMeans)

	desc, err := d.Describe(0)

	require.NoError(t, err)
	assert.Equal(t, domain.PhenotypeDescription{
		ID:            0,
		Summary:       "higher age, higher TSH, lower T3, higher T4, lower nodule size; typical risk: High",
		Gender:        "Female",
		Iodine:        "Yes",
		Radiation:     "No",
		FamilyHistory: "Yes",
	}, desc)
}

func TestPhenotypeDescriber_EqualMeanIsLower(t *testing.T) {
	d := NewPhenotypeDescriber(map[int]domain.PhenotypeProfile{4: testProfile(50)}, testMeans)

	desc, err := d.Describe(4)

	require.NoError(t, err)
	assert.Equal(t, 4, desc.ID)
	assert.Contains(t, desc.Summary, "lower age")
}

func TestPhenotypeDescriber_Consistency(t *testing.T) {
	t.Run("missing_row", func(t *testing.T) {
		d := NewPhenotypeDescriber(map[int]domain.PhenotypeProfile{0: testProfile(55)}, testMeans)

		_, err := d.Describe(1)

		var consistencyErr *domain.ConsistencyError
		require.True(t, errors.As(err, &consistencyErr))
		assert.Equal(t, "1", consistencyErr.Key)
	})

	t.Run("missing_overall_mean", func(t *testing.T) {
		d := NewPhenotypeDescriber(map[int]domain.PhenotypeProfile{0: testProfile(55)}, map[string]float64{"Age": 50})

		_, err := d.Describe(0)

		var consistencyErr *domain.ConsistencyError
		require.True(t, errors.As(err, &consistencyErr))
		assert.Equal(t, "TSH_Level", consistencyErr.Key)
	})

	t.Run("missing_categorical", func(t *testing.T) {
		profile := testProfile(55)
		delete(profile.Categorical, "Thyroid_Cancer_Risk")
		d := NewPhenotypeDescriber(map[int]domain.PhenotypeProfile{0: profile}, testMeans)

		_, err := d.Describe(0)

		var consistencyErr *domain.ConsistencyError
		require.True(t, errors.As(err, &consistencyErr))
		assert.Equal(t, "Thyroid_Cancer_Risk", consistencyErr.Key)
	})
}
