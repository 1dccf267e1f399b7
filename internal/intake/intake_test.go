package intake

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thyroid-risk-assessor/internal/domain"
)

func fullInput() map[string]any {
	return map[string]any{
		"Age":                 60,
		"TSH_Level":           "0.05",
		"T3_Level":            json.Number("3.5"),
		"T4_Level":            15.0,
		"Nodule_Size":         " 4.2 ",
		"Gender":              "Male",
		"Ethnicity":           "Middle Eastern",
		"Family_History":      "No",
		"Radiation_Exposure":  "No",
		"Iodine_Deficiency":   "No",
		"Smoking":             "No",
		"Obesity":             "Yes",
		"Diabetes":            "No",
		"Thyroid_Cancer_Risk": "Low",
	}
}

func TestParse_CoercesNumericFields(t *testing.T) {
	p := NewParser(Options{})

	patient, err := p.Parse(fullInput())

	require.NoError(t, err)
	assert.Equal(t, 60.0, patient.Age)
	assert.Equal(t, 0.05, patient.TSHLevel)
	assert.Equal(t, 3.5, patient.T3Level)
	assert.Equal(t, 15.0, patient.T4Level)
	assert.Equal(t, 4.2, patient.NoduleSize)
	assert.Equal(t, "Middle Eastern", patient.Ethnicity)
	assert.Equal(t, "Yes", patient.Obesity)
}

func TestParse_Defaults(t *testing.T) {
	input := map[string]any{"Gender": "Female", "TSH_Level": ""}

	_, err := NewParser(Options{}).Parse(input)
	var validationErr *domain.ValidationError
	require.True(t, errors.As(err, &validationErr))

	patient, err := NewParser(Options{ApplyDefaults: true}).Parse(input)
	require.NoError(t, err)
	assert.Equal(t, domain.PatientRecord{
		Age: 45, TSHLevel: 2.0, T3Level: 2.0, T4Level: 10.0, NoduleSize: 1.0, Gender: "Female",
	}, patient)
}

func TestParse_OptionalCategoricalsStayUnset(t *testing.T) {
	input := fullInput()
	delete(input, "Smoking")
	input["Diabetes"] = nil

	patient, err := NewParser(Options{}).Parse(input)

	require.NoError(t, err)
	assert.Empty(t, patient.Smoking)
	assert.Empty(t, patient.Diabetes)
	assert.NotContains(t, patient.Attributes(), "Smoking")
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unknown attribute",
			mutate: func(m map[string]any) { m["Blood_Type"] = "A" },
			check: func(t *testing.T, err error) {
				var schemaErr *domain.SchemaError
				require.True(t, errors.As(err, &schemaErr))
				assert.Equal(t, "Blood_Type", schemaErr.Field)
			},
		},
		{
			name:   "non numeric string",
			mutate: func(m map[string]any) { m["TSH_Level"] = "high" },
			check: func(t *testing.T, err error) {
				var conversionErr *domain.TypeConversionError
				require.True(t, errors.As(err, &conversionErr))
				assert.Equal(t, "TSH_Level", conversionErr.Field)
			},
		},
		{
			name:   "boolean numeric",
			mutate: func(m map[string]any) { m["Age"] = true },
			check: func(t *testing.T, err error) {
				var conversionErr *domain.TypeConversionError
				assert.True(t, errors.As(err, &conversionErr))
			},
		},
		{
			name:   "not a number literal",
			mutate: func(m map[string]any) { m["T4_Level"] = "NaN" },
			check: func(t *testing.T, err error) {
				var conversionErr *domain.TypeConversionError
				assert.True(t, errors.As(err, &conversionErr))
			},
		},
		{
			name:   "negative value",
			mutate: func(m map[string]any) { m["Nodule_Size"] = -1.0 },
			check: func(t *testing.T, err error) {
				var validationErr *domain.ValidationError
				require.True(t, errors.As(err, &validationErr))
				assert.Equal(t, "Nodule_Size", validationErr.Field)
			},
		},
		{
			name:   "option outside set",
			mutate: func(m map[string]any) { m["Gender"] = "female" },
			check: func(t *testing.T, err error) {
				var validationErr *domain.ValidationError
				require.True(t, errors.As(err, &validationErr))
				assert.Equal(t, "Gender", validationErr.Field)
				assert.Contains(t, validationErr.Message, "[Female Male]")
			},
		},
		{
			name:   "categorical number",
			mutate: func(m map[string]any) { m["Smoking"] = 1 },
			check: func(t *testing.T, err error) {
				var validationErr *domain.ValidationError
				require.True(t, errors.As(err, &validationErr))
				assert.Equal(t, "Smoking", validationErr.Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := fullInput()
			tt.mutate(input)

			_, err := NewParser(Options{}).Parse(input)

			require.Error(t, err)
			assert.True(t, domain.IsClientError(err))
			tt.check(t, err)
		})
	}
}

func TestParse_AllowUnknown(t *testing.T) {
	input := fullInput()
	input["csrf_token"] = "abc"

	_, err := NewParser(Options{AllowUnknown: true}).Parse(input)

	assert.NoError(t, err)
}

func TestParseJSON(t *testing.T) {
	p := NewParser(Options{ApplyDefaults: true})

	patient, err := p.ParseJSON(strings.NewReader(`{"Age": 33, "Nodule_Size": 2.75, "Thyroid_Cancer_Risk": "High"}`))
	require.NoError(t, err)
	assert.Equal(t, 33.0, patient.Age)
	assert.Equal(t, 2.75, patient.NoduleSize)
	assert.Equal(t, 2.0, patient.TSHLevel)
	assert.Equal(t, "High", patient.CancerRisk)

	_, err = p.ParseJSON(strings.NewReader(`[1, 2]`))
	var validationErr *domain.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "body", validationErr.Field)
}

func TestParseJSON_BodyTooLarge(t *testing.T) {
	p := NewParser(Options{ApplyDefaults: true})
	body := http.MaxBytesReader(nil, io.NopCloser(strings.NewReader(`{"Age": 33, "Notes": "`+strings.Repeat("x", 256)+`"}`)), 32)

	_, err := p.ParseJSON(body)

	var maxBytesErr *http.MaxBytesError
	require.ErrorAs(t, err, &maxBytesErr)
	assert.Equal(t, int64(32), maxBytesErr.Limit)
	var validationErr *domain.ValidationError
	assert.False(t, errors.As(err, &validationErr))

	code, status := domain.Classify(err)
	assert.Equal(t, domain.ErrPayloadTooLarge, code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
}

func TestDefaultsIsCopy(t *testing.T) {
	d := Defaults()
	d["Age"] = 1

	assert.Equal(t, 45.0, Defaults()["Age"])
}
