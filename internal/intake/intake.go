// Package intake turns untrusted request payloads into validated patient records before any
// model runs.
package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// Options controls how lenient Parse is.
type Options struct {
	// ApplyDefaults fills absent numeric fields with the form defaults.
	ApplyDefaults bool
	// AllowUnknown ignores attributes that are not model features.
	AllowUnknown bool
}

var numericDefaults = map[string]float64{
	domain.FeatureAge:        45,
	domain.FeatureTSHLevel:   2.0,
	domain.FeatureT3Level:    2.0,
	domain.FeatureT4Level:    10.0,
	domain.FeatureNoduleSize: 1.0,
}

// Defaults returns the numeric values used when ApplyDefaults is set.
func Defaults() map[string]float64 {
	out := make(map[string]float64, len(numericDefaults))
	for k, v := range numericDefaults {
		out[k] = v
	}
	return out
}

// record mirrors domain.PatientRecord with validation rules.
type record struct {
	Age        float64 `json:"Age" validate:"gte=0,lte=150"`
	TSHLevel   float64 `json:"TSH_Level" validate:"gte=0"`
	T3Level    float64 `json:"T3_Level" validate:"gte=0"`
	T4Level    float64 `json:"T4_Level" validate:"gte=0"`
	NoduleSize float64 `json:"Nodule_Size" validate:"gte=0"`

	Gender            string `json:"Gender" validate:"omitempty,oneof=Female Male"`
	Ethnicity         string `json:"Ethnicity" validate:"omitempty,oneof=African Asian Caucasian Hispanic 'Middle Eastern'"`
	FamilyHistory     string `json:"Family_History" validate:"omitempty,oneof=No Yes"`
	RadiationExposure string `json:"Radiation_Exposure" validate:"omitempty,oneof=No Yes"`
	IodineDeficiency  string `json:"Iodine_Deficiency" validate:"omitempty,oneof=No Yes"`
	Smoking           string `json:"Smoking" validate:"omitempty,oneof=No Yes"`
	Obesity           string `json:"Obesity" validate:"omitempty,oneof=No Yes"`
	Diabetes          string `json:"Diabetes" validate:"omitempty,oneof=No Yes"`
	CancerRisk        string `json:"Thyroid_Cancer_Risk" validate:"omitempty,oneof=High Low Medium"`
}

// Parser validates raw attribute maps. It is safe for concurrent use.
type Parser struct {
	validate *validator.Validate
	opts     Options
}

// NewParser creates a parser with the given options.
func NewParser(opts Options) *Parser {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Parser{validate: v, opts: opts}
}

// ParseJSON decodes a JSON object and parses it. A body cut off by http.MaxBytesReader is
// reported as the *http.MaxBytesError rather than as malformed JSON.
func (p *Parser) ParseJSON(r io.Reader) (domain.PatientRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return domain.PatientRecord{}, fmt.Errorf("request body exceeds %d bytes: %w", maxBytesErr.Limit, err)
		}
		return domain.PatientRecord{}, domain.NewValidationError("body", fmt.Sprintf("invalid JSON object: %v", err), nil)
	}
	return p.Parse(raw)
}

// Parse converts raw attributes into a PatientRecord. Numeric fields accept numbers and
// numeric strings; categorical fields must be strings from the feature's option set.
func (p *Parser) Parse(raw map[string]any) (domain.PatientRecord, error) {
	var patient domain.PatientRecord

	for name := range raw {
		if _, ok := domain.KindOf(name); !ok && !p.opts.AllowUnknown {
			return domain.PatientRecord{}, &domain.SchemaError{Field: name, Reason: "not a model feature"}
		}
	}

	for _, name := range domain.NumericFeatures {
		value, present := raw[name]
		if !present || isBlank(value) {
			def, ok := numericDefaults[name]
			if !p.opts.ApplyDefaults || !ok {
				return domain.PatientRecord{}, domain.NewValidationError(name, "is required", nil)
			}
			patient.SetNumeric(name, def)
			continue
		}

		f, err := coerceNumber(name, value)
		if err != nil {
			return domain.PatientRecord{}, err
		}
		patient.SetNumeric(name, f)
	}

	for _, name := range domain.CategoricalFeatures {
		value, present := raw[name]
		if !present || value == nil {
			continue
		}
		s, ok := value.(string)
		if !ok {
			return domain.PatientRecord{}, domain.NewValidationError(name, fmt.Sprintf("must be a string, got %T", value), value)
		}
		patient.SetCategorical(name, strings.TrimSpace(s))
	}

	if err := p.Validate(patient); err != nil {
		return domain.PatientRecord{}, err
	}
	return patient, nil
}

// Validate checks ranges and option sets of an already typed record.
func (p *Parser) Validate(patient domain.PatientRecord) error {
	err := p.validate.Struct(record(patient))
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate patient: %w", err)
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, domain.NewValidationError(fe.Field(), describe(fe), fe.Value()))
	}
	return errors.Join(errs...)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of %v", domain.Options(fe.Field()))
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func coerceNumber(field string, v any) (float64, error) {
	var (
		f   float64
		err error
	)

	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		f, err = n.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}

	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &domain.TypeConversionError{Field: field, Value: v}
	}
	return f, nil
}
