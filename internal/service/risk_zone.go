package service

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// RiskZoneEvaluator bands patient values against per-feature danger-zone thresholds.
type RiskZoneEvaluator struct {
	zones domain.DangerZoneSpec
}

// NewRiskZoneEvaluator builds an evaluator over zones, which is treated as read-only.
func NewRiskZoneEvaluator(zones domain.DangerZoneSpec) *RiskZoneEvaluator {
	return &RiskZoneEvaluator{zones: zones}
}

// Evaluate zones every feature present in both attrs and the danger zones. Features without a
// value are skipped.
func (e *RiskZoneEvaluator) Evaluate(attrs domain.Attributes) (map[string]domain.RiskZoneResult, error) {
	names := make([]string, 0, len(e.zones))
	for name := range e.zones {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]domain.RiskZoneResult, len(names))
	for _, name := range names {
		raw, ok := attrs[name]
		if !ok {
			continue
		}

		value, err := toFloat(name, raw)
		if err != nil {
			return nil, err
		}

		thresholds := e.zones[name].Thresholds
		out[name] = domain.RiskZoneResult{
			Value:      value,
			Zone:       ZoneFor(value, thresholds),
			Thresholds: append([]float64(nil), thresholds...),
		}
	}
	return out, nil
}

// ZoneFor bands value against ascending thresholds. With more than two thresholds only the
// first and last are consulted.
func ZoneFor(value float64, thresholds []float64) domain.RiskZone {
	switch len(thresholds) {
	case 0:
		return domain.ZoneUnknown
	case 1:
		if value < thresholds[0] {
			return domain.ZoneLow
		}
		return domain.ZoneHigh
	default:
		if value < thresholds[0] {
			return domain.ZoneLow
		}
		if value >= thresholds[len(thresholds)-1] {
			return domain.ZoneHigh
		}
		return domain.ZoneModerate
	}
}

func toFloat(field string, raw any) (float64, error) {
	var (
		f  float64
		ok = true
	)

	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		f, ok = parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		f, ok = parsed, err == nil
	default:
		ok = false
	}

	if !ok || math.IsNaN(f) {
		return 0, &domain.TypeConversionError{Field: field, Value: raw}
	}
	return f, nil
}
