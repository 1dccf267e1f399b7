package domain

// FeatureValue is one named cell of a model input vector.
type FeatureValue struct {
	Name string
	Kind FeatureKind
	Num  float64
	Str  string
}

// FeatureVector is an ordered model input matching a training-time column list.
type FeatureVector []FeatureValue

// Names returns the column names of the vector in order.
func (v FeatureVector) Names() []string {
	names := make([]string, len(v))
	for i, f := range v {
		names[i] = f.Name
	}
	return names
}

// Map returns the vector as a name keyed mapping, the wire form used by remote models.
func (v FeatureVector) Map() map[string]any {
	out := make(map[string]any, len(v))
	for _, f := range v {
		if f.Kind == NumericFeature {
			out[f.Name] = f.Num
		} else {
			out[f.Name] = f.Str
		}
	}
	return out
}
