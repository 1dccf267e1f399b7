package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// ManifestFile is the optional bundle manifest name.
const ManifestFile = "bundle.yaml"

// Manifest names the bundle version and the file of each artifact.
type Manifest struct {
	Version string        `mapstructure:"version"`
	Files   ManifestFiles `mapstructure:"files"`
}

// ManifestFiles holds artifact file names relative to the bundle directory.
type ManifestFiles struct {
	Classifier        string `mapstructure:"classifier"`
	Preprocessor      string `mapstructure:"preprocessor"`
	KMeans            string `mapstructure:"kmeans"`
	PhenotypeSummary  string `mapstructure:"phenotype_summary"`
	OverallMeans      string `mapstructure:"overall_means"`
	DangerZones       string `mapstructure:"danger_zones"`
	FeatureColumns    string `mapstructure:"feature_columns"`
	PhenotypeFeatures string `mapstructure:"phenotype_features"`
}

// Bundle is the full set of trained artifacts. It is read-only once loaded.
type Bundle struct {
	Version           string
	Dir               string
	Classifier        *TreeClassifier
	Preprocessor      *Encoder
	Clusters          *KMeans
	PhenotypeSummary  map[int]domain.PhenotypeProfile
	OverallMeans      map[string]float64
	DangerZones       domain.DangerZoneSpec
	FeatureColumns    []string
	PhenotypeFeatures []string
}

// ReadManifest reads dir/bundle.yaml, falling back to default file names when it is absent.
func ReadManifest(dir string) (*Manifest, error) {
	v := viper.New()
	v.SetDefault("version", "unversioned")
	v.SetDefault("files.classifier", "classifier.json")
	v.SetDefault("files.preprocessor", "pheno_preprocessor.json")
	v.SetDefault("files.kmeans", "kmeans.json")
	v.SetDefault("files.phenotype_summary", "pheno_summary.json")
	v.SetDefault("files.overall_means", "overall_means.json")
	v.SetDefault("files.danger_zones", "danger_zones.json")
	v.SetDefault("files.feature_columns", "feature_cols.json")
	v.SetDefault("files.phenotype_features", "phenotype_features.json")

	path := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading bundle manifest: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error checking bundle manifest: %w", err)
	}

	m := &Manifest{}
	if err := v.Unmarshal(m); err != nil {
		return nil, fmt.Errorf("error unmarshaling bundle manifest: %w", err)
	}
	return m, nil
}

// LoadBundle loads and validates every artifact in dir.
func LoadBundle(dir string) (*Bundle, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		Version:      manifest.Version,
		Dir:          dir,
		Classifier:   &TreeClassifier{},
		Preprocessor: &Encoder{},
		Clusters:     &KMeans{},
	}

	var (
		summary map[string]map[string]any
		zones   map[string][]float64
	)
	files := []struct {
		name string
		out  any
	}{
		{manifest.Files.Classifier, b.Classifier},
		{manifest.Files.Preprocessor, b.Preprocessor},
		{manifest.Files.KMeans, b.Clusters},
		{manifest.Files.PhenotypeSummary, &summary},
		{manifest.Files.OverallMeans, &b.OverallMeans},
		{manifest.Files.DangerZones, &zones},
		{manifest.Files.FeatureColumns, &b.FeatureColumns},
		{manifest.Files.PhenotypeFeatures, &b.PhenotypeFeatures},
	}
	for _, f := range files {
		if err := decodeFile(filepath.Join(dir, f.name), f.out); err != nil {
			return nil, err
		}
	}

	b.PhenotypeSummary, err = parseSummary(summary)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", manifest.Files.PhenotypeSummary, err)
	}
	b.DangerZones = make(domain.DangerZoneSpec, len(zones))
	for name, thresholds := range zones {
		b.DangerZones[name] = domain.DangerZone{Thresholds: thresholds}
	}

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bundle %s: %w", dir, err)
	}
	return b, nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// parseSummary splits each cluster row into numeric means and modal categorical values.
func parseSummary(raw map[string]map[string]any) (map[int]domain.PhenotypeProfile, error) {
	out := make(map[int]domain.PhenotypeProfile, len(raw))
	for key, row := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("cluster key %q is not an integer", key)
		}

		profile := domain.PhenotypeProfile{
			Numeric:     make(map[string]float64),
			Categorical: make(map[string]string),
		}
		for name, value := range row {
			switch v := value.(type) {
			case int:
				profile.Numeric[name] = float64(v)
			case float64:
				profile.Numeric[name] = v
			case string:
				profile.Categorical[name] = v
			default:
				return nil, fmt.Errorf("cluster %d column %q has unsupported value %v", id, name, value)
			}
		}
		out[id] = profile
	}
	return out, nil
}

// Validate checks that the artifacts agree with each other.
func (b *Bundle) Validate() error {
	if err := validateFeatureList("feature columns", b.FeatureColumns); err != nil {
		return err
	}
	if err := validateFeatureList("phenotype features", b.PhenotypeFeatures); err != nil {
		return err
	}

	if err := b.Classifier.Validate(); err != nil {
		return err
	}
	if !equalStrings(b.Classifier.Encoder.Names(), b.FeatureColumns) {
		return fmt.Errorf("classifier encoder columns %v do not match feature columns %v",
			b.Classifier.Encoder.Names(), b.FeatureColumns)
	}

	if err := b.Preprocessor.Validate(); err != nil {
		return fmt.Errorf("phenotype preprocessor: %w", err)
	}
	if !equalStrings(b.Preprocessor.Names(), b.PhenotypeFeatures) {
		return fmt.Errorf("phenotype preprocessor columns %v do not match phenotype features %v",
			b.Preprocessor.Names(), b.PhenotypeFeatures)
	}
	if err := b.Clusters.Validate(b.Preprocessor.Width()); err != nil {
		return err
	}

	for id := 0; id < b.Clusters.NumClusters(); id++ {
		profile, ok := b.PhenotypeSummary[id]
		if !ok {
			return &domain.ConsistencyError{What: "phenotype summary row", Key: strconv.Itoa(id)}
		}
		for _, name := range domain.ProfileNumericFeatures {
			if _, ok := profile.Numeric[name]; !ok {
				return &domain.ConsistencyError{What: fmt.Sprintf("cluster %d numeric column", id), Key: name}
			}
		}
		for _, name := range domain.ProfileCategoricalFeatures {
			if _, ok := profile.Categorical[name]; !ok {
				return &domain.ConsistencyError{What: fmt.Sprintf("cluster %d categorical column", id), Key: name}
			}
		}
	}

	for _, name := range domain.ProfileNumericFeatures {
		if _, ok := b.OverallMeans[name]; !ok {
			return &domain.ConsistencyError{What: "overall mean", Key: name}
		}
	}

	for name, zone := range b.DangerZones {
		kind, ok := domain.KindOf(name)
		if !ok || kind != domain.NumericFeature {
			return fmt.Errorf("danger zone for %q: not a numeric feature", name)
		}
		if !sort.Float64sAreSorted(zone.Thresholds) {
			return fmt.Errorf("danger zone for %q: thresholds %v are not ascending", name, zone.Thresholds)
		}
	}
	return nil
}

func validateFeatureList(what string, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%s list is empty", what)
	}
	for i, name := range names {
		if _, ok := domain.KindOf(name); !ok {
			return fmt.Errorf("%s at index %d: unknown feature %q", what, i, name)
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
