package rules

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks a malformed or contradictory rule set. It is fatal:
// callers abort the run before any record is processed.
var ErrConfiguration = eris.New("configuration error")

// Config is the top-level rule file structure.
type Config struct {
	Defaults   DefaultConfig   `yaml:"defaults"`
	Groups     []GroupConfig   `yaml:"groups"`
	Concepts   []ConceptConfig `yaml:"concepts"`
	Validation Validation      `yaml:"validation"`
}

// DefaultConfig holds global detector defaults.
type DefaultConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
	TieMargin      float64 `yaml:"tie_margin"`
}

// GroupConfig is one consolidation group as written in the rule file.
type GroupConfig struct {
	Canonical string   `yaml:"canonical"`
	Strategy  string   `yaml:"strategy"`
	Tier      int      `yaml:"tier"`
	Sources   []string `yaml:"sources"`
}

// ConceptConfig drives auto-discovery of new groups from column names.
// Declaration order is the deterministic tie-break between equally scored
// concepts.
type ConceptConfig struct {
	Name      string   `yaml:"name"`
	Canonical string   `yaml:"canonical"`
	Strategy  string   `yaml:"strategy"`
	Tier      int      `yaml:"tier"`
	Aliases   []string `yaml:"aliases"`
	Patterns  []string `yaml:"patterns"`
}

// Validation configures the post-merge validator.
type Validation struct {
	Ranges     map[string]RangeRule `yaml:"ranges"`
	Region     *RegionConfig        `yaml:"region"`
	CrossField []CrossFieldRule     `yaml:"cross_field"`
}

// RangeRule bounds a numeric canonical field. Violations are repaired
// (nulled) and counted.
type RangeRule struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// RegionConfig bounds geo_coord fields, either by bounding box or by a
// polygon region loaded from a shapefile.
type RegionConfig struct {
	Fields    []string `yaml:"fields"`
	BBox      *BBox    `yaml:"bbox"`
	Shapefile string   `yaml:"shapefile"`
}

// BBox is a geographic bounding box.
type BBox struct {
	MinLat float64 `yaml:"min_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLat float64 `yaml:"max_lat"`
	MaxLng float64 `yaml:"max_lng"`
}

// CrossFieldRule is a best-effort consistency check between two numeric
// canonical fields. Violations are flagged, never repaired: the check alone
// cannot tell which side is wrong.
type CrossFieldRule struct {
	Name    string `yaml:"name"`
	Larger  string `yaml:"larger"`
	Smaller string `yaml:"smaller"`
}

// LoadConfig reads a rule file. The YAML has a top-level "rules" key.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read config %s", path)
	}

	var wrapper struct {
		Rules Config `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "rules: parse config")
	}

	cfg := &wrapper.Rules
	if cfg.Defaults.FuzzyThreshold == 0 {
		cfg.Defaults.FuzzyThreshold = 0.80
	}
	if cfg.Defaults.TieMargin == 0 {
		cfg.Defaults.TieMargin = 0.05
	}
	return cfg, nil
}
