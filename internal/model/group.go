package model

import "strings"

// MergeStrategy selects the type-specific coercion used when consolidating
// a group's source columns.
type MergeStrategy string

const (
	StrategyNumeric     MergeStrategy = "numeric"
	StrategyCategorical MergeStrategy = "categorical"
	StrategyDate        MergeStrategy = "date"
	StrategyGeoCoord    MergeStrategy = "geo_coord"
	StrategyText        MergeStrategy = "text"
	StrategyURL         MergeStrategy = "url"
)

// ParseStrategy maps a config string to a MergeStrategy.
func ParseStrategy(s string) (MergeStrategy, bool) {
	switch MergeStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyNumeric:
		return StrategyNumeric, true
	case StrategyCategorical:
		return StrategyCategorical, true
	case StrategyDate:
		return StrategyDate, true
	case StrategyGeoCoord:
		return StrategyGeoCoord, true
	case StrategyText:
		return StrategyText, true
	case StrategyURL:
		return StrategyURL, true
	}
	return "", false
}

// ConsolidationGroup maps one canonical output field to its priority-ordered
// candidate source columns. Sources are ordered by decreasing trust: the
// first source with a usable value wins for a given record.
//
// For geo_coord groups a source may be a compound "lat|lng" entry naming a
// flat column pair; SplitGeoPair recognizes it.
type ConsolidationGroup struct {
	Canonical string        `yaml:"canonical" json:"canonical"`
	Sources   []string      `yaml:"sources" json:"sources"`
	Strategy  MergeStrategy `yaml:"strategy" json:"strategy"`
	Tier      int           `yaml:"tier" json:"tier"`
}

// SourceColumns expands compound geo pair entries into the individual
// columns the group consumes.
func (g ConsolidationGroup) SourceColumns() []string {
	cols := make([]string, 0, len(g.Sources))
	for _, s := range g.Sources {
		if lat, lng, ok := SplitGeoPair(s); ok {
			cols = append(cols, lat, lng)
			continue
		}
		cols = append(cols, s)
	}
	return cols
}

// SplitGeoPair splits a compound "lat|lng" source entry into its two column
// names. Returns ok=false for plain single-column entries.
func SplitGeoPair(source string) (lat, lng string, ok bool) {
	i := strings.IndexByte(source, '|')
	if i <= 0 || i >= len(source)-1 {
		return "", "", false
	}
	return strings.TrimSpace(source[:i]), strings.TrimSpace(source[i+1:]), true
}
