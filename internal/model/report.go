package model

import "sort"

// FieldStats aggregates consolidation and validation counters for one
// canonical field.
type FieldStats struct {
	Total                 int `json:"total"`
	RecoveredFromFallback int `json:"recovered_from_fallback"`
	StillMissing          int `json:"still_missing"`
	ValidationFailures    int `json:"validation_failures"`
}

// AmbiguousColumn records a column the similarity detector could not assign
// because two concepts scored within the tie margin. Reported for human
// review, never fatal.
type AmbiguousColumn struct {
	Column   string  `json:"column"`
	ConceptA string  `json:"concept_a"`
	ConceptB string  `json:"concept_b"`
	ScoreA   float64 `json:"score_a"`
	ScoreB   float64 `json:"score_b"`
}

// QualityReport is the per-run data quality summary. It is built
// incrementally during consolidation, finalized by validation, and written
// out as a report artifact.
type QualityReport struct {
	Fields     map[string]*FieldStats `json:"fields"`
	CrossField map[string]int         `json:"cross_field,omitempty"`
	Ambiguous  []AmbiguousColumn      `json:"ambiguous,omitempty"`
}

// NewQualityReport returns an empty report.
func NewQualityReport() *QualityReport {
	return &QualityReport{
		Fields:     make(map[string]*FieldStats),
		CrossField: make(map[string]int),
	}
}

// Field returns the stats bucket for a canonical field, creating it on
// first use.
func (r *QualityReport) Field(name string) *FieldStats {
	fs, ok := r.Fields[name]
	if !ok {
		fs = &FieldStats{}
		r.Fields[name] = fs
	}
	return fs
}

// Merge folds another report's counters into this one. Counter addition is
// associative and commutative, so per-chunk reports may be folded in any
// order.
func (r *QualityReport) Merge(other *QualityReport) {
	if other == nil {
		return
	}
	for name, fs := range other.Fields {
		dst := r.Field(name)
		dst.Total += fs.Total
		dst.RecoveredFromFallback += fs.RecoveredFromFallback
		dst.StillMissing += fs.StillMissing
		dst.ValidationFailures += fs.ValidationFailures
	}
	for check, n := range other.CrossField {
		r.CrossField[check] += n
	}
	r.Ambiguous = append(r.Ambiguous, other.Ambiguous...)
}

// FieldNames returns the canonical field names in sorted order for stable
// report rendering.
func (r *QualityReport) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
