package model

// RawRecord is one input row: source column name -> raw cell value.
// Cells carry whatever the extraction layer produced: nil, string, float64,
// bool, or a nested map (geo objects from document stores).
type RawRecord map[string]any

// Table is an in-memory tabular dataset as handed over by extraction.
type Table struct {
	Columns []string    `json:"columns"`
	Records []RawRecord `json:"records"`
}

// ColumnSet returns the column names as a set for membership checks.
func (t *Table) ColumnSet() map[string]bool {
	set := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		set[c] = true
	}
	return set
}

// ConsolidatedRecord is one output row: canonical field (or passthrough
// column) -> resolved value, plus the provenance of each canonical field.
type ConsolidatedRecord struct {
	Fields Fields `json:"fields"`
	// Provenance maps canonical field -> source column that supplied the
	// value, or "" when no source produced a usable value.
	Provenance map[string]string `json:"provenance"`
}

// Fields is the value map of a consolidated record.
type Fields map[string]any

// ConsolidatedTable is the consolidation output.
type ConsolidatedTable struct {
	Columns []string             `json:"columns"`
	Records []ConsolidatedRecord `json:"records"`
}

// GeoValue is a resolved coordinate pair.
type GeoValue struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
