// Package extract reads raw listing tables from CSV, JSON, and XLSX files
// into the in-memory shape the consolidator works on.
package extract

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/quartier-data/listings-cli/internal/model"
)

// ReadTable reads a raw table from path. Format is "csv", "json", or
// "xlsx"; empty means detect from the file extension.
func ReadTable(path, format string) (*model.Table, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch format {
	case "csv":
		return ReadCSV(path)
	case "json", "ndjson", "jsonl":
		return ReadJSON(path)
	case "xlsx":
		return ReadXLSX(path)
	}
	return nil, eris.Errorf("extract: unsupported input format %q", format)
}

// tableFromRows builds a Table from a header row and string rows, mapping
// empty cells to nil so downstream missing-value handling is uniform.
func tableFromRows(header []string, rows [][]string) *model.Table {
	t := &model.Table{
		Columns: header,
		Records: make([]model.RawRecord, 0, len(rows)),
	}
	for _, row := range rows {
		rec := make(model.RawRecord, len(header))
		for i, col := range header {
			if i < len(row) && strings.TrimSpace(row[i]) != "" {
				rec[col] = row[i]
			} else {
				rec[col] = nil
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t
}
