// Package export writes consolidated tables and quality reports to CSV,
// JSON, and XLSX artifacts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/quartier-data/listings-cli/internal/model"
)

// WriteTable writes the consolidated table in the given format ("csv",
// "json", or "xlsx").
func WriteTable(table *model.ConsolidatedTable, path, format string) error {
	switch format {
	case "csv":
		return WriteCSV(table, path)
	case "json":
		return WriteJSON(table, path)
	case "xlsx":
		return WriteXLSX(table, path)
	}
	return eris.Errorf("export: unsupported output format %q", format)
}

// WriteCSV writes the table with its schema as the header row.
func WriteCSV(table *model.ConsolidatedTable, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	row := make([]string, len(table.Columns))
	for _, rec := range table.Records {
		for i, col := range table.Columns {
			row[i] = cellString(rec.Fields[col])
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// WriteJSON writes records as a JSON array of field objects, each with its
// provenance map.
func WriteJSON(table *model.ConsolidatedTable, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(table.Records); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

// WriteXLSX writes the table to a single-sheet workbook.
func WriteXLSX(table *model.ConsolidatedTable, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("listings")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range table.Columns {
		header.AddCell().SetString(col)
	}
	for _, rec := range table.Records {
		row := sheet.AddRow()
		for _, col := range table.Columns {
			switch v := rec.Fields[col].(type) {
			case nil:
				row.AddCell()
			case float64:
				row.AddCell().SetFloat(v)
			default:
				row.AddCell().SetString(cellString(v))
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// cellString renders one cell for flat formats. Floats drop trailing zeros
// so prices round-trip as "450000" rather than "450000.000000".
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case model.GeoValue:
		return strconv.FormatFloat(t.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(t.Lng, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
