package extract

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/quartier-data/listings-cli/internal/model"
)

// ReadCSV reads a headered CSV file into a Table. Rows may have fewer
// fields than the header; the missing cells become nil.
func ReadCSV(path string) (*model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: open %s", path)
	}
	defer f.Close()

	t, err := ParseCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse %s", path)
	}
	return t, nil
}

// ParseCSV parses headered CSV content from a reader.
func ParseCSV(r io.Reader) (*model.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // scraped exports often have ragged rows
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("csv: empty input")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		rows = append(rows, row)
	}

	return tableFromRows(header, rows), nil
}
