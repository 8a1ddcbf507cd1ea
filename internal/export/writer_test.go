package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/quartier-data/listings-cli/internal/model"
)

func sampleTable() *model.ConsolidatedTable {
	return &model.ConsolidatedTable{
		Columns: []string{"price_final", "geolocation", "mls_number"},
		Records: []model.ConsolidatedRecord{
			{
				Fields: model.Fields{
					"price_final": 450000.0,
					"geolocation": model.GeoValue{Lat: 45.5, Lng: -73.6},
					"mls_number":  "12345",
				},
				Provenance: map[string]string{"price_final": "price", "geolocation": "geo"},
			},
			{
				Fields:     model.Fields{"price_final": nil, "geolocation": nil, "mls_number": "67890"},
				Provenance: map[string]string{"price_final": "", "geolocation": ""},
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(sampleTable(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"price_final", "geolocation", "mls_number"}, rows[0])
	assert.Equal(t, []string{"450000", "45.5,-73.6", "12345"}, rows[1])
	assert.Equal(t, []string{"", "", "67890"}, rows[2])
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteJSON(sampleTable(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []model.ConsolidatedRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, 450000.0, records[0].Fields["price_final"])
	assert.Equal(t, "price", records[0].Provenance["price_final"])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteXLSX(sampleTable(), path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "listings", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "price_final", sheet.Rows[0].Cells[0].String())

	price, err := sheet.Rows[1].Cells[0].Float()
	require.NoError(t, err)
	assert.Equal(t, 450000.0, price)
	assert.Equal(t, "12345", sheet.Rows[1].Cells[2].String())
}

func TestWriteTable_UnsupportedFormat(t *testing.T) {
	err := WriteTable(sampleTable(), filepath.Join(t.TempDir(), "out.parquet"), "parquet")
	assert.Error(t, err)
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "", cellString(nil))
	assert.Equal(t, "Bungalow", cellString("Bungalow"))
	assert.Equal(t, "450000", cellString(450000.0))
	assert.Equal(t, "1234.5", cellString(1234.5))
	assert.Equal(t, "45.5,-73.6", cellString(model.GeoValue{Lat: 45.5, Lng: -73.6}))
	assert.Equal(t, `["a","b"]`, cellString([]string{"a", "b"}))
}
