package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCSV(t *testing.T) {
	input := "price,chambres,mls_number\n450 000$,3,12345\n,2,\n"
	table, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"price", "chambres", "mls_number"}, table.Columns)
	require.Len(t, table.Records, 2)
	assert.Equal(t, "450 000$", table.Records[0]["price"])
	assert.Equal(t, "3", table.Records[0]["chambres"])

	// Empty cells become nil.
	assert.Nil(t, table.Records[1]["price"])
	assert.Nil(t, table.Records[1]["mls_number"])
	assert.Equal(t, "2", table.Records[1]["chambres"])
}

func TestParseCSV_RaggedRows(t *testing.T) {
	input := "a,b,c\n1,2\n1,2,3,4\n"
	table, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, table.Records, 2)
	assert.Nil(t, table.Records[0]["c"])
	assert.Equal(t, "3", table.Records[1]["c"])
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadJSON_Array(t *testing.T) {
	path := writeTemp(t, "listings.json", `[
		{"price": 450000, "geo": {"lat": 45.5, "lng": -73.6}},
		{"chambres": 3}
	]`)
	table, err := ReadJSON(path)
	require.NoError(t, err)

	// Union of keys, sorted.
	assert.Equal(t, []string{"chambres", "geo", "price"}, table.Columns)
	require.Len(t, table.Records, 2)
	assert.Equal(t, 450000.0, table.Records[0]["price"])
	assert.Equal(t, map[string]any{"lat": 45.5, "lng": -73.6}, table.Records[0]["geo"])
	assert.Nil(t, table.Records[1]["price"])
}

func TestReadJSON_NDJSON(t *testing.T) {
	path := writeTemp(t, "listings.ndjson", `{"price": 450000}

{"price": 500000, "chambres": 4}
`)
	table, err := ReadJSON(path)
	require.NoError(t, err)
	require.Len(t, table.Records, 2)
	assert.Equal(t, 500000.0, table.Records[1]["price"])
}

func TestReadJSON_MalformedLine(t *testing.T) {
	path := writeTemp(t, "bad.ndjson", "{\"price\": 450000}\n{oops}\n")
	_, err := ReadJSON(path)
	assert.Error(t, err)
}

func TestReadTable_FormatDetection(t *testing.T) {
	path := writeTemp(t, "listings.csv", "price\n450000\n")
	table, err := ReadTable(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"price"}, table.Columns)

	_, err = ReadTable("listings.parquet", "")
	assert.Error(t, err)
}

func TestReadTable_ExplicitFormatOverridesExtension(t *testing.T) {
	path := writeTemp(t, "listings.txt", `[{"price": 1}]`)
	table, err := ReadTable(path, "json")
	require.NoError(t, err)
	require.Len(t, table.Records, 1)
}
