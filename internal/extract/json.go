package extract

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/quartier-data/listings-cli/internal/model"
)

// ReadJSON reads listings from a JSON file: either a top-level array of
// objects or newline-delimited objects (document store exports). Nested
// objects are kept as-is for the geo coercer.
func ReadJSON(path string) (*model.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read %s", path)
	}

	trimmed := strings.TrimSpace(string(data))
	var objects []map[string]any
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &objects); err != nil {
			return nil, eris.Wrapf(err, "extract: parse %s", path)
		}
	} else {
		scanner := bufio.NewScanner(strings.NewReader(trimmed))
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			var obj map[string]any
			if err := json.Unmarshal([]byte(text), &obj); err != nil {
				return nil, eris.Wrapf(err, "extract: parse %s line %d", path, line)
			}
			objects = append(objects, obj)
		}
		if err := scanner.Err(); err != nil {
			return nil, eris.Wrapf(err, "extract: scan %s", path)
		}
	}

	return TableFromObjects(objects), nil
}

// TableFromObjects builds a Table from decoded objects. The column set is
// the union of keys across all records, sorted for determinism.
func TableFromObjects(objects []map[string]any) *model.Table {
	columnSet := make(map[string]bool)
	for _, obj := range objects {
		for k := range obj {
			columnSet[k] = true
		}
	}
	columns := make([]string, 0, len(columnSet))
	for k := range columnSet {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	t := &model.Table{Columns: columns, Records: make([]model.RawRecord, 0, len(objects))}
	for _, obj := range objects {
		rec := make(model.RawRecord, len(columns))
		for _, col := range columns {
			rec[col] = obj[col] // absent keys become nil
		}
		t.Records = append(t.Records, rec)
	}
	return t
}
