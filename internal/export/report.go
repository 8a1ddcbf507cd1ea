package export

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/quartier-data/listings-cli/internal/model"
)

// reportRow is one quality report line in flat (CSV) form.
type reportRow struct {
	Field                 string `csv:"field"`
	Total                 int    `csv:"total"`
	RecoveredFromFallback int    `csv:"recovered_from_fallback"`
	StillMissing          int    `csv:"still_missing"`
	ValidationFailures    int    `csv:"validation_failures"`
}

// FormatReport renders the quality report as human-readable markdown.
func FormatReport(report *model.QualityReport) string {
	var b strings.Builder

	b.WriteString("# Consolidation Quality Report\n\n")
	b.WriteString("## Fields\n")
	if len(report.Fields) == 0 {
		b.WriteString("No canonical fields consolidated.\n")
	}
	for _, name := range report.FieldNames() {
		fs := report.Fields[name]
		fmt.Fprintf(&b, "- **%s**: %d records, %d recovered from fallback, %d still missing, %d validation failures\n",
			name, fs.Total, fs.RecoveredFromFallback, fs.StillMissing, fs.ValidationFailures)
	}

	if len(report.CrossField) > 0 {
		b.WriteString("\n## Cross-field checks (informational)\n")
		for _, check := range sortedKeys(report.CrossField) {
			fmt.Fprintf(&b, "- %s: %d records flagged\n", check, report.CrossField[check])
		}
	}

	if len(report.Ambiguous) > 0 {
		b.WriteString("\n## Ambiguous columns (left ungrouped, review manually)\n")
		for _, a := range report.Ambiguous {
			fmt.Fprintf(&b, "- %s: %s (%.2f) vs %s (%.2f)\n",
				a.Column, a.ConceptA, a.ScoreA, a.ConceptB, a.ScoreB)
		}
	}

	return b.String()
}

// WriteReport writes the report artifact. Format "md" renders markdown,
// "json" the raw structure, "csv" one row per canonical field.
func WriteReport(report *model.QualityReport, path, format string) error {
	switch format {
	case "md", "markdown":
		return os.WriteFile(path, []byte(FormatReport(report)), 0o644)
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return eris.Wrap(err, "export: marshal report")
		}
		return os.WriteFile(path, append(data, '\n'), 0o644)
	case "csv":
		rows := make([]reportRow, 0, len(report.Fields))
		for _, name := range report.FieldNames() {
			fs := report.Fields[name]
			rows = append(rows, reportRow{
				Field:                 name,
				Total:                 fs.Total,
				RecoveredFromFallback: fs.RecoveredFromFallback,
				StillMissing:          fs.StillMissing,
				ValidationFailures:    fs.ValidationFailures,
			})
		}
		data, err := csvutil.Marshal(rows)
		if err != nil {
			return eris.Wrap(err, "export: marshal report csv")
		}
		return os.WriteFile(path, data, 0o644)
	}
	return eris.Errorf("export: unsupported report format %q", format)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
