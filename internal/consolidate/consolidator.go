// Package consolidate collapses groups of semantically equivalent source
// columns into single canonical fields, recording per-field provenance and
// recovery counters as it goes.
package consolidate

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quartier-data/listings-cli/internal/model"
)

// Consolidator executes resolved consolidation groups over a table. It is
// stateless across runs; the groups are treated as immutable and may be
// shared with other consolidators.
type Consolidator struct {
	groups   []model.ConsolidationGroup
	consumed map[string]bool
}

// New builds a consolidator from resolved groups (see rules.Resolve).
func New(groups []model.ConsolidationGroup) *Consolidator {
	consumed := make(map[string]bool)
	for _, g := range groups {
		for _, col := range g.SourceColumns() {
			consumed[col] = true
		}
	}
	return &Consolidator{groups: groups, consumed: consumed}
}

// Run consolidates the table, processing record chunks on up to concurrency
// workers. Each record's consolidated values depend only on that record's
// own raw values, so chunking never changes the output; the per-chunk
// quality reports are folded into one at the end.
func (c *Consolidator) Run(ctx context.Context, table *model.Table, concurrency int) (*model.ConsolidatedTable, *model.QualityReport, error) {
	if table == nil {
		return nil, nil, eris.New("consolidate: nil table")
	}
	if concurrency < 1 {
		concurrency = 1
	}

	out := &model.ConsolidatedTable{
		Columns: c.outputColumns(table.Columns),
		Records: make([]model.ConsolidatedRecord, len(table.Records)),
	}

	n := len(table.Records)
	if n == 0 {
		return out, model.NewQualityReport(), nil
	}

	chunkSize := (n + concurrency - 1) / concurrency
	chunks := (n + chunkSize - 1) / chunkSize
	reports := make([]*model.QualityReport, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for chunk := 0; chunk < chunks; chunk++ {
		lo := chunk * chunkSize
		hi := min(lo+chunkSize, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			report := model.NewQualityReport()
			for i := lo; i < hi; i++ {
				out.Records[i] = c.consolidateRecord(table.Records[i], report)
			}
			reports[chunk] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "consolidate: run")
	}

	report := model.NewQualityReport()
	for _, r := range reports {
		report.Merge(r)
	}

	zap.L().Info("consolidation complete",
		zap.Int("records", n),
		zap.Int("groups", len(c.groups)),
		zap.Int("workers", concurrency),
	)
	return out, report, nil
}

// outputColumns is the consolidated schema: canonical fields in group order,
// then uncovered input columns passed through in their original order.
// Every consumed source column is dropped, selected anywhere or not.
func (c *Consolidator) outputColumns(input []string) []string {
	cols := make([]string, 0, len(c.groups)+len(input))
	for _, g := range c.groups {
		cols = append(cols, g.Canonical)
	}
	for _, col := range input {
		if !c.consumed[col] {
			cols = append(cols, col)
		}
	}
	return cols
}

// consolidateRecord resolves every group for one record. Pure with respect
// to other records.
func (c *Consolidator) consolidateRecord(rec model.RawRecord, report *model.QualityReport) model.ConsolidatedRecord {
	out := model.ConsolidatedRecord{
		Fields:     make(model.Fields, len(c.groups)),
		Provenance: make(map[string]string, len(c.groups)),
	}

	for _, g := range c.groups {
		stats := report.Field(g.Canonical)
		stats.Total++

		value, source := resolveGroup(g, rec)
		out.Fields[g.Canonical] = value
		out.Provenance[g.Canonical] = source

		switch {
		case source == "":
			stats.StillMissing++
		case source != g.Sources[0]:
			stats.RecoveredFromFallback++
		}
	}

	for col, v := range rec {
		if !c.consumed[col] {
			out.Fields[col] = v
		}
	}
	return out
}

// resolveGroup walks the group's sources in priority order and returns the
// first coercible value with the source entry that supplied it. A missing
// or uncoercible cell is simply skipped; nothing here ever fails the run.
func resolveGroup(g model.ConsolidationGroup, rec model.RawRecord) (any, string) {
	for _, src := range g.Sources {
		raw, ok := extract(g.Strategy, src, rec)
		if !ok {
			continue
		}
		if v, usable := coerce(g.Strategy, raw); usable {
			return v, src
		}
	}
	return nil, ""
}

// extract reads a source entry's raw value from the record. Compound
// "lat|lng" entries read the flat column pair and present it as a nested
// object for the geo coercer.
func extract(strategy model.MergeStrategy, source string, rec model.RawRecord) (any, bool) {
	if strategy == model.StrategyGeoCoord {
		if latCol, lngCol, ok := model.SplitGeoPair(source); ok {
			lat, okLat := rec[latCol]
			lng, okLng := rec[lngCol]
			if !okLat || !okLng || lat == nil || lng == nil {
				return nil, false
			}
			return map[string]any{"lat": lat, "lng": lng}, true
		}
	}
	v, ok := rec[source]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
