// Package validate runs range, geographic, and cross-field checks over a
// consolidated table. Range and geo violations are repaired (nulled) and
// counted; cross-field violations are flagged only.
package validate

import (
	"go.uber.org/zap"

	"github.com/quartier-data/listings-cli/internal/model"
	"github.com/quartier-data/listings-cli/internal/rules"
)

// Validator applies the rule file's validation section in a single pure
// pass over the table.
type Validator struct {
	cfg    rules.Validation
	region Region
}

// New builds a validator, loading the geo region if one is configured.
func New(cfg rules.Validation) (*Validator, error) {
	region, err := LoadRegion(cfg.Region)
	if err != nil {
		return nil, err
	}
	return &Validator{cfg: cfg, region: region}, nil
}

// Apply repairs and flags violations in place and finalizes the report.
// It never fails: every violation becomes a counter, not an error.
func (v *Validator) Apply(table *model.ConsolidatedTable, report *model.QualityReport) {
	var repaired, flagged int
	for i := range table.Records {
		rec := &table.Records[i]
		repaired += v.applyRanges(rec, report)
		repaired += v.applyRegion(rec, report)
		flagged += v.applyCrossField(rec, report)
	}
	zap.L().Info("validation complete",
		zap.Int("records", len(table.Records)),
		zap.Int("repaired", repaired),
		zap.Int("flagged", flagged),
	)
}

// applyRanges nulls out-of-bound numeric fields.
func (v *Validator) applyRanges(rec *model.ConsolidatedRecord, report *model.QualityReport) int {
	repaired := 0
	for field, rule := range v.cfg.Ranges {
		raw, ok := rec.Fields[field]
		if !ok || raw == nil {
			continue
		}
		f, ok := raw.(float64)
		if !ok {
			continue
		}
		if f < rule.Min || f > rule.Max {
			rec.Fields[field] = nil
			report.Field(field).ValidationFailures++
			repaired++
		}
	}
	return repaired
}

// applyRegion nulls coordinates outside the configured region. The pair is
// always nulled together, never one component alone.
func (v *Validator) applyRegion(rec *model.ConsolidatedRecord, report *model.QualityReport) int {
	if v.region == nil || v.cfg.Region == nil {
		return 0
	}
	repaired := 0
	for _, field := range v.cfg.Region.Fields {
		raw, ok := rec.Fields[field]
		if !ok || raw == nil {
			continue
		}
		gv, ok := raw.(model.GeoValue)
		if !ok {
			continue
		}
		if !v.region.Contains(gv.Lat, gv.Lng) {
			rec.Fields[field] = nil
			report.Field(field).ValidationFailures++
			repaired++
		}
	}
	return repaired
}

// applyCrossField flags inconsistent field pairs without altering values:
// which side is wrong cannot be determined from the check alone.
func (v *Validator) applyCrossField(rec *model.ConsolidatedRecord, report *model.QualityReport) int {
	flagged := 0
	for _, rule := range v.cfg.CrossField {
		larger, okL := rec.Fields[rule.Larger].(float64)
		smaller, okS := rec.Fields[rule.Smaller].(float64)
		if !okL || !okS {
			continue
		}
		if larger < smaller {
			report.CrossField[rule.Name]++
			flagged++
			zap.L().Debug("cross-field inconsistency",
				zap.String("check", rule.Name),
				zap.Float64(rule.Larger, larger),
				zap.Float64(rule.Smaller, smaller),
			)
		}
	}
	return flagged
}
