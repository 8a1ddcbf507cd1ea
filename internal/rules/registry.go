package rules

import (
	"github.com/rotisserie/eris"

	"github.com/quartier-data/listings-cli/internal/model"
)

// Registry holds the canonical, ordered set of consolidation groups. It is
// immutable after construction and safe to share across workers.
type Registry struct {
	cfg         *Config
	groups      []model.ConsolidationGroup
	byCanonical map[string]*model.ConsolidationGroup
}

// NewRegistry validates group configs and builds an indexed registry.
// Unknown strategies, duplicate canonical names, and empty source lists are
// configuration errors.
func NewRegistry(cfg *Config) (*Registry, error) {
	r := &Registry{
		cfg:         cfg,
		groups:      make([]model.ConsolidationGroup, 0, len(cfg.Groups)),
		byCanonical: make(map[string]*model.ConsolidationGroup, len(cfg.Groups)),
	}

	for _, gc := range cfg.Groups {
		if gc.Canonical == "" {
			return nil, eris.Wrap(ErrConfiguration, "rules: group with empty canonical name")
		}
		if len(gc.Sources) == 0 {
			return nil, eris.Wrapf(ErrConfiguration, "rules: group %q has no source columns", gc.Canonical)
		}
		strategy, ok := model.ParseStrategy(gc.Strategy)
		if !ok {
			return nil, eris.Wrapf(ErrConfiguration, "rules: group %q has unknown strategy %q", gc.Canonical, gc.Strategy)
		}
		if _, dup := r.byCanonical[gc.Canonical]; dup {
			return nil, eris.Wrapf(ErrConfiguration, "rules: duplicate canonical field %q", gc.Canonical)
		}

		tier := gc.Tier
		if tier == 0 {
			tier = 1
		}
		if tier < 1 || tier > 3 {
			return nil, eris.Wrapf(ErrConfiguration, "rules: group %q has tier %d, want 1..3", gc.Canonical, tier)
		}

		g := model.ConsolidationGroup{
			Canonical: gc.Canonical,
			Sources:   append([]string(nil), gc.Sources...),
			Strategy:  strategy,
			Tier:      tier,
		}
		r.groups = append(r.groups, g)
		r.byCanonical[g.Canonical] = &r.groups[len(r.groups)-1]
	}

	return r, nil
}

// Load reads and validates a rule file in one step.
func Load(path string) (*Registry, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(cfg)
}

// Config returns the underlying rule file config (defaults, concepts,
// validation rules).
func (r *Registry) Config() *Config {
	return r.cfg
}

// Groups returns a copy of the configured groups in declaration order.
func (r *Registry) Groups() []model.ConsolidationGroup {
	return append([]model.ConsolidationGroup(nil), r.groups...)
}

// Strategy returns the merge strategy of a canonical field.
func (r *Registry) Strategy(canonical string) (model.MergeStrategy, error) {
	g, ok := r.byCanonical[canonical]
	if !ok {
		return "", eris.Wrapf(ErrConfiguration, "rules: unknown canonical field %q", canonical)
	}
	return g.Strategy, nil
}

// CoveredColumns returns the set of source columns claimed by any group.
// The detector uses it to exclude already covered columns.
func (r *Registry) CoveredColumns() map[string]bool {
	covered := make(map[string]bool)
	for _, g := range r.groups {
		for _, col := range g.SourceColumns() {
			covered[col] = true
		}
	}
	return covered
}

// Resolve returns a dataset-specific view of the registry: each group's
// sources filtered to columns actually present, relative order preserved,
// groups with no present source dropped. A source column claimed by two
// groups is a configuration error because it would make provenance
// ambiguous. Resolve never mutates the registry; repeated calls with the
// same input are idempotent.
func Resolve(groups []model.ConsolidationGroup, present map[string]bool) ([]model.ConsolidationGroup, error) {
	claimed := make(map[string]string)
	for _, g := range groups {
		for _, col := range g.SourceColumns() {
			if prev, dup := claimed[col]; dup && prev != g.Canonical {
				return nil, eris.Wrapf(ErrConfiguration,
					"rules: source column %q claimed by both %q and %q", col, prev, g.Canonical)
			}
			claimed[col] = g.Canonical
		}
	}

	resolved := make([]model.ConsolidationGroup, 0, len(groups))
	for _, g := range groups {
		kept := make([]string, 0, len(g.Sources))
		for _, s := range g.Sources {
			if lat, lng, ok := model.SplitGeoPair(s); ok {
				// A flat pair is usable only when both columns exist.
				if present[lat] && present[lng] {
					kept = append(kept, s)
				}
				continue
			}
			if present[s] {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			continue
		}
		resolved = append(resolved, model.ConsolidationGroup{
			Canonical: g.Canonical,
			Sources:   kept,
			Strategy:  g.Strategy,
			Tier:      g.Tier,
		})
	}
	return resolved, nil
}

// Resolve applies Resolve to the registry's own groups.
func (r *Registry) Resolve(present map[string]bool) ([]model.ConsolidationGroup, error) {
	return Resolve(r.groups, present)
}
