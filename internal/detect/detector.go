// Package detect groups unmapped column names into candidate consolidation
// groups using alias dictionaries, name patterns, and fuzzy matching. It
// inspects column names only, never cell values.
package detect

import (
	"regexp"
	"sort"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/quartier-data/listings-cli/internal/model"
	"github.com/quartier-data/listings-cli/internal/rules"
)

// matchMethod orders proposal confidence: alias beats pattern beats fuzzy.
type matchMethod int

const (
	matchAlias matchMethod = iota
	matchPattern
	matchFuzzy
)

// concept is a compiled detection target.
type concept struct {
	name      string
	canonical string
	strategy  model.MergeStrategy
	tier      int
	aliases   map[string]bool // normalized
	patterns  []*regexp.Regexp
}

// Detector proposes consolidation groups for columns no explicit rule
// covers. Concepts are matched in declaration order, which is also the
// deterministic tie-break between equal fuzzy scores.
type Detector struct {
	concepts  []concept
	threshold float64
	tieMargin float64
}

// New compiles detector concepts from the rule file config.
func New(cfg *rules.Config) (*Detector, error) {
	d := &Detector{
		concepts:  make([]concept, 0, len(cfg.Concepts)),
		threshold: cfg.Defaults.FuzzyThreshold,
		tieMargin: cfg.Defaults.TieMargin,
	}

	for _, cc := range cfg.Concepts {
		if cc.Name == "" {
			return nil, eris.Wrap(rules.ErrConfiguration, "detect: concept with empty name")
		}
		strategy, ok := model.ParseStrategy(cc.Strategy)
		if !ok {
			return nil, eris.Wrapf(rules.ErrConfiguration, "detect: concept %q has unknown strategy %q", cc.Name, cc.Strategy)
		}
		canonical := cc.Canonical
		if canonical == "" {
			canonical = cc.Name + "_final"
		}
		tier := cc.Tier
		if tier == 0 {
			tier = 3 // discovered groups default to the lowest trust tier
		}

		c := concept{
			name:      cc.Name,
			canonical: canonical,
			strategy:  strategy,
			tier:      tier,
			aliases:   make(map[string]bool, len(cc.Aliases)+1),
		}
		c.aliases[NormalizeColumn(cc.Name)] = true
		for _, a := range cc.Aliases {
			c.aliases[NormalizeColumn(a)] = true
		}
		for _, p := range cc.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, eris.Wrapf(rules.ErrConfiguration, "detect: concept %q has invalid pattern %q", cc.Name, p)
			}
			c.patterns = append(c.patterns, re)
		}
		d.concepts = append(d.concepts, c)
	}

	return d, nil
}

// Propose returns the existing groups with newly discovered groups appended,
// plus the columns left unassigned because of fuzzy-score ties. Columns
// matching no concept pass through ungrouped. The input groups are not
// mutated.
func (d *Detector) Propose(columns []string, existing []model.ConsolidationGroup) ([]model.ConsolidationGroup, []model.AmbiguousColumn) {
	covered := make(map[string]bool)
	byCanonical := make(map[string]int, len(existing))
	out := append([]model.ConsolidationGroup(nil), existing...)
	for i, g := range out {
		byCanonical[g.Canonical] = i
		for _, col := range g.SourceColumns() {
			covered[col] = true
		}
	}

	uncovered := make([]string, 0, len(columns))
	for _, col := range columns {
		if !covered[col] {
			uncovered = append(uncovered, col)
		}
	}
	sort.Strings(uncovered)

	type hit struct {
		column string
		method matchMethod
	}
	matched := make(map[string][]hit, len(d.concepts)) // concept name -> hits
	var ambiguous []model.AmbiguousColumn

	for _, col := range uncovered {
		name, method, amb := d.match(col)
		if amb != nil {
			ambiguous = append(ambiguous, *amb)
			zap.L().Info("detect: ambiguous column left ungrouped",
				zap.String("column", amb.Column),
				zap.String("concept_a", amb.ConceptA),
				zap.String("concept_b", amb.ConceptB),
				zap.Float64("score_a", amb.ScoreA),
				zap.Float64("score_b", amb.ScoreB),
			)
			continue
		}
		if name == "" {
			continue
		}
		matched[name] = append(matched[name], hit{column: col, method: method})
	}

	for _, c := range d.concepts {
		hits := matched[c.name]
		if len(hits) == 0 {
			continue
		}
		// Alias matches outrank pattern matches outrank fuzzy matches;
		// equal methods keep lexical column order from the sorted walk.
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].method < hits[j].method })
		sources := make([]string, len(hits))
		for i, h := range hits {
			sources[i] = h.column
		}

		if i, ok := byCanonical[c.canonical]; ok {
			// Concept already has an explicit group: discovered columns
			// join it at the end, below every configured source.
			g := out[i]
			g.Sources = append(append([]string(nil), g.Sources...), sources...)
			out[i] = g
			continue
		}
		out = append(out, model.ConsolidationGroup{
			Canonical: c.canonical,
			Sources:   sources,
			Strategy:  c.strategy,
			Tier:      c.tier,
		})
	}

	return out, ambiguous
}

// match assigns one column to a concept, or reports a fuzzy tie.
func (d *Detector) match(col string) (conceptName string, method matchMethod, amb *model.AmbiguousColumn) {
	normalized := NormalizeColumn(col)

	for _, c := range d.concepts {
		if c.aliases[normalized] {
			return c.name, matchAlias, nil
		}
	}
	for _, c := range d.concepts {
		for _, re := range c.patterns {
			if re.MatchString(normalized) || re.MatchString(col) {
				return c.name, matchPattern, nil
			}
		}
	}

	// Fuzzy: normalized edit-distance similarity against each concept's
	// representative name. Strictly-greater comparison keeps the earliest
	// declared concept on equal scores.
	best, second := -1.0, -1.0
	bestIdx, secondIdx := -1, -1
	for i, c := range d.concepts {
		score := levenshtein.Similarity(normalized, NormalizeColumn(c.name), nil)
		if score > best {
			second, secondIdx = best, bestIdx
			best, bestIdx = score, i
		} else if score > second {
			second, secondIdx = score, i
		}
	}
	if bestIdx < 0 || best < d.threshold {
		return "", 0, nil
	}
	if secondIdx >= 0 && second >= d.threshold && best-second < d.tieMargin {
		return "", 0, &model.AmbiguousColumn{
			Column:   col,
			ConceptA: d.concepts[bestIdx].name,
			ConceptB: d.concepts[secondIdx].name,
			ScoreA:   best,
			ScoreB:   second,
		}
	}
	return d.concepts[bestIdx].name, matchFuzzy, nil
}
