package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartier-data/listings-cli/internal/model"
)

const fixtureYAML = `
rules:
  defaults:
    fuzzy_threshold: 0.85
    tie_margin: 0.03
  groups:
    - canonical: price_final
      strategy: numeric
      tier: 1
      sources: [price, prix, prix_evaluation]
    - canonical: geolocation
      strategy: geo_coord
      tier: 2
      sources: ["latitude|longitude", geo]
    - canonical: listing_url
      strategy: url
      sources: [url, lien]
  validation:
    ranges:
      price_final: { min: 10000, max: 50000000 }
    cross_field:
      - name: lot_vs_living
        larger: lot_area_final
        smaller: living_area_final
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeFixture(t, fixtureYAML))
	require.NoError(t, err)

	assert.Equal(t, 0.85, cfg.Defaults.FuzzyThreshold)
	assert.Equal(t, 0.03, cfg.Defaults.TieMargin)
	assert.Len(t, cfg.Groups, 3)
	assert.Equal(t, "price_final", cfg.Groups[0].Canonical)
	assert.Equal(t, RangeRule{Min: 10000, Max: 50000000}, cfg.Validation.Ranges["price_final"])
	assert.Equal(t, "lot_vs_living", cfg.Validation.CrossField[0].Name)
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	cfg, err := LoadConfig(writeFixture(t, "rules:\n  groups: []\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.80, cfg.Defaults.FuzzyThreshold)
	assert.Equal(t, 0.05, cfg.Defaults.TieMargin)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/rules.yaml")
	assert.Error(t, err)
}

func TestNewRegistry(t *testing.T) {
	reg, err := Load(writeFixture(t, fixtureYAML))
	require.NoError(t, err)

	groups := reg.Groups()
	require.Len(t, groups, 3)
	assert.Equal(t, model.StrategyNumeric, groups[0].Strategy)
	assert.Equal(t, 1, groups[0].Tier)
	// Tier defaults to 1 when unset.
	assert.Equal(t, 1, groups[2].Tier)

	strategy, err := reg.Strategy("geolocation")
	require.NoError(t, err)
	assert.Equal(t, model.StrategyGeoCoord, strategy)
}

func TestRegistry_StrategyUnknown(t *testing.T) {
	reg, err := Load(writeFixture(t, fixtureYAML))
	require.NoError(t, err)

	_, err = reg.Strategy("nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrConfiguration))
}

func TestNewRegistry_UnknownStrategy(t *testing.T) {
	yaml := `
rules:
  groups:
    - canonical: price_final
      strategy: money
      sources: [price]
`
	_, err := Load(writeFixture(t, yaml))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrConfiguration))
}

func TestNewRegistry_EmptySources(t *testing.T) {
	yaml := `
rules:
  groups:
    - canonical: price_final
      strategy: numeric
      sources: []
`
	_, err := Load(writeFixture(t, yaml))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrConfiguration))
}

func TestNewRegistry_DuplicateCanonical(t *testing.T) {
	yaml := `
rules:
  groups:
    - canonical: price_final
      strategy: numeric
      sources: [price]
    - canonical: price_final
      strategy: numeric
      sources: [prix]
`
	_, err := Load(writeFixture(t, yaml))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrConfiguration))
}

func TestCoveredColumns_ExpandsGeoPair(t *testing.T) {
	reg, err := Load(writeFixture(t, fixtureYAML))
	require.NoError(t, err)

	covered := reg.CoveredColumns()
	assert.True(t, covered["latitude"])
	assert.True(t, covered["longitude"])
	assert.True(t, covered["geo"])
	assert.True(t, covered["prix"])
	assert.False(t, covered["latitude|longitude"])
}

func TestResolve_FiltersAndPreservesOrder(t *testing.T) {
	reg, err := Load(writeFixture(t, fixtureYAML))
	require.NoError(t, err)

	present := map[string]bool{"prix": true, "prix_evaluation": true, "geo": true}
	resolved, err := reg.Resolve(present)
	require.NoError(t, err)

	// listing_url dropped entirely, geo pair dropped from geolocation.
	require.Len(t, resolved, 2)
	assert.Equal(t, []string{"prix", "prix_evaluation"}, resolved[0].Sources)
	assert.Equal(t, []string{"geo"}, resolved[1].Sources)
}

func TestResolve_GeoPairNeedsBothColumns(t *testing.T) {
	reg, err := Load(writeFixture(t, fixtureYAML))
	require.NoError(t, err)

	// Only latitude present: the pair is unusable.
	resolved, err := reg.Resolve(map[string]bool{"latitude": true, "geo": true})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, []string{"geo"}, resolved[0].Sources)

	resolved, err = reg.Resolve(map[string]bool{"latitude": true, "longitude": true})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, []string{"latitude|longitude"}, resolved[0].Sources)
}

func TestResolve_DuplicateSourceClaim(t *testing.T) {
	groups := []model.ConsolidationGroup{
		{Canonical: "price_final", Sources: []string{"price"}, Strategy: model.StrategyNumeric, Tier: 1},
		{Canonical: "assessment_final", Sources: []string{"evaluation", "price"}, Strategy: model.StrategyNumeric, Tier: 1},
	}
	_, err := Resolve(groups, map[string]bool{"price": true, "evaluation": true})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), `"price"`)
}

func TestResolve_Idempotent(t *testing.T) {
	reg, err := Load(writeFixture(t, fixtureYAML))
	require.NoError(t, err)

	present := map[string]bool{"price": true, "geo": true, "url": true}
	first, err := reg.Resolve(present)
	require.NoError(t, err)
	second, err := reg.Resolve(present)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// The registry itself is untouched.
	assert.Equal(t, []string{"price", "prix", "prix_evaluation"}, reg.Groups()[0].Sources)
}
