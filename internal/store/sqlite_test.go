package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quartier-data/listings-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "listings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_RawListingsRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	table := &model.Table{
		Columns: []string{"price", "chambres"},
		Records: []model.RawRecord{
			{"price": "450 000$", "chambres": 3.0},
			{"price": nil, "chambres": 2.0},
		},
	}
	n, err := st.SaveRawListings(ctx, "centris", table)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loaded, err := st.LoadRawListings(ctx, 0)
	require.NoError(t, err)
	require.Len(t, loaded.Records, 2)
	assert.Contains(t, loaded.Columns, "price")
	assert.Contains(t, loaded.Columns, "chambres")
	assert.Equal(t, "450 000$", loaded.Records[0]["price"])
	assert.Equal(t, 3.0, loaded.Records[0]["chambres"])

	limited, err := st.LoadRawListings(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited.Records, 1)
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "listings.csv")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	report := model.NewQualityReport()
	report.Field("price_final").Total = 10
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusCompleted, 10, report))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, 10, got.Records)
	require.NotNil(t, got.Report)
	assert.Equal(t, 10, got.Report.Field("price_final").Total)
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLite(t)
	err := st.CompleteRun(context.Background(), "nope", model.RunStatusFailed, 0, nil)
	assert.Error(t, err)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLite(t)
	_, err := st.GetRun(context.Background(), "nope")
	assert.Error(t, err)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "a.csv")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "b.csv")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, a.ID, model.RunStatusCompleted, 5, nil))

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	completed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, a.ID, completed[0].ID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_ConsolidatedRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "listings.csv")
	require.NoError(t, err)

	table := &model.ConsolidatedTable{
		Columns: []string{"price_final"},
		Records: []model.ConsolidatedRecord{
			{
				Fields:     model.Fields{"price_final": 450000.0},
				Provenance: map[string]string{"price_final": "price"},
			},
			{
				Fields:     model.Fields{"price_final": nil},
				Provenance: map[string]string{"price_final": ""},
			},
		},
	}
	n, err := st.SaveConsolidated(ctx, run.ID, table)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := st.LoadConsolidated(ctx, run.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 450000.0, records[0].Fields["price_final"])
	assert.Equal(t, "price", records[0].Provenance["price_final"])
	assert.Nil(t, records[1].Fields["price_final"])

	page, err := st.LoadConsolidated(ctx, run.ID, 1, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}
