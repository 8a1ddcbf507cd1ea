package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartier-data/listings-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_CreateRun(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), "listings.csv", "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := st.CreateRun(context.Background(), "listings.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE runs SET").
		WithArgs("completed", 10, pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	report := model.NewQualityReport()
	report.Field("price_final").Total = 10
	require.NoError(t, st.CompleteRun(context.Background(), "run-1", model.RunStatusCompleted, 10, report))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun_NotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE runs SET").
		WithArgs("failed", 0, pgxmock.AnyArg(), pgxmock.AnyArg(), "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.CompleteRun(context.Background(), "nope", model.RunStatusFailed, 0, nil)
	assert.Error(t, err)
}

func TestPostgres_GetRun(t *testing.T) {
	st, mock := newMockStore(t)

	report := model.NewQualityReport()
	report.Field("price_final").Total = 7
	reportJSON, err := json.Marshal(report)
	require.NoError(t, err)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, input, status, records, report, created_at, updated_at FROM runs WHERE").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "input", "status", "records", "report", "created_at", "updated_at"}).
			AddRow("run-1", "listings.csv", "completed", 7, reportJSON, now, now))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 7, run.Records)
	require.NotNil(t, run.Report)
	assert.Equal(t, 7, run.Report.Field("price_final").Total)
}

func TestPostgres_GetRun_NotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, input, status, records, report, created_at, updated_at FROM runs WHERE").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetRun(context.Background(), "nope")
	assert.Error(t, err)
}

func TestPostgres_ListRuns_StatusFilter(t *testing.T) {
	st, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, input, status, records, report, created_at, updated_at FROM runs WHERE status").
		WithArgs("completed", 50, 0).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "input", "status", "records", "report", "created_at", "updated_at"}).
			AddRow("run-1", "a.csv", "completed", 5, []byte(nil), now, now))

	runs, err := st.ListRuns(context.Background(), RunFilter{Status: model.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Nil(t, runs[0].Report)
}

func TestPostgres_SaveRawListings(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"raw_listings"},
		[]string{"id", "source", "data", "created_at"}).
		WillReturnResult(2)

	table := &model.Table{
		Columns: []string{"price"},
		Records: []model.RawRecord{{"price": 1.0}, {"price": 2.0}},
	}
	n, err := st.SaveRawListings(context.Background(), "centris", table)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveConsolidated(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"consolidated_listings"},
		[]string{"id", "run_id", "fields", "provenance", "created_at"}).
		WillReturnResult(1)

	table := &model.ConsolidatedTable{
		Columns: []string{"price_final"},
		Records: []model.ConsolidatedRecord{
			{Fields: model.Fields{"price_final": 450000.0}, Provenance: map[string]string{"price_final": "price"}},
		},
	}
	n, err := st.SaveConsolidated(context.Background(), "run-1", table)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_LoadConsolidated(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT fields, provenance FROM consolidated_listings").
		WithArgs("run-1", 100, 0).
		WillReturnRows(pgxmock.NewRows([]string{"fields", "provenance"}).
			AddRow([]byte(`{"price_final":450000}`), []byte(`{"price_final":"price"}`)))

	records, err := st.LoadConsolidated(context.Background(), "run-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 450000.0, records[0].Fields["price_final"])
	assert.Equal(t, "price", records[0].Provenance["price_final"])
}
