package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/quartier-data/listings-cli/internal/config"
	"github.com/quartier-data/listings-cli/internal/db"
	"github.com/quartier-data/listings-cli/internal/extract"
	"github.com/quartier-data/listings-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS raw_listings (
	id         UUID PRIMARY KEY,
	source     TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id         UUID PRIMARY KEY,
	input      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	records    INTEGER NOT NULL DEFAULT 0,
	report     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS consolidated_listings (
	id         UUID PRIMARY KEY,
	run_id     UUID NOT NULL REFERENCES runs(id),
	fields     JSONB NOT NULL,
	provenance JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_raw_listings_source ON raw_listings(source);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_consolidated_run_id ON consolidated_listings(run_id);
`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	minConns := cfg.MinConns
	if minConns <= 0 {
		minConns = 2
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; tests inject pgxmock here.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRawListings(ctx context.Context, source string, table *model.Table) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(table.Records))
	for _, rec := range table.Records {
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal listing")
		}
		rows = append(rows, []any{uuid.New(), source, data, now})
	}

	n, err := db.CopyFrom(ctx, s.pool, "raw_listings", []string{"id", "source", "data", "created_at"}, rows)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PostgresStore) LoadRawListings(ctx context.Context, limit int) (*model.Table, error) {
	query := `SELECT data FROM raw_listings ORDER BY created_at, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query raw listings")
	}
	defer rows.Close()

	var objects []map[string]any
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw listing")
		}
		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal raw listing")
		}
		objects = append(objects, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate raw listings")
	}

	return extract.TableFromObjects(objects), nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, input string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, input, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, input, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Input:     input,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, records int, report *model.QualityReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, records = $2, report = $3, updated_at = $4 WHERE id = $5`,
		string(status), records, reportJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: update run")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, input, status, records, report, created_at, updated_at FROM runs WHERE id = $1`, runID)
	run, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: run %s not found", runID)
	}
	return run, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, input, status, records, report, created_at, updated_at FROM runs`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY created_at DESC`
	if filter.Status != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) SaveConsolidated(ctx context.Context, runID string, table *model.ConsolidatedTable) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(table.Records))
	for _, rec := range table.Records {
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal fields")
		}
		provenance, err := json.Marshal(rec.Provenance)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal provenance")
		}
		rows = append(rows, []any{uuid.New(), runID, fields, provenance, now})
	}

	n, err := db.CopyFrom(ctx, s.pool, "consolidated_listings",
		[]string{"id", "run_id", "fields", "provenance", "created_at"}, rows)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PostgresStore) LoadConsolidated(ctx context.Context, runID string, limit, offset int) ([]model.ConsolidatedRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT fields, provenance FROM consolidated_listings WHERE run_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		runID, limit, offset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query consolidated listings")
	}
	defer rows.Close()

	var records []model.ConsolidatedRecord
	for rows.Next() {
		var fieldsJSON, provenanceJSON []byte
		if err := rows.Scan(&fieldsJSON, &provenanceJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan consolidated listing")
		}
		var rec model.ConsolidatedRecord
		if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal fields")
		}
		if err := json.Unmarshal(provenanceJSON, &rec.Provenance); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal provenance")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate consolidated listings")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var (
		run        model.Run
		status     string
		reportJSON []byte
	)
	err := row.Scan(&run.ID, &run.Input, &status, &run.Records, &reportJSON, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	run.Status = model.RunStatus(status)
	if len(reportJSON) > 0 {
		var report model.QualityReport
		if err := json.Unmarshal(reportJSON, &report); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
		run.Report = &report
	}
	return &run, nil
}
