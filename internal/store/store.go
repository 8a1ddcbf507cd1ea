// Package store persists raw listings, consolidated listings, and run
// history behind a driver-neutral interface.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/quartier-data/listings-cli/internal/config"
	"github.com/quartier-data/listings-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the consolidation pipeline.
type Store interface {
	// Raw listings
	SaveRawListings(ctx context.Context, source string, table *model.Table) (int, error)
	LoadRawListings(ctx context.Context, limit int) (*model.Table, error)

	// Runs
	CreateRun(ctx context.Context, input string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, records int, report *model.QualityReport) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Consolidated output
	SaveConsolidated(ctx context.Context, runID string, table *model.ConsolidatedTable) (int, error)
	LoadConsolidated(ctx context.Context, runID string, limit, offset int) ([]model.ConsolidatedRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store from config.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg)
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}
