package model

import "time"

// RunStatus is the lifecycle state of a consolidation run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one consolidation run and its outcome.
type Run struct {
	ID        string         `json:"id"`
	Input     string         `json:"input"`
	Status    RunStatus      `json:"status"`
	Records   int            `json:"records"`
	Report    *QualityReport `json:"report,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
