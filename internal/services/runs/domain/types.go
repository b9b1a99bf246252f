// Package domain defines forecast run types shared across services
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunStatus values as stored on fc_scenario_run.run_status
const (
	RunStatusSuccess    = "success"
	RunStatusFailed     = "failed"
	RunStatusInProgress = "in progress"
)

// Run is one forecast run with node calculation aggregates
type Run struct {
	ID             uuid.UUID
	ScenarioID     uuid.UUID
	Status         string
	StartedAt      time.Time
	RunBy          string
	CorrelationID  *uuid.UUID
	CompletedAt    *time.Time
	FailReason     *string
	ModelID        uuid.UUID
	ForecastInitID uuid.UUID

	BranchCount     int
	NodeCalcTotal   int
	NodeCalcSuccess int
	NodeCalcFailed  int
	NodeCalcTimeout int
}

// DurationSeconds returns elapsed wall time, nil while the run is open
func (r Run) DurationSeconds() *float64 {
	if r.CompletedAt == nil {
		return nil
	}
	d := r.CompletedAt.Sub(r.StartedAt).Seconds()
	return &d
}

// Succeeded reports whether the run finished successfully
func (r Run) Succeeded() bool { return r.Status == RunStatusSuccess }

// Filter narrows run extraction
type Filter struct {
	// Since keeps only runs started after this instant, nil means everything
	Since *time.Time

	// ScenarioIDs restricts to specific scenarios, empty means all
	ScenarioIDs []uuid.UUID

	// RunIDs restricts to specific runs, used to refresh in-progress rows
	RunIDs []uuid.UUID
}

// SourceRepo reads forecast runs from the OLTP source
type SourceRepo interface {
	// Runs returns runs matching the filter with calc aggregates populated
	Runs(ctx context.Context, f Filter) ([]Run, error)
}
