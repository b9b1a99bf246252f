package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DimReader resolves natural ids to surrogate keys.
// Lookups return ErrorCodeNotFound when the dimension row is absent,
// the dims themselves are owned by the dimension load, not this pipeline.
type DimReader interface {
	ScenarioKey(ctx context.Context, scenarioID uuid.UUID) (int, error)
	NodeKey(ctx context.Context, nodeID uuid.UUID) (int, error)
	ModelKey(ctx context.Context, modelID uuid.UUID) (int, error)
	ForecastCycleKey(ctx context.Context, forecastInitID uuid.UUID) (int, error)

	// EnsureUser returns the user key, creating the dim row when the
	// user has never been seen. Safe under concurrent loads.
	EnsureUser(ctx context.Context, userID string) (int, error)
}

// FactWriter appends to the audit fact tables
type FactWriter interface {
	InsertStateChange(ctx context.Context, row StateChangeRow) error
	InsertUserAction(ctx context.Context, row UserActionRow) error

	// InsertInputChange is idempotent on node_data_id, replays return false
	InsertInputChange(ctx context.Context, row InputChangeRow) (bool, error)

	InsertCloudWatchLog(ctx context.Context, row CloudWatchLogRow) error

	// UpsertRun inserts or refreshes a run fact keyed by run_id
	UpsertRun(ctx context.Context, row RunRow) error

	InsertDiagnostic(ctx context.Context, row DiagnosticRow) error

	// RunFactKey resolves the surrogate key of a loaded run fact
	RunFactKey(ctx context.Context, runID uuid.UUID) (int64, error)

	// InProgressRunIDs lists runs the warehouse still has unfinished
	InProgressRunIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ReportRepo is the full warehouse surface one transaction binds to
type ReportRepo interface {
	DimReader
	FactWriter
}

// WatermarkRepo tracks incremental load cursors
type WatermarkRepo interface {
	Get(ctx context.Context, table string) (Watermark, error)

	// MarkStarted stamps last_run_started and flips status to in_progress
	MarkStarted(ctx context.Context, table string, startedAt time.Time) error

	// Complete accumulates the loaded row count and records the outcome.
	// A nil lastLoadedAt leaves the cursor where it was (failed passes).
	Complete(ctx context.Context, table string, lastLoadedAt *time.Time, rows int64, status string) error
}
