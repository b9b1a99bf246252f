package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReadRepo is the reporting warehouse read surface for the dashboard.
// Key lookups return ErrorCodeNotFound when the dimension row is absent.
type ReadRepo interface {
	ScenarioKey(ctx context.Context, scenarioID uuid.UUID) (int, error)
	UserKey(ctx context.Context, userID string) (int, error)

	// AuditTrail reads the unified timeline view for one scenario
	AuditTrail(ctx context.Context, scenarioKey int, f AuditFilter) ([]AuditEvent, error)

	// StateChanges reads a scenario's transitions in changed_at order
	StateChanges(ctx context.Context, scenarioKey int) ([]StateChange, error)

	// UserActions reads a user's actions since the cutoff, optionally
	// restricted to one scenario
	UserActions(ctx context.Context, userKey int, scenarioKey *int, cutoff time.Time) ([]JourneyAction, error)

	// Run reads one run fact, NotFound when it was never loaded
	Run(ctx context.Context, runID uuid.UUID) (RunSummary, error)

	// Diagnostics reads a run's diagnostics with node names resolved
	Diagnostics(ctx context.Context, runID uuid.UUID) ([]Diagnostic, error)

	// RunLogs reads logs correlated to a run in timestamp order
	RunLogs(ctx context.Context, runID uuid.UUID) ([]LogLine, error)

	// ScenarioRuns reads all run facts for a scenario
	ScenarioRuns(ctx context.Context, scenarioKey int) ([]RunSummary, error)

	// InputChangesBetween reads changes in the window (after, until]
	InputChangesBetween(ctx context.Context, scenarioKey int, after, until time.Time) ([]ChangedNode, error)

	// TopErrorCategories aggregates ERROR logs since the cutoff
	TopErrorCategories(ctx context.Context, cutoff time.Time, limit int) ([]CategoryCount, error)

	// ScenarioErrorCategories aggregates ERROR logs for one scenario
	ScenarioErrorCategories(ctx context.Context, scenarioID uuid.UUID) ([]CategoryCount, error)
}
