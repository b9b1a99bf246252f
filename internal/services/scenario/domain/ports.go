package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows source extraction for incremental and scoped loads
type Filter struct {
	// Since keeps only rows whose audit stamps moved after this instant, nil means everything
	Since *time.Time

	// ScenarioIDs restricts to specific scenarios, empty means all
	ScenarioIDs []uuid.UUID
}

// SourceRepo reads scenario audit rows from the OLTP source
type SourceRepo interface {
	// Scenarios returns scenario rows matching the filter,
	// a Since filter matches any of the audit stamp columns
	Scenarios(ctx context.Context, f Filter) ([]Scenario, error)

	// NodeData returns append-only input rows created after f.Since
	NodeData(ctx context.Context, f Filter) ([]NodeData, error)

	// NodeDataForScenario returns the full input history for one scenario
	// ordered by creation time
	NodeDataForScenario(ctx context.Context, scenarioID uuid.UUID) ([]NodeData, error)

	// RecentScenarioIDs returns ids of scenarios updated since the cutoff,
	// capped at limit to keep full loads bounded
	RecentScenarioIDs(ctx context.Context, since *time.Time, limit int) ([]uuid.UUID, error)
}
