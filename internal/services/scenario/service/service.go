package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"foresight/internal/modkit/repokit"
	"foresight/internal/platform/logger"
	rundom "foresight/internal/services/runs/domain"
	"foresight/internal/services/scenario/domain"
)

// recentScenarioCap bounds full-load input change extraction
const recentScenarioCap = 100

// Service extracts scenario audit history from the OLTP source
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.SourceRepo]
}

// New constructs the scenario extraction service
func New(db repokit.TxRunner, binder repokit.Binder[domain.SourceRepo]) *Service {
	return &Service{DB: db, Binder: binder}
}

// StateChangeExtract is the result of one state change extraction pass
type StateChangeExtract struct {
	Changes []domain.StateChange

	// LifecycleViolations counts scenarios whose audit stamps broke the
	// lifecycle ordering rules, each one is logged at warn
	LifecycleViolations int
}

// StateChanges reconstructs lifecycle transitions for all scenarios
// matching the filter. All transitions of a matched scenario are emitted,
// the fact load is idempotent on replays.
func (s *Service) StateChanges(ctx context.Context, f domain.Filter) (StateChangeExtract, error) {
	var ex StateChangeExtract
	log := logger.C(ctx)

	rows, err := s.Binder.Bind(s.DB).Scenarios(ctx, f)
	if err != nil {
		return ex, err
	}

	for _, row := range rows {
		if findings := ValidateLifecycle(row); len(findings) > 0 {
			ex.LifecycleViolations++
			for _, v := range findings {
				log.Warn().Str("scenario_id", row.ID.String()).Msg(v)
			}
		}
		ex.Changes = append(ex.Changes, TransitionsFor(row)...)
	}
	return ex, nil
}

// Actions reconstructs user actions from scenarios, node data, and the
// provided forecast runs. Runs are passed in so the pipeline fetches them
// once and shares them with the fact load.
func (s *Service) Actions(ctx context.Context, f domain.Filter, runs []rundom.Run) (ActionExtract, error) {
	repo := s.Binder.Bind(s.DB)

	scenarios, err := repo.Scenarios(ctx, f)
	if err != nil {
		return ActionExtract{}, err
	}
	nodeData, err := repo.NodeData(ctx, f)
	if err != nil {
		return ActionExtract{}, err
	}

	ex := ActionsFrom(scenarios, nodeData, runs, f.Since)
	if ex.MissingCorrelation > 0 {
		logger.C(ctx).Warn().
			Int("dropped", ex.MissingCorrelation).
			Msg("actions dropped for missing correlation id")
	}
	return ex, nil
}

// InputChanges returns the sequenced input change history for one scenario
func (s *Service) InputChanges(ctx context.Context, scenarioID uuid.UUID) ([]domain.InputChange, error) {
	rows, err := s.Binder.Bind(s.DB).NodeDataForScenario(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	return SequenceInputChanges(rows), nil
}

// InputChangesSince sequences input changes for every scenario active since
// the cutoff. Each scenario's full node history is pulled so sequence
// numbers and duplicate flags stay correct across incremental loads.
func (s *Service) InputChangesSince(ctx context.Context, since *time.Time) ([]domain.InputChange, error) {
	repo := s.Binder.Bind(s.DB)

	ids, err := repo.RecentScenarioIDs(ctx, since, recentScenarioCap)
	if err != nil {
		return nil, err
	}

	var out []domain.InputChange
	for _, id := range ids {
		rows, err := repo.NodeDataForScenario(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, SequenceInputChanges(rows)...)
	}
	return out, nil
}
