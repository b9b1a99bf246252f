// Package service answers RCA dashboard queries from the reporting warehouse
package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"

	"foresight/internal/modkit/repokit"
	perr "foresight/internal/platform/errors"
	"foresight/internal/services/rca/domain"
)

// Query windows and limits
const (
	defaultJourneyDays  = 30
	defaultCategoryDays = 30
	defaultCategoryCap  = 10

	// scenarioKeyTTL bounds staleness of the scenario key cache;
	// dim keys are immutable once created so a hit can never be wrong,
	// the TTL just caps memory on long-lived processes
	scenarioKeyTTL = 15 * time.Minute
)

// Service serves the dashboard read models
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.ReadRepo]
	Clock  clockwork.Clock

	keys *ttlcache.Cache[uuid.UUID, int]
}

// New constructs the dashboard query service
func New(db repokit.TxRunner, binder repokit.Binder[domain.ReadRepo]) *Service {
	keys := ttlcache.New(
		ttlcache.WithTTL[uuid.UUID, int](scenarioKeyTTL),
	)
	go keys.Start()
	return &Service{
		DB:     db,
		Binder: binder,
		Clock:  clockwork.NewRealClock(),
		keys:   keys,
	}
}

// Close stops the key cache janitor
func (s *Service) Close() {
	if s.keys != nil {
		s.keys.Stop()
	}
}

func (s *Service) scenarioKey(ctx context.Context, repo domain.ReadRepo, id uuid.UUID) (int, error) {
	if item := s.keys.Get(id); item != nil {
		return item.Value(), nil
	}
	key, err := repo.ScenarioKey(ctx, id)
	if err != nil {
		return 0, err
	}
	s.keys.Set(id, key, ttlcache.DefaultTTL)
	return key, nil
}

// AuditTrail returns the unified chronological timeline for a scenario
func (s *Service) AuditTrail(
	ctx context.Context,
	scenarioID uuid.UUID,
	f domain.AuditFilter,
) (domain.AuditTrail, error) {
	repo := s.Binder.Bind(s.DB)

	key, err := s.scenarioKey(ctx, repo, scenarioID)
	if err != nil {
		return domain.AuditTrail{}, err
	}
	events, err := repo.AuditTrail(ctx, key, f)
	if err != nil {
		return domain.AuditTrail{}, err
	}
	return domain.AuditTrail{
		ScenarioID: scenarioID,
		EventCount: len(events),
		Events:     events,
	}, nil
}

// StateChanges returns a scenario's lifecycle transitions in order
func (s *Service) StateChanges(ctx context.Context, scenarioID uuid.UUID) (domain.StateChangeList, error) {
	repo := s.Binder.Bind(s.DB)

	key, err := s.scenarioKey(ctx, repo, scenarioID)
	if err != nil {
		return domain.StateChangeList{}, err
	}
	changes, err := repo.StateChanges(ctx, key)
	if err != nil {
		return domain.StateChangeList{}, err
	}
	return domain.StateChangeList{ScenarioID: scenarioID, StateChanges: changes}, nil
}

// UserJourney returns a user's chronological action timeline over the
// trailing window, optionally restricted to one scenario. An unknown
// scenario filter is ignored rather than erroring, matching how the
// dashboard slices.
func (s *Service) UserJourney(
	ctx context.Context,
	userID string,
	days int,
	scenarioID *uuid.UUID,
) (domain.Journey, error) {
	repo := s.Binder.Bind(s.DB)

	userKey, err := repo.UserKey(ctx, userID)
	if err != nil {
		return domain.Journey{}, err
	}

	if days <= 0 {
		days = defaultJourneyDays
	}
	cutoff := s.Clock.Now().UTC().AddDate(0, 0, -days)

	var scenarioKey *int
	if scenarioID != nil {
		k, err := s.scenarioKey(ctx, repo, *scenarioID)
		switch {
		case err == nil:
			scenarioKey = &k
		case !perr.IsCode(err, perr.ErrorCodeNotFound):
			return domain.Journey{}, err
		}
	}

	actions, err := repo.UserActions(ctx, userKey, scenarioKey, cutoff)
	if err != nil {
		return domain.Journey{}, err
	}
	return domain.Journey{
		UserID:       userID,
		DaysAnalyzed: days,
		ActionCount:  len(actions),
		Actions:      actions,
	}, nil
}

// RunDiagnostics returns the drill-through bundle for one run: the run
// fact, its diagnostics, and correlated logs
func (s *Service) RunDiagnostics(ctx context.Context, runID uuid.UUID) (domain.RunDiagnostics, error) {
	repo := s.Binder.Bind(s.DB)

	run, err := repo.Run(ctx, runID)
	if err != nil {
		return domain.RunDiagnostics{}, err
	}
	diags, err := repo.Diagnostics(ctx, runID)
	if err != nil {
		return domain.RunDiagnostics{}, err
	}
	logs, err := repo.RunLogs(ctx, runID)
	if err != nil {
		return domain.RunDiagnostics{}, err
	}
	return domain.RunDiagnostics{Run: run, Diagnostics: diags, Logs: logs}, nil
}

// CompareRuns contrasts two runs of one scenario and lists the input
// changes landed between their start times
func (s *Service) CompareRuns(
	ctx context.Context,
	scenarioID, runA, runB uuid.UUID,
) (domain.RunComparison, error) {
	repo := s.Binder.Bind(s.DB)

	key, err := s.scenarioKey(ctx, repo, scenarioID)
	if err != nil {
		return domain.RunComparison{}, err
	}
	a, err := repo.Run(ctx, runA)
	if err != nil {
		return domain.RunComparison{}, err
	}
	b, err := repo.Run(ctx, runB)
	if err != nil {
		return domain.RunComparison{}, err
	}

	earlier, later := a.StartedAt, b.StartedAt
	if later.Before(earlier) {
		earlier, later = later, earlier
	}
	changed, err := repo.InputChangesBetween(ctx, key, earlier, later)
	if err != nil {
		return domain.RunComparison{}, err
	}

	return domain.RunComparison{
		ScenarioID:          scenarioID,
		RunA:                a,
		RunB:                b,
		TimeGapSeconds:      later.Sub(earlier).Seconds(),
		InputChangesBetween: len(changed),
		ChangedNodes:        changed,
	}, nil
}

// TopErrorCategories returns the most common ERROR log categories over
// the trailing window
func (s *Service) TopErrorCategories(ctx context.Context, days, limit int) (domain.TopCategories, error) {
	if days <= 0 {
		days = defaultCategoryDays
	}
	if limit <= 0 {
		limit = defaultCategoryCap
	}
	cutoff := s.Clock.Now().UTC().AddDate(0, 0, -days)

	cats, err := s.Binder.Bind(s.DB).TopErrorCategories(ctx, cutoff, limit)
	if err != nil {
		return domain.TopCategories{}, err
	}
	return domain.TopCategories{DaysAnalyzed: days, Categories: cats}, nil
}

// ErrorSummary aggregates run outcomes and error log categories for a
// scenario
func (s *Service) ErrorSummary(ctx context.Context, scenarioID uuid.UUID) (domain.ErrorSummary, error) {
	repo := s.Binder.Bind(s.DB)

	key, err := s.scenarioKey(ctx, repo, scenarioID)
	if err != nil {
		return domain.ErrorSummary{}, err
	}
	runs, err := repo.ScenarioRuns(ctx, key)
	if err != nil {
		return domain.ErrorSummary{}, err
	}
	cats, err := repo.ScenarioErrorCategories(ctx, scenarioID)
	if err != nil {
		return domain.ErrorSummary{}, err
	}

	sum := domain.ErrorSummary{
		ScenarioID:      scenarioID,
		TotalRuns:       len(runs),
		ErrorCategories: cats,
	}
	for _, r := range runs {
		if r.Status == "failed" {
			sum.FailedRuns++
		}
		sum.TotalNodeFailures += r.NodeFailures
	}
	if sum.TotalRuns > 0 {
		rate := float64(sum.TotalRuns-sum.FailedRuns) / float64(sum.TotalRuns) * 100
		sum.SuccessRate = math.Round(rate*100) / 100
	}
	return sum, nil
}
