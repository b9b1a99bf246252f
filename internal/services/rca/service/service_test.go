package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"foresight/internal/modkit/repokit"
	perr "foresight/internal/platform/errors"
	"foresight/internal/platform/store"
	"foresight/internal/services/rca/domain"
)

type fakeTx struct{}

func (f *fakeTx) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	var z store.CommandTag
	return z, nil
}

func (f *fakeTx) Query(context.Context, string, ...any) (store.Rows, error) {
	var z store.Rows
	return z, nil
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) store.Row {
	var z store.Row
	return z
}

func (f *fakeTx) Tx(_ context.Context, fn func(q store.RowQuerier) error) error {
	return fn(f)
}

// fakeReads serves canned warehouse reads and counts key lookups
type fakeReads struct {
	scenarios map[uuid.UUID]int
	users     map[string]int
	runs      map[uuid.UUID]domain.RunSummary

	events     []domain.AuditEvent
	actions    []domain.JourneyAction
	changed    []domain.ChangedNode
	scenRuns   []domain.RunSummary
	categories []domain.CategoryCount

	scenarioLookups int
	actionsCutoff   time.Time
	actionsScenario *int
	changesAfter    time.Time
	changesUntil    time.Time
}

func newFakeReads() *fakeReads {
	return &fakeReads{
		scenarios: map[uuid.UUID]int{},
		users:     map[string]int{},
		runs:      map[uuid.UUID]domain.RunSummary{},
	}
}

func (f *fakeReads) ScenarioKey(_ context.Context, id uuid.UUID) (int, error) {
	f.scenarioLookups++
	k, ok := f.scenarios[id]
	if !ok {
		return 0, perr.NotFoundf("scenario %s not found", id)
	}
	return k, nil
}

func (f *fakeReads) UserKey(_ context.Context, userID string) (int, error) {
	k, ok := f.users[userID]
	if !ok {
		return 0, perr.NotFoundf("user %s not found", userID)
	}
	return k, nil
}

func (f *fakeReads) AuditTrail(context.Context, int, domain.AuditFilter) ([]domain.AuditEvent, error) {
	return f.events, nil
}

func (f *fakeReads) StateChanges(context.Context, int) ([]domain.StateChange, error) {
	return nil, nil
}

func (f *fakeReads) UserActions(_ context.Context, _ int, scenarioKey *int, cutoff time.Time) ([]domain.JourneyAction, error) {
	f.actionsScenario = scenarioKey
	f.actionsCutoff = cutoff
	return f.actions, nil
}

func (f *fakeReads) Run(_ context.Context, runID uuid.UUID) (domain.RunSummary, error) {
	r, ok := f.runs[runID]
	if !ok {
		return domain.RunSummary{}, perr.NotFoundf("run %s not found", runID)
	}
	return r, nil
}

func (f *fakeReads) Diagnostics(context.Context, uuid.UUID) ([]domain.Diagnostic, error) {
	return nil, nil
}

func (f *fakeReads) RunLogs(context.Context, uuid.UUID) ([]domain.LogLine, error) {
	return nil, nil
}

func (f *fakeReads) ScenarioRuns(context.Context, int) ([]domain.RunSummary, error) {
	return f.scenRuns, nil
}

func (f *fakeReads) InputChangesBetween(_ context.Context, _ int, after, until time.Time) ([]domain.ChangedNode, error) {
	f.changesAfter = after
	f.changesUntil = until
	return f.changed, nil
}

func (f *fakeReads) TopErrorCategories(context.Context, time.Time, int) ([]domain.CategoryCount, error) {
	return f.categories, nil
}

func (f *fakeReads) ScenarioErrorCategories(context.Context, uuid.UUID) ([]domain.CategoryCount, error) {
	return f.categories, nil
}

func testService(t *testing.T) (*Service, *fakeReads) {
	t.Helper()
	repo := newFakeReads()
	svc := New(&fakeTx{}, repokit.BindFunc[domain.ReadRepo](func(repokit.Queryer) domain.ReadRepo {
		return repo
	}))
	t.Cleanup(svc.Close)
	svc.Clock = clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	return svc, repo
}

func TestAuditTrail_KeyCached(t *testing.T) {
	ctx := context.Background()
	svc, repo := testService(t)

	sid := uuid.New()
	repo.scenarios[sid] = 7
	repo.events = []domain.AuditEvent{{EventType: "state_change"}, {EventType: "user_action"}}

	for i := 0; i < 3; i++ {
		trail, err := svc.AuditTrail(ctx, sid, domain.AuditFilter{})
		if err != nil {
			t.Fatalf("audit trail: %v", err)
		}
		if trail.EventCount != 2 || len(trail.Events) != 2 {
			t.Fatalf("trail %+v", trail)
		}
	}
	if repo.scenarioLookups != 1 {
		t.Fatalf("scenario key resolved %d times, want 1 (cached)", repo.scenarioLookups)
	}
}

func TestAuditTrail_UnknownScenario(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.AuditTrail(context.Background(), uuid.New(), domain.AuditFilter{})
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("error %v, want not found", err)
	}
}

func TestUserJourney_Defaults(t *testing.T) {
	ctx := context.Background()
	svc, repo := testService(t)
	repo.users["alice"] = 3
	repo.actions = []domain.JourneyAction{{ActionType: "edit_input_data"}}

	j, err := svc.UserJourney(ctx, "alice", 0, nil)
	if err != nil {
		t.Fatalf("journey: %v", err)
	}
	if j.DaysAnalyzed != defaultJourneyDays || j.ActionCount != 1 {
		t.Fatalf("journey %+v", j)
	}
	wantCutoff := time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC)
	if !repo.actionsCutoff.Equal(wantCutoff) {
		t.Fatalf("cutoff %v, want %v", repo.actionsCutoff, wantCutoff)
	}
	if repo.actionsScenario != nil {
		t.Fatalf("scenario filter %v, want nil", repo.actionsScenario)
	}
}

func TestUserJourney_UnknownScenarioFilterIgnored(t *testing.T) {
	ctx := context.Background()
	svc, repo := testService(t)
	repo.users["alice"] = 3
	ghost := uuid.New()

	if _, err := svc.UserJourney(ctx, "alice", 7, &ghost); err != nil {
		t.Fatalf("unknown scenario filter should not error: %v", err)
	}
	if repo.actionsScenario != nil {
		t.Fatalf("ghost scenario produced a key filter")
	}

	real := uuid.New()
	repo.scenarios[real] = 9
	if _, err := svc.UserJourney(ctx, "alice", 7, &real); err != nil {
		t.Fatalf("journey: %v", err)
	}
	if repo.actionsScenario == nil || *repo.actionsScenario != 9 {
		t.Fatalf("scenario filter %v, want 9", repo.actionsScenario)
	}
}

func TestCompareRuns_OrdersWindow(t *testing.T) {
	ctx := context.Background()
	svc, repo := testService(t)

	sid := uuid.New()
	repo.scenarios[sid] = 1
	early := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	late := early.Add(45 * time.Minute)

	a := domain.RunSummary{RunID: uuid.New(), Status: "failed", StartedAt: late}
	b := domain.RunSummary{RunID: uuid.New(), Status: "success", StartedAt: early}
	repo.runs[a.RunID] = a
	repo.runs[b.RunID] = b
	repo.changed = []domain.ChangedNode{{NodeName: "Revenue"}}

	// later run passed first: the window still runs earlier -> later
	cmp, err := svc.CompareRuns(ctx, sid, a.RunID, b.RunID)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !repo.changesAfter.Equal(early) || !repo.changesUntil.Equal(late) {
		t.Fatalf("window %v..%v, want %v..%v", repo.changesAfter, repo.changesUntil, early, late)
	}
	if cmp.TimeGapSeconds != 2700 {
		t.Fatalf("gap %v, want 2700", cmp.TimeGapSeconds)
	}
	if cmp.InputChangesBetween != 1 || cmp.ChangedNodes[0].NodeName != "Revenue" {
		t.Fatalf("comparison %+v", cmp)
	}
	if cmp.RunA.RunID != a.RunID || cmp.RunB.RunID != b.RunID {
		t.Fatalf("runs should keep their argument order")
	}
}

func TestTopErrorCategories_Defaults(t *testing.T) {
	svc, repo := testService(t)
	repo.categories = []domain.CategoryCount{{Category: "timeout", Count: 12}}

	got, err := svc.TopErrorCategories(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if got.DaysAnalyzed != defaultCategoryDays || len(got.Categories) != 1 {
		t.Fatalf("result %+v", got)
	}
}

func TestErrorSummary_Math(t *testing.T) {
	ctx := context.Background()
	svc, repo := testService(t)

	sid := uuid.New()
	repo.scenarios[sid] = 1
	repo.scenRuns = []domain.RunSummary{
		{Status: "success"},
		{Status: "success", NodeFailures: 2},
		{Status: "failed", NodeFailures: 5},
	}
	repo.categories = []domain.CategoryCount{{Category: "database", Count: 4}}

	sum, err := svc.ErrorSummary(ctx, sid)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalRuns != 3 || sum.FailedRuns != 1 {
		t.Fatalf("run counts %+v", sum)
	}
	if sum.SuccessRate != 66.67 {
		t.Fatalf("success rate %v, want 66.67", sum.SuccessRate)
	}
	if sum.TotalNodeFailures != 7 {
		t.Fatalf("node failures %d, want 7", sum.TotalNodeFailures)
	}
}

func TestErrorSummary_NoRuns(t *testing.T) {
	ctx := context.Background()
	svc, repo := testService(t)

	sid := uuid.New()
	repo.scenarios[sid] = 1

	sum, err := svc.ErrorSummary(ctx, sid)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.SuccessRate != 0 {
		t.Fatalf("success rate %v for zero runs, want 0", sum.SuccessRate)
	}
}
