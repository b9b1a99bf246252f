package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"foresight/internal/adapters/cloudwatch"
	"foresight/internal/modkit/repokit"
	perr "foresight/internal/platform/errors"
	"foresight/internal/platform/store"
	rundom "foresight/internal/services/runs/domain"
	whdom "foresight/internal/services/warehouse/domain"
	whsvc "foresight/internal/services/warehouse/service"
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

// fakeWatermarkRepo keeps watermark rows in memory
type fakeWatermarkRepo struct {
	rows map[string]whdom.Watermark
}

func (f *fakeWatermarkRepo) Get(_ context.Context, table string) (whdom.Watermark, error) {
	wm, ok := f.rows[table]
	if !ok {
		return whdom.Watermark{}, perr.NotFoundf("no watermark for %s", table)
	}
	return wm, nil
}

func (f *fakeWatermarkRepo) MarkStarted(_ context.Context, table string, startedAt time.Time) error {
	wm := f.rows[table]
	wm.TableName = table
	wm.LastRunStarted = &startedAt
	wm.Status = whdom.WatermarkInProgress
	f.rows[table] = wm
	return nil
}

func (f *fakeWatermarkRepo) Complete(_ context.Context, table string, lastLoadedAt *time.Time, rows int64, status string) error {
	wm := f.rows[table]
	wm.TableName = table
	if lastLoadedAt != nil {
		wm.LastLoadedAt = lastLoadedAt
	}
	wm.RowsLoaded += rows
	wm.Status = status
	f.rows[table] = wm
	return nil
}

// fakeReportRepo accepts every fact write, no dims needed for log loads
type fakeReportRepo struct {
	logs []whdom.CloudWatchLogRow
}

func (f *fakeReportRepo) ScenarioKey(context.Context, uuid.UUID) (int, error) {
	return 0, perr.NotFoundf("no dims in this fake")
}

func (f *fakeReportRepo) NodeKey(context.Context, uuid.UUID) (int, error) {
	return 0, perr.NotFoundf("no dims in this fake")
}

func (f *fakeReportRepo) ModelKey(context.Context, uuid.UUID) (int, error) {
	return 0, perr.NotFoundf("no dims in this fake")
}

func (f *fakeReportRepo) ForecastCycleKey(context.Context, uuid.UUID) (int, error) {
	return 0, perr.NotFoundf("no dims in this fake")
}

func (f *fakeReportRepo) EnsureUser(context.Context, string) (int, error) { return 1, nil }

func (f *fakeReportRepo) InsertStateChange(context.Context, whdom.StateChangeRow) error { return nil }

func (f *fakeReportRepo) InsertUserAction(context.Context, whdom.UserActionRow) error { return nil }

func (f *fakeReportRepo) InsertInputChange(context.Context, whdom.InputChangeRow) (bool, error) {
	return true, nil
}

func (f *fakeReportRepo) InsertCloudWatchLog(_ context.Context, row whdom.CloudWatchLogRow) error {
	f.logs = append(f.logs, row)
	return nil
}

func (f *fakeReportRepo) UpsertRun(context.Context, whdom.RunRow) error { return nil }

func (f *fakeReportRepo) InsertDiagnostic(context.Context, whdom.DiagnosticRow) error { return nil }

func (f *fakeReportRepo) RunFactKey(context.Context, uuid.UUID) (int64, error) {
	return 0, perr.NotFoundf("no runs in this fake")
}

func (f *fakeReportRepo) InProgressRunIDs(context.Context) ([]uuid.UUID, error) { return nil, nil }

// scriptedClient serves canned records or a canned failure
type scriptedClient struct {
	records []cloudwatch.Record
	err     error
	query   cloudwatch.Query
}

func (c *scriptedClient) Extract(_ context.Context, q cloudwatch.Query) ([]cloudwatch.Record, error) {
	c.query = q
	return c.records, c.err
}

func (c *scriptedClient) LogGroup() string { return "/aws/lambda/forecast-service-sit" }

func testPipeline(now time.Time) (*Service, *fakeWatermarkRepo, *fakeReportRepo) {
	db := &fakeTx{}
	wmRepo := &fakeWatermarkRepo{rows: map[string]whdom.Watermark{}}
	whRepo := &fakeReportRepo{}

	loader := whsvc.NewLoader(db, repokit.BindFunc[whdom.ReportRepo](func(repokit.Queryer) whdom.ReportRepo {
		return whRepo
	}))
	watermarks := whsvc.NewWatermarks(db, repokit.BindFunc[whdom.WatermarkRepo](func(repokit.Queryer) whdom.WatermarkRepo {
		return wmRepo
	}))
	watermarks.Clock = clockwork.NewFakeClockAt(now)

	svc := New(nil, nil, loader, watermarks)
	svc.Clock = clockwork.NewFakeClockAt(now)
	return svc, wmRepo, whRepo
}

func instant() time.Time {
	return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func TestAuditSince_FullTakesEverything(t *testing.T) {
	svc, _, _ := testPipeline(instant())

	since, err := svc.auditSince(context.Background(), AuditTrailOptions{Full: true}, instant())
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if since != nil {
		t.Fatalf("full pass should have no cutoff, got %v", since)
	}
}

func TestAuditSince_SingleScenarioTakesEverything(t *testing.T) {
	svc, _, _ := testPipeline(instant())
	id := uuid.New()

	since, err := svc.auditSince(context.Background(), AuditTrailOptions{ScenarioID: &id}, instant())
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if since != nil {
		t.Fatalf("scenario pass should have no cutoff, got %v", since)
	}
}

func TestAuditSince_ExplicitWindowBeatsWatermark(t *testing.T) {
	svc, wmRepo, _ := testPipeline(instant())
	cursor := instant().Add(-2 * time.Hour)
	wmRepo.rows[whdom.WatermarkAuditTrail] = whdom.Watermark{
		TableName:    whdom.WatermarkAuditTrail,
		LastLoadedAt: &cursor,
	}

	since, err := svc.auditSince(context.Background(), AuditTrailOptions{SinceHours: 6}, instant())
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	want := instant().Add(-6 * time.Hour)
	if since == nil || !since.Equal(want) {
		t.Fatalf("since %v, want the explicit window %v", since, want)
	}
}

func TestAuditSince_WatermarkCursor(t *testing.T) {
	svc, wmRepo, _ := testPipeline(instant())
	cursor := instant().Add(-2 * time.Hour)
	wmRepo.rows[whdom.WatermarkAuditTrail] = whdom.Watermark{
		TableName:    whdom.WatermarkAuditTrail,
		LastLoadedAt: &cursor,
	}

	since, err := svc.auditSince(context.Background(), AuditTrailOptions{}, instant())
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if since == nil || !since.Equal(cursor) {
		t.Fatalf("since %v, want the watermark cursor %v", since, cursor)
	}
}

func TestAuditSince_FreshWarehouseFallsBack(t *testing.T) {
	svc, _, _ := testPipeline(instant())

	since, err := svc.auditSince(context.Background(), AuditTrailOptions{}, instant())
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	want := instant().Add(-defaultSinceHours * time.Hour)
	if since == nil || !since.Equal(want) {
		t.Fatalf("since %v, want the default window %v", since, want)
	}
}

func TestMergeRuns_FreshWins(t *testing.T) {
	shared := uuid.New()
	stale := []rundom.Run{
		{ID: shared, Status: rundom.RunStatusInProgress},
		{ID: uuid.New(), Status: rundom.RunStatusSuccess},
	}
	fresh := []rundom.Run{
		{ID: shared, Status: rundom.RunStatusSuccess},
	}

	got := mergeRuns(stale, fresh)
	if len(got) != 2 {
		t.Fatalf("merged %d runs, want 2", len(got))
	}
	for _, r := range got {
		if r.ID == shared && r.Status != rundom.RunStatusSuccess {
			t.Fatalf("stale copy of %s survived the merge", shared)
		}
	}
}

func TestRunCloudWatch_LoadsAndAdvancesWatermark(t *testing.T) {
	svc, wmRepo, whRepo := testPipeline(instant())
	cat := "timeout"
	client := &scriptedClient{records: []cloudwatch.Record{
		{Timestamp: instant().Add(-time.Hour), Stream: "i-1", Message: "timed out", Severity: "ERROR", ErrorCategory: &cat},
		{Timestamp: instant().Add(-time.Minute), Stream: "i-1", Message: "ok", Severity: "INFO", ErrorCategory: &cat},
	}}

	sum, err := svc.RunCloudWatch(context.Background(), client, CloudWatchOptions{Days: 3, Environment: "sit"})
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if sum.Logs.Loaded != 2 {
		t.Fatalf("loaded %d logs, want 2", sum.Logs.Loaded)
	}
	if !sum.Start.Equal(instant().AddDate(0, 0, -3)) || !sum.End.Equal(instant()) {
		t.Fatalf("window %v..%v", sum.Start, sum.End)
	}
	if len(client.query.Severities) != 3 {
		t.Fatalf("default severities not applied: %v", client.query.Severities)
	}
	if whRepo.logs[0].Environment != "sit" || whRepo.logs[0].ServiceName != "forecast-service" {
		t.Fatalf("row context %+v", whRepo.logs[0])
	}

	wm := wmRepo.rows[whdom.WatermarkCloudWatch]
	if wm.Status != whdom.WatermarkSuccess || wm.RowsLoaded != 2 {
		t.Fatalf("watermark %+v", wm)
	}
	if wm.LastLoadedAt == nil || !wm.LastLoadedAt.Equal(sum.End) {
		t.Fatalf("cursor %v, want the window end", wm.LastLoadedAt)
	}
}

func TestRunCloudWatch_ExtractFailureMarksWatermark(t *testing.T) {
	svc, wmRepo, _ := testPipeline(instant())
	client := &scriptedClient{err: perr.Unavailablef("query timed out")}

	_, err := svc.RunCloudWatch(context.Background(), client, CloudWatchOptions{Environment: "sit"})
	if err == nil {
		t.Fatalf("expected the pass to fail")
	}
	wm := wmRepo.rows[whdom.WatermarkCloudWatch]
	if wm.Status != whdom.WatermarkFailed {
		t.Fatalf("watermark status %q, want failed", wm.Status)
	}
	if wm.LastLoadedAt != nil {
		t.Fatalf("failed pass moved the cursor to %v", wm.LastLoadedAt)
	}
}
