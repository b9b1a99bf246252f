// Package service orchestrates the ETL passes: extract audit history and
// forecast runs from the OLTP source, resolve dimension keys, load the
// reporting fact tables, and advance the per-table watermarks.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"foresight/internal/adapters/cloudwatch"
	perr "foresight/internal/platform/errors"
	"foresight/internal/platform/logger"
	rundom "foresight/internal/services/runs/domain"
	runsvc "foresight/internal/services/runs/service"
	scendom "foresight/internal/services/scenario/domain"
	scensvc "foresight/internal/services/scenario/service"
	whdom "foresight/internal/services/warehouse/domain"
	whsvc "foresight/internal/services/warehouse/service"
)

// defaultSinceHours is the incremental window when no watermark exists yet
const defaultSinceHours = 24

// defaultLogDays is the CloudWatch extraction window
const defaultLogDays = 7

// Service runs the batch ETL passes end to end
type Service struct {
	Scenarios  *scensvc.Service
	Runs       *runsvc.Service
	Loader     *whsvc.Loader
	Watermarks *whsvc.Watermarks
	Clock      clockwork.Clock
}

// New constructs the pipeline on the real clock
func New(
	scenarios *scensvc.Service,
	runs *runsvc.Service,
	loader *whsvc.Loader,
	watermarks *whsvc.Watermarks,
) *Service {
	return &Service{
		Scenarios:  scenarios,
		Runs:       runs,
		Loader:     loader,
		Watermarks: watermarks,
		Clock:      clockwork.NewRealClock(),
	}
}

// AuditTrailOptions selects the audit trail extraction window
type AuditTrailOptions struct {
	// Full extracts everything the source retains
	Full bool

	// ScenarioID restricts the pass to one scenario's full history
	ScenarioID *uuid.UUID

	// SinceHours overrides the watermark cursor with a fixed window
	SinceHours int
}

// AuditTrailSummary reports what one audit trail pass did
type AuditTrailSummary struct {
	Since *time.Time

	StateChanges whdom.LoadResult
	UserActions  whdom.LoadResult
	InputChanges whdom.LoadResult
	Runs         whdom.LoadResult
	Diagnostics  whdom.LoadResult

	LifecycleViolations int
	MissingCorrelation  int

	Elapsed time.Duration
}

// Loaded totals the fact rows this pass persisted
func (s AuditTrailSummary) Loaded() int64 {
	return int64(s.StateChanges.Loaded + s.UserActions.Loaded +
		s.InputChanges.Loaded + s.Runs.Loaded + s.Diagnostics.Loaded)
}

// RunAuditTrail executes one audit trail ETL pass. On failure the
// watermark keeps its prior cursor so the next pass re-extracts the
// same window; committed batches stay, replays are idempotent.
func (s *Service) RunAuditTrail(ctx context.Context, opts AuditTrailOptions) (AuditTrailSummary, error) {
	var sum AuditTrailSummary
	log := logger.C(ctx)
	start := s.Clock.Now()

	cutoff, err := s.Watermarks.Begin(ctx, whdom.WatermarkAuditTrail)
	if err != nil {
		return sum, err
	}

	since, err := s.auditSince(ctx, opts, cutoff)
	if err != nil {
		return sum, s.failAudit(ctx, sum, err)
	}
	sum.Since = since

	filter := scendom.Filter{Since: since}
	runFilter := rundom.Filter{Since: since}
	if opts.ScenarioID != nil {
		ids := []uuid.UUID{*opts.ScenarioID}
		filter = scendom.Filter{ScenarioIDs: ids}
		runFilter = rundom.Filter{ScenarioIDs: ids}
	}

	// settle runs the warehouse last saw unfinished
	staleIDs, err := s.Loader.InProgressRunIDs(ctx)
	if err != nil {
		return sum, s.failAudit(ctx, sum, perr.Wrapf(err, perr.ErrorCodeUnavailable, "in progress runs"))
	}
	stale, err := s.Runs.Refresh(ctx, staleIDs)
	if err != nil {
		return sum, s.failAudit(ctx, sum, perr.Wrapf(err, perr.ErrorCodeUnavailable, "refresh runs"))
	}

	runs, err := s.Runs.Runs(ctx, runFilter)
	if err != nil {
		return sum, s.failAudit(ctx, sum, perr.Wrapf(err, perr.ErrorCodeUnavailable, "extract runs"))
	}
	allRuns := mergeRuns(stale, runs)
	log.Info().Int("runs", len(allRuns)).Int("settled", len(stale)).Msg("runs extracted")

	stateEx, err := s.Scenarios.StateChanges(ctx, filter)
	if err != nil {
		return sum, s.failAudit(ctx, sum, perr.Wrapf(err, perr.ErrorCodeUnavailable, "extract state changes"))
	}
	sum.LifecycleViolations = stateEx.LifecycleViolations
	log.Info().Int("state_changes", len(stateEx.Changes)).Msg("state changes extracted")

	actEx, err := s.Scenarios.Actions(ctx, filter, allRuns)
	if err != nil {
		return sum, s.failAudit(ctx, sum, perr.Wrapf(err, perr.ErrorCodeUnavailable, "extract actions"))
	}
	sum.MissingCorrelation = actEx.MissingCorrelation
	log.Info().Int("actions", len(actEx.Actions)).Msg("user actions extracted")

	var inputChanges []scendom.InputChange
	if opts.ScenarioID != nil {
		inputChanges, err = s.Scenarios.InputChanges(ctx, *opts.ScenarioID)
	} else {
		inputChanges, err = s.Scenarios.InputChangesSince(ctx, since)
	}
	if err != nil {
		return sum, s.failAudit(ctx, sum, perr.Wrapf(err, perr.ErrorCodeUnavailable, "extract input changes"))
	}
	log.Info().Int("input_changes", len(inputChanges)).Msg("input changes extracted")

	if sum.StateChanges, err = s.Loader.LoadStateChanges(ctx, stateEx.Changes); err != nil {
		return sum, s.failAudit(ctx, sum, err)
	}
	if sum.UserActions, err = s.Loader.LoadUserActions(ctx, actEx.Actions); err != nil {
		return sum, s.failAudit(ctx, sum, err)
	}
	if sum.InputChanges, err = s.Loader.LoadInputChanges(ctx, inputChanges); err != nil {
		return sum, s.failAudit(ctx, sum, err)
	}
	if sum.Runs, err = s.Loader.LoadRuns(ctx, allRuns); err != nil {
		return sum, s.failAudit(ctx, sum, err)
	}
	if sum.Diagnostics, err = s.Loader.LoadRunDiagnostics(ctx, allRuns); err != nil {
		return sum, s.failAudit(ctx, sum, err)
	}

	if err := s.Watermarks.Succeed(ctx, whdom.WatermarkAuditTrail, cutoff, sum.Loaded()); err != nil {
		return sum, err
	}

	sum.Elapsed = s.Clock.Now().Sub(start)
	log.Info().
		Int64("loaded", sum.Loaded()).
		Dur("elapsed", sum.Elapsed).
		Msg("audit trail pass complete")
	return sum, nil
}

// CloudWatchOptions selects the log extraction window
type CloudWatchOptions struct {
	// Days bounds the window, 0 means the default
	Days int

	Environment string

	// ServiceName stamps the fact rows, empty means forecast-service
	ServiceName string

	// Severities filters server side, empty means ERROR, WARN, INFO
	Severities []string
}

// CloudWatchSummary reports what one log pass did
type CloudWatchSummary struct {
	Start   time.Time
	End     time.Time
	Logs    whdom.LoadResult
	Elapsed time.Duration
}

// RunCloudWatch executes one log ETL pass through the given client
func (s *Service) RunCloudWatch(
	ctx context.Context,
	client cloudwatch.Client,
	opts CloudWatchOptions,
) (CloudWatchSummary, error) {
	var sum CloudWatchSummary
	log := logger.C(ctx)
	begun := s.Clock.Now()

	days := opts.Days
	if days <= 0 {
		days = defaultLogDays
	}
	sum.End = s.Clock.Now().UTC()
	sum.Start = sum.End.AddDate(0, 0, -days)

	severities := opts.Severities
	if len(severities) == 0 {
		severities = []string{"ERROR", "WARN", "INFO"}
	}
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "forecast-service"
	}

	if _, err := s.Watermarks.Begin(ctx, whdom.WatermarkCloudWatch); err != nil {
		return sum, err
	}

	records, err := client.Extract(ctx, cloudwatch.Query{
		Start:      sum.Start,
		End:        sum.End,
		Severities: severities,
	})
	if err != nil {
		return sum, s.failLogs(ctx, sum, perr.Wrapf(err, perr.ErrorCodeUnavailable, "extract logs"))
	}
	log.Info().Int("records", len(records)).Str("group", client.LogGroup()).Msg("logs extracted")

	sum.Logs, err = s.Loader.LoadCloudWatchLogs(ctx, client.LogGroup(), opts.Environment, serviceName, records)
	if err != nil {
		return sum, s.failLogs(ctx, sum, err)
	}

	if err := s.Watermarks.Succeed(ctx, whdom.WatermarkCloudWatch, sum.End, int64(sum.Logs.Loaded)); err != nil {
		return sum, err
	}

	sum.Elapsed = s.Clock.Now().Sub(begun)
	log.Info().
		Int("loaded", sum.Logs.Loaded).
		Dur("elapsed", sum.Elapsed).
		Msg("cloudwatch pass complete")
	return sum, nil
}

// auditSince resolves the extraction cutoff: full and single-scenario
// passes take everything, an explicit window wins over the watermark,
// and a fresh warehouse falls back to the default window.
func (s *Service) auditSince(
	ctx context.Context,
	opts AuditTrailOptions,
	now time.Time,
) (*time.Time, error) {
	if opts.Full || opts.ScenarioID != nil {
		return nil, nil
	}
	if opts.SinceHours > 0 {
		t := now.Add(-time.Duration(opts.SinceHours) * time.Hour)
		return &t, nil
	}
	cursor, err := s.Watermarks.Cursor(ctx, whdom.WatermarkAuditTrail)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		return cursor, nil
	}
	t := now.Add(-defaultSinceHours * time.Hour)
	return &t, nil
}

func (s *Service) failAudit(ctx context.Context, sum AuditTrailSummary, err error) error {
	if ferr := s.Watermarks.Fail(ctx, whdom.WatermarkAuditTrail, sum.Loaded()); ferr != nil {
		logger.C(ctx).Warn().Err(ferr).Msg("audit trail watermark not updated after failure")
	}
	return err
}

func (s *Service) failLogs(ctx context.Context, sum CloudWatchSummary, err error) error {
	if ferr := s.Watermarks.Fail(ctx, whdom.WatermarkCloudWatch, int64(sum.Logs.Loaded)); ferr != nil {
		logger.C(ctx).Warn().Err(ferr).Msg("cloudwatch watermark not updated after failure")
	}
	return err
}

// mergeRuns combines refreshed and freshly extracted runs, the fresh
// extract wins when a run appears in both
func mergeRuns(stale, fresh []rundom.Run) []rundom.Run {
	if len(stale) == 0 {
		return fresh
	}
	seen := make(map[uuid.UUID]struct{}, len(fresh))
	for _, r := range fresh {
		seen[r.ID] = struct{}{}
	}
	out := fresh
	for _, r := range stale {
		if _, ok := seen[r.ID]; !ok {
			out = append(out, r)
		}
	}
	return out
}
