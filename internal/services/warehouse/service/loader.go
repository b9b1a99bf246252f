package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"foresight/internal/adapters/cloudwatch"
	"foresight/internal/modkit/repokit"
	perr "foresight/internal/platform/errors"
	"foresight/internal/platform/logger"
	rundom "foresight/internal/services/runs/domain"
	scendom "foresight/internal/services/scenario/domain"
	"foresight/internal/services/warehouse/domain"
)

// Commit cadence for the fact loads. Logs come in much larger volumes
// than audit rows, so they get a wider batch.
const (
	defaultBatchSize    = 500
	defaultLogBatchSize = 1000
)

// Loader writes extracted audit data into the reporting fact tables.
// Each batch is one transaction, a failed batch rolls back alone and
// leaves earlier batches committed.
type Loader struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.ReportRepo]

	BatchSize    int
	LogBatchSize int
}

// NewLoader constructs a loader with default batch sizes
func NewLoader(db repokit.TxRunner, binder repokit.Binder[domain.ReportRepo]) *Loader {
	return &Loader{
		DB:           db,
		Binder:       binder,
		BatchSize:    defaultBatchSize,
		LogBatchSize: defaultLogBatchSize,
	}
}

func (l *Loader) batch() int {
	if l.BatchSize > 0 {
		return l.BatchSize
	}
	return defaultBatchSize
}

func (l *Loader) logBatch() int {
	if l.LogBatchSize > 0 {
		return l.LogBatchSize
	}
	return defaultLogBatchSize
}

// chunk splits items into runs of at most n
func chunk[T any](items []T, n int) [][]T {
	var out [][]T
	for len(items) > n {
		out = append(out, items[:n])
		items = items[n:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

// InProgressRunIDs lists runs the warehouse last saw unfinished, so the
// pipeline can re-extract and settle them
func (l *Loader) InProgressRunIDs(ctx context.Context) ([]uuid.UUID, error) {
	return l.Binder.Bind(l.DB).InProgressRunIDs(ctx)
}

// LoadStateChanges writes lifecycle transitions to fact_scenario_state_change.
// Changes whose scenario has not been loaded into dim_scenario are skipped.
func (l *Loader) LoadStateChanges(
	ctx context.Context,
	changes []scendom.StateChange,
) (domain.LoadResult, error) {
	res := NewResolver()
	var out domain.LoadResult

	for _, batch := range chunk(changes, l.batch()) {
		err := l.DB.Tx(ctx, func(q repokit.Queryer) error {
			repo := l.Binder.Bind(q)
			for _, c := range batch {
				scenarioKey, err := res.Scenario(ctx, repo, c.ScenarioID)
				if err != nil {
					if perr.IsCode(err, perr.ErrorCodeNotFound) {
						out.Skipped++
						continue
					}
					return err
				}
				userKey, err := res.User(ctx, repo, c.ChangedBy)
				if err != nil {
					return err
				}
				prev := statusPtr(c.PreviousStatus)
				if err := repo.InsertStateChange(ctx, domain.StateChangeRow{
					ScenarioKey:      scenarioKey,
					ScenarioID:       c.ScenarioID,
					PreviousStatus:   prev,
					NewStatus:        string(c.NewStatus),
					Transition:       string(c.Transition),
					ChangedByUserKey: userKey,
					ChangedAt:        c.ChangedAt,
					CorrelationID:    c.CorrelationID,
					Reason:           c.Reason,
				}); err != nil {
					return err
				}
				out.Loaded++
			}
			return nil
		})
		if err != nil {
			return out, perr.Wrapf(err, perr.ErrorCodeUnavailable, "load state changes")
		}
	}
	return out, nil
}

// LoadUserActions writes actions to fact_user_action. Users are created
// in dim_user on first sight; an unknown scenario leaves the scenario
// key null rather than dropping the action.
func (l *Loader) LoadUserActions(
	ctx context.Context,
	actions []scendom.Action,
) (domain.LoadResult, error) {
	res := NewResolver()
	var out domain.LoadResult

	for _, batch := range chunk(actions, l.batch()) {
		err := l.DB.Tx(ctx, func(q repokit.Queryer) error {
			repo := l.Binder.Bind(q)
			for _, a := range batch {
				userKey, err := res.User(ctx, repo, a.UserID)
				if err != nil {
					return err
				}

				var scenarioKey *int
				if a.ScenarioID != nil {
					k, err := res.Scenario(ctx, repo, *a.ScenarioID)
					switch {
					case err == nil:
						scenarioKey = &k
					case !perr.IsCode(err, perr.ErrorCodeNotFound):
						return err
					}
				}

				targetType := a.TargetType
				if err := repo.InsertUserAction(ctx, domain.UserActionRow{
					UserKey:       userKey,
					ScenarioKey:   scenarioKey,
					Timestamp:     a.Timestamp,
					ActionType:    string(a.Type),
					Category:      string(a.Category),
					TargetType:    &targetType,
					TargetID:      a.TargetID,
					CorrelationID: a.CorrelationID,
					Success:       a.Success,
					ErrorMessage:  a.ErrorMessage,
					Details:       a.Details,
				}); err != nil {
					return err
				}
				out.Loaded++
			}
			return nil
		})
		if err != nil {
			return out, perr.Wrapf(err, perr.ErrorCodeUnavailable, "load user actions")
		}
	}
	return out, nil
}

// LoadInputChanges writes sequenced input modifications to
// fact_scenario_input_change. The insert is idempotent on node_data_id,
// replayed rows count as skipped. Changes against scenarios or nodes
// missing from the dims are skipped too.
func (l *Loader) LoadInputChanges(
	ctx context.Context,
	changes []scendom.InputChange,
) (domain.LoadResult, error) {
	res := NewResolver()
	var out domain.LoadResult

	for _, batch := range chunk(changes, l.batch()) {
		err := l.DB.Tx(ctx, func(q repokit.Queryer) error {
			repo := l.Binder.Bind(q)
			for _, c := range batch {
				scenarioKey, err := res.Scenario(ctx, repo, c.ScenarioID)
				if err != nil {
					if perr.IsCode(err, perr.ErrorCodeNotFound) {
						out.Skipped++
						continue
					}
					return err
				}
				nodeKey, err := res.Node(ctx, repo, c.NodeID)
				if err != nil {
					if perr.IsCode(err, perr.ErrorCodeNotFound) {
						out.Skipped++
						continue
					}
					return err
				}
				userKey, err := res.User(ctx, repo, c.ChangedBy)
				if err != nil {
					return err
				}

				inserted, err := repo.InsertInputChange(ctx, domain.InputChangeRow{
					NodeDataID:       c.NodeDataID,
					ScenarioKey:      scenarioKey,
					NodeKey:          nodeKey,
					ChangedByUserKey: userKey,
					ChangeDateKey:    domain.DateKey(c.ChangedAt),
					ChangedAt:        c.ChangedAt,
					PreviousHash:     c.PreviousHash,
					NewHash:          c.NewHash,
					IsDuplicate:      c.IsDuplicate,
					Sequence:         c.Sequence,
				})
				if err != nil {
					return err
				}
				if inserted {
					out.Loaded++
				} else {
					out.Skipped++
				}
			}
			return nil
		})
		if err != nil {
			return out, perr.Wrapf(err, perr.ErrorCodeUnavailable, "load input changes")
		}
	}
	return out, nil
}

// LoadCloudWatchLogs writes normalized log records to fact_cloudwatch_log
func (l *Loader) LoadCloudWatchLogs(
	ctx context.Context,
	group, environment, serviceName string,
	records []cloudwatch.Record,
) (domain.LoadResult, error) {
	var out domain.LoadResult

	for _, batch := range chunk(records, l.logBatch()) {
		err := l.DB.Tx(ctx, func(q repokit.Queryer) error {
			repo := l.Binder.Bind(q)
			for _, rec := range batch {
				if err := repo.InsertCloudWatchLog(ctx, domain.CloudWatchLogRow{
					Timestamp:     rec.Timestamp,
					Stream:        rec.Stream,
					Group:         group,
					Severity:      rec.Severity,
					Message:       rec.Message,
					CorrelationID: rec.CorrelationID,
					ScenarioID:    rec.ScenarioID,
					RunID:         rec.RunID,
					UserID:        rec.UserID,
					Environment:   environment,
					ServiceName:   serviceName,
					StackTrace:    rec.StackTrace,
					ErrorCategory: rec.ErrorCategory,
					Metadata:      rec.Metadata,
				}); err != nil {
					return err
				}
				out.Loaded++
			}
			return nil
		})
		if err != nil {
			return out, perr.Wrapf(err, perr.ErrorCodeUnavailable, "load cloudwatch logs")
		}
	}
	return out, nil
}

// LoadRuns upserts runs into fact_scenario_run. Runs whose scenario,
// model, or forecast cycle is missing from the dims are skipped.
func (l *Loader) LoadRuns(ctx context.Context, runs []rundom.Run) (domain.LoadResult, error) {
	res := NewResolver()
	var out domain.LoadResult

	for _, batch := range chunk(runs, l.batch()) {
		err := l.DB.Tx(ctx, func(q repokit.Queryer) error {
			repo := l.Binder.Bind(q)
			for _, r := range batch {
				row, ok, err := l.runRow(ctx, res, repo, r)
				if err != nil {
					return err
				}
				if !ok {
					out.Skipped++
					continue
				}
				if err := repo.UpsertRun(ctx, row); err != nil {
					return err
				}
				out.Loaded++
			}
			return nil
		})
		if err != nil {
			return out, perr.Wrapf(err, perr.ErrorCodeUnavailable, "load runs")
		}
	}
	return out, nil
}

func (l *Loader) runRow(
	ctx context.Context,
	res *Resolver,
	repo domain.ReportRepo,
	r rundom.Run,
) (domain.RunRow, bool, error) {
	scenarioKey, err := res.Scenario(ctx, repo, r.ScenarioID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.RunRow{}, false, nil
		}
		return domain.RunRow{}, false, err
	}
	modelKey, err := res.Model(ctx, repo, r.ModelID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.RunRow{}, false, nil
		}
		return domain.RunRow{}, false, err
	}
	cycleKey, err := res.Cycle(ctx, repo, r.ForecastInitID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.RunRow{}, false, nil
		}
		return domain.RunRow{}, false, err
	}
	userKey, err := res.User(ctx, repo, r.RunBy)
	if err != nil {
		return domain.RunRow{}, false, err
	}

	return domain.RunRow{
		RunID:            r.ID,
		ScenarioKey:      scenarioKey,
		ModelKey:         modelKey,
		ForecastCycleKey: cycleKey,
		RunByUserKey:     userKey,
		RunDateKey:       domain.DateKey(r.StartedAt),
		StartedAt:        r.StartedAt,
		EndedAt:          r.CompletedAt,
		Status:           r.Status,
		DurationSeconds:  r.DurationSeconds(),
		BranchCount:      r.BranchCount,
		NodeCalcTotal:    r.NodeCalcTotal,
		NodeCalcSuccess:  r.NodeCalcSuccess,
		NodeCalcFailed:   r.NodeCalcFailed,
		NodeCalcTimeout:  r.NodeCalcTimeout,
		FailReason:       r.FailReason,
	}, true, nil
}

// LoadRunDiagnostics derives diagnostics from settled runs and writes
// them to fact_run_diagnostic. A failed run yields a run_failure
// diagnostic; a run with timed-out node calculations yields a
// node_timeout diagnostic. Runs without a correlation id are dropped,
// the column is required downstream for log joins.
func (l *Loader) LoadRunDiagnostics(
	ctx context.Context,
	runs []rundom.Run,
) (domain.LoadResult, error) {
	res := NewResolver()
	var out domain.LoadResult
	log := logger.C(ctx)

	for _, batch := range chunk(runs, l.batch()) {
		err := l.DB.Tx(ctx, func(q repokit.Queryer) error {
			repo := l.Binder.Bind(q)
			for _, r := range batch {
				rows, skip, err := l.diagnosticRows(ctx, res, repo, r)
				if err != nil {
					return err
				}
				out.Skipped += skip
				if skip > 0 && r.CorrelationID == nil {
					log.Warn().
						Str("run_id", r.ID.String()).
						Msg("run diagnostic dropped, no correlation id")
				}
				for _, row := range rows {
					if err := repo.InsertDiagnostic(ctx, row); err != nil {
						return err
					}
					out.Loaded++
				}
			}
			return nil
		})
		if err != nil {
			return out, perr.Wrapf(err, perr.ErrorCodeUnavailable, "load run diagnostics")
		}
	}
	return out, nil
}

func (l *Loader) diagnosticRows(
	ctx context.Context,
	res *Resolver,
	repo domain.ReportRepo,
	r rundom.Run,
) (rows []domain.DiagnosticRow, skipped int, err error) {
	if r.Status != rundom.RunStatusFailed && r.NodeCalcTimeout == 0 {
		return nil, 0, nil
	}
	if r.CorrelationID == nil {
		return nil, 1, nil
	}

	scenarioKey, err := res.Scenario(ctx, repo, r.ScenarioID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return nil, 1, nil
		}
		return nil, 0, err
	}
	runFactKey, err := repo.RunFactKey(ctx, r.ID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return nil, 1, nil
		}
		return nil, 0, err
	}

	details := map[string]any{
		"branch_count":      r.BranchCount,
		"node_calc_total":   r.NodeCalcTotal,
		"node_calc_success": r.NodeCalcSuccess,
		"node_calc_failed":  r.NodeCalcFailed,
		"node_calc_timeout": r.NodeCalcTimeout,
	}

	if r.Status == rundom.RunStatusFailed {
		msg := "forecast run failed"
		if r.FailReason != nil {
			msg = *r.FailReason
		}
		rows = append(rows, domain.DiagnosticRow{
			RunFactKey:     runFactKey,
			RunID:          r.ID,
			ScenarioKey:    scenarioKey,
			DiagnosticType: "run_failure",
			Severity:       "ERROR",
			Category:       *cloudwatch.Categorize(msg),
			Message:        msg,
			Details:        details,
			CorrelationID:  *r.CorrelationID,
		})
	}
	if r.NodeCalcTimeout > 0 {
		rows = append(rows, domain.DiagnosticRow{
			RunFactKey:     runFactKey,
			RunID:          r.ID,
			ScenarioKey:    scenarioKey,
			DiagnosticType: "node_timeout",
			Severity:       "WARN",
			Category:       "timeout",
			Message:        fmt.Sprintf("%d node calculations timed out", r.NodeCalcTimeout),
			Details:        details,
			CorrelationID:  *r.CorrelationID,
		})
	}
	return rows, 0, nil
}

func statusPtr(s *scendom.Status) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}
