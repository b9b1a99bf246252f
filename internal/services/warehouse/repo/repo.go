// Package repo provides reporting warehouse access for the fact loaders
package repo

import (
	"context"

	"github.com/google/uuid"

	"foresight/internal/modkit/repokit"
	perr "foresight/internal/platform/errors"
	"foresight/internal/platform/store"
	"foresight/internal/services/warehouse/domain"
)

type (
	// PG is a Postgres binder for domain.ReportRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.ReportRepo
func NewPG() repokit.Binder[domain.ReportRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.ReportRepo { return &queries{q: q} }

func scanKey(row store.Row) (int, error) {
	var key int
	err := row.Scan(&key)
	return key, err
}

func (r *queries) dimKey(ctx context.Context, sql string, id any, what string) (int, error) {
	key, err := store.One(ctx, r.q, scanKey, sql, id)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return 0, perr.NotFoundf("%s %v not in dimension", what, id)
		}
		return 0, err
	}
	return key, nil
}

// ScenarioKey resolves a scenario id to its surrogate key
func (r *queries) ScenarioKey(ctx context.Context, scenarioID uuid.UUID) (int, error) {
	return r.dimKey(ctx,
		`SELECT scenario_key FROM rpt.dim_scenario WHERE scenario_id = $1`,
		scenarioID, "scenario")
}

// NodeKey resolves a model node id to its surrogate key
func (r *queries) NodeKey(ctx context.Context, nodeID uuid.UUID) (int, error) {
	return r.dimKey(ctx,
		`SELECT node_key FROM rpt.dim_node WHERE node_id = $1`,
		nodeID, "node")
}

// ModelKey resolves a model id to its surrogate key
func (r *queries) ModelKey(ctx context.Context, modelID uuid.UUID) (int, error) {
	return r.dimKey(ctx,
		`SELECT model_key FROM rpt.dim_model WHERE model_id = $1`,
		modelID, "model")
}

// ForecastCycleKey resolves a forecast init id to its surrogate key
func (r *queries) ForecastCycleKey(ctx context.Context, forecastInitID uuid.UUID) (int, error) {
	return r.dimKey(ctx,
		`SELECT forecast_cycle_key FROM rpt.dim_forecast_cycle WHERE forecast_init_id = $1`,
		forecastInitID, "forecast cycle")
}

// EnsureUser returns the user key, creating the dim row when missing.
// The conflict arm makes concurrent first-sightings of a user converge.
func (r *queries) EnsureUser(ctx context.Context, userID string) (int, error) {
	return store.Scalar[int](ctx, r.q, `
		INSERT INTO rpt.dim_user (user_id, display_name, loaded_at)
		VALUES ($1, $1, now())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_key
	`, userID)
}

// InsertStateChange appends one lifecycle transition fact
func (r *queries) InsertStateChange(ctx context.Context, row domain.StateChangeRow) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO rpt.fact_scenario_state_change (
			scenario_key, scenario_id, previous_status, new_status, transition_type,
			changed_by_user_key, changed_at, correlation_id, change_reason, loaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
	`,
		row.ScenarioKey, row.ScenarioID, row.PreviousStatus, row.NewStatus, row.Transition,
		row.ChangedByUserKey, row.ChangedAt, row.CorrelationID, row.Reason,
	)
	return err
}

// InsertUserAction appends one user action fact
func (r *queries) InsertUserAction(ctx context.Context, row domain.UserActionRow) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO rpt.fact_user_action (
			user_key, scenario_key, action_timestamp, action_type, action_category,
			target_entity_type, target_entity_id, correlation_id,
			success, error_message, action_details, loaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
	`,
		row.UserKey, row.ScenarioKey, row.Timestamp, row.ActionType, row.Category,
		row.TargetType, row.TargetID, row.CorrelationID,
		row.Success, row.ErrorMessage, row.Details,
	)
	return err
}

// InsertInputChange appends one input change fact, idempotent on node_data_id
func (r *queries) InsertInputChange(ctx context.Context, row domain.InputChangeRow) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO rpt.fact_scenario_input_change (
			node_data_id, scenario_key, node_key, changed_by_user_key, change_date_key,
			changed_at, previous_input_hash, new_input_hash, is_duplicate, change_sequence, loaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (node_data_id) DO NOTHING
	`,
		row.NodeDataID, row.ScenarioKey, row.NodeKey, row.ChangedByUserKey, row.ChangeDateKey,
		row.ChangedAt, row.PreviousHash, row.NewHash, row.IsDuplicate, row.Sequence,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// InsertCloudWatchLog appends one log fact
func (r *queries) InsertCloudWatchLog(ctx context.Context, row domain.CloudWatchLogRow) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO rpt.fact_cloudwatch_log (
			log_timestamp, log_stream, log_group, severity, message,
			correlation_id, scenario_id, run_id, user_id,
			environment, service_name, stack_trace, error_category, metadata, loaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
	`,
		row.Timestamp, row.Stream, row.Group, row.Severity, row.Message,
		row.CorrelationID, row.ScenarioID, row.RunID, row.UserID,
		row.Environment, row.ServiceName, row.StackTrace, row.ErrorCategory, row.Metadata,
	)
	return err
}

// UpsertRun inserts or refreshes a run fact keyed by run_id.
// Refreshes settle runs that were still in progress on an earlier load.
func (r *queries) UpsertRun(ctx context.Context, row domain.RunRow) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO rpt.fact_scenario_run (
			run_id, scenario_key, model_key, forecast_cycle_key, run_by_user_key,
			run_date_key, run_started_at, run_ended_at, run_status, duration_seconds,
			branch_count, node_calc_total, node_calc_success, node_calc_failed,
			node_calc_timeout, fail_reason, loaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now())
		ON CONFLICT (run_id) DO UPDATE SET
			run_ended_at = EXCLUDED.run_ended_at,
			run_status = EXCLUDED.run_status,
			duration_seconds = EXCLUDED.duration_seconds,
			branch_count = EXCLUDED.branch_count,
			node_calc_total = EXCLUDED.node_calc_total,
			node_calc_success = EXCLUDED.node_calc_success,
			node_calc_failed = EXCLUDED.node_calc_failed,
			node_calc_timeout = EXCLUDED.node_calc_timeout,
			fail_reason = EXCLUDED.fail_reason,
			loaded_at = now()
	`,
		row.RunID, row.ScenarioKey, row.ModelKey, row.ForecastCycleKey, row.RunByUserKey,
		row.RunDateKey, row.StartedAt, row.EndedAt, row.Status, row.DurationSeconds,
		row.BranchCount, row.NodeCalcTotal, row.NodeCalcSuccess, row.NodeCalcFailed,
		row.NodeCalcTimeout, row.FailReason,
	)
	return err
}

// InsertDiagnostic appends one run diagnostic fact
func (r *queries) InsertDiagnostic(ctx context.Context, row domain.DiagnosticRow) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO rpt.fact_run_diagnostic (
			run_fact_key, run_id, scenario_key, diagnostic_type, node_key,
			severity, diagnostic_category, diagnostic_message, diagnostic_details,
			input_hash_at_run, correlation_id, cloudwatch_log_references, loaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
	`,
		row.RunFactKey, row.RunID, row.ScenarioKey, row.DiagnosticType, row.NodeKey,
		row.Severity, row.Category, row.Message, row.Details,
		row.InputHashAtRun, row.CorrelationID, row.LogRefs,
	)
	return err
}

// RunFactKey resolves the surrogate key of a loaded run fact
func (r *queries) RunFactKey(ctx context.Context, runID uuid.UUID) (int64, error) {
	key, err := store.One(ctx, r.q, func(row store.Row) (int64, error) {
		var k int64
		err := row.Scan(&k)
		return k, err
	}, `SELECT run_fact_key FROM rpt.fact_scenario_run WHERE run_id = $1`, runID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return 0, perr.NotFoundf("run %s not loaded", runID)
		}
		return 0, err
	}
	return key, nil
}

// InProgressRunIDs lists runs the warehouse still has unfinished
func (r *queries) InProgressRunIDs(ctx context.Context) ([]uuid.UUID, error) {
	return store.Many(ctx, r.q, func(row store.Row) (uuid.UUID, error) {
		var id uuid.UUID
		err := row.Scan(&id)
		return id, err
	}, `SELECT run_id FROM rpt.fact_scenario_run WHERE run_status = $1`, "in progress")
}
