// Package repo reads the reporting warehouse for the RCA dashboard
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"foresight/internal/modkit/repokit"
	perr "foresight/internal/platform/errors"
	"foresight/internal/platform/store"
	"foresight/internal/services/rca/domain"
)

type (
	// PG is a Postgres binder for domain.ReadRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.ReadRepo
func NewPG() repokit.Binder[domain.ReadRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.ReadRepo { return &queries{q: q} }

// logMessageCap truncates log messages for the API payload
const logMessageCap = 500

func (r *queries) ScenarioKey(ctx context.Context, scenarioID uuid.UUID) (int, error) {
	key, err := store.One(ctx, r.q, scanInt,
		`SELECT scenario_key FROM rpt.dim_scenario WHERE scenario_id = $1`, scenarioID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return 0, perr.NotFoundf("scenario %s not found", scenarioID)
		}
		return 0, err
	}
	return key, nil
}

func (r *queries) UserKey(ctx context.Context, userID string) (int, error) {
	key, err := store.One(ctx, r.q, scanInt,
		`SELECT user_key FROM rpt.dim_user WHERE user_id = $1`, userID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return 0, perr.NotFoundf("user %s not found", userID)
		}
		return 0, err
	}
	return key, nil
}

func (r *queries) AuditTrail(
	ctx context.Context,
	scenarioKey int,
	f domain.AuditFilter,
) ([]domain.AuditEvent, error) {
	sql := `
		SELECT event_timestamp, event_type, event_category, user_id,
		       event_description, correlation_id, event_metadata
		FROM rpt.view_scenario_audit_trail
		WHERE scenario_key = $1`
	args := []any{scenarioKey}

	if f.Start != nil {
		args = append(args, *f.Start)
		sql += fmt.Sprintf(" AND event_timestamp >= $%d", len(args))
	}
	if f.End != nil {
		args = append(args, *f.End)
		sql += fmt.Sprintf(" AND event_timestamp <= $%d", len(args))
	}
	if len(f.EventTypes) > 0 {
		args = append(args, f.EventTypes)
		sql += fmt.Sprintf(" AND event_type = ANY($%d)", len(args))
	}
	sql += " ORDER BY event_timestamp"

	return store.Many(ctx, r.q, func(row store.Row) (domain.AuditEvent, error) {
		var e domain.AuditEvent
		err := row.Scan(
			&e.Timestamp, &e.EventType, &e.Category, &e.UserID,
			&e.Description, &e.CorrelationID, &e.Metadata,
		)
		return e, err
	}, sql, args...)
}

func (r *queries) StateChanges(ctx context.Context, scenarioKey int) ([]domain.StateChange, error) {
	return store.Many(ctx, r.q, func(row store.Row) (domain.StateChange, error) {
		var c domain.StateChange
		err := row.Scan(
			&c.PreviousStatus, &c.NewStatus, &c.Transition,
			&c.ChangedBy, &c.ChangedAt, &c.CorrelationID, &c.Reason,
		)
		return c, err
	}, `
		SELECT sc.previous_status, sc.new_status, sc.transition_type,
		       u.user_id, sc.changed_at, sc.correlation_id, sc.change_reason
		FROM rpt.fact_scenario_state_change sc
		JOIN rpt.dim_user u ON sc.changed_by_user_key = u.user_key
		WHERE sc.scenario_key = $1
		ORDER BY sc.changed_at
	`, scenarioKey)
}

func (r *queries) UserActions(
	ctx context.Context,
	userKey int,
	scenarioKey *int,
	cutoff time.Time,
) ([]domain.JourneyAction, error) {
	sql := `
		SELECT action_timestamp, action_type, action_category,
		       target_entity_type, success, error_message, action_details
		FROM rpt.fact_user_action
		WHERE user_key = $1 AND action_timestamp >= $2`
	args := []any{userKey, cutoff}
	if scenarioKey != nil {
		args = append(args, *scenarioKey)
		sql += fmt.Sprintf(" AND scenario_key = $%d", len(args))
	}
	sql += " ORDER BY action_timestamp"

	return store.Many(ctx, r.q, func(row store.Row) (domain.JourneyAction, error) {
		var a domain.JourneyAction
		err := row.Scan(
			&a.Timestamp, &a.ActionType, &a.Category,
			&a.TargetType, &a.Success, &a.Error, &a.Details,
		)
		return a, err
	}, sql, args...)
}

const runSummaryColumns = `run_id, run_status, run_started_at, run_ended_at,
	duration_seconds, node_calc_failed, fail_reason`

func scanRunSummary(row store.Row) (domain.RunSummary, error) {
	var s domain.RunSummary
	err := row.Scan(
		&s.RunID, &s.Status, &s.StartedAt, &s.EndedAt,
		&s.DurationSeconds, &s.NodeFailures, &s.FailReason,
	)
	return s, err
}

func (r *queries) Run(ctx context.Context, runID uuid.UUID) (domain.RunSummary, error) {
	run, err := store.One(ctx, r.q, scanRunSummary,
		`SELECT `+runSummaryColumns+` FROM rpt.fact_scenario_run WHERE run_id = $1`, runID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.RunSummary{}, perr.NotFoundf("run %s not found", runID)
		}
		return domain.RunSummary{}, err
	}
	return run, nil
}

func (r *queries) Diagnostics(ctx context.Context, runID uuid.UUID) ([]domain.Diagnostic, error) {
	return store.Many(ctx, r.q, func(row store.Row) (domain.Diagnostic, error) {
		var d domain.Diagnostic
		err := row.Scan(
			&d.Type, &d.Category, &d.Severity,
			&d.NodeName, &d.Message, &d.Details,
		)
		return d, err
	}, `
		SELECT fd.diagnostic_type, fd.diagnostic_category, fd.severity,
		       n.node_name, fd.diagnostic_message, fd.diagnostic_details
		FROM rpt.fact_run_diagnostic fd
		LEFT JOIN rpt.dim_node n ON fd.node_key = n.node_key
		WHERE fd.run_id = $1
	`, runID)
}

func (r *queries) RunLogs(ctx context.Context, runID uuid.UUID) ([]domain.LogLine, error) {
	return store.Many(ctx, r.q, func(row store.Row) (domain.LogLine, error) {
		var l domain.LogLine
		err := row.Scan(
			&l.Timestamp, &l.Severity, &l.Message,
			&l.ErrorCategory, &l.HasStackTrace,
		)
		return l, err
	}, fmt.Sprintf(`
		SELECT log_timestamp, severity, left(message, %d),
		       error_category, stack_trace IS NOT NULL
		FROM rpt.fact_cloudwatch_log
		WHERE run_id = $1
		ORDER BY log_timestamp
	`, logMessageCap), runID)
}

func (r *queries) ScenarioRuns(ctx context.Context, scenarioKey int) ([]domain.RunSummary, error) {
	return store.Many(ctx, r.q, scanRunSummary,
		`SELECT `+runSummaryColumns+` FROM rpt.fact_scenario_run
		 WHERE scenario_key = $1 ORDER BY run_started_at`, scenarioKey)
}

func (r *queries) InputChangesBetween(
	ctx context.Context,
	scenarioKey int,
	after, until time.Time,
) ([]domain.ChangedNode, error) {
	return store.Many(ctx, r.q, func(row store.Row) (domain.ChangedNode, error) {
		var c domain.ChangedNode
		err := row.Scan(&c.NodeName, &c.ChangedAt, &c.InputHash)
		return c, err
	}, `
		SELECT n.node_name, ic.changed_at, ic.new_input_hash
		FROM rpt.fact_scenario_input_change ic
		JOIN rpt.dim_node n ON ic.node_key = n.node_key
		WHERE ic.scenario_key = $1 AND ic.changed_at > $2 AND ic.changed_at <= $3
		ORDER BY ic.changed_at
	`, scenarioKey, after, until)
}

func (r *queries) TopErrorCategories(
	ctx context.Context,
	cutoff time.Time,
	limit int,
) ([]domain.CategoryCount, error) {
	return store.Many(ctx, r.q, scanCategoryCount, `
		SELECT error_category, count(*) AS n
		FROM rpt.fact_cloudwatch_log
		WHERE severity = 'ERROR'
		  AND error_category IS NOT NULL
		  AND log_timestamp >= $1
		GROUP BY error_category
		ORDER BY n DESC
		LIMIT $2
	`, cutoff, limit)
}

func (r *queries) ScenarioErrorCategories(
	ctx context.Context,
	scenarioID uuid.UUID,
) ([]domain.CategoryCount, error) {
	return store.Many(ctx, r.q, scanCategoryCount, `
		SELECT COALESCE(error_category, 'uncategorized'), count(*) AS n
		FROM rpt.fact_cloudwatch_log
		WHERE scenario_id = $1 AND severity = 'ERROR'
		GROUP BY 1
		ORDER BY n DESC
	`, scenarioID)
}

func scanInt(row store.Row) (int, error) {
	var v int
	err := row.Scan(&v)
	return v, err
}

func scanCategoryCount(row store.Row) (domain.CategoryCount, error) {
	var c domain.CategoryCount
	err := row.Scan(&c.Category, &c.Count)
	return c, err
}
