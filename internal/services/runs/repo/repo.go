// Package repo provides OLTP source access for forecast run extraction
package repo

import (
	"context"
	"fmt"
	"strings"

	"foresight/internal/modkit/repokit"
	"foresight/internal/platform/store"
	"foresight/internal/services/runs/domain"
)

type (
	// PG is a Postgres binder for domain.SourceRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.SourceRepo
func NewPG() repokit.Binder[domain.SourceRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.SourceRepo { return &queries{q: q} }

// Runs returns runs matching the filter with calc aggregates populated.
// Aggregates come from correlated subqueries so one pass serves both the
// run fact and the diagnostics derived from it.
func (r *queries) Runs(ctx context.Context, f domain.Filter) ([]domain.Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Since != nil {
		args = append(args, *f.Since)
		where = append(where, fmt.Sprintf("sr.run_at > $%d", len(args)))
	}
	if len(f.ScenarioIDs) > 0 {
		args = append(args, f.ScenarioIDs)
		where = append(where, fmt.Sprintf("sr.scenario_id = ANY($%d)", len(args)))
	}
	if len(f.RunIDs) > 0 {
		args = append(args, f.RunIDs)
		where = append(where, fmt.Sprintf("sr.id = ANY($%d)", len(args)))
	}

	sql := `
		SELECT
			sr.id, sr.scenario_id, sr.run_status, sr.run_at, sr.run_by,
			sr.run_req_id, sr.run_complete_at, sr.fail_reason,
			s.model_id, s.forecast_init_id,
			(SELECT COUNT(*) FROM fc_scenario_run_branch
			 WHERE scenario_run_id = sr.id) AS branch_count,
			(SELECT COUNT(*) FROM fc_scenario_node_calc nc
			 JOIN fc_scenario_run_branch rb ON nc.scenario_run_branch_id = rb.id
			 WHERE rb.scenario_run_id = sr.id) AS node_calc_total,
			(SELECT COUNT(*) FROM fc_scenario_node_calc nc
			 JOIN fc_scenario_run_branch rb ON nc.scenario_run_branch_id = rb.id
			 WHERE rb.scenario_run_id = sr.id AND nc.status = 'success') AS node_calc_success,
			(SELECT COUNT(*) FROM fc_scenario_node_calc nc
			 JOIN fc_scenario_run_branch rb ON nc.scenario_run_branch_id = rb.id
			 WHERE rb.scenario_run_id = sr.id AND nc.status = 'failed') AS node_calc_failed,
			(SELECT COUNT(*) FROM fc_scenario_node_calc nc
			 JOIN fc_scenario_run_branch rb ON nc.scenario_run_branch_id = rb.id
			 WHERE rb.scenario_run_id = sr.id AND nc.status = 'timeout') AS node_calc_timeout
		FROM fc_scenario_run sr
		JOIN fc_scenario s ON sr.scenario_id = s.id`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY sr.run_at"

	return store.Many(ctx, r.q, scanRun, sql, args...)
}

func scanRun(row store.Row) (domain.Run, error) {
	var run domain.Run
	err := row.Scan(
		&run.ID, &run.ScenarioID, &run.Status, &run.StartedAt, &run.RunBy,
		&run.CorrelationID, &run.CompletedAt, &run.FailReason,
		&run.ModelID, &run.ForecastInitID,
		&run.BranchCount, &run.NodeCalcTotal, &run.NodeCalcSuccess,
		&run.NodeCalcFailed, &run.NodeCalcTimeout,
	)
	return run, err
}
