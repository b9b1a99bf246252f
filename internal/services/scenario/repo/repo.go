// Package repo provides OLTP source access for scenario audit extraction
package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"foresight/internal/modkit/repokit"
	"foresight/internal/platform/store"
	"foresight/internal/services/scenario/domain"
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

const scenarioColumns = `
	s.id, s.model_id, s.forecast_init_id, s.scenario_display_name, s.is_starter,
	s.status, s.scenario_start_year, s.scenario_end_year,
	s.scenario_region_name, s.scenario_country_name, s.currency,
	s.created_at, s.created_by, s.created_req_id,
	s.updated_at, s.updated_by, s.updated_req_id,
	s.submitted_at, s.submitted_by, s.submitted_req_id,
	s.locked_at, s.locked_by, s.locked_req_id,
	s.withdraw_at, s.withdraw_by, s.withdraw_req_id,
	s.delete_at, s.delete_by, s.delete_req_id`

// Scenarios returns scenario rows matching the filter
func (r *queries) Scenarios(ctx context.Context, f domain.Filter) ([]domain.Scenario, error) {
	var (
		where []string
		args  []any
	)
	if f.Since != nil {
		args = append(args, *f.Since)
		n := len(args)
		// any audit stamp moving counts as activity
		where = append(where, fmt.Sprintf(
			`(s.created_at >= $%d OR s.updated_at >= $%d OR s.submitted_at >= $%d
			  OR s.locked_at >= $%d OR s.withdraw_at >= $%d OR s.delete_at >= $%d)`,
			n, n, n, n, n, n))
	}
	if len(f.ScenarioIDs) > 0 {
		args = append(args, f.ScenarioIDs)
		where = append(where, fmt.Sprintf("s.id = ANY($%d)", len(args)))
	}

	sql := "SELECT " + scenarioColumns + " FROM fc_scenario s"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY s.created_at"

	return store.Many(ctx, r.q, scanScenario, sql, args...)
}

func scanScenario(row store.Row) (domain.Scenario, error) {
	var s domain.Scenario
	err := row.Scan(
		&s.ID, &s.ModelID, &s.ForecastInitID, &s.DisplayName, &s.IsStarter,
		&s.Status, &s.StartYear, &s.EndYear,
		&s.RegionName, &s.CountryName, &s.Currency,
		&s.CreatedAt, &s.CreatedBy, &s.CreatedReqID,
		&s.UpdatedAt, &s.UpdatedBy, &s.UpdatedReqID,
		&s.Submitted.At, &s.Submitted.By, &s.Submitted.ReqID,
		&s.Locked.At, &s.Locked.By, &s.Locked.ReqID,
		&s.Withdrawn.At, &s.Withdrawn.By, &s.Withdrawn.ReqID,
		&s.Deleted.At, &s.Deleted.By, &s.Deleted.ReqID,
	)
	return s, err
}

const nodeDataColumns = `
	snd.id, snd.scenario_id, snd.model_node_id, snd.input_hash, snd.input_validated,
	snd.created_by, snd.created_at, snd.created_req_id`

// NodeData returns append-only input rows created after f.Since
func (r *queries) NodeData(ctx context.Context, f domain.Filter) ([]domain.NodeData, error) {
	var (
		where []string
		args  []any
	)
	if f.Since != nil {
		args = append(args, *f.Since)
		where = append(where, fmt.Sprintf("snd.created_at >= $%d", len(args)))
	}
	if len(f.ScenarioIDs) > 0 {
		args = append(args, f.ScenarioIDs)
		where = append(where, fmt.Sprintf("snd.scenario_id = ANY($%d)", len(args)))
	}

	sql := "SELECT " + nodeDataColumns + " FROM fc_scenario_node_data snd"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY snd.scenario_id, snd.model_node_id, snd.created_at"

	return store.Many(ctx, r.q, scanNodeData, sql, args...)
}

// NodeDataForScenario returns the full input history for one scenario
func (r *queries) NodeDataForScenario(ctx context.Context, scenarioID uuid.UUID) ([]domain.NodeData, error) {
	sql := "SELECT " + nodeDataColumns + `
		FROM fc_scenario_node_data snd
		WHERE snd.scenario_id = $1
		ORDER BY snd.created_at`
	return store.Many(ctx, r.q, scanNodeData, sql, scenarioID)
}

func scanNodeData(row store.Row) (domain.NodeData, error) {
	var d domain.NodeData
	err := row.Scan(
		&d.ID, &d.ScenarioID, &d.NodeID, &d.InputHash, &d.Validated,
		&d.CreatedBy, &d.CreatedAt, &d.CreatedReqID,
	)
	return d, err
}

// RecentScenarioIDs returns ids of scenarios updated since the cutoff, capped at limit
func (r *queries) RecentScenarioIDs(ctx context.Context, since *time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		where string
		args  []any
	)
	if since != nil {
		args = append(args, *since)
		where = "WHERE s.updated_at >= $1"
	}
	args = append(args, limit)

	sql := fmt.Sprintf(`
		SELECT s.id FROM fc_scenario s
		%s
		ORDER BY s.updated_at DESC
		LIMIT $%d`, where, len(args))

	return store.Many(ctx, r.q, func(row store.Row) (uuid.UUID, error) {
		var id uuid.UUID
		err := row.Scan(&id)
		return id, err
	}, sql, args...)
}
