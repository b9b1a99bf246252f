package service

import (
	"time"

	rundom "foresight/internal/services/runs/domain"
	"foresight/internal/services/scenario/domain"
)

// ActionExtract is the result of one action extraction pass
type ActionExtract struct {
	Actions []domain.Action

	// MissingCorrelation counts actions dropped because the source row
	// carried no request id to correlate against
	MissingCorrelation int
}

// ActionsFrom reconstructs user actions from the three source surfaces:
// scenario rows, node input rows, and forecast runs. since applies
// per action stamp, matching the incremental extraction cutoff.
// Actions with no correlation id are dropped and counted rather than
// synthesized, downstream joins would silently match nothing.
func ActionsFrom(
	scenarios []domain.Scenario,
	nodeData []domain.NodeData,
	runs []rundom.Run,
	since *time.Time,
) ActionExtract {
	var ex ActionExtract

	for _, s := range scenarios {
		ex.scenarioActions(s, since)
	}
	for _, d := range nodeData {
		if since != nil && d.CreatedAt.Before(*since) {
			continue
		}
		id := d.ID
		sid := d.ScenarioID
		ex.Actions = append(ex.Actions, domain.Action{
			UserID:        d.CreatedBy,
			ScenarioID:    &sid,
			Timestamp:     d.CreatedAt,
			Type:          domain.ActionEditInputData,
			Category:      domain.CategoryInputData,
			TargetType:    "node_data",
			TargetID:      &id,
			CorrelationID: d.CreatedReqID,
			Success:       true,
			Details: map[string]any{
				"node_id":    d.NodeID.String(),
				"input_hash": d.InputHash,
				"validated":  d.Validated,
			},
		})
	}
	for _, r := range runs {
		if since != nil && r.StartedAt.Before(*since) {
			continue
		}
		if r.CorrelationID == nil {
			ex.MissingCorrelation++
			continue
		}
		rid := r.ID
		sid := r.ScenarioID
		details := map[string]any{
			"run_status": r.Status,
		}
		if r.Status == rundom.RunStatusFailed && r.FailReason != nil {
			details["fail_reason"] = *r.FailReason
		}
		if d := r.DurationSeconds(); d != nil {
			details["duration_seconds"] = *d
		}
		ex.Actions = append(ex.Actions, domain.Action{
			UserID:        r.RunBy,
			ScenarioID:    &sid,
			Timestamp:     r.StartedAt,
			Type:          domain.ActionRunForecast,
			Category:      domain.CategoryForecastRun,
			TargetType:    "run",
			TargetID:      &rid,
			CorrelationID: *r.CorrelationID,
			Success:       r.Succeeded(),
			Details:       details,
		})
	}

	return ex
}

func (ex *ActionExtract) scenarioActions(s domain.Scenario, since *time.Time) {
	sid := s.ID

	if since == nil || !s.CreatedAt.Before(*since) {
		ex.Actions = append(ex.Actions, domain.Action{
			UserID:        s.CreatedBy,
			ScenarioID:    &sid,
			Timestamp:     s.CreatedAt,
			Type:          domain.ActionCreateScenario,
			Category:      domain.CategoryScenarioMgmt,
			TargetType:    "scenario",
			TargetID:      &sid,
			CorrelationID: s.CreatedReqID,
			Success:       true,
			Details: map[string]any{
				"scenario_name": s.DisplayName,
				"is_starter":    s.IsStarter,
				"start_year":    s.StartYear,
				"end_year":      s.EndYear,
			},
		})
	}

	// updated_at equal to created_at means the row was never touched after insert
	if !s.UpdatedAt.Equal(s.CreatedAt) && (since == nil || !s.UpdatedAt.Before(*since)) {
		if s.UpdatedReqID == nil {
			ex.MissingCorrelation++
		} else {
			ex.Actions = append(ex.Actions, domain.Action{
				UserID:        s.UpdatedBy,
				ScenarioID:    &sid,
				Timestamp:     s.UpdatedAt,
				Type:          domain.ActionUpdateScenario,
				Category:      domain.CategoryScenarioMgmt,
				TargetType:    "scenario",
				TargetID:      &sid,
				CorrelationID: *s.UpdatedReqID,
				Success:       true,
				Details:       map[string]any{"status": string(s.Status)},
			})
		}
	}

	if s.Submitted.Set() && (since == nil || !s.Submitted.At.Before(*since)) {
		if s.Submitted.ReqID == nil {
			ex.MissingCorrelation++
			return
		}
		var by string
		if s.Submitted.By != nil {
			by = *s.Submitted.By
		}
		ex.Actions = append(ex.Actions, domain.Action{
			UserID:        by,
			ScenarioID:    &sid,
			Timestamp:     *s.Submitted.At,
			Type:          domain.ActionSubmitScenario,
			Category:      domain.CategoryScenarioMgmt,
			TargetType:    "scenario",
			TargetID:      &sid,
			CorrelationID: *s.Submitted.ReqID,
			Success:       true,
			Details:       map[string]any{},
		})
	}
}
