// Package service builds user journey timelines from extracted audit data
package service

import (
	"fmt"
	"sort"

	"foresight/internal/services/journey/domain"
	rundom "foresight/internal/services/runs/domain"
	scendom "foresight/internal/services/scenario/domain"
)

// Merge folds all audit surfaces into one chronological timeline.
// Ties keep insertion order: state changes, actions, input changes, runs.
func Merge(
	stateChanges []scendom.StateChange,
	actions []scendom.Action,
	inputChanges []scendom.InputChange,
	runs []rundom.Run,
) []domain.Event {
	timeline := make([]domain.Event, 0,
		len(stateChanges)+len(actions)+len(inputChanges)+2*len(runs))

	for _, c := range stateChanges {
		sid := c.ScenarioID
		prev := "none"
		var prevPtr *string
		if c.PreviousStatus != nil {
			prev = string(*c.PreviousStatus)
			prevPtr = &prev
		}
		timeline = append(timeline, domain.Event{
			Timestamp:     c.ChangedAt,
			Type:          domain.EventStateChange,
			Category:      string(scendom.CategoryScenarioMgmt),
			UserID:        c.ChangedBy,
			ScenarioID:    &sid,
			CorrelationID: c.CorrelationID,
			Description:   fmt.Sprintf("Scenario status changed from %s to %s", prev, c.NewStatus),
			Meta: domain.StateChangeMeta{
				Transition:     string(c.Transition),
				PreviousStatus: prevPtr,
				NewStatus:      string(c.NewStatus),
			},
		})
	}

	for _, a := range actions {
		timeline = append(timeline, domain.Event{
			Timestamp:     a.Timestamp,
			Type:          domain.EventUserAction,
			Category:      string(a.Category),
			UserID:        a.UserID,
			ScenarioID:    a.ScenarioID,
			CorrelationID: a.CorrelationID,
			Description:   fmt.Sprintf("User performed: %s", a.Type),
			Meta: domain.ActionMeta{
				ActionType: string(a.Type),
				TargetType: a.TargetType,
				TargetID:   a.TargetID,
				Success:    a.Success,
				Details:    a.Details,
			},
		})
	}

	for _, c := range inputChanges {
		sid := c.ScenarioID
		timeline = append(timeline, domain.Event{
			Timestamp:     c.ChangedAt,
			Type:          domain.EventInputChange,
			Category:      string(scendom.CategoryInputData),
			UserID:        c.ChangedBy,
			ScenarioID:    &sid,
			CorrelationID: c.CorrelationID,
			Description:   fmt.Sprintf("Modified input for node (sequence %d)", c.Sequence),
			Meta: domain.InputChangeMeta{
				NodeID:      c.NodeID,
				InputHash:   c.NewHash,
				Sequence:    c.Sequence,
				IsDuplicate: c.IsDuplicate,
			},
		})
	}

	for _, r := range runs {
		sid := r.ScenarioID
		corr := r.ID
		if r.CorrelationID != nil {
			corr = *r.CorrelationID
		}
		timeline = append(timeline, domain.Event{
			Timestamp:     r.StartedAt,
			Type:          domain.EventRunStarted,
			Category:      string(scendom.CategoryForecastRun),
			UserID:        r.RunBy,
			ScenarioID:    &sid,
			CorrelationID: corr,
			Description:   "Forecast run started",
			Meta:          domain.RunStartedMeta{RunID: r.ID, Status: r.Status},
		})

		if r.CompletedAt != nil {
			timeline = append(timeline, domain.Event{
				Timestamp:     *r.CompletedAt,
				Type:          domain.EventRunCompleted,
				Category:      string(scendom.CategoryForecastRun),
				UserID:        r.RunBy,
				ScenarioID:    &sid,
				CorrelationID: corr,
				Description:   fmt.Sprintf("Forecast run completed: %s", r.Status),
				Meta: domain.RunCompletedMeta{
					RunID:           r.ID,
					Status:          r.Status,
					DurationSeconds: r.DurationSeconds(),
					FailReason:      r.FailReason,
				},
			})
		}
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Timestamp.Before(timeline[j].Timestamp)
	})
	return timeline
}
