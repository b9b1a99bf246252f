// Package domain defines the unified user journey timeline types
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the timeline event shapes
type EventType string

// Timeline event types
const (
	EventStateChange  EventType = "state_change"
	EventUserAction   EventType = "user_action"
	EventInputChange  EventType = "input_change"
	EventRunStarted   EventType = "run_started"
	EventRunCompleted EventType = "run_completed"
)

// Meta carries the per-type payload of a timeline event
type Meta interface{ isMeta() }

// StateChangeMeta is the payload of a state_change event
type StateChangeMeta struct {
	Transition     string  `json:"transition_type"`
	PreviousStatus *string `json:"previous_status"`
	NewStatus      string  `json:"new_status"`
}

// ActionMeta is the payload of a user_action event
type ActionMeta struct {
	ActionType string         `json:"action_type"`
	TargetType string         `json:"target_entity_type,omitempty"`
	TargetID   *uuid.UUID     `json:"target_entity_id,omitempty"`
	Success    bool           `json:"success"`
	Details    map[string]any `json:"details,omitempty"`
}

// InputChangeMeta is the payload of an input_change event
type InputChangeMeta struct {
	NodeID      uuid.UUID `json:"node_id"`
	InputHash   string    `json:"input_hash"`
	Sequence    int       `json:"change_sequence"`
	IsDuplicate bool      `json:"is_duplicate"`
}

// RunStartedMeta is the payload of a run_started event
type RunStartedMeta struct {
	RunID  uuid.UUID `json:"run_id"`
	Status string    `json:"run_status"`
}

// RunCompletedMeta is the payload of a run_completed event
type RunCompletedMeta struct {
	RunID           uuid.UUID `json:"run_id"`
	Status          string    `json:"run_status"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	FailReason      *string   `json:"fail_reason,omitempty"`
}

func (StateChangeMeta) isMeta()  {}
func (ActionMeta) isMeta()       {}
func (InputChangeMeta) isMeta()  {}
func (RunStartedMeta) isMeta()   {}
func (RunCompletedMeta) isMeta() {}

// Event is one entry in the merged chronological timeline
type Event struct {
	Timestamp     time.Time  `json:"event_timestamp"`
	Type          EventType  `json:"event_type"`
	Category      string     `json:"event_category"`
	UserID        string     `json:"user_id"`
	ScenarioID    *uuid.UUID `json:"scenario_id,omitempty"`
	CorrelationID uuid.UUID  `json:"correlation_id"`
	Description   string     `json:"event_description"`
	Meta          Meta       `json:"event_metadata"`
}

// Session is one contiguous block of user activity
type Session struct {
	ID              uuid.UUID      `json:"session_id"`
	UserID          string         `json:"user_id"`
	ScenarioIDs     []uuid.UUID    `json:"scenario_ids"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         time.Time      `json:"ended_at"`
	DurationMinutes float64        `json:"duration_minutes"`
	ActionCount     int            `json:"action_count"`
	ActionTypes     map[string]int `json:"action_types"`
}

// Velocity summarizes how actively a user works inside a rolling window
type Velocity struct {
	UserID             string         `json:"user_id"`
	WindowDays         int            `json:"time_window_days"`
	TotalActions       int            `json:"total_actions"`
	ActionsPerDay      float64        `json:"actions_per_day"`
	ScenariosTouched   int            `json:"scenarios_touched"`
	MostCommonAction   string         `json:"most_common_action,omitempty"`
	ActionDistribution map[string]int `json:"action_type_distribution,omitempty"`
	SessionCount       int            `json:"session_count"`
	AvgSessionMinutes  float64        `json:"avg_session_duration_minutes"`
}

// RunRef is a compact reference to one run inside a context diff
type RunRef struct {
	RunID      uuid.UUID `json:"run_id"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FailReason *string   `json:"fail_reason,omitempty"`
}

// ChangeDetail is one input change inside a run context diff
type ChangeDetail struct {
	NodeID    uuid.UUID `json:"node_id"`
	ChangedAt time.Time `json:"changed_at"`
	ChangedBy string    `json:"changed_by"`
	InputHash string    `json:"input_hash"`
}

// RunContext answers "what was different this time" for a target run.
// Baseline is nil when no earlier successful run exists.
type RunContext struct {
	Target              RunRef         `json:"target_run"`
	Baseline            *RunRef        `json:"previous_successful_run"`
	InputChangesBetween int            `json:"input_changes_between"`
	ChangedNodeIDs      []uuid.UUID    `json:"changed_node_ids,omitempty"`
	TimeGapSeconds      float64        `json:"time_gap_seconds,omitempty"`
	Changes             []ChangeDetail `json:"changes_detail,omitempty"`
}
