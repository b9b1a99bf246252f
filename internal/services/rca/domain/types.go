// Package domain defines the RCA dashboard read models served over HTTP
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditFilter narrows the audit trail projection
type AuditFilter struct {
	Start      *time.Time
	End        *time.Time
	EventTypes []string
}

// AuditEvent is one row of the unified scenario timeline
type AuditEvent struct {
	Timestamp     time.Time      `json:"timestamp"`
	EventType     string         `json:"event_type"`
	Category      string         `json:"category"`
	UserID        string         `json:"user"`
	Description   string         `json:"description"`
	CorrelationID *uuid.UUID     `json:"correlation_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// AuditTrail is the timeline bundle for one scenario
type AuditTrail struct {
	ScenarioID uuid.UUID    `json:"scenario_id"`
	EventCount int          `json:"event_count"`
	Events     []AuditEvent `json:"events"`
}

// StateChange is one lifecycle transition as loaded
type StateChange struct {
	PreviousStatus *string   `json:"previous_status,omitempty"`
	NewStatus      string    `json:"new_status"`
	Transition     string    `json:"transition_type"`
	ChangedBy      string    `json:"changed_by"`
	ChangedAt      time.Time `json:"changed_at"`
	CorrelationID  uuid.UUID `json:"correlation_id"`
	Reason         *string   `json:"reason,omitempty"`
}

// StateChangeList bundles a scenario's transitions
type StateChangeList struct {
	ScenarioID   uuid.UUID     `json:"scenario_id"`
	StateChanges []StateChange `json:"state_changes"`
}

// JourneyAction is one action row in a user journey
type JourneyAction struct {
	Timestamp  time.Time      `json:"timestamp"`
	ActionType string         `json:"action_type"`
	Category   string         `json:"category"`
	TargetType *string        `json:"target_entity,omitempty"`
	Success    bool           `json:"success"`
	Error      *string        `json:"error,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Journey is the chronological action timeline for one user
type Journey struct {
	UserID       string          `json:"user_id"`
	DaysAnalyzed int             `json:"days_analyzed"`
	ActionCount  int             `json:"action_count"`
	Actions      []JourneyAction `json:"actions"`
}

// RunSummary carries the run fact columns the dashboard shows
type RunSummary struct {
	RunID           uuid.UUID  `json:"run_id"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	NodeFailures    int        `json:"node_failures"`
	FailReason      *string    `json:"fail_reason,omitempty"`
}

// Diagnostic is one diagnostic row with its node name resolved
type Diagnostic struct {
	Type     string         `json:"type"`
	Category string         `json:"category"`
	Severity string         `json:"severity"`
	NodeName *string        `json:"node_name,omitempty"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// LogLine is one related log entry, message truncated for transport
type LogLine struct {
	Timestamp     time.Time `json:"timestamp"`
	Severity      string    `json:"severity"`
	Message       string    `json:"message"`
	ErrorCategory *string   `json:"error_category,omitempty"`
	HasStackTrace bool      `json:"stack_trace"`
}

// RunDiagnostics is the drill-through bundle for one run
type RunDiagnostics struct {
	Run         RunSummary   `json:"run"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	Logs        []LogLine    `json:"cloudwatch_logs"`
}

// ChangedNode is one input change between two compared runs
type ChangedNode struct {
	NodeName  string    `json:"node_name"`
	ChangedAt time.Time `json:"changed_at"`
	InputHash string    `json:"input_hash"`
}

// RunComparison contrasts two runs of one scenario
type RunComparison struct {
	ScenarioID          uuid.UUID     `json:"scenario_id"`
	RunA                RunSummary    `json:"run_a"`
	RunB                RunSummary    `json:"run_b"`
	TimeGapSeconds      float64       `json:"time_gap_seconds"`
	InputChangesBetween int           `json:"input_changes_between"`
	ChangedNodes        []ChangedNode `json:"changed_nodes"`
}

// CategoryCount is one error category aggregate
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// TopCategories is the trailing-window category distribution
type TopCategories struct {
	DaysAnalyzed int             `json:"days_analyzed"`
	Categories   []CategoryCount `json:"top_categories"`
}

// ErrorSummary aggregates a scenario's failure picture
type ErrorSummary struct {
	ScenarioID        uuid.UUID       `json:"scenario_id"`
	TotalRuns         int             `json:"total_runs"`
	FailedRuns        int             `json:"failed_runs"`
	SuccessRate       float64         `json:"success_rate"`
	TotalNodeFailures int             `json:"total_node_failures"`
	ErrorCategories   []CategoryCount `json:"error_categories"`
}
