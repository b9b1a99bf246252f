// Package domain defines scenario audit trail types shared across services
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is a scenario lifecycle status
type Status string

// Lifecycle statuses as stored on fc_scenario.status
const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusLocked    Status = "locked"
	StatusWithdrawn Status = "withdrawn"
	StatusDeleted   Status = "deleted"
)

// Transition names a lifecycle state transition
type Transition string

// Transition types derived from scenario audit stamps
const (
	TransitionCreated   Transition = "created"
	TransitionSubmitted Transition = "submitted"
	TransitionLocked    Transition = "locked"
	TransitionWithdrawn Transition = "withdrawn"
	TransitionDeleted   Transition = "deleted"
)

// Milestone is one nullable audit stamp on a scenario row
type Milestone struct {
	At    *time.Time
	By    *string
	ReqID *uuid.UUID
}

// Set reports whether the milestone has been stamped
func (m Milestone) Set() bool { return m.At != nil }

// Scenario mirrors one fc_scenario row with its audit stamps
type Scenario struct {
	ID             uuid.UUID
	ModelID        uuid.UUID
	ForecastInitID uuid.UUID
	DisplayName    string
	IsStarter      bool
	Status         Status
	StartYear      int
	EndYear        int
	RegionName     *string
	CountryName    *string
	Currency       string

	CreatedAt    time.Time
	CreatedBy    string
	CreatedReqID uuid.UUID

	UpdatedAt    time.Time
	UpdatedBy    string
	UpdatedReqID *uuid.UUID

	Submitted Milestone
	Locked    Milestone
	Withdrawn Milestone
	Deleted   Milestone
}

// StateChange is one reconstructed lifecycle transition
type StateChange struct {
	ScenarioID     uuid.UUID
	PreviousStatus *Status
	NewStatus      Status
	Transition     Transition
	ChangedBy      string
	ChangedAt      time.Time
	CorrelationID  uuid.UUID
	Reason         *string
}

// ActionType identifies what a user did
type ActionType string

// Action types emitted by the extractor
const (
	ActionCreateScenario ActionType = "create_scenario"
	ActionUpdateScenario ActionType = "update_scenario"
	ActionSubmitScenario ActionType = "submit_scenario"
	ActionEditInputData  ActionType = "edit_input_data"
	ActionRunForecast    ActionType = "run_forecast"
)

// Category groups action types for dashboard slicing
type Category string

// Action categories
const (
	CategoryScenarioMgmt Category = "scenario_mgmt"
	CategoryInputData    Category = "input_data"
	CategoryForecastRun  Category = "forecast_run"
)

// Action is one user action reconstructed from the source tables
type Action struct {
	UserID        string
	ScenarioID    *uuid.UUID
	Timestamp     time.Time
	Type          ActionType
	Category      Category
	TargetType    string
	TargetID      *uuid.UUID
	CorrelationID uuid.UUID
	Success       bool
	ErrorMessage  *string
	Details       map[string]any
}

// NodeData mirrors one append-only fc_scenario_node_data row
type NodeData struct {
	ID           uuid.UUID
	ScenarioID   uuid.UUID
	NodeID       uuid.UUID
	InputHash    string
	Validated    bool
	CreatedBy    string
	CreatedAt    time.Time
	CreatedReqID uuid.UUID
}

// InputChange is one sequenced input modification for a scenario node
type InputChange struct {
	ScenarioID    uuid.UUID
	NodeDataID    uuid.UUID
	NodeID        uuid.UUID
	ChangedAt     time.Time
	ChangedBy     string
	PreviousHash  *string
	NewHash       string
	IsDuplicate   bool
	Sequence      int
	CorrelationID uuid.UUID
}
