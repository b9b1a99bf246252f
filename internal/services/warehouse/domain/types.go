// Package domain defines reporting warehouse rows and load contracts
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Watermark table names for the audit trail pipeline
const (
	WatermarkAuditTrail = "rca_audit_trail"
	WatermarkCloudWatch = "rca_cloudwatch_logs"
)

// Watermark run statuses
const (
	WatermarkInProgress = "in_progress"
	WatermarkSuccess    = "success"
	WatermarkFailed     = "failed"
)

// Watermark is one etl_watermark row
type Watermark struct {
	TableName        string
	LastLoadedAt     *time.Time
	LastRunStarted   *time.Time
	LastRunCompleted *time.Time
	RowsLoaded       int64
	Status           string
}

// DateKey renders the YYYYMMDD surrogate key for dim_date
func DateKey(t time.Time) int {
	u := t.UTC()
	return u.Year()*10000 + int(u.Month())*100 + u.Day()
}

// LoadResult counts what one load pass did
type LoadResult struct {
	Loaded  int
	Skipped int
}

// Add folds another result into this one
func (r *LoadResult) Add(o LoadResult) {
	r.Loaded += o.Loaded
	r.Skipped += o.Skipped
}

// StateChangeRow is one fact_scenario_state_change insert
type StateChangeRow struct {
	ScenarioKey      int
	ScenarioID       uuid.UUID
	PreviousStatus   *string
	NewStatus        string
	Transition       string
	ChangedByUserKey int
	ChangedAt        time.Time
	CorrelationID    uuid.UUID
	Reason           *string
}

// UserActionRow is one fact_user_action insert
type UserActionRow struct {
	UserKey       int
	ScenarioKey   *int
	Timestamp     time.Time
	ActionType    string
	Category      string
	TargetType    *string
	TargetID      *uuid.UUID
	CorrelationID uuid.UUID
	Success       bool
	ErrorMessage  *string
	Details       map[string]any
}

// InputChangeRow is one fact_scenario_input_change insert
type InputChangeRow struct {
	NodeDataID       uuid.UUID
	ScenarioKey      int
	NodeKey          int
	ChangedByUserKey int
	ChangeDateKey    int
	ChangedAt        time.Time
	PreviousHash     *string
	NewHash          string
	IsDuplicate      bool
	Sequence         int
}

// CloudWatchLogRow is one fact_cloudwatch_log insert
type CloudWatchLogRow struct {
	Timestamp     time.Time
	Stream        string
	Group         string
	Severity      string
	Message       string
	CorrelationID *uuid.UUID
	ScenarioID    *uuid.UUID
	RunID         *uuid.UUID
	UserID        *string
	Environment   string
	ServiceName   string
	StackTrace    *string
	ErrorCategory *string
	Metadata      map[string]string
}

// RunRow is one fact_scenario_run upsert
type RunRow struct {
	RunID            uuid.UUID
	ScenarioKey      int
	ModelKey         int
	ForecastCycleKey int
	RunByUserKey     int
	RunDateKey       int
	StartedAt        time.Time
	EndedAt          *time.Time
	Status           string
	DurationSeconds  *float64
	BranchCount      int
	NodeCalcTotal    int
	NodeCalcSuccess  int
	NodeCalcFailed   int
	NodeCalcTimeout  int
	FailReason       *string
}

// DiagnosticRow is one fact_run_diagnostic insert
type DiagnosticRow struct {
	RunFactKey     int64
	RunID          uuid.UUID
	ScenarioKey    int
	DiagnosticType string
	NodeKey        *int
	Severity       string
	Category       string
	Message        string
	Details        map[string]any
	InputHashAtRun *string
	CorrelationID  uuid.UUID
	LogRefs        []int64
}
