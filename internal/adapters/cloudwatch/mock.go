package cloudwatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Mock serves synthetic records for environments without AWS credentials
type Mock struct {
	Group string
}

// NewMock builds a mock client
func NewMock() *Mock { return &Mock{Group: "mock-log-group"} }

// LogGroup names the group this client reads from
func (m *Mock) LogGroup() string {
	if m.Group == "" {
		return "mock-log-group"
	}
	return m.Group
}

// Extract generates a small deterministic-shape sample inside the window
func (m *Mock) Extract(_ context.Context, q Query) ([]Record, error) {
	end := q.End
	if end.IsZero() {
		end = time.Now().UTC()
	}

	corr := uuid.New()
	scenario := uuid.New()
	run := uuid.New()
	user := "jane.doe"
	trace := "Traceback: node calculation failed\n  at calc_node()"

	return []Record{
		{
			Timestamp:     q.Start,
			Stream:        "forecast-service/instance-1",
			Message:       "Scenario run started",
			Severity:      "INFO",
			CorrelationID: &corr,
			ScenarioID:    &scenario,
			RunID:         &run,
			UserID:        &user,
			ErrorCategory: Categorize("Scenario run started"),
		},
		{
			Timestamp:     q.Start.Add(end.Sub(q.Start) / 2),
			Stream:        "forecast-service/instance-1",
			Message:       "Node calculation timed out after 300s",
			Severity:      "ERROR",
			CorrelationID: &corr,
			ScenarioID:    &scenario,
			RunID:         &run,
			UserID:        &user,
			StackTrace:    &trace,
			ErrorCategory: Categorize("Node calculation timed out after 300s"),
		},
		{
			Timestamp:     end.Add(-time.Second),
			Stream:        "forecast-service/instance-2",
			Message:       "Validation failed: missing required input",
			Severity:      "WARN",
			CorrelationID: &corr,
			ScenarioID:    &scenario,
			ErrorCategory: Categorize("Validation failed: missing required input"),
		},
	}, nil
}
