package service

import (
	"testing"
	"time"

	"github.com/google/uuid"

	scendom "foresight/internal/services/scenario/domain"
)

func action(user string, minutes int, typ scendom.ActionType, scenario *uuid.UUID) scendom.Action {
	return scendom.Action{
		UserID:     user,
		ScenarioID: scenario,
		Timestamp:  at(minutes),
		Type:       typ,
		Category:   scendom.CategoryScenarioMgmt,
	}
}

func TestGroupSessions_GapClosesSession(t *testing.T) {
	sid := uuid.New()
	actions := []scendom.Action{
		action("alice", 0, scendom.ActionCreateScenario, &sid),
		action("alice", 10, scendom.ActionEditInputData, &sid),
		// 31 minute gap, past the default threshold
		action("alice", 41, scendom.ActionRunForecast, &sid),
	}

	got := GroupSessions(actions, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(got))
	}
	if got[0].ActionCount != 2 || got[1].ActionCount != 1 {
		t.Fatalf("session action counts %d/%d, want 2/1", got[0].ActionCount, got[1].ActionCount)
	}
	if got[0].DurationMinutes != 10 {
		t.Fatalf("first session duration %v, want 10", got[0].DurationMinutes)
	}
	if got[1].DurationMinutes != 0 {
		t.Fatalf("single-action session duration %v, want 0", got[1].DurationMinutes)
	}
}

func TestGroupSessions_ExactGapStaysOpen(t *testing.T) {
	actions := []scendom.Action{
		action("alice", 0, scendom.ActionCreateScenario, nil),
		action("alice", 30, scendom.ActionEditInputData, nil),
	}

	if got := GroupSessions(actions, 0); len(got) != 1 {
		t.Fatalf("gap equal to the threshold must not split, got %d sessions", len(got))
	}
}

func TestGroupSessions_UsersNeverShareSessions(t *testing.T) {
	actions := []scendom.Action{
		action("alice", 0, scendom.ActionCreateScenario, nil),
		action("bob", 1, scendom.ActionCreateScenario, nil),
	}

	got := GroupSessions(actions, 0)
	if len(got) != 2 {
		t.Fatalf("expected one session per user, got %d", len(got))
	}
}

func TestGroupSessions_AggregatesTypesAndScenarios(t *testing.T) {
	s1, s2 := uuid.New(), uuid.New()
	actions := []scendom.Action{
		action("alice", 0, scendom.ActionEditInputData, &s1),
		action("alice", 5, scendom.ActionEditInputData, &s2),
		action("alice", 6, scendom.ActionRunForecast, &s1),
	}

	got := GroupSessions(actions, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 session, got %d", len(got))
	}
	s := got[0]
	if len(s.ScenarioIDs) != 2 {
		t.Fatalf("scenarios touched %d, want 2", len(s.ScenarioIDs))
	}
	if s.ActionTypes[string(scendom.ActionEditInputData)] != 2 {
		t.Fatalf("edit count %d, want 2", s.ActionTypes[string(scendom.ActionEditInputData)])
	}
}

func TestGroupSessions_CustomGap(t *testing.T) {
	actions := []scendom.Action{
		action("alice", 0, scendom.ActionCreateScenario, nil),
		action("alice", 6, scendom.ActionEditInputData, nil),
	}

	if got := GroupSessions(actions, 5*time.Minute); len(got) != 2 {
		t.Fatalf("custom gap not honored, got %d sessions", len(got))
	}
}

func TestGroupSessions_Empty(t *testing.T) {
	if got := GroupSessions(nil, 0); got != nil {
		t.Fatalf("expected nil for no actions, got %v", got)
	}
}
