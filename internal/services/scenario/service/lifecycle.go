// Package service reconstructs scenario audit history from source rows
package service

import (
	"fmt"
	"sort"

	"foresight/internal/services/scenario/domain"
)

// TransitionsFor rebuilds the lifecycle transition history of one scenario
// from its audit stamp columns, ordered by change time.
// The previous status for withdrawn and deleted depends on the current row
// status because the source does not keep the pre-withdraw state.
func TransitionsFor(s domain.Scenario) []domain.StateChange {
	var out []domain.StateChange

	out = append(out, domain.StateChange{
		ScenarioID:     s.ID,
		PreviousStatus: nil,
		NewStatus:      domain.StatusDraft,
		Transition:     domain.TransitionCreated,
		ChangedBy:      s.CreatedBy,
		ChangedAt:      s.CreatedAt,
		CorrelationID:  s.CreatedReqID,
	})

	if s.Submitted.Set() {
		prev := domain.StatusDraft
		out = append(out, milestoneChange(s, s.Submitted, prev, domain.StatusSubmitted, domain.TransitionSubmitted))
	}
	if s.Locked.Set() {
		prev := domain.StatusSubmitted
		out = append(out, milestoneChange(s, s.Locked, prev, domain.StatusLocked, domain.TransitionLocked))
	}
	if s.Withdrawn.Set() {
		prev := s.Status
		if prev == domain.StatusWithdrawn {
			prev = domain.StatusSubmitted
		}
		out = append(out, milestoneChange(s, s.Withdrawn, prev, domain.StatusWithdrawn, domain.TransitionWithdrawn))
	}
	if s.Deleted.Set() {
		prev := s.Status
		if prev == domain.StatusDeleted {
			prev = domain.StatusDraft
		}
		out = append(out, milestoneChange(s, s.Deleted, prev, domain.StatusDeleted, domain.TransitionDeleted))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ChangedAt.Before(out[j].ChangedAt) })
	return out
}

func milestoneChange(
	s domain.Scenario, m domain.Milestone,
	prev, next domain.Status, t domain.Transition,
) domain.StateChange {
	c := domain.StateChange{
		ScenarioID:     s.ID,
		PreviousStatus: &prev,
		NewStatus:      next,
		Transition:     t,
		ChangedAt:      *m.At,
	}
	if m.By != nil {
		c.ChangedBy = *m.By
	}
	if m.ReqID != nil {
		c.CorrelationID = *m.ReqID
	}
	return c
}

// ValidateLifecycle checks the audit stamps of a scenario against the
// lifecycle ordering rules. Violations are data quality findings, not
// reasons to drop the row.
func ValidateLifecycle(s domain.Scenario) []string {
	var out []string

	if s.Submitted.Set() && s.Submitted.At.Before(s.CreatedAt) {
		out = append(out, fmt.Sprintf("scenario %s submitted_at precedes created_at", s.ID))
	}
	if s.Locked.Set() {
		if !s.Submitted.Set() {
			out = append(out, fmt.Sprintf("scenario %s locked without a submitted stamp", s.ID))
		} else if s.Locked.At.Before(*s.Submitted.At) {
			out = append(out, fmt.Sprintf("scenario %s locked_at precedes submitted_at", s.ID))
		}
	}
	if s.Withdrawn.Set() && !s.Submitted.Set() {
		out = append(out, fmt.Sprintf("scenario %s withdrawn without a submitted stamp", s.ID))
	}
	if s.Deleted.Set() && s.Deleted.At.Before(s.CreatedAt) {
		out = append(out, fmt.Sprintf("scenario %s delete_at precedes created_at", s.ID))
	}

	for _, m := range []struct {
		name string
		m    domain.Milestone
	}{
		{"submitted", s.Submitted},
		{"locked", s.Locked},
		{"withdraw", s.Withdrawn},
		{"delete", s.Deleted},
	} {
		if m.m.Set() && (m.m.By == nil || m.m.ReqID == nil) {
			out = append(out, fmt.Sprintf("scenario %s %s stamp missing actor or request id", s.ID, m.name))
		}
	}

	return out
}
