package service

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"foresight/internal/services/journey/domain"
	scendom "foresight/internal/services/scenario/domain"
)

// DefaultVelocityWindowDays is the rolling window for velocity metrics
const DefaultVelocityWindowDays = 30

// VelocityFor computes activity metrics for one user over a rolling
// window ending at clock.Now. windowDays <= 0 falls back to the default.
func VelocityFor(
	clock clockwork.Clock,
	actions []scendom.Action,
	userID string,
	windowDays int,
) domain.Velocity {
	if windowDays <= 0 {
		windowDays = DefaultVelocityWindowDays
	}
	v := domain.Velocity{UserID: userID, WindowDays: windowDays}

	cutoff := clock.Now().Add(-time.Duration(windowDays) * 24 * time.Hour)

	var recent []scendom.Action
	for _, a := range actions {
		if a.UserID != userID {
			continue
		}
		if a.Timestamp.Before(cutoff) {
			continue
		}
		recent = append(recent, a)
	}
	if len(recent) == 0 {
		return v
	}

	dist := make(map[string]int)
	scenarios := make(map[uuid.UUID]struct{})
	for _, a := range recent {
		dist[string(a.Type)]++
		if a.ScenarioID != nil {
			scenarios[*a.ScenarioID] = struct{}{}
		}
	}

	var top string
	for t, n := range dist {
		if n > dist[top] || (n == dist[top] && (top == "" || t < top)) {
			top = t
		}
	}

	sessions := GroupSessions(recent, DefaultSessionGap)
	var totalMinutes float64
	for _, s := range sessions {
		totalMinutes += s.DurationMinutes
	}
	avg := 0.0
	if len(sessions) > 0 {
		avg = math.Round(totalMinutes/float64(len(sessions))*100) / 100
	}

	v.TotalActions = len(recent)
	v.ActionsPerDay = float64(len(recent)) / float64(windowDays)
	v.ScenariosTouched = len(scenarios)
	v.MostCommonAction = top
	v.ActionDistribution = dist
	v.SessionCount = len(sessions)
	v.AvgSessionMinutes = avg
	return v
}
