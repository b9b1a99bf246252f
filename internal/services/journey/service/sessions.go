package service

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"foresight/internal/services/journey/domain"
	scendom "foresight/internal/services/scenario/domain"
)

// DefaultSessionGap is the inactivity threshold that closes a session
const DefaultSessionGap = 30 * time.Minute

// GroupSessions buckets actions into per-user sessions. A session closes
// when the actor changes or the gap between consecutive actions exceeds
// gap. gap <= 0 falls back to DefaultSessionGap.
func GroupSessions(actions []scendom.Action, gap time.Duration) []domain.Session {
	if len(actions) == 0 {
		return nil
	}
	if gap <= 0 {
		gap = DefaultSessionGap
	}

	sorted := make([]scendom.Action, len(actions))
	copy(sorted, actions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].UserID != sorted[j].UserID {
			return sorted[i].UserID < sorted[j].UserID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var (
		sessions []domain.Session
		cur      *sessionAcc
	)
	for _, a := range sorted {
		if cur == nil || cur.userID != a.UserID || a.Timestamp.Sub(cur.lastAt) > gap {
			if cur != nil {
				sessions = append(sessions, cur.finish())
			}
			cur = &sessionAcc{
				userID:    a.UserID,
				startedAt: a.Timestamp,
				lastAt:    a.Timestamp,
				types:     make(map[string]int),
				scenarios: make(map[uuid.UUID]struct{}),
			}
		}
		cur.count++
		cur.lastAt = a.Timestamp
		cur.types[string(a.Type)]++
		if a.ScenarioID != nil {
			cur.scenarios[*a.ScenarioID] = struct{}{}
		}
	}
	sessions = append(sessions, cur.finish())
	return sessions
}

type sessionAcc struct {
	userID    string
	startedAt time.Time
	lastAt    time.Time
	count     int
	types     map[string]int
	scenarios map[uuid.UUID]struct{}
}

func (s *sessionAcc) finish() domain.Session {
	ids := make([]uuid.UUID, 0, len(s.scenarios))
	for id := range s.scenarios {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	return domain.Session{
		ID:              uuid.New(),
		UserID:          s.userID,
		ScenarioIDs:     ids,
		StartedAt:       s.startedAt,
		EndedAt:         s.lastAt,
		DurationMinutes: s.lastAt.Sub(s.startedAt).Minutes(),
		ActionCount:     s.count,
		ActionTypes:     s.types,
	}
}
