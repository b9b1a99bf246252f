package service

import (
	"sort"

	"github.com/google/uuid"

	perr "foresight/internal/platform/errors"
	"foresight/internal/services/journey/domain"
	rundom "foresight/internal/services/runs/domain"
	scendom "foresight/internal/services/scenario/domain"
)

// RunContextDiff finds what changed between the last successful run and
// the target run of a scenario. The change window is open at the baseline
// start and closed at the target start. Baseline stays nil when the
// scenario never succeeded before the target.
func RunContextDiff(
	scenarioID, targetRunID uuid.UUID,
	allRuns []rundom.Run,
	inputChanges []scendom.InputChange,
) (domain.RunContext, error) {
	var runs []rundom.Run
	for _, r := range allRuns {
		if r.ScenarioID == scenarioID {
			runs = append(runs, r)
		}
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })

	var target *rundom.Run
	for i := range runs {
		if runs[i].ID == targetRunID {
			target = &runs[i]
			break
		}
	}
	if target == nil {
		return domain.RunContext{}, perr.NotFoundf("run %s not found for scenario %s", targetRunID, scenarioID)
	}

	ctx := domain.RunContext{Target: runRef(*target)}

	var baseline *rundom.Run
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		if r.StartedAt.Before(target.StartedAt) && r.Succeeded() {
			baseline = &runs[i]
			break
		}
	}
	if baseline == nil {
		return ctx, nil
	}

	ref := runRef(*baseline)
	ref.FailReason = nil
	ctx.Baseline = &ref
	ctx.TimeGapSeconds = target.StartedAt.Sub(baseline.StartedAt).Seconds()

	seen := make(map[uuid.UUID]struct{})
	for _, c := range inputChanges {
		if c.ScenarioID != scenarioID {
			continue
		}
		if !c.ChangedAt.After(baseline.StartedAt) || c.ChangedAt.After(target.StartedAt) {
			continue
		}
		ctx.InputChangesBetween++
		ctx.Changes = append(ctx.Changes, domain.ChangeDetail{
			NodeID:    c.NodeID,
			ChangedAt: c.ChangedAt,
			ChangedBy: c.ChangedBy,
			InputHash: c.NewHash,
		})
		seen[c.NodeID] = struct{}{}
	}

	ctx.ChangedNodeIDs = make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ctx.ChangedNodeIDs = append(ctx.ChangedNodeIDs, id)
	}
	sort.Slice(ctx.ChangedNodeIDs, func(i, j int) bool {
		return ctx.ChangedNodeIDs[i].String() < ctx.ChangedNodeIDs[j].String()
	})
	return ctx, nil
}

func runRef(r rundom.Run) domain.RunRef {
	return domain.RunRef{
		RunID:      r.ID,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		FailReason: r.FailReason,
	}
}
