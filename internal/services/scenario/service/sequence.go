package service

import (
	"sort"

	"github.com/google/uuid"

	"foresight/internal/services/scenario/domain"
)

type nodeKey struct {
	scenario uuid.UUID
	node     uuid.UUID
}

// SequenceInputChanges turns append-only node data rows into a sequenced
// change history. Sequence numbers count per scenario node starting at 1.
// A row whose hash equals the previous hash for the same node is flagged
// as a duplicate save rather than a real change.
func SequenceInputChanges(rows []domain.NodeData) []domain.InputChange {
	sorted := make([]domain.NodeData, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	seq := make(map[nodeKey]int)
	lastHash := make(map[nodeKey]string)

	out := make([]domain.InputChange, 0, len(sorted))
	for _, row := range sorted {
		k := nodeKey{scenario: row.ScenarioID, node: row.NodeID}
		seq[k]++

		var prev *string
		if h, ok := lastHash[k]; ok {
			p := h
			prev = &p
		}

		out = append(out, domain.InputChange{
			ScenarioID:    row.ScenarioID,
			NodeDataID:    row.ID,
			NodeID:        row.NodeID,
			ChangedAt:     row.CreatedAt,
			ChangedBy:     row.CreatedBy,
			PreviousHash:  prev,
			NewHash:       row.InputHash,
			IsDuplicate:   prev != nil && *prev == row.InputHash,
			Sequence:      seq[k],
			CorrelationID: row.CreatedReqID,
		})
		lastHash[k] = row.InputHash
	}
	return out
}
