// Package service extracts forecast runs from the OLTP source
package service

import (
	"context"

	"github.com/google/uuid"

	"foresight/internal/modkit/repokit"
	"foresight/internal/services/runs/domain"
)

// Service extracts forecast runs with node calc aggregates
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.SourceRepo]
}

// New constructs the runs extraction service
func New(db repokit.TxRunner, binder repokit.Binder[domain.SourceRepo]) *Service {
	return &Service{DB: db, Binder: binder}
}

// Runs returns runs matching the filter
func (s *Service) Runs(ctx context.Context, f domain.Filter) ([]domain.Run, error) {
	return s.Binder.Bind(s.DB).Runs(ctx, f)
}

// Refresh re-extracts specific runs, used to settle rows the warehouse
// still has marked in progress from an earlier load
func (s *Service) Refresh(ctx context.Context, runIDs []uuid.UUID) ([]domain.Run, error) {
	if len(runIDs) == 0 {
		return nil, nil
	}
	return s.Binder.Bind(s.DB).Runs(ctx, domain.Filter{RunIDs: runIDs})
}
