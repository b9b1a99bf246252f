// Package service loads extracted audit data into the reporting warehouse
package service

import (
	"context"

	"github.com/google/uuid"

	"foresight/internal/services/warehouse/domain"
)

// Resolver memoizes dimension key lookups for one load pass.
// It is not safe for concurrent use and must not outlive the pass,
// keys ensured inside a rolled-back transaction would go stale.
type Resolver struct {
	users     map[string]int
	scenarios map[uuid.UUID]int
	nodes     map[uuid.UUID]int
	models    map[uuid.UUID]int
	cycles    map[uuid.UUID]int
}

// NewResolver constructs an empty resolver
func NewResolver() *Resolver {
	return &Resolver{
		users:     map[string]int{},
		scenarios: map[uuid.UUID]int{},
		nodes:     map[uuid.UUID]int{},
		models:    map[uuid.UUID]int{},
		cycles:    map[uuid.UUID]int{},
	}
}

// User resolves (creating when missing) a user id to its dim key
func (r *Resolver) User(ctx context.Context, dims domain.DimReader, userID string) (int, error) {
	if k, ok := r.users[userID]; ok {
		return k, nil
	}
	k, err := dims.EnsureUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	r.users[userID] = k
	return k, nil
}

// Scenario resolves a scenario id to its dim key
func (r *Resolver) Scenario(ctx context.Context, dims domain.DimReader, id uuid.UUID) (int, error) {
	if k, ok := r.scenarios[id]; ok {
		return k, nil
	}
	k, err := dims.ScenarioKey(ctx, id)
	if err != nil {
		return 0, err
	}
	r.scenarios[id] = k
	return k, nil
}

// Node resolves a model node id to its dim key
func (r *Resolver) Node(ctx context.Context, dims domain.DimReader, id uuid.UUID) (int, error) {
	if k, ok := r.nodes[id]; ok {
		return k, nil
	}
	k, err := dims.NodeKey(ctx, id)
	if err != nil {
		return 0, err
	}
	r.nodes[id] = k
	return k, nil
}

// Model resolves a model id to its dim key
func (r *Resolver) Model(ctx context.Context, dims domain.DimReader, id uuid.UUID) (int, error) {
	if k, ok := r.models[id]; ok {
		return k, nil
	}
	k, err := dims.ModelKey(ctx, id)
	if err != nil {
		return 0, err
	}
	r.models[id] = k
	return k, nil
}

// Cycle resolves a forecast init id to its forecast cycle dim key
func (r *Resolver) Cycle(ctx context.Context, dims domain.DimReader, id uuid.UUID) (int, error) {
	if k, ok := r.cycles[id]; ok {
		return k, nil
	}
	k, err := dims.ForecastCycleKey(ctx, id)
	if err != nil {
		return 0, err
	}
	r.cycles[id] = k
	return k, nil
}
