package mocks

import (
	"context"
	"sort"
	"sync"

	"microgrid/domain/shared"
	"microgrid/domain/topology"

	"github.com/google/uuid"
)

// MockTopologyRepository in-memory topology repository.
// Backs the "memory" database driver as well as the tests; stored values
// are clones so callers never share state with the map.
type MockTopologyRepository struct {
	topologies map[string]*topology.MicrogridTopology
	mu         sync.RWMutex
}

func NewMockTopologyRepository() *MockTopologyRepository {
	return &MockTopologyRepository{
		topologies: make(map[string]*topology.MicrogridTopology),
	}
}

func (r *MockTopologyRepository) NextIdentity() string {
	return uuid.New().String()
}

// Save 新建要求 ID 不存在，更新要求版本一致
func (r *MockTopologyRepository) Save(ctx context.Context, t *topology.MicrogridTopology) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.topologies[t.ID()]
	if t.IsNew() {
		if exists {
			return shared.NewConflictError("topology", "topology already exists: "+t.ID())
		}
	} else {
		if !exists {
			return topology.NewTopologyNotFoundError(t.ID())
		}
		if existing.Version() != t.Version() {
			return topology.NewConcurrentModificationError(t.ID())
		}
	}

	t.IncrementVersionForSave()
	r.topologies[t.ID()] = t.Clone()
	return nil
}

func (r *MockTopologyRepository) FindByID(ctx context.Context, id string) (*topology.MicrogridTopology, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.topologies[id]
	if !ok {
		return nil, topology.NewTopologyNotFoundError(id)
	}
	return t.Clone(), nil
}

// FindAll returns matches ordered by creation time
func (r *MockTopologyRepository) FindAll(ctx context.Context, spec shared.Specification[*topology.MicrogridTopology]) ([]*topology.MicrogridTopology, error) {
	r.mu.RLock()
	all := make([]*topology.MicrogridTopology, 0, len(r.topologies))
	for _, t := range r.topologies {
		all = append(all, t.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt().Equal(all[j].CreatedAt()) {
			return all[i].ID() < all[j].ID()
		}
		return all[i].CreatedAt().Before(all[j].CreatedAt())
	})
	return shared.Filter(ctx, spec, all), nil
}

func (r *MockTopologyRepository) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.topologies[id]; !ok {
		return topology.NewTopologyNotFoundError(id)
	}
	delete(r.topologies, id)
	return nil
}

// Count number of stored topologies
func (r *MockTopologyRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topologies)
}

var _ topology.Repository = (*MockTopologyRepository)(nil)
