package cache

import (
	"context"
	"encoding/json"
	"time"

	"microgrid/domain/shared"
	"microgrid/domain/topology"
	"microgrid/infrastructure/snapshot"
	"microgrid/pkg/logger"

	"go.uber.org/zap"
)

// Repository read-through cache in front of another topology.Repository.
// 缓存故障只记日志，读写退回到底层仓储。
type Repository struct {
	next   topology.Repository
	store  Store
	ttl    time.Duration
	prefix string
}

func NewRepository(next topology.Repository, store Store, ttl time.Duration, prefix string) *Repository {
	return &Repository{next: next, store: store, ttl: ttl, prefix: prefix}
}

func (r *Repository) key(id string) string { return r.prefix + id }

func (r *Repository) NextIdentity() string {
	return r.next.NextIdentity()
}

func (r *Repository) Save(ctx context.Context, t *topology.MicrogridTopology) error {
	if err := r.next.Save(ctx, t); err != nil {
		return err
	}
	r.Invalidate(ctx, t.ID())
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*topology.MicrogridTopology, error) {
	data, ok, err := r.store.Get(ctx, r.key(id))
	if err != nil {
		logger.Warn("Topology cache read failed", zap.String("topology_id", id), zap.Error(err))
	}
	if ok {
		var doc snapshot.Document
		if err := json.Unmarshal(data, &doc); err == nil {
			if t, err := doc.Restore(); err == nil {
				return t, nil
			}
		}
		logger.Warn("Discarding unreadable cache entry", zap.String("topology_id", id))
		r.Invalidate(ctx, id)
	}

	t, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(snapshot.FromDomain(t)); err == nil {
		if err := r.store.Set(ctx, r.key(id), data, r.ttl); err != nil {
			logger.Warn("Topology cache write failed", zap.String("topology_id", id), zap.Error(err))
		}
	}
	return t, nil
}

// FindAll is not cached; specifications are evaluated against the backing store
func (r *Repository) FindAll(ctx context.Context, spec shared.Specification[*topology.MicrogridTopology]) ([]*topology.MicrogridTopology, error) {
	return r.next.FindAll(ctx, spec)
}

func (r *Repository) Remove(ctx context.Context, id string) error {
	if err := r.next.Remove(ctx, id); err != nil {
		return err
	}
	r.Invalidate(ctx, id)
	return nil
}

func (r *Repository) Invalidate(ctx context.Context, id string) {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		logger.Warn("Topology cache invalidation failed", zap.String("topology_id", id), zap.Error(err))
	}
}

// InvalidationHandler drops the entry of every aggregate that published a
// committed event. A reader that refilled the cache between Save and commit
// would otherwise keep the pre-commit snapshot until the TTL expires.
func (r *Repository) InvalidationHandler() shared.EventHandler {
	return shared.NewFuncHandler("topology-cache-invalidation", func(event shared.DomainEvent) error {
		r.Invalidate(context.Background(), event.GetAggregateID())
		return nil
	})
}

var _ topology.Repository = (*Repository)(nil)
