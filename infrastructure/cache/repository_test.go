package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"microgrid/domain/shared"
	"microgrid/domain/topology"
	"microgrid/infrastructure/persistence/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	gets    int
	hits    int
	failGet bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.failGet {
		return nil, false, errors.New("connection refused")
	}
	v, ok := s.data[key]
	if ok {
		s.hits++
	}
	return v, ok, nil
}

func (s *fakeStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *fakeStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

func seeded(t *testing.T) (*Repository, *fakeStore, *topology.MicrogridTopology) {
	t.Helper()
	store := newFakeStore()
	backing := mocks.NewMockTopologyRepository()
	repo := NewRepository(backing, store, time.Minute, "mg:")

	topo, err := topology.NewMicrogridTopology("north", "")
	require.NoError(t, err)
	bus, _ := topology.NewDevice("B1", topology.DeviceTypeBus, topology.EmptyProperties())
	require.NoError(t, topo.AddDevice(bus))
	require.NoError(t, repo.Save(context.Background(), topo))
	return repo, store, topo
}

func TestFindByIDFillsAndServesCache(t *testing.T) {
	ctx := context.Background()
	repo, store, topo := seeded(t)

	first, err := repo.FindByID(ctx, topo.ID())
	require.NoError(t, err)
	assert.True(t, store.has("mg:"+topo.ID()))
	assert.Equal(t, 0, store.hits)

	second, err := repo.FindByID(ctx, topo.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, store.hits)
	assert.Equal(t, first.Version(), second.Version())
	assert.True(t, second.HasDevice("B1"))
	assert.False(t, second.IsNew())
}

func TestSaveAndRemoveInvalidate(t *testing.T) {
	ctx := context.Background()
	repo, store, topo := seeded(t)
	key := "mg:" + topo.ID()

	loaded, _ := repo.FindByID(ctx, topo.ID())
	require.True(t, store.has(key))

	require.NoError(t, loaded.UpdateInfo("renamed", ""))
	require.NoError(t, repo.Save(ctx, loaded))
	assert.False(t, store.has(key))

	fresh, err := repo.FindByID(ctx, topo.ID())
	require.NoError(t, err)
	assert.Equal(t, "renamed", fresh.Name())
	assert.Equal(t, 2, fresh.Version())

	require.NoError(t, repo.Remove(ctx, topo.ID()))
	assert.False(t, store.has(key))
	_, err = repo.FindByID(ctx, topo.ID())
	assert.ErrorIs(t, err, topology.ErrTopologyNotFound)
}

func TestStoreFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	repo, store, topo := seeded(t)
	store.failGet = true

	loaded, err := repo.FindByID(ctx, topo.ID())
	require.NoError(t, err)
	assert.Equal(t, topo.ID(), loaded.ID())
}

func TestCorruptEntryIsDiscarded(t *testing.T) {
	ctx := context.Background()
	repo, store, topo := seeded(t)
	_ = store.Set(ctx, "mg:"+topo.ID(), []byte("{not json"), 0)

	loaded, err := repo.FindByID(ctx, topo.ID())
	require.NoError(t, err)
	assert.Equal(t, "north", loaded.Name())
	assert.True(t, store.has("mg:"+topo.ID()), "refilled from the backing repository")
}

func TestInvalidationHandler(t *testing.T) {
	ctx := context.Background()
	repo, store, topo := seeded(t)
	_, _ = repo.FindByID(ctx, topo.ID())

	bus := shared.NewEventBus()
	require.NoError(t, bus.Subscribe(shared.AllEvents, repo.InvalidationHandler()))
	require.NoError(t, bus.Publish(topology.NewTopologyUpdatedEvent(topo.ID(), "north", "", topology.StatusCreated)))

	assert.False(t, store.has("mg:"+topo.ID()))
}
