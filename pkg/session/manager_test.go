package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/adapters/memory"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.RunState
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, runID string, state *domain.RunState) error {
	time.Sleep(time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.RunState)
	}
	s.data[runID] = state.Clone()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, runID string) (*domain.RunState, error) {
	time.Sleep(time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.data[runID]; ok {
		return state.Clone(), nil
	}
	return nil, domain.ErrRunNotFound
}

func (s *SlowStore) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_Contract(t *testing.T) {
	ports.RunStoreContract(t, session.NewManager(memory.NewStore()))
}

func TestManager_UpdateIsSerialized(t *testing.T) {
	manager := session.NewManager(&SlowStore{})
	ctx := context.Background()
	id := "race-test"

	require.NoError(t, manager.Save(ctx, id, domain.NewRunState(id, "start")))

	var wg sync.WaitGroup
	const writers = 20
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.Update(ctx, id, func(st *domain.RunState) error {
				n, _ := st.SlotValues["count"].(int)
				st.SlotValues["count"] = n + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	// Without the lock, read-modify-write cycles would lose increments.
	assert.Equal(t, writers, state.SlotValues["count"])
}

func TestManager_UpdateMissingRun(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	err := manager.Update(context.Background(), "missing", func(*domain.RunState) error { return nil })
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestManager_UpdateAbortsOnError(t *testing.T) {
	ctx := context.Background()
	manager := session.NewManager(memory.NewStore())
	require.NoError(t, manager.Save(ctx, "r", domain.NewRunState("r", "start")))

	boom := errors.New("boom")
	err := manager.Update(ctx, "r", func(st *domain.RunState) error {
		st.CurrentNodeID = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	state, err := manager.Load(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "start", state.CurrentNodeID)
}

func TestManager_LoadOrSeed(t *testing.T) {
	manager := session.NewManager(&SlowStore{})
	ctx := context.Background()
	id := "atomic-init"

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := manager.LoadOrSeed(ctx, id, "root")
			assert.NoError(t, err)
			assert.NotNil(t, state)
		}()
	}
	wg.Wait()

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "root", state.CurrentNodeID)
	assert.Equal(t, id, state.RunID)
}

type countingLocker struct {
	locks   atomic.Int32
	unlocks atomic.Int32
	ttl     atomic.Int64
	err     error
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locks.Add(1)
	l.ttl.Store(int64(ttl))
	return func(context.Context) error {
		l.unlocks.Add(1)
		return nil
	}, nil
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &countingLocker{}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, manager.Save(ctx, "r", domain.NewRunState("r", "start")))
	_, err := manager.Load(ctx, "r")
	require.NoError(t, err)

	assert.EqualValues(t, 2, locker.locks.Load())
	assert.EqualValues(t, 2, locker.unlocks.Load())
	assert.Equal(t, int64(time.Minute), locker.ttl.Load())
}

func TestManager_DistributedLockFailure(t *testing.T) {
	locker := &countingLocker{err: errors.New("redis down")}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker))

	err := manager.Save(context.Background(), "r", domain.NewRunState("r", "start"))
	assert.ErrorContains(t, err, "failed to acquire distributed lock")
}
