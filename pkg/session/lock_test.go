package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
)

// MockStore structure
type MockStore struct{}

func (m *MockStore) Save(ctx context.Context, runID string, state *domain.RunState) error {
	return nil
}
func (m *MockStore) Load(ctx context.Context, runID string) (*domain.RunState, error) {
	return nil, domain.ErrRunNotFound
}
func (m *MockStore) Delete(ctx context.Context, runID string) error { return nil }
func (m *MockStore) List(ctx context.Context) ([]string, error)     { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(&MockStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("run-%d", i)
		_ = mgr.Save(ctx, id, &domain.RunState{})
		_ = mgr.Delete(ctx, id)
	}

	lockCount := len(mgr.locks)
	t.Logf("Runs Created: %d, Locks Leaked: %d", count, lockCount)

	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}
