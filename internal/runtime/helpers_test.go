package runtime_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/runtime"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/stretchr/testify/require"
)

func mustScenario(t *testing.T, key, doc string) *domain.Scenario {
	t.Helper()
	var sc domain.Scenario
	require.NoError(t, json.Unmarshal([]byte(doc), &sc))
	sc.Key = key
	return &sc
}

func newController(t *testing.T, sc *domain.Scenario, runID string, opts ...runtime.Option) *runtime.Controller {
	t.Helper()
	c, err := runtime.NewController(sc, runID, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func activate(t *testing.T, c *runtime.Controller) {
	t.Helper()
	require.NoError(t, c.Activate(context.Background()))
	settle(t, c)
}

func dispatch(t *testing.T, c *runtime.Controller, a domain.Action) {
	t.Helper()
	require.NoError(t, c.Dispatch(context.Background(), a))
	settle(t, c)
}

func settle(t *testing.T, c *runtime.Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

// recorder captures host callbacks.
type recorder struct {
	mu       sync.Mutex
	progress []*domain.ProgressEvent
	history  []*domain.HistoryEvent
	resets   []string
}

func (r *recorder) callbacks() domain.HostCallbacks {
	return domain.HostCallbacks{
		OnProgress: func(_ context.Context, e *domain.ProgressEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress = append(r.progress, e)
		},
		OnHistoryAppend: func(_ context.Context, e *domain.HistoryEvent) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.history = append(r.history, e)
		},
		OnResetRun: func(_ context.Context, runID string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.resets = append(r.resets, runID)
		},
	}
}

func (r *recorder) counts() (progress, history, resets int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.progress), len(r.history), len(r.resets)
}

func (r *recorder) lastProgress() *domain.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.progress) == 0 {
		return nil
	}
	return r.progress[len(r.progress)-1]
}

func stepTexts(steps []domain.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Text
	}
	return out
}
