package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/logging"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
)

const subscriberBuffer = 64

// Event is one server-sent event. An empty Name is the default message event.
type Event struct {
	Name string
	Data string
}

// StreamManager fans run progress out to the SSE subscribers of each run.
// Progress snapshots are turned into domain.RunDiff documents against the
// previous snapshot of the same run.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- Event]struct{} // run id -> channels

	lastMu sync.Mutex
	last   map[string]*domain.RunState

	logger *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- Event]struct{}),
		last:        make(map[string]*domain.RunState),
		logger:      logging.NewNop(),
	}
}

// SetLogger replaces the logger used for dropped messages.
func (sm *StreamManager) SetLogger(logger *slog.Logger) {
	if logger != nil {
		sm.logger = logger
	}
}

// Callbacks returns the host callbacks feeding this manager.
func (sm *StreamManager) Callbacks() domain.HostCallbacks {
	return domain.HostCallbacks{
		OnProgress: sm.Progress,
		OnResetRun: sm.ResetRun,
	}
}

// Subscribe registers a channel for runID. The returned func unsubscribes
// and closes the channel.
func (sm *StreamManager) Subscribe(runID string) (<-chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if _, ok := sm.subscribers[runID]; !ok {
		sm.subscribers[runID] = make(map[chan<- Event]struct{})
	}
	sm.subscribers[runID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[runID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, runID)
			}
		}
	}
}

// Broadcast sends ev to every subscriber of runID. Slow subscribers miss it.
func (sm *StreamManager) Broadcast(runID string, ev Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[runID] {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "run_id", runID)
		}
	}
}

// Progress records a published snapshot and broadcasts its diff.
func (sm *StreamManager) Progress(_ context.Context, ev *domain.ProgressEvent) {
	st := &domain.RunState{
		RunID:         ev.RunID,
		CurrentNodeID: ev.CurrentNodeID,
		Steps:         ev.Steps,
		SlotValues:    ev.SlotValues,
		FormValues:    ev.FormValues,
		Finished:      ev.Finished,
	}

	sm.lastMu.Lock()
	diff := domain.Diff(sm.last[ev.RunID], st)
	sm.last[ev.RunID] = st
	sm.lastMu.Unlock()

	if diff == nil {
		return
	}
	b, err := json.Marshal(diff)
	if err != nil {
		sm.logger.Error("failed to encode run diff", "run_id", ev.RunID, "err", err)
		return
	}
	sm.Broadcast(ev.RunID, Event{Data: string(b)})
}

// ResetRun announces a reset. The previous snapshot is kept so the next diff
// reports the shortened transcript.
func (sm *StreamManager) ResetRun(_ context.Context, runID string) {
	b, _ := json.Marshal(map[string]string{"run_id": runID})
	sm.Broadcast(runID, Event{Name: "reset", Data: string(b)})
}

// Forget drops the remembered snapshot of runID.
func (sm *StreamManager) Forget(runID string) {
	sm.lastMu.Lock()
	delete(sm.last, runID)
	sm.lastMu.Unlock()
}
