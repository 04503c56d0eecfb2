package runtime

import (
	"context"
	"encoding/json"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/google/uuid"
)

type emissionKind int

const (
	emitSnapshot emissionKind = iota
	emitHydrated
	emitReset
)

// emission is one entry of the publication queue. Entries are queued under
// mu, so the queue follows the order in which the run changed.
type emission struct {
	kind  emissionKind
	ctx   context.Context
	state *domain.RunState

	// Set for emitHydrated.
	persisted   bool
	historySent bool
}

// unlockAndPublish queues the current state for publication and releases mu.
func (c *Controller) unlockAndPublish(ctx context.Context) {
	c.enqueue(emission{kind: emitSnapshot, ctx: ctx, state: c.state.Clone()})
	c.checkIdle()
	c.mu.Unlock()
}

// enqueue appends e and makes sure a drainer is running. Called with mu held.
func (c *Controller) enqueue(e emission) {
	e.ctx = context.WithoutCancel(e.ctx)
	c.queue = append(c.queue, e)
	if c.draining {
		return
	}
	c.draining = true
	c.markBusy()
	c.wg.Add(1)
	go c.drain()
}

// dropQueuedSnapshots discards snapshots not yet published, so a reset is
// never followed by a stale write. Called with mu held.
func (c *Controller) dropQueuedSnapshots() {
	kept := c.queue[:0]
	for _, e := range c.queue {
		if e.kind != emitSnapshot {
			kept = append(kept, e)
		}
	}
	if dropped := len(c.queue) - len(kept); dropped > 0 {
		c.logger.Debug("dropping snapshots queued before reset", "count", dropped)
	}
	c.queue = kept
}

// drain publishes queued entries one at a time until the queue is empty.
// Only one drainer runs at a time; callbacks run without any lock held.
func (c *Controller) drain() {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.draining = false
			c.checkIdle()
			c.mu.Unlock()
			return
		}
		e := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		switch e.kind {
		case emitHydrated:
			c.persisted = e.persisted
			c.historySent = e.historySent
			c.lastSignature = ""
		case emitReset:
			c.clearPublished(e.ctx)
		case emitSnapshot:
			c.publish(e.ctx, e.state)
		}
	}
}

// clearPublished forgets everything published for the run and deletes the
// persisted snapshot.
func (c *Controller) clearPublished(ctx context.Context) {
	c.lastSignature = ""
	c.historySent = false
	c.persisted = false

	if c.store != nil {
		if err := c.store.Delete(ctx, c.runID); err != nil {
			c.logger.Error("failed to delete run snapshot", "err", err)
		}
	}
	if c.callbacks.OnResetRun != nil {
		c.callbacks.OnResetRun(ctx, c.runID)
	}
}

// publish persists st and reports progress, then appends the history once
// the run is finished. Nothing is written for a pristine run that was never
// persisted, or for a state identical to the previous one.
func (c *Controller) publish(ctx context.Context, st *domain.RunState) {
	if !c.persisted && len(st.Steps) == 0 && len(st.SlotValues) == 0 && len(st.FormValues) == 0 {
		return
	}

	sig := c.signature(st)
	if sig == c.lastSignature {
		return
	}
	c.lastSignature = sig

	if c.store != nil {
		if err := c.store.Save(ctx, c.runID, st); err != nil {
			c.logger.Error("failed to persist run snapshot", "err", err)
		} else {
			c.persisted = true
		}
	}

	if c.callbacks.OnProgress != nil {
		c.callbacks.OnProgress(ctx, &domain.ProgressEvent{
			RunID:         c.runID,
			Steps:         st.Steps,
			Finished:      st.Finished,
			CurrentNodeID: st.CurrentNodeID,
			SlotValues:    st.SlotValues,
			FormValues:    st.FormValues,
		})
	}

	if st.Finished && len(st.Steps) > 0 && !c.historySent && c.callbacks.OnHistoryAppend != nil {
		c.historySent = true
		c.callbacks.OnHistoryAppend(ctx, &domain.HistoryEvent{
			RunID:         c.runID,
			ScenarioKey:   st.ScenarioKey,
			ScenarioTitle: st.ScenarioTitle,
			Steps:         renderSteps(st.Steps, st.SlotValues),
		})
	}
}

// signature is the canonical JSON of the published fields. encoding/json
// writes map keys sorted, so insertion order never produces a false change.
func (c *Controller) signature(st *domain.RunState) string {
	b, err := json.Marshal(struct {
		RunID       string         `json:"runId"`
		ScenarioKey string         `json:"scenarioKey"`
		NodeID      string         `json:"nodeId"`
		Finished    bool           `json:"finished"`
		LLMDone     bool           `json:"llmDone"`
		Steps       []domain.Step  `json:"steps"`
		Slots       map[string]any `json:"slotValues"`
		Forms       map[string]any `json:"formValues"`
	}{c.runID, st.ScenarioKey, st.CurrentNodeID, st.Finished, st.LLMDone, st.Steps, st.SlotValues, st.FormValues})
	if err != nil {
		c.logger.Warn("run state is not JSON encodable, publishing without de-duplication", "err", err)
		return uuid.NewString()
	}
	return string(b)
}
