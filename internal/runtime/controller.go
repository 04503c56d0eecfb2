package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/logging"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/graph"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/template"
	"github.com/google/uuid"
)

// Controller executes one run of a scenario. It is safe for concurrent use.
//
// All state changes happen under mu. Automatic nodes (setSlot, api, llm,
// delay) are driven by the controller itself; at most one asynchronous runner
// is pending at a time and user actions are rejected with domain.ErrRunBusy
// until it settles.
type Controller struct {
	scenario *domain.Scenario
	root     *domain.Node
	runID    string

	logger           *slog.Logger
	store            ports.RunStore
	client           ports.HTTPDoer
	streamer         ports.TextStreamer
	systemPrompt     string
	callbacks        domain.HostCallbacks
	hooks            domain.LifecycleHooks
	initial          *domain.RunState
	strictAPIFailure bool
	now              func() time.Time

	// ctx is the parent of every runner context; stop aborts them all.
	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu       sync.Mutex
	state    *domain.RunState
	hydrated bool
	closed   bool
	pending  *token
	seq      uint64
	queue    []emission
	draining bool
	busy     bool
	idle     chan struct{}

	// Owned by the single drain goroutine.
	lastSignature string
	historySent   bool
	persisted     bool
}

// token identifies the pending runner. Cancelling it aborts the runner's I/O.
type token struct {
	seq    uint64
	nodeID string
	cancel context.CancelFunc
}

// NewController prepares a run of sc. The run is inert until Activate.
// An empty runID gets a generated one.
func NewController(sc *domain.Scenario, runID string, opts ...Option) (*Controller, error) {
	if sc == nil {
		return nil, domain.ErrEmptyScenario
	}
	root := graph.Root(sc.Nodes, sc.Edges)
	if root == nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Key, domain.ErrEmptyScenario)
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	c := &Controller{
		scenario: sc,
		root:     root,
		runID:    runID,
		logger:   logging.NewNop(),
		client:   &http.Client{},
		now:      time.Now,
		idle:     make(chan struct{}),
	}
	close(c.idle)
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("run_id", runID)
	c.ctx, c.stop = context.WithCancel(context.Background())
	return c, nil
}

// RunID returns the id the run is persisted under.
func (c *Controller) RunID() string {
	return c.runID
}

// Scenario returns the graph this run executes.
func (c *Controller) Scenario() *domain.Scenario {
	return c.scenario
}

// Activate hydrates the run (once) and drives it until it needs user input.
// Hydration prefers the persisted snapshot, then the initial state option,
// then a fresh state at the root node.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrRunClosed
	}
	if c.hydrated {
		c.mu.Unlock()
		return nil
	}

	h := c.hydrate(ctx)
	c.state = h.state
	c.hydrated = true

	c.enqueue(emission{
		kind:        emitHydrated,
		ctx:         ctx,
		persisted:   h.existed,
		historySent: h.restored && h.state.Finished,
	})

	if !c.state.Finished {
		node, _ := c.scenario.Node(c.state.CurrentNodeID)
		c.enter(ctx, node, !h.restored && len(c.state.Steps) == 0)
	}
	c.drive(ctx)
	c.unlockAndPublish(ctx)
	return nil
}

// Dispatch applies one user action to the current node, then drives the run
// until it needs user input again.
func (c *Controller) Dispatch(ctx context.Context, a domain.Action) error {
	c.mu.Lock()
	if err := c.checkDispatchable(); err != nil {
		c.mu.Unlock()
		return err
	}

	node, ok := c.scenario.Node(c.state.CurrentNodeID)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: current node %q is not in the scenario", domain.ErrUnexpectedAction, c.state.CurrentNodeID)
	}

	if err := c.apply(ctx, node, a); err != nil {
		c.mu.Unlock()
		return err
	}
	c.drive(ctx)
	c.unlockAndPublish(ctx)
	return nil
}

func (c *Controller) checkDispatchable() error {
	switch {
	case c.closed:
		return domain.ErrRunClosed
	case !c.hydrated:
		return domain.ErrNotHydrated
	case c.state.Finished:
		return domain.ErrRunFinished
	case c.pending != nil:
		return domain.ErrRunBusy
	}
	return nil
}

// Reset returns the run to the root node, clears its steps and values,
// deletes the persisted snapshot and notifies the host. A pending runner is
// cancelled and its result discarded. Nothing is persisted or reported for
// the reset itself; the next settled transition is. Resetting an unhydrated
// run hydrates it at the root.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrRunClosed
	}
	c.cancelPending()
	c.dropQueuedSnapshots()
	c.hydrated = true
	c.state = c.freshState()
	c.enqueue(emission{kind: emitReset, ctx: ctx})
	c.logger.Debug("run reset")

	c.enter(ctx, c.root, true)
	c.drive(ctx)
	c.checkIdle()
	c.mu.Unlock()
	return nil
}

// State returns a copy of the current snapshot, or nil before Activate.
func (c *Controller) State() *domain.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Transcript returns the steps with templates resolved against the current slots.
func (c *Controller) Transcript() []domain.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil
	}
	return renderSteps(c.state.Steps, c.state.SlotValues)
}

// FormOptions returns the choices of a form element. Options held in a slot
// (optionsSlot) take precedence over static ones.
func (c *Controller) FormOptions(el domain.FormElement) []any {
	if el.OptionsSlot == "" {
		return append([]any(nil), el.Options...)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil
	}
	v, ok := template.Lookup(c.state.SlotValues, el.OptionsSlot)
	if !ok {
		return nil
	}
	if list, ok := v.([]any); ok {
		return append([]any(nil), list...)
	}
	return []any{v}
}

// Pending reports whether an automatic runner is in flight.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Wait blocks until no runner is pending and every queued snapshot was
// published.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any pending runner and waits for it, and for queued
// publications, to finish. The controller cannot be used afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelPending()
	c.checkIdle()
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
	return nil
}

// hydration is the outcome of restoring a run.
type hydration struct {
	state    *domain.RunState
	restored bool // taken from a persisted snapshot
	existed  bool // a snapshot was found, even if unusable
}

func (c *Controller) hydrate(ctx context.Context) hydration {
	var h hydration

	if c.store != nil {
		st, err := c.store.Load(ctx, c.runID)
		switch {
		case err == nil && st != nil:
			h.existed = true
			if _, ok := c.scenario.Node(st.CurrentNodeID); ok {
				h.state = c.normalize(st)
				h.restored = true
				c.logger.Debug("run restored from snapshot", "node_id", st.CurrentNodeID)
				return h
			}
			c.logger.Warn("snapshot points at an unknown node, restarting at root", "node_id", st.CurrentNodeID)
		case errors.Is(err, domain.ErrRunNotFound):
		default:
			c.logger.Error("failed to load run snapshot, starting fresh", "err", err)
		}
	}

	if c.initial != nil {
		st := c.initial.Clone()
		if _, ok := c.scenario.Node(st.CurrentNodeID); !ok {
			st.CurrentNodeID = c.root.ID
		}
		h.state = c.normalize(st)
		return h
	}

	h.state = c.freshState()
	return h
}

func (c *Controller) freshState() *domain.RunState {
	return c.normalize(domain.NewRunState(c.runID, c.root.ID))
}

func (c *Controller) normalize(st *domain.RunState) *domain.RunState {
	st.RunID = c.runID
	st.ScenarioKey = c.scenario.Key
	st.ScenarioTitle = c.scenario.Title
	if st.Steps == nil {
		st.Steps = []domain.Step{}
	}
	if st.SlotValues == nil {
		st.SlotValues = make(map[string]any)
	}
	if st.FormValues == nil {
		st.FormValues = make(map[string]any)
	}
	return st
}

// cancelPending aborts the in-flight runner, if any. Called with mu held.
func (c *Controller) cancelPending() {
	if c.pending == nil {
		return
	}
	c.logger.Debug("cancelling pending runner", "node_id", c.pending.nodeID, "seq", c.pending.seq)
	c.pending.cancel()
	c.pending = nil
}

// checkIdle releases Wait callers once nothing is pending or queued.
// Called with mu held.
func (c *Controller) checkIdle() {
	if c.busy && c.pending == nil && !c.draining {
		c.busy = false
		close(c.idle)
	}
}

func (c *Controller) markBusy() {
	if !c.busy {
		c.busy = true
		c.idle = make(chan struct{})
	}
}

func renderSteps(steps []domain.Step, slots map[string]any) []domain.Step {
	out := make([]domain.Step, len(steps))
	for i, s := range steps {
		s.Text = template.Resolve(s.Text, slots)
		out[i] = s
	}
	return out
}
