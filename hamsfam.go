package hamsfam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/logging"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/runtime"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/session"
)

// ErrRunConflict is returned when a run id is already open on another scenario.
var ErrRunConflict = errors.New("run is open on a different scenario")

// ErrNotWatchable is returned by Watch when the loader cannot report changes.
var ErrNotWatchable = errors.New("scenario loader does not support watching")

// Run is one open execution of a scenario.
type Run = runtime.Controller

// Engine is the high-level entry point of the library. It loads scenarios,
// opens runs on them and keeps the open runs in a registry keyed by run id.
type Engine struct {
	loader           ports.ScenarioLoader
	store            ports.RunStore
	locker           ports.DistributedLocker
	client           ports.HTTPDoer
	streamer         ports.TextStreamer
	systemPrompt     string
	strictAPIFailure bool
	hooks            domain.LifecycleHooks
	callbacks        []domain.HostCallbacks
	logger           *slog.Logger

	mu     sync.Mutex
	runs   map[string]*Run
	closed bool
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore persists run snapshots; runs are resumed from it by id.
func WithStore(store ports.RunStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes snapshot access to a run across replicas.
// It only has an effect together with WithStore.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithHTTPClient sets the client used by api nodes.
func WithHTTPClient(client ports.HTTPDoer) Option {
	return func(e *Engine) {
		e.client = client
	}
}

// WithTextStreamer sets the generation backend used by llm nodes.
func WithTextStreamer(streamer ports.TextStreamer) Option {
	return func(e *Engine) {
		e.streamer = streamer
	}
}

// WithSystemPrompt is sent along with every llm prompt.
func WithSystemPrompt(prompt string) Option {
	return func(e *Engine) {
		e.systemPrompt = prompt
	}
}

// WithStrictAPIFailure makes a failed api call without an onFail edge end the run.
func WithStrictAPIFailure(strict bool) Option {
	return func(e *Engine) {
		e.strictAPIFailure = strict
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithCallbacks adds a host output surface. Several may be registered; they
// are called in registration order.
func WithCallbacks(cb domain.HostCallbacks) Option {
	return func(e *Engine) {
		e.callbacks = append(e.callbacks, cb)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes an Engine reading scenarios from loader.
func New(loader ports.ScenarioLoader, opts ...Option) (*Engine, error) {
	if loader == nil {
		return nil, fmt.Errorf("a scenario loader is required")
	}
	e := &Engine{
		loader: loader,
		runs:   make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.store != nil && e.locker != nil {
		e.store = session.NewManager(e.store,
			session.WithLocker(e.locker),
			session.WithLogger(e.logger),
		)
	}
	return e, nil
}

// Loader returns the scenario source of the engine.
func (e *Engine) Loader() ports.ScenarioLoader {
	return e.loader
}

// Store returns the snapshot store, or nil when runs are not persisted.
func (e *Engine) Store() ports.RunStore {
	return e.store
}

// Scenarios lists the keys of the available scenarios.
func (e *Engine) Scenarios(ctx context.Context) ([]string, error) {
	return e.loader.List(ctx)
}

// Scenario loads one scenario graph.
func (e *Engine) Scenario(ctx context.Context, key string) (*domain.Scenario, error) {
	return e.loader.Load(ctx, key)
}

// Watch reports changes to the scenario source. It fails when the loader
// cannot be watched.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.loader.(interface {
		Watch(context.Context) (<-chan string, error)
	}); ok {
		return w.Watch(ctx)
	}
	return nil, ErrNotWatchable
}

// RunOption configures a single run opened by Start.
type RunOption func(*runConfig)

type runConfig struct {
	initial *domain.RunState
}

// WithInitialState seeds a run that has no persisted snapshot.
func WithInitialState(state *domain.RunState) RunOption {
	return func(c *runConfig) {
		c.initial = state
	}
}

// WithSlots seeds the slot values of a run that has no persisted snapshot.
func WithSlots(slots map[string]any) RunOption {
	return func(c *runConfig) {
		st := domain.NewRunState("", "")
		st.SlotValues = domain.CloneValues(slots)
		c.initial = st
	}
}

// Start opens a run of the scenario and drives it until it needs user input.
// An empty runID gets a generated one. Starting a run that is already open
// returns it unchanged; a persisted snapshot for runID is resumed.
func (e *Engine) Start(ctx context.Context, scenarioKey, runID string, opts ...RunOption) (*Run, error) {
	if runID != "" {
		e.mu.Lock()
		run, ok := e.runs[runID]
		e.mu.Unlock()
		if ok {
			if run.Scenario().Key != scenarioKey {
				return nil, fmt.Errorf("%w: %q is on %q", ErrRunConflict, runID, run.Scenario().Key)
			}
			return run, nil
		}
	}

	sc, err := e.loader.Load(ctx, scenarioKey)
	if err != nil {
		return nil, err
	}

	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	run, err := runtime.NewController(sc, runID, e.controllerOptions(sc, cfg)...)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		_ = run.Close()
		return nil, domain.ErrRunClosed
	}
	if existing, ok := e.runs[run.RunID()]; ok {
		// Lost a race with a concurrent Start of the same id.
		e.mu.Unlock()
		_ = run.Close()
		if existing.Scenario().Key != scenarioKey {
			return nil, fmt.Errorf("%w: %q is on %q", ErrRunConflict, runID, existing.Scenario().Key)
		}
		return existing, nil
	}
	e.runs[run.RunID()] = run
	e.mu.Unlock()

	if err := run.Activate(ctx); err != nil {
		e.forget(run)
		return nil, err
	}
	e.logger.Info("run opened", "run_id", run.RunID(), "scenario", sc.Key)
	return run, nil
}

func (e *Engine) controllerOptions(sc *domain.Scenario, cfg runConfig) []runtime.Option {
	opts := []runtime.Option{
		runtime.WithLogger(e.logger.With("scenario", sc.Key)),
		runtime.WithHTTPClient(e.client),
		runtime.WithTextStreamer(e.streamer),
		runtime.WithSystemPrompt(e.systemPrompt),
		runtime.WithStrictAPIFailure(e.strictAPIFailure),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithCallbacks(e.fanOut()),
	}
	if e.store != nil {
		opts = append(opts, runtime.WithStore(e.store))
	}
	if cfg.initial != nil {
		opts = append(opts, runtime.WithInitialState(cfg.initial))
	}
	return opts
}

// fanOut merges the registered callbacks into one surface.
func (e *Engine) fanOut() domain.HostCallbacks {
	switch len(e.callbacks) {
	case 0:
		return domain.HostCallbacks{}
	case 1:
		return e.callbacks[0]
	}
	cbs := slices.Clone(e.callbacks)
	return domain.HostCallbacks{
		OnProgress: func(ctx context.Context, ev *domain.ProgressEvent) {
			for _, cb := range cbs {
				if cb.OnProgress != nil {
					cb.OnProgress(ctx, ev)
				}
			}
		},
		OnHistoryAppend: func(ctx context.Context, ev *domain.HistoryEvent) {
			for _, cb := range cbs {
				if cb.OnHistoryAppend != nil {
					cb.OnHistoryAppend(ctx, ev)
				}
			}
		},
		OnResetRun: func(ctx context.Context, runID string) {
			for _, cb := range cbs {
				if cb.OnResetRun != nil {
					cb.OnResetRun(ctx, runID)
				}
			}
		},
	}
}

// Run returns the open run with runID. A run that is not open but has a
// persisted snapshot is reopened on the scenario recorded in it.
func (e *Engine) Run(ctx context.Context, runID string) (*Run, error) {
	e.mu.Lock()
	run, ok := e.runs[runID]
	e.mu.Unlock()
	if ok {
		return run, nil
	}

	if e.store == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	st, err := e.store.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	if st.ScenarioKey == "" {
		return nil, fmt.Errorf("%w: snapshot of %s has no scenario", domain.ErrRunNotFound, runID)
	}
	return e.Start(ctx, st.ScenarioKey, runID)
}

// Dispatch applies a user action to an open or persisted run.
func (e *Engine) Dispatch(ctx context.Context, runID string, a domain.Action) error {
	run, err := e.Run(ctx, runID)
	if err != nil {
		return err
	}
	return run.Dispatch(ctx, a)
}

// Reset returns a run to the root node of its scenario.
func (e *Engine) Reset(ctx context.Context, runID string) error {
	run, err := e.Run(ctx, runID)
	if err != nil {
		return err
	}
	return run.Reset(ctx)
}

// Runs lists the open runs together with the persisted ones.
func (e *Engine) Runs(ctx context.Context) ([]string, error) {
	ids := make(map[string]struct{})

	e.mu.Lock()
	for id := range e.runs {
		ids[id] = struct{}{}
	}
	e.mu.Unlock()

	if e.store != nil {
		stored, err := e.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		for _, id := range stored {
			ids[id] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(ids)), nil
}

// Close closes an open run. Its snapshot, if any, is kept.
func (e *Engine) Close(runID string) error {
	e.mu.Lock()
	run, ok := e.runs[runID]
	delete(e.runs, runID)
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return run.Close()
}

// Delete closes a run and removes its snapshot.
func (e *Engine) Delete(ctx context.Context, runID string) error {
	if err := e.Close(runID); err != nil {
		return err
	}
	if e.store == nil {
		return nil
	}
	return e.store.Delete(ctx, runID)
}

// Shutdown closes every open run. The engine rejects new runs afterwards.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	e.closed = true
	runs := e.runs
	e.runs = make(map[string]*Run)
	e.mu.Unlock()

	var errs []error
	for _, run := range runs {
		errs = append(errs, run.Close())
	}
	return errors.Join(errs...)
}

func (e *Engine) forget(run *Run) {
	e.mu.Lock()
	if e.runs[run.RunID()] == run {
		delete(e.runs, run.RunID())
	}
	e.mu.Unlock()
	_ = run.Close()
}
