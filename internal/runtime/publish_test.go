package runtime_test

import (
	"context"
	"testing"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/runtime"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/adapters/memory"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_HydrationRestoresSnapshot(t *testing.T) {
	store := memory.NewStore()
	sc := mustScenario(t, "branch", branchDoc)

	first := newController(t, sc, "run-h", runtime.WithStore(store))
	activate(t, first)
	dispatch(t, first, domain.Choose("Yes", "yes"))
	want := first.State()
	require.NoError(t, first.Close())

	second := newController(t, sc, "run-h", runtime.WithStore(store))
	activate(t, second)

	assert.Equal(t, want, second.State())
}

func TestController_HydrationPrefersSnapshotOverInitialState(t *testing.T) {
	store := memory.NewStore()
	sc := mustScenario(t, "branch", branchDoc)

	saved := domain.NewRunState("run-p", "no")
	saved.Steps = append(saved.Steps, domain.Step{ID: "no#0", Role: domain.RoleBot, Text: "Okay"})
	require.NoError(t, store.Save(context.Background(), "run-p", saved))

	c := newController(t, sc, "run-p",
		runtime.WithStore(store),
		runtime.WithInitialState(&domain.RunState{CurrentNodeID: "yes"}))
	activate(t, c)

	st := c.State()
	assert.Equal(t, "no", st.CurrentNodeID)
	assert.Equal(t, []string{"Okay"}, stepTexts(st.Steps))
	assert.Equal(t, "branch", st.ScenarioKey)
}

func TestController_HydrationFromUnknownNodeRestartsAtRoot(t *testing.T) {
	store := memory.NewStore()
	require.NoError(t, store.Save(context.Background(), "run-u", domain.NewRunState("run-u", "removed")))

	c := newController(t, mustScenario(t, "branch", branchDoc), "run-u", runtime.WithStore(store))
	activate(t, c)

	st := c.State()
	assert.Equal(t, "ask", st.CurrentNodeID)
	assert.Equal(t, []string{"Continue?"}, stepTexts(st.Steps))

	saved, err := store.Load(context.Background(), "run-u")
	require.NoError(t, err)
	assert.Equal(t, "ask", saved.CurrentNodeID)
}

func TestController_PristineRunIsNotPersisted(t *testing.T) {
	sc := mustScenario(t, "delay", `{
		"nodes": [{"id": "pause", "type": "delay", "data": {"duration": 60000}}],
		"edges": []
	}`)
	store := memory.NewStore()
	rec := &recorder{}
	c := newController(t, sc, "run-pristine", runtime.WithStore(store), runtime.WithCallbacks(rec.callbacks()))

	require.NoError(t, c.Activate(context.Background()))
	assert.True(t, c.Pending())
	require.NoError(t, c.Close())

	progress, _, _ := rec.counts()
	assert.Zero(t, progress)
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestController_ProgressIsDeduplicated(t *testing.T) {
	rec := &recorder{}
	c := newController(t, mustScenario(t, "form", formDoc), "run-dedup", runtime.WithCallbacks(rec.callbacks()))
	activate(t, c)

	progress, _, _ := rec.counts()
	assert.Equal(t, 1, progress)

	dispatch(t, c, domain.Action{Type: domain.ActionSetFormValue, Field: "name", Value: "Kim"})
	dispatch(t, c, domain.Action{Type: domain.ActionSetFormValue, Field: "name", Value: "Kim"})

	progress, _, _ = rec.counts()
	assert.Equal(t, 2, progress)

	last := rec.lastProgress()
	assert.Equal(t, "run-dedup", last.RunID)
	assert.Equal(t, "f", last.CurrentNodeID)
	assert.Equal(t, "Kim", last.FormValues["name"])
}

func TestController_HistoryIsAppendedOnce(t *testing.T) {
	sc := mustScenario(t, "hist", `{
		"title": "History",
		"nodes": [{"id": "hello", "type": "message", "data": {"content": "Hi {{name}}"}}],
		"edges": []
	}`)
	store := memory.NewStore()
	rec := &recorder{}
	c := newController(t, sc, "run-hist",
		runtime.WithStore(store),
		runtime.WithCallbacks(rec.callbacks()),
		runtime.WithInitialState(&domain.RunState{CurrentNodeID: "hello", SlotValues: map[string]any{"name": "Kim"}}))
	activate(t, c)
	dispatch(t, c, domain.Continue())

	_, history, _ := rec.counts()
	require.Equal(t, 1, history)
	rec.mu.Lock()
	h := rec.history[0]
	rec.mu.Unlock()
	assert.Equal(t, "run-hist", h.RunID)
	assert.Equal(t, "hist", h.ScenarioKey)
	assert.Equal(t, "History", h.ScenarioTitle)
	assert.Equal(t, []string{"Hi Kim"}, stepTexts(h.Steps))

	last := rec.lastProgress()
	assert.True(t, last.Finished)
	require.NoError(t, c.Close())

	// Restoring the finished run does not report the history again.
	again := &recorder{}
	restored := newController(t, sc, "run-hist", runtime.WithStore(store), runtime.WithCallbacks(again.callbacks()))
	activate(t, restored)
	assert.True(t, restored.State().Finished)
	_, history, _ = again.counts()
	assert.Zero(t, history)
}

func TestController_ResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := &recorder{}
	c := newController(t, mustScenario(t, "branch", branchDoc), "run-reset",
		runtime.WithStore(store), runtime.WithCallbacks(rec.callbacks()))
	activate(t, c)
	dispatch(t, c, domain.Choose("Yes", "yes"))

	require.NoError(t, c.Reset(ctx))
	settle(t, c)
	once := c.State()

	require.NoError(t, c.Reset(ctx))
	settle(t, c)
	twice := c.State()

	assert.Equal(t, once, twice)
	assert.Equal(t, "ask", twice.CurrentNodeID)
	assert.Equal(t, []string{"Continue?"}, stepTexts(twice.Steps))
	assert.False(t, twice.Finished)

	_, err := store.Load(ctx, "run-reset")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	_, _, resets := rec.counts()
	assert.Equal(t, 2, resets)

	// The run is usable and persisted again after a reset.
	dispatch(t, c, domain.Choose("No", "no"))
	saved, err := store.Load(ctx, "run-reset")
	require.NoError(t, err)
	assert.Equal(t, "no", saved.CurrentNodeID)
}

func TestController_ResetBeforeActivate(t *testing.T) {
	c := newController(t, mustScenario(t, "greeting", greetingDoc), "run-r0")
	require.NoError(t, c.Reset(context.Background()))
	settle(t, c)

	assert.Equal(t, []string{"Hello"}, stepTexts(c.State().Steps))
	dispatch(t, c, domain.Continue())
	assert.Equal(t, "bye", c.State().CurrentNodeID)
}

func TestController_RunsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sc := mustScenario(t, "branch", branchDoc)

	a := newController(t, sc, "run-a", runtime.WithStore(store))
	b := newController(t, sc, "run-b", runtime.WithStore(store))
	activate(t, a)
	activate(t, b)

	dispatch(t, a, domain.Choose("Yes", "yes"))

	assert.Equal(t, "yes", a.State().CurrentNodeID)
	assert.Equal(t, "ask", b.State().CurrentNodeID)

	savedA, err := store.Load(ctx, "run-a")
	require.NoError(t, err)
	savedB, err := store.Load(ctx, "run-b")
	require.NoError(t, err)
	assert.Equal(t, "yes", savedA.CurrentNodeID)
	assert.Equal(t, "ask", savedB.CurrentNodeID)

	require.NoError(t, b.Reset(ctx))
	settle(t, b)
	_, err = store.Load(ctx, "run-a")
	assert.NoError(t, err)
}
