package ports

import (
	"context"
	"testing"
	"time"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a RunStore implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405.000000")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewRunState(runID, "start")
		state.ScenarioKey = "contract"
		state.SlotValues["foo"] = "bar"
		state.SlotValues["count"] = 42
		state.SlotValues["nested"] = map[string]any{"a": []any{"x"}}
		state.FormValues["age"] = "30"
		state.Steps = append(state.Steps, domain.Step{ID: domain.PromptStepID("start"), Role: domain.RoleBot, Text: "Hi {{foo}}"})

		err := store.Save(ctx, runID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.CurrentNodeID, loaded.CurrentNodeID)
		assert.Equal(t, state.ScenarioKey, loaded.ScenarioKey)
		assert.Equal(t, state.Steps, loaded.Steps)
		assert.Equal(t, "bar", loaded.SlotValues["foo"])
		assert.Equal(t, "30", loaded.FormValues["age"])
		// JSON backed stores turn numbers into float64; only presence is part of the contract.
		assert.NotNil(t, loaded.SlotValues["count"])
		assert.NotNil(t, loaded.SlotValues["nested"])
		assert.False(t, loaded.Finished)
	})

	t.Run("Loaded state is not shared", func(t *testing.T) {
		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		loaded.SlotValues["foo"] = "mutated"

		again, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, "bar", again.SlotValues["foo"])
	})

	t.Run("Overwrite", func(t *testing.T) {
		state := domain.NewRunState(runID, "end")
		state.Finished = true
		require.NoError(t, store.Save(ctx, runID, state))

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, "end", loaded.CurrentNodeID)
		assert.True(t, loaded.Finished)
		assert.Empty(t, loaded.Steps)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, runID, domain.NewRunState(runID, "start"))
		require.NoError(t, err)

		err = store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Load after Delete should return ErrRunNotFound")

		assert.NoError(t, store.Delete(ctx, runID), "Delete of a missing run is a no-op")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, id1, domain.NewRunState(id1, "start"))
		_ = store.Save(ctx, id2, domain.NewRunState(id2, "start"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}
