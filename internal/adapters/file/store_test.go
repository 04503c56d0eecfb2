package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/adapters/file"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunStoreContract(t, file.NewStore(t.TempDir()))
}

func TestFileStore_WritesJSONFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.NewStore(dir)
	ctx := context.Background()

	state := domain.NewRunState("run-1", "start")
	state.SlotValues["count"] = 42
	require.NoError(t, store.Save(ctx, "run-1", state))

	_, err := os.Stat(filepath.Join(dir, "run-1.json"))
	require.NoError(t, err)

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, float64(42), loaded.SlotValues["count"])

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_ListIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.NewStore(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "b", domain.NewRunState("b", "start")))
	require.NoError(t, store.Save(ctx, "a", domain.NewRunState("a", "start")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-c-123"), []byte("x"), 0o644))

	runs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, runs)
}

func TestFileStore_ListMissingDirectory(t *testing.T) {
	runs, err := file.NewStore(filepath.Join(t.TempDir(), "missing")).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store := file.NewStore(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "../escape", "a/b", ".hidden"} {
		err := store.Save(ctx, id, domain.NewRunState(id, "start"))
		assert.ErrorIs(t, err, file.ErrInvalidRunID, id)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))

	_, err := file.NewStore(dir).Load(context.Background(), "bad")
	assert.ErrorContains(t, err, "failed to unmarshal run state")
}
