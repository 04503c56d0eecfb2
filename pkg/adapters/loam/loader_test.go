package loam

import (
	"context"
	"testing"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/testutils"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports/tests"
	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const greetingDoc = `---
title: Greeting
nodes:
  - id: start
    type: message
    data:
      content: Hello {{name}}
  - id: ask
    type: branch
    data:
      content: Again?
      replies:
        - display: "Yes"
          value: "yes"
edges:
  - id: e1
    source: start
    target: ask
  - id: e2
    source: ask
    target: start
    sourceHandle: "yes"
---
# Greeting

Says hello and offers to repeat.`

func TestLoader_Contract(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, core.Document{ID: "greeting.md", Content: greetingDoc}))
	testutils.WriteFiles(t, tmpDir, map[string]string{"survey.json": `{
  "title": "Survey",
  "nodes": [{"id": "q", "type": "form", "data": {"title": "Tell us", "elements": [{"name": "age", "type": "input"}]}}],
  "edges": []
}`})

	loader := New(loam.NewTypedRepository[ScenarioMetadata](repo))
	tests.ScenarioLoaderContractTest(t, loader, map[string]int{
		"greeting": 2,
		"survey":   1,
	})
}

func TestLoader_DecodesScenario(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, core.Document{ID: "greeting.md", Content: greetingDoc}))

	loader := New(loam.NewTypedRepository[ScenarioMetadata](repo))
	sc, err := loader.Load(ctx, "greeting")
	require.NoError(t, err)

	assert.Equal(t, "greeting", sc.Key)
	assert.Equal(t, "Greeting", sc.Title)
	require.Len(t, sc.Edges, 2)
	assert.Equal(t, "yes", sc.Edges[1].SourceHandle)

	ask, ok := sc.Node("ask")
	require.True(t, ok)
	branch, ok := ask.Data.(domain.BranchData)
	require.True(t, ok)
	assert.Equal(t, "yes", branch.Replies[0].Value)
}

func TestLoader_TitleFallsBackToHeading(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)
	ctx := context.Background()
	doc := "---\nnodes:\n  - id: a\n    type: message\n    data:\n      content: hi\n---\n# Untitled flow\nbody"
	require.NoError(t, repo.Save(ctx, core.Document{ID: "untitled.md", Content: doc}))

	sc, err := New(loam.NewTypedRepository[ScenarioMetadata](repo)).Load(ctx, "untitled")
	require.NoError(t, err)
	assert.Equal(t, "Untitled flow", sc.Title)
}

func TestLoader_List_DetectsCollisions(t *testing.T) {
	tmpDir, repo := testutils.SetupTestRepo(t)

	testutils.WriteFiles(t, tmpDir, map[string]string{
		"foo.md":   "---\nkey: foo\nnodes: []\n---\nExplicit key",
		"foo.json": `{"key": "foo", "nodes": []}`,
	})

	loader := New(loam.NewTypedRepository[ScenarioMetadata](repo))
	_, err := loader.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collision detected")
	assert.Contains(t, err.Error(), "foo")
}

func TestNormalize(t *testing.T) {
	in := []any{map[any]any{"id": "a", "data": map[any]any{"n": 1}}}
	out := normalize(in).([]any)
	m, ok := out[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"n": 1}, m["data"])
}
