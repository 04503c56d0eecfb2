package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_UnmarshalBuilderJSON(t *testing.T) {
	raw := `{
		"nodes": [
			{"id": "n1", "type": "message", "data": {"content": "Hello {{name}}"}},
			{"id": "n2", "type": "branch", "data": {"content": "Pick", "replies": [{"display": "Yes", "value": "yes"}]}},
			{"id": "n3", "type": "api", "data": {"url": "http://x/{{id}}", "headers": {"X-Key": "k"}, "responseMapping": [{"slot": "name", "path": "user.name"}]}},
			{"id": "n4", "type": "delay", "data": {"duration": "250"}},
			{"id": "n5", "type": "setSlot", "data": {"assignments": [{"slot": "age", "from": "form", "key": "age"}, {"key": "lang", "value": "ko"}]}},
			{"id": "n6", "type": "scenario", "data": {"label": "Group"}, "parentNode": ""}
		],
		"edges": [{"id": "e1", "source": "n1", "target": "n2", "sourceHandle": null}]
	}`

	var sc domain.Scenario
	require.NoError(t, json.Unmarshal([]byte(raw), &sc))
	require.Len(t, sc.Nodes, 6)

	msg, ok := sc.Nodes[0].Data.(domain.MessageData)
	require.True(t, ok)
	assert.Equal(t, "Hello {{name}}", msg.Content)

	branch := sc.Nodes[1].Data.(domain.BranchData)
	require.Len(t, branch.Replies, 1)
	assert.Equal(t, "yes", branch.Replies[0].Handle())

	api := sc.Nodes[2].Data.(domain.APIData)
	assert.JSONEq(t, `{"X-Key":"k"}`, api.Headers, "object headers are re-encoded as JSON text")
	assert.Equal(t, "user.name", api.ResponseMapping[0].Path)

	delay := sc.Nodes[3].Data.(domain.DelayData)
	assert.Equal(t, 250*time.Millisecond, delay.Wait())

	set := sc.Nodes[4].Data.(domain.SetSlotData)
	assert.False(t, set.Assignments[0].IsShorthand())
	assert.True(t, set.Assignments[1].IsShorthand())

	assert.Equal(t, domain.NodeTypeScenario, sc.Nodes[5].Data.Kind())
	assert.Equal(t, "", sc.Edges[0].SourceHandle)
}

func TestNode_UnknownTypeRejected(t *testing.T) {
	var n domain.Node
	err := json.Unmarshal([]byte(`{"id":"x","type":"carousel","data":{}}`), &n)
	assert.ErrorIs(t, err, domain.ErrUnknownNodeType)
}

func TestNode_MarshalRoundTripsDataShape(t *testing.T) {
	n := domain.Node{ID: "llm", Type: domain.NodeTypeLLM, Data: domain.LLMData{Prompt: "Summarise {{topic}}"}}
	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"llm","type":"llm","data":{"prompt":"Summarise {{topic}}"}}`, string(b))

	var back domain.Node
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, domain.DefaultLLMOutputVar, back.Data.(domain.LLMData).Output())
}

func TestDelayData_Defaults(t *testing.T) {
	assert.Equal(t, domain.DefaultDelay, domain.DelayData{}.Wait())
	zero := int64(0)
	assert.Equal(t, time.Duration(0), domain.DelayData{Duration: &zero}.Wait())
}

func TestDecodeScenario_FromGenericMap(t *testing.T) {
	raw := map[string]any{
		"title": "Onboarding",
		"nodes": []any{
			map[string]any{"id": "a", "type": "message", "data": map[string]any{"content": "hi"}},
			map[string]any{"id": "b", "type": "slotfilling", "data": map[string]any{"slotName": "size"}},
		},
		"edges": []any{
			map[string]any{"id": "e", "source": "a", "target": "b"},
		},
	}

	sc, err := domain.DecodeScenario("onboarding", raw)
	require.NoError(t, err)
	assert.Equal(t, "Onboarding", sc.Title)
	assert.Equal(t, "size", sc.Nodes[1].Data.(domain.SlotFillingData).TargetSlot())

	n, ok := sc.Node("b")
	require.True(t, ok)
	assert.Equal(t, domain.NodeTypeSlotFilling, n.Type)
}

func TestAssignment_NullShorthandIsSkipped(t *testing.T) {
	data, err := domain.DecodeNodeData(domain.NodeTypeSetSlot, map[string]any{
		"assignments": []any{
			map[string]any{"key": "plan", "value": nil},
			map[string]any{"key": "seats", "value": 0},
		},
	})
	require.NoError(t, err)

	set := data.(domain.SetSlotData)
	require.Len(t, set.Assignments, 2)
	assert.False(t, set.Assignments[0].IsShorthand())
	assert.True(t, set.Assignments[1].IsShorthand(), "zero values still assign")
}
