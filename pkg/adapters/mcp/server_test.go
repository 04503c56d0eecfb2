package mcp

import (
	"context"
	"testing"

	"github.com/Young-Hyun-Ham/hamsfam-sub000"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/adapters/memory"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const branchDoc = `{
	"nodes": [
		{"id": "ask", "type": "branch", "data": {"content": "Coffee or tea, {{name}}?", "replies": [
			{"display": "Coffee", "value": "coffee"},
			{"display": "Tea", "value": "tea"}
		]}},
		{"id": "coffee", "type": "message", "data": {"content": "Coffee it is"}},
		{"id": "tea", "type": "message", "data": {"content": "Tea it is"}}
	],
	"edges": [
		{"id": "e1", "source": "ask", "target": "coffee", "sourceHandle": "coffee"},
		{"id": "e2", "source": "ask", "target": "tea", "sourceHandle": "tea"}
	]
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	loader, err := memory.NewFromJSON(map[string]string{"drinks": branchDoc})
	require.NoError(t, err)
	eng, err := hamsfam.New(loader)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Shutdown() })
	return NewServer(eng)
}

func TestNewServer(t *testing.T) {
	s := newTestServer(t)
	assert.NotNil(t, s.MCPServer())
}

func TestTools_StartDispatchGet(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	resp, err := s.handleStart(ctx, req, StartArgs{ScenarioKey: "drinks", RunID: "r1", Slots: `{"name":"Kim"}`})
	require.NoError(t, err)
	assert.Equal(t, "ask", resp.CurrentNodeID)
	assert.Equal(t, string(domain.NodeTypeBranch), resp.NodeType)
	require.Len(t, resp.Transcript, 1)
	assert.Equal(t, "Coffee or tea, Kim?", resp.Transcript[0].Text)

	resp, err = s.handleDispatch(ctx, req, DispatchArgs{RunID: "r1", Type: "reply", Display: "Tea", Value: "tea"})
	require.NoError(t, err)
	assert.Equal(t, "tea", resp.CurrentNodeID)
	require.Len(t, resp.Transcript, 3)
	assert.Equal(t, domain.RoleUser, resp.Transcript[1].Role)
	assert.Equal(t, "Tea", resp.Transcript[1].Text)

	resp, err = s.handleGet(ctx, req, RunArgs{RunID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "tea", resp.CurrentNodeID)
	assert.False(t, resp.Finished)

	resp, err = s.handleReset(ctx, req, RunArgs{RunID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "ask", resp.CurrentNodeID)
}

func TestTools_Errors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleStart(ctx, req, StartArgs{})
	assert.Error(t, err)

	_, err = s.handleStart(ctx, req, StartArgs{ScenarioKey: "missing"})
	assert.ErrorIs(t, err, domain.ErrScenarioNotFound)

	_, err = s.handleStart(ctx, req, StartArgs{ScenarioKey: "drinks", Slots: "[1]"})
	assert.Error(t, err)

	_, err = s.handleGet(ctx, req, RunArgs{RunID: "nope"})
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	_, err = s.handleStart(ctx, req, StartArgs{ScenarioKey: "drinks", RunID: "r1"})
	require.NoError(t, err)
	_, err = s.handleDispatch(ctx, req, DispatchArgs{RunID: "r1", Type: "continue"})
	assert.ErrorIs(t, err, domain.ErrUnexpectedAction)
}

func TestDispatchArgs_Action(t *testing.T) {
	a, err := DispatchArgs{Type: "continue"}.action()
	require.NoError(t, err)
	assert.Equal(t, domain.Continue(), a)

	a, err = DispatchArgs{Type: "submit", Values: `{"name":"Kim"}`}.action()
	require.NoError(t, err)
	assert.Equal(t, domain.ActionSubmit, a.Type)
	assert.Equal(t, "Kim", a.Values["name"])

	a, err = DispatchArgs{Type: "setFormValue", Field: "age", Value: "30"}.action()
	require.NoError(t, err)
	assert.Equal(t, "age", a.Field)
	assert.Equal(t, "30", a.Value)

	_, err = DispatchArgs{Type: "setFormValue"}.action()
	assert.Error(t, err)

	_, err = DispatchArgs{Type: "submit", Values: "nope"}.action()
	assert.Error(t, err)

	_, err = DispatchArgs{Type: "jump"}.action()
	assert.ErrorIs(t, err, domain.ErrUnexpectedAction)
}

func TestReadScenarioResource(t *testing.T) {
	s := newTestServer(t)

	var req mcp.ReadResourceRequest
	req.Params.URI = "hamsfam://scenarios/drinks"
	contents, err := s.readScenario(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", text.MIMEType)
	assert.Contains(t, text.Text, `"id":"ask"`)

	req.Params.URI = "hamsfam://scenarios/missing"
	_, err = s.readScenario(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrScenarioNotFound)
}
