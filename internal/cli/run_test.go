package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Young-Hyun-Ham/hamsfam-sub000"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/internal/presentation/tui"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/adapters/memory"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderDoc = `{
	"nodes": [
		{"id": "welcome", "type": "message", "data": {"content": "Hello {{name}}"}},
		{"id": "ask", "type": "branch", "data": {"content": "Coffee or tea?", "replies": [
			{"display": "Coffee", "value": "coffee"},
			{"display": "Tea", "value": "tea"}
		]}},
		{"id": "sugar", "type": "slotfilling", "data": {"content": "How many sugars?", "slot": "sugar"}},
		{"id": "order", "type": "form", "data": {"title": "Order", "slotKey": "order", "elements": [
			{"name": "size", "type": "input", "label": "Size"},
			{"name": "cup", "type": "dropbox", "options": ["paper", "mug"]}
		]}},
		{"id": "done", "type": "message", "data": {"content": "Enjoy"}},
		{"id": "tea", "type": "message", "data": {"content": "Tea it is"}}
	],
	"edges": [
		{"id": "e1", "source": "welcome", "target": "ask"},
		{"id": "e2", "source": "ask", "target": "sugar", "sourceHandle": "coffee"},
		{"id": "e3", "source": "ask", "target": "tea", "sourceHandle": "tea"},
		{"id": "e4", "source": "sugar", "target": "order"},
		{"id": "e5", "source": "order", "target": "done"}
	]
}`

func newEngine(t *testing.T, opts ...hamsfam.Option) *hamsfam.Engine {
	t.Helper()
	loader, err := memory.NewFromJSON(map[string]string{"coffee": orderDoc})
	require.NoError(t, err)
	eng, err := hamsfam.New(loader, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Shutdown() })
	return eng
}

func execute(t *testing.T, eng *hamsfam.Engine, opts RunOptions, input string) string {
	t.Helper()
	var out bytes.Buffer
	printer := tui.NewPrinter(&out, nil, termenv.WithProfile(termenv.Ascii))
	err := Execute(context.Background(), eng, opts, strings.NewReader(input), &out, printer, nil)
	require.NoError(t, err)
	return out.String()
}

func TestExecute_CompletesScenario(t *testing.T) {
	eng := newEngine(t)
	opts := RunOptions{ScenarioKey: "coffee", RunID: "r1", Slots: map[string]any{"name": "Kim"}}

	out := execute(t, eng, opts, "\n1\ntwo\nLarge\n2\n\n")

	assert.Contains(t, out, "Hello Kim")
	assert.Contains(t, out, "1) Coffee  2) Tea")
	assert.Contains(t, out, "> Coffee")
	assert.Contains(t, out, "How many sugars?")
	assert.Contains(t, out, "Size:")
	assert.Contains(t, out, "cup: 1) paper  2) mug")
	assert.Contains(t, out, "Size: Large")
	assert.Contains(t, out, "Enjoy")
	assert.Contains(t, out, "Finished at 'done' node.")

	run, err := eng.Run(context.Background(), "r1")
	require.NoError(t, err)
	st := run.State()
	assert.True(t, st.Finished)
	assert.Equal(t, "two", st.SlotValues["sugar"])
	assert.Equal(t, map[string]any{"size": "Large", "cup": "mug"}, st.SlotValues["order"])
}

func TestExecute_InvalidChoiceAndQuit(t *testing.T) {
	eng := newEngine(t)
	out := execute(t, eng, RunOptions{ScenarioKey: "coffee", RunID: "r1"}, "\n9\n:quit\n")

	assert.Contains(t, out, "choose one of: 1) Coffee  2) Tea")
	assert.NotContains(t, out, "Finished")

	run, err := eng.Run(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "ask", run.State().CurrentNodeID)
}

func TestExecute_SanitizesInput(t *testing.T) {
	eng := newEngine(t)
	out := execute(t, eng, RunOptions{ScenarioKey: "coffee", RunID: "r1"}, "\n\x1b2\xff\n:q\n")

	assert.Contains(t, out, ErrInvalidUTF8.Error())
	run, err := eng.Run(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "ask", run.State().CurrentNodeID)
}

func TestExecute_ResetAndSlots(t *testing.T) {
	eng := newEngine(t)
	opts := RunOptions{ScenarioKey: "coffee", RunID: "r1", Slots: map[string]any{"name": "Kim"}}
	out := execute(t, eng, opts, "\n:slots\n:reset\n")

	// Reset clears the seeded slots too.
	assert.Equal(t, 2, strings.Count(out, "Hello"))
	assert.Contains(t, out, `"name": "Kim"`)
	assert.Contains(t, out, "Input closed at 'welcome' node.")
}

func TestExecute_JSONMode(t *testing.T) {
	eng := newEngine(t)
	input := `{"type":"continue"}` + "\n" +
		`{"type":"jump"}` + "\n" +
		`{"type":"reply","reply":{"display":"Tea","value":"tea"}}` + "\n"
	out := execute(t, eng, RunOptions{ScenarioKey: "coffee", RunID: "r1", JSON: true}, input)

	var states []domain.RunState
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var st domain.RunState
		require.NoError(t, json.Unmarshal([]byte(line), &st))
		states = append(states, st)
	}
	require.Len(t, states, 4)
	assert.Equal(t, "welcome", states[0].CurrentNodeID)
	assert.Equal(t, "ask", states[1].CurrentNodeID)
	assert.Equal(t, "ask", states[2].CurrentNodeID)
	assert.Equal(t, "tea", states[3].CurrentNodeID)
}

func TestExecute_FreshDiscardsStoredRun(t *testing.T) {
	store := memory.NewStore()
	eng := newEngine(t, hamsfam.WithStore(store))
	ctx := context.Background()

	run, err := eng.Start(ctx, "coffee", "r1")
	require.NoError(t, err)
	require.NoError(t, run.Dispatch(ctx, domain.Continue()))
	require.NoError(t, run.Wait(ctx))

	out := execute(t, eng, RunOptions{ScenarioKey: "coffee", RunID: "r1"}, ":q\n")
	assert.NotContains(t, out, "[enter] to continue")

	execute(t, eng, RunOptions{ScenarioKey: "coffee", RunID: "r1", Fresh: true}, ":q\n")
	run, err = eng.Run(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "welcome", run.State().CurrentNodeID)
}

func TestExecute_WatchUnsupported(t *testing.T) {
	eng := newEngine(t)
	out := execute(t, eng, RunOptions{ScenarioKey: "coffee", RunID: "r1", Watch: true}, ":q\n")
	assert.Contains(t, out, "cannot be watched")
}

// watchLoader makes a memory loader watchable.
type watchLoader struct {
	*memory.Loader
	changes chan string
}

func (w *watchLoader) Watch(context.Context) (<-chan string, error) {
	return w.changes, nil
}

func TestExecute_WatchReloadsRun(t *testing.T) {
	base, err := memory.NewFromJSON(map[string]string{"coffee": orderDoc})
	require.NoError(t, err)
	loader := &watchLoader{Loader: base, changes: make(chan string)}
	eng, err := hamsfam.New(loader, hamsfam.WithStore(memory.NewStore()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Shutdown() })

	pr, pw := io.Pipe()
	var out bytes.Buffer
	printer := tui.NewPrinter(&out, nil, termenv.WithProfile(termenv.Ascii))
	done := make(chan error, 1)
	go func() {
		done <- Execute(context.Background(), eng, RunOptions{ScenarioKey: "coffee", RunID: "r1", Watch: true}, pr, &out, printer, nil)
	}()

	_, err = pw.Write([]byte("\n"))
	require.NoError(t, err)
	loader.changes <- "unrelated"
	loader.changes <- "coffee"
	_, err = pw.Write([]byte(":q\n"))
	require.NoError(t, err)
	require.NoError(t, pw.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
	assert.Contains(t, out.String(), "Reloaded 'coffee'.")

	run, err := eng.Run(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "ask", run.State().CurrentNodeID)
}

func TestExecute_CancelledContext(t *testing.T) {
	eng := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	printer := tui.NewPrinter(&out, nil, termenv.WithProfile(termenv.Ascii))
	done := make(chan error, 1)
	go func() {
		done <- Execute(ctx, eng, RunOptions{ScenarioKey: "coffee", RunID: "r1"}, pr, &out, printer, nil)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
	assert.Contains(t, out.String(), "Interrupted at 'welcome' node.")
}

func TestActionFor(t *testing.T) {
	branch := &domain.Node{ID: "b", Type: domain.NodeTypeBranch, Data: domain.BranchData{Replies: []domain.Reply{
		{Display: "Yes", Value: "y"}, {Display: "No", Value: "n"},
	}}}
	a, err := actionFor(branch, "2")
	require.NoError(t, err)
	assert.Equal(t, domain.Choose("No", "n"), a)

	a, err = actionFor(branch, "yes")
	require.NoError(t, err)
	assert.Equal(t, domain.Choose("Yes", "y"), a)

	a, err = actionFor(branch, "n")
	require.NoError(t, err)
	assert.Equal(t, domain.Choose("No", "n"), a)

	_, err = actionFor(branch, "maybe")
	assert.Error(t, err)

	slot := &domain.Node{ID: "s", Type: domain.NodeTypeSlotFilling, Data: domain.SlotFillingData{}}
	a, err = actionFor(slot, " Seoul ")
	require.NoError(t, err)
	assert.Equal(t, domain.Choose("Seoul", "Seoul"), a)
	_, err = actionFor(slot, "")
	assert.Error(t, err)

	msg := &domain.Node{ID: "m", Type: domain.NodeTypeMessage, Data: domain.MessageData{}}
	a, err = actionFor(msg, "anything")
	require.NoError(t, err)
	assert.Equal(t, domain.Continue(), a)
}

func TestElementValue(t *testing.T) {
	v, err := elementValue("", nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = elementValue("free", nil)
	require.NoError(t, err)
	assert.Equal(t, "free", v)

	row := map[string]any{"id": 7}
	v, err = elementValue("2", []any{"a", row})
	require.NoError(t, err)
	assert.Equal(t, row, v)

	v, err = elementValue("a", []any{"a", row})
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	_, err = elementValue("z", []any{"a"})
	assert.Error(t, err)
}
