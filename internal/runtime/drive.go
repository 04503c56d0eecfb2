package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/graph"
)

// maxAutoSteps bounds the synchronous nodes (setSlot, groups) driven in one
// pass, so a cycle of automatic nodes cannot spin forever.
const maxAutoSteps = 1000

// Fallback prompt texts for nodes without content.
const (
	formPromptFallback        = "Please fill out the form."
	formPromptPrefix          = "Form: "
	linkPromptFallback        = "Opening the link."
	iframePromptFallback      = "Showing the embedded page."
	slotFillingPromptFallback = "Please choose or enter a value."
)

// drive runs automatic nodes until the run waits for the user, a runner is
// pending, or the run finishes. Called with mu held.
func (c *Controller) drive(ctx context.Context) {
	for i := 0; !c.state.Finished && c.pending == nil && !c.closed; i++ {
		if i >= maxAutoSteps {
			c.logger.Error("too many automatic nodes in a row, finishing run", "node_id", c.state.CurrentNodeID)
			c.state.Finished = true
			return
		}

		node, ok := c.scenario.Node(c.state.CurrentNodeID)
		if !ok {
			c.logger.Error("current node is not in the scenario, finishing run", "node_id", c.state.CurrentNodeID)
			c.state.Finished = true
			return
		}

		switch d := node.Data.(type) {
		case domain.SetSlotData:
			c.runSetSlot(ctx, node, d)
			continue
		case domain.GroupData:
			c.advance(ctx, node, "")
			continue
		case domain.APIData:
			c.start(ctx, node, c.apiRunner(node, d))
		case domain.LLMData:
			if !c.state.LLMDone {
				c.start(ctx, node, c.llmRunner(node, d))
			}
		case domain.DelayData:
			c.start(ctx, node, c.delayRunner(node, d))
		case domain.MessageData:
			// Pushed on entry; waits for continue.
		default:
			c.pushPromptOnce(node)
		}
		return
	}
}

// enter marks node as current. announce pushes a message node's content,
// which is skipped when a run is restored onto it.
func (c *Controller) enter(ctx context.Context, node *domain.Node, announce bool) {
	c.emitNodeEnter(ctx, node)
	if announce && node.Type == domain.NodeTypeMessage {
		c.pushStep(node.ID, domain.RoleBot, node.Content())
	}
}

// advance leaves from and follows the edge selected for handle.
func (c *Controller) advance(ctx context.Context, from *domain.Node, handle string) {
	c.moveTo(ctx, from, graph.Next(c.scenario.Nodes, c.scenario.Edges, from.ID, handle))
}

// moveTo leaves from and enters next; a nil next finishes the run.
func (c *Controller) moveTo(ctx context.Context, from, next *domain.Node) {
	c.emitNodeLeave(ctx, from)
	c.state.LLMDone = false
	if next == nil {
		c.state.Finished = true
		c.logger.Debug("run finished", "node_id", from.ID)
		return
	}
	c.state.CurrentNodeID = next.ID
	c.enter(ctx, next, true)
}

// finish ends the run on the current node.
func (c *Controller) finish(ctx context.Context, node *domain.Node) {
	c.moveTo(ctx, node, nil)
}

func (c *Controller) pushPromptOnce(node *domain.Node) {
	id := domain.PromptStepID(node.ID)
	if c.state.HasStep(id) {
		return
	}
	c.state.Steps = append(c.state.Steps, domain.Step{ID: id, Role: domain.RoleBot, Text: promptText(node)})
}

func promptText(node *domain.Node) string {
	switch d := node.Data.(type) {
	case domain.FormData:
		if d.Title != "" {
			return formPromptPrefix + d.Title
		}
		return formPromptFallback
	case domain.LinkData:
		return orDefault(d.Content, linkPromptFallback)
	case domain.IframeData:
		return orDefault(d.Content, iframePromptFallback)
	case domain.SlotFillingData:
		return orDefault(d.Content, slotFillingPromptFallback)
	}
	return node.Content()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// pushStep appends a step. Ids are derived from the node and the position in
// the transcript, so they are unique within a run and stable across restores.
func (c *Controller) pushStep(nodeID string, role domain.Role, text string) string {
	id := fmt.Sprintf("%s#%d", nodeID, len(c.state.Steps))
	c.state.Steps = append(c.state.Steps, domain.Step{ID: id, Role: role, Text: text})
	return id
}

// runResult is produced by an asynchronous runner outside the lock. apply
// runs under the lock, only if the runner was not superseded.
type runResult struct {
	outcome string
	err     error
	apply   func(ctx context.Context)
}

// asyncRunner performs the I/O of a node. It must return promptly once ctx
// is cancelled.
type asyncRunner func(ctx context.Context, tok *token) runResult

// start launches run for node as the pending runner. Called with mu held.
func (c *Controller) start(ctx context.Context, node *domain.Node, run asyncRunner) {
	c.seq++
	rctx, cancel := context.WithCancel(c.ctx)
	tok := &token{seq: c.seq, nodeID: node.ID, cancel: cancel}
	c.pending = tok
	c.markBusy()
	c.emitRunnerStart(ctx, node)

	began := c.now()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		res := run(rctx, tok)

		c.mu.Lock()
		if c.pending != tok {
			c.mu.Unlock()
			c.logger.Debug("discarding superseded runner result", "node_id", node.ID, "seq", tok.seq)
			return
		}
		c.pending = nil
		c.emitRunnerFinish(c.ctx, node, res, c.now().Sub(began))
		if res.apply != nil {
			res.apply(c.ctx)
		}
		c.drive(c.ctx)
		c.unlockAndPublish(c.ctx)
	}()
}

// update applies fn on behalf of the runner holding tok and publishes the
// result. It reports false when the runner was superseded.
func (c *Controller) update(tok *token, fn func()) bool {
	c.mu.Lock()
	if c.pending != tok {
		c.mu.Unlock()
		return false
	}
	fn()
	c.unlockAndPublish(c.ctx)
	return true
}

func (c *Controller) emitNodeEnter(ctx context.Context, node *domain.Node) {
	if c.hooks.OnNodeEnter == nil {
		return
	}
	c.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: c.now(), Type: domain.EventNodeEnter, RunID: c.runID},
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (c *Controller) emitNodeLeave(ctx context.Context, node *domain.Node) {
	if c.hooks.OnNodeLeave == nil {
		return
	}
	c.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: c.now(), Type: domain.EventNodeLeave, RunID: c.runID},
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (c *Controller) emitRunnerStart(ctx context.Context, node *domain.Node) {
	if c.hooks.OnRunnerStart == nil {
		return
	}
	c.hooks.OnRunnerStart(ctx, &domain.RunnerEvent{
		EventBase: domain.EventBase{Timestamp: c.now(), Type: domain.EventRunnerStart, RunID: c.runID},
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func (c *Controller) emitRunnerFinish(ctx context.Context, node *domain.Node, res runResult, took time.Duration) {
	if c.hooks.OnRunnerFinish == nil {
		return
	}
	c.hooks.OnRunnerFinish(ctx, &domain.RunnerEvent{
		EventBase: domain.EventBase{Timestamp: c.now(), Type: domain.EventRunnerFinish, RunID: c.runID},
		NodeID:    node.ID,
		NodeType:  node.Type,
		Outcome:   res.outcome,
		Duration:  took,
		IsError:   res.err != nil,
	})
}
