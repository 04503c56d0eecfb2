package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/graph"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/ports"
	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/template"
)

// Runner outcomes reported to lifecycle hooks.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeElapsed   = "elapsed"
	OutcomeCancelled = "cancelled"
)

const (
	llmErrorText     = "[LLM error] The text generation request failed."
	maxResponseBytes = 10 << 20
)

// ErrNoTextStreamer is reported when an llm node runs without a backend.
var ErrNoTextStreamer = errors.New("no text streamer configured")

// runSetSlot applies the assignments synchronously and advances. Assignments
// copying from another slot read the values as they were before this node.
func (c *Controller) runSetSlot(ctx context.Context, node *domain.Node, d domain.SetSlotData) {
	c.emitRunnerStart(ctx, node)
	began := c.now()

	applyAssignments(c.state.SlotValues, c.state.FormValues, d.Assignments)

	c.emitRunnerFinish(ctx, node, runResult{outcome: OutcomeSuccess}, c.now().Sub(began))
	c.advance(ctx, node, "")
}

func applyAssignments(slots, form map[string]any, assignments []domain.Assignment) {
	prev := maps.Clone(slots)
	for _, a := range assignments {
		if a.IsShorthand() {
			slots[a.Key] = a.Value
			continue
		}
		if a.Slot == "" {
			continue
		}
		switch a.From {
		case domain.AssignFromLiteral:
			if a.Value == nil {
				slots[a.Slot] = ""
			} else {
				slots[a.Slot] = a.Value
			}
		case domain.AssignFromForm:
			if a.Key != "" {
				slots[a.Slot] = form[a.Key]
			}
		case domain.AssignFromSlot:
			if a.Key != "" {
				slots[a.Slot] = prev[a.Key]
			}
		}
	}
}

// apiRunner resolves the request against slots overlaid with form values at
// dispatch time and maps the JSON response into slots.
func (c *Controller) apiRunner(node *domain.Node, d domain.APIData) asyncRunner {
	vars := domain.CloneValues(c.state.SlotValues)
	maps.Copy(vars, domain.CloneValues(c.state.FormValues))

	return func(ctx context.Context, _ *token) runResult {
		mapped, err := c.callAPI(ctx, d, vars)
		if err != nil && ctx.Err() != nil {
			return runResult{outcome: OutcomeCancelled, err: ctx.Err()}
		}
		if err != nil {
			c.logger.Warn("api call failed", "node_id", node.ID, "err", err)
			return runResult{outcome: OutcomeFailure, err: err, apply: func(ctx context.Context) {
				c.routeAPIFailure(ctx, node)
			}}
		}
		return runResult{outcome: OutcomeSuccess, apply: func(ctx context.Context) {
			maps.Copy(c.state.SlotValues, mapped)
			c.advance(ctx, node, domain.HandleOnSuccess)
		}}
	}
}

// routeAPIFailure follows an onFail edge when present. Without one the run
// continues through onSuccess, or finishes in strict mode.
func (c *Controller) routeAPIFailure(ctx context.Context, node *domain.Node) {
	if next := graph.Match(c.scenario.Nodes, c.scenario.Edges, node.ID, domain.HandleOnFail); next != nil {
		c.moveTo(ctx, node, next)
		return
	}
	if c.strictAPIFailure {
		c.finish(ctx, node)
		return
	}
	c.advance(ctx, node, domain.HandleOnSuccess)
}

func (c *Controller) callAPI(ctx context.Context, d domain.APIData, vars map[string]any) (map[string]any, error) {
	url := template.Resolve(d.URL, vars)
	method := strings.ToUpper(d.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if method != http.MethodGet && d.Body != "" {
		body = strings.NewReader(template.Resolve(d.Body, vars))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.parseHeaders(d.Headers) {
		req.Header.Set(k, formatValue(v))
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Any completed response counts as success, whatever its status code.
	// Error payloads are mapped like any other body.
	if resp.StatusCode >= 400 {
		c.logger.Debug("api responded with error status", "url", url, "status", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.logger.Warn("api response is not JSON, skipping response mapping", "url", url, "err", err)
		return nil, nil
	}

	mapped := make(map[string]any, len(d.ResponseMapping))
	for _, m := range d.ResponseMapping {
		if m.Slot == "" {
			continue
		}
		mapped[m.Slot] = lookupResponse(payload, m.Path)
	}
	return mapped, nil
}

// parseHeaders decodes the JSON header object; malformed input yields none.
func (c *Controller) parseHeaders(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var headers map[string]any
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		c.logger.Warn("malformed api headers, sending none", "err", err)
		return nil
	}
	return headers
}

// lookupResponse reads a top-level key first, then a dotted/bracket path.
func lookupResponse(payload any, path string) any {
	if m, ok := payload.(map[string]any); ok {
		if v, ok := m[path]; ok {
			return v
		}
	}
	v, _ := template.Lookup(payload, path)
	return v
}

// llmRunner resolves the prompt against the slots as they are now; slot
// changes made while the stream runs do not affect it. The generated text
// grows a single bot step and lands in the output slot when the stream ends.
func (c *Controller) llmRunner(node *domain.Node, d domain.LLMData) asyncRunner {
	req := ports.GenerationRequest{
		Prompt:       template.Resolve(d.Prompt, c.state.SlotValues),
		SystemPrompt: c.systemPrompt,
	}
	output := d.Output()

	return func(ctx context.Context, tok *token) runResult {
		if c.streamer == nil {
			return c.llmFailure(node, ErrNoTextStreamer)
		}

		var text strings.Builder
		stepID := ""
		err := c.streamer.Stream(ctx, req, func(delta string) {
			if delta == "" {
				return
			}
			text.WriteString(delta)
			full := text.String()
			c.update(tok, func() {
				if stepID == "" {
					stepID = c.pushStep(node.ID, domain.RoleBot, full)
					return
				}
				for i := range c.state.Steps {
					if c.state.Steps[i].ID == stepID {
						c.state.Steps[i].Text = full
						break
					}
				}
			})
		})
		if err != nil {
			if ctx.Err() != nil {
				return runResult{outcome: OutcomeCancelled, err: ctx.Err()}
			}
			return c.llmFailure(node, err)
		}

		result := text.String()
		return runResult{outcome: OutcomeSuccess, apply: func(context.Context) {
			c.state.SlotValues[output] = result
			c.state.LLMDone = true
		}}
	}
}

// llmFailure pushes an error step and stalls the run until continue.
func (c *Controller) llmFailure(node *domain.Node, err error) runResult {
	c.logger.Warn("llm generation failed", "node_id", node.ID, "err", err)
	return runResult{outcome: OutcomeFailure, err: err, apply: func(context.Context) {
		c.pushStep(node.ID, domain.RoleBot, llmErrorText)
		c.state.LLMDone = true
	}}
}

// delayRunner waits for the configured duration, then advances.
func (c *Controller) delayRunner(node *domain.Node, d domain.DelayData) asyncRunner {
	wait := d.Wait()
	return func(ctx context.Context, _ *token) runResult {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return runResult{outcome: OutcomeCancelled, err: ctx.Err()}
		}
		return runResult{outcome: OutcomeElapsed, apply: func(ctx context.Context) {
			c.advance(ctx, node, "")
		}}
	}
}
