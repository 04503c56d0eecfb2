package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
)

const (
	gridElementType      = "grid"
	selectedRowSlot      = "selectedRow"
	selectedRowIDSlot    = "selectedRowId"
	formSubmittedText    = "Form submitted."
	formSummarySeparator = "\n"
)

// apply performs the user-driven transition for a. Called with mu held.
func (c *Controller) apply(ctx context.Context, node *domain.Node, a domain.Action) error {
	switch a.Type {
	case domain.ActionContinue:
		return c.applyContinue(ctx, node)

	case domain.ActionReply:
		if a.Reply == nil {
			return fmt.Errorf("%w: reply action without a reply", domain.ErrUnexpectedAction)
		}
		switch d := node.Data.(type) {
		case domain.BranchData:
			c.chooseBranch(ctx, node, *a.Reply)
			return nil
		case domain.SlotFillingData:
			c.fillSlot(ctx, node, d, *a.Reply)
			return nil
		}

	case domain.ActionSubmit:
		if d, ok := node.Data.(domain.FormData); ok {
			c.submitForm(ctx, node, d, a.Values)
			return nil
		}

	case domain.ActionSetFormValue:
		if _, ok := node.Data.(domain.FormData); ok && a.Field != "" {
			c.state.FormValues[a.Field] = a.Value
			return nil
		}
	}
	return fmt.Errorf("%w: %q on %s node %q", domain.ErrUnexpectedAction, a.Type, node.Type, node.ID)
}

func (c *Controller) applyContinue(ctx context.Context, node *domain.Node) error {
	switch node.Type {
	case domain.NodeTypeMessage, domain.NodeTypeLink, domain.NodeTypeIframe, domain.NodeTypeToast:
		c.advance(ctx, node, "")
		return nil
	case domain.NodeTypeLLM:
		if !c.state.LLMDone {
			return domain.ErrRunBusy
		}
		c.advance(ctx, node, "")
		return nil
	}
	return fmt.Errorf("%w: continue on %s node %q", domain.ErrUnexpectedAction, node.Type, node.ID)
}

// chooseBranch echoes the reply as a user step and routes on its value.
// A value without a matching edge, default or unlabeled edge finishes the run.
func (c *Controller) chooseBranch(ctx context.Context, node *domain.Node, r domain.Reply) {
	c.pushStep(node.ID, domain.RoleUser, orDefault(r.Display, r.Handle()))
	c.advance(ctx, node, r.Handle())
}

// fillSlot stores the chosen value and routes on its string form.
func (c *Controller) fillSlot(ctx context.Context, node *domain.Node, d domain.SlotFillingData, r domain.Reply) {
	if slot := d.TargetSlot(); slot != "" {
		c.state.SlotValues[slot] = r.Value
	}
	c.advance(ctx, node, r.Handle())
}

// submitForm stores the filled fields under the form's slot key, promotes a
// grid selection to the selectedRow and selectedRowId slots, and echoes a
// summary of the non-grid fields as a user step.
func (c *Controller) submitForm(ctx context.Context, node *domain.Node, d domain.FormData, values map[string]any) {
	maps.Copy(c.state.FormValues, domain.CloneValues(values))
	form := c.state.FormValues

	filled := make(map[string]any)
	var summary []string
	for _, el := range d.Elements {
		v, ok := form[el.Name]
		if !ok || isBlank(v) {
			continue
		}
		filled[el.Name] = v
		if el.Type == gridElementType {
			continue
		}
		summary = append(summary, orDefault(el.Label, el.Name)+": "+formatValue(v))
	}

	row := gridSelection(d.Elements, form, filled)
	var rowID any
	if m, ok := row.(map[string]any); ok {
		rowID = m["id"]
	}

	if d.SlotKey != "" {
		merged := make(map[string]any)
		if prev, ok := c.state.SlotValues[d.SlotKey].(map[string]any); ok {
			maps.Copy(merged, prev)
		}
		maps.Copy(merged, filled)
		if row != nil {
			merged[selectedRowSlot] = row
		}
		if rowID != nil {
			merged[selectedRowIDSlot] = rowID
		}
		c.state.SlotValues[d.SlotKey] = merged
	}
	if row != nil {
		c.state.SlotValues[selectedRowSlot] = row
	}
	if rowID != nil {
		c.state.SlotValues[selectedRowIDSlot] = rowID
	}

	text := formSubmittedText
	if len(summary) > 0 {
		text = strings.Join(summary, formSummarySeparator)
	}
	c.pushStep(node.ID, domain.RoleUser, text)
	c.advance(ctx, node, "")
}

// gridSelection finds the selected grid row: the value of the first grid
// element, else a staged selectedRow value. Scalars become {"id": v}.
func gridSelection(elements []domain.FormElement, form, filled map[string]any) any {
	var v any
	for _, el := range elements {
		if el.Type == gridElementType {
			v = form[el.Name]
			break
		}
	}
	if v == nil {
		v = form[selectedRowSlot]
	}
	if v == nil {
		v = filled[selectedRowSlot]
	}

	switch val := v.(type) {
	case nil:
		return nil
	case string, float64, float32, int, int64, int32, json.Number:
		return map[string]any{"id": val}
	}
	return v
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool, int, int64, int32, float64, float32, json.Number:
		return fmt.Sprint(val)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
