package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeType identifies the behaviour of a node.
type NodeType string

const (
	// NodeTypeMessage shows its content and waits for an explicit continue.
	NodeTypeMessage NodeType = "message"
	// NodeTypeBranch asks a question and routes on the chosen reply value.
	NodeTypeBranch NodeType = "branch"
	// NodeTypeForm collects several fields and stores them as slots on submit.
	NodeTypeForm NodeType = "form"
	// NodeTypeSlotFilling writes the chosen reply into a single slot.
	NodeTypeSlotFilling NodeType = "slotfilling"
	// NodeTypeAPI issues an HTTP call and maps the JSON response into slots.
	NodeTypeAPI NodeType = "api"
	// NodeTypeLLM streams a text generation into one bot step.
	NodeTypeLLM NodeType = "llm"
	// NodeTypeSetSlot assigns slots without user interaction.
	NodeTypeSetSlot NodeType = "setSlot"
	// NodeTypeDelay pauses the run for a fixed duration.
	NodeTypeDelay NodeType = "delay"
	// NodeTypeLink previews a link and waits for continue.
	NodeTypeLink NodeType = "link"
	// NodeTypeIframe previews an embedded page and waits for continue.
	NodeTypeIframe NodeType = "iframe"
	// NodeTypeToast shows a notification and waits for continue.
	NodeTypeToast NodeType = "toast"
	// NodeTypeScenario is an editor-only group; it has no runtime behaviour.
	NodeTypeScenario NodeType = "scenario"
)

// IsKnown reports whether t is one of the supported node types.
func (t NodeType) IsKnown() bool {
	switch t {
	case NodeTypeMessage, NodeTypeBranch, NodeTypeForm, NodeTypeSlotFilling,
		NodeTypeAPI, NodeTypeLLM, NodeTypeSetSlot, NodeTypeDelay,
		NodeTypeLink, NodeTypeIframe, NodeTypeToast, NodeTypeScenario:
		return true
	}
	return false
}

// Node represents a logical unit in the scenario graph.
// Data always holds the payload type matching Type.
type Node struct {
	ID       string
	Type     NodeType
	ParentID string
	Data     NodeData
}

// NodeData is the closed set of node payloads, one per NodeType.
type NodeData interface {
	Kind() NodeType
	isNodeData()
}

// Reply is a selectable answer on branch and slot-filling nodes.
type Reply struct {
	Display string `json:"display" mapstructure:"display"`
	Value   any    `json:"value" mapstructure:"value"`
}

// Handle returns the edge handle the reply routes on.
func (r Reply) Handle() string {
	if r.Value == nil {
		return ""
	}
	return fmt.Sprint(r.Value)
}

type MessageData struct {
	Content string `json:"content" mapstructure:"content"`
}

type BranchData struct {
	Content string  `json:"content" mapstructure:"content"`
	Replies []Reply `json:"replies" mapstructure:"replies"`
}

// FormElement is one input of a form node. OptionsSlot names a slot holding
// the options when they are not static.
type FormElement struct {
	Name        string `json:"name" mapstructure:"name"`
	Type        string `json:"type" mapstructure:"type"`
	Label       string `json:"label,omitempty" mapstructure:"label"`
	Options     []any  `json:"options,omitempty" mapstructure:"options"`
	OptionsSlot string `json:"optionsSlot,omitempty" mapstructure:"optionsSlot"`
}

type FormData struct {
	Title    string        `json:"title,omitempty" mapstructure:"title"`
	Elements []FormElement `json:"elements" mapstructure:"elements"`
	SlotKey  string        `json:"slotKey,omitempty" mapstructure:"slotKey"`
}

type SlotFillingData struct {
	Content  string  `json:"content" mapstructure:"content"`
	Replies  []Reply `json:"replies" mapstructure:"replies"`
	Slot     string  `json:"slot,omitempty" mapstructure:"slot"`
	SlotName string  `json:"slotName,omitempty" mapstructure:"slotName"`
}

// TargetSlot returns the slot the chosen value is written into.
func (d SlotFillingData) TargetSlot() string {
	if d.Slot != "" {
		return d.Slot
	}
	return d.SlotName
}

// ResponseMapping copies the value at Path in an API response into Slot.
type ResponseMapping struct {
	Slot string `json:"slot" mapstructure:"slot"`
	Path string `json:"path" mapstructure:"path"`
}

// APIData describes an HTTP call. Headers and Body are JSON text; URL and
// Body may contain template expressions.
type APIData struct {
	URL             string            `json:"url" mapstructure:"url"`
	Method          string            `json:"method,omitempty" mapstructure:"method"`
	Headers         string            `json:"headers,omitempty" mapstructure:"headers"`
	Body            string            `json:"body,omitempty" mapstructure:"body"`
	ResponseMapping []ResponseMapping `json:"responseMapping,omitempty" mapstructure:"responseMapping"`
}

// DefaultLLMOutputVar receives the generated text when OutputVar is empty.
const DefaultLLMOutputVar = "llm_output"

type LLMData struct {
	Prompt    string `json:"prompt" mapstructure:"prompt"`
	OutputVar string `json:"outputVar,omitempty" mapstructure:"outputVar"`
}

// Output returns the slot receiving the generated text.
func (d LLMData) Output() string {
	if d.OutputVar == "" {
		return DefaultLLMOutputVar
	}
	return d.OutputVar
}

// Assignment sources for setSlot nodes.
const (
	AssignFromLiteral = "literal"
	AssignFromForm    = "form"
	AssignFromSlot    = "slot"
)

// Assignment is either {slot, from, key?, value?} or the shorthand {key, value}.
type Assignment struct {
	Slot  string `json:"slot,omitempty" mapstructure:"slot"`
	From  string `json:"from,omitempty" mapstructure:"from"`
	Key   string `json:"key,omitempty" mapstructure:"key"`
	Value any    `json:"value,omitempty" mapstructure:"value"`
}

// IsShorthand reports whether a is the {key, value} form. A null value
// decodes the same as a missing one, so {key, value: null} is not shorthand
// and assigns nothing.
func (a Assignment) IsShorthand() bool {
	return a.Key != "" && a.Value != nil && a.Slot == "" && a.From == ""
}

type SetSlotData struct {
	Assignments []Assignment `json:"assignments" mapstructure:"assignments"`
}

// DefaultDelay is used when a delay node has no duration.
const DefaultDelay = time.Second

type DelayData struct {
	// Duration in milliseconds.
	Duration *int64 `json:"duration,omitempty" mapstructure:"duration"`
}

// Wait returns the configured pause.
func (d DelayData) Wait() time.Duration {
	if d.Duration == nil {
		return DefaultDelay
	}
	if *d.Duration <= 0 {
		return 0
	}
	return time.Duration(*d.Duration) * time.Millisecond
}

type LinkData struct {
	Content string `json:"content,omitempty" mapstructure:"content"`
	URL     string `json:"url,omitempty" mapstructure:"url"`
	Display string `json:"display,omitempty" mapstructure:"display"`
}

type IframeData struct {
	Content string `json:"content,omitempty" mapstructure:"content"`
	URL     string `json:"url,omitempty" mapstructure:"url"`
	Width   string `json:"width,omitempty" mapstructure:"width"`
	Height  string `json:"height,omitempty" mapstructure:"height"`
}

type ToastData struct {
	Content   string `json:"content,omitempty" mapstructure:"content"`
	ToastType string `json:"toastType,omitempty" mapstructure:"toastType"`
}

type GroupData struct {
	Label string `json:"label,omitempty" mapstructure:"label"`
}

func (MessageData) Kind() NodeType     { return NodeTypeMessage }
func (BranchData) Kind() NodeType      { return NodeTypeBranch }
func (FormData) Kind() NodeType        { return NodeTypeForm }
func (SlotFillingData) Kind() NodeType { return NodeTypeSlotFilling }
func (APIData) Kind() NodeType         { return NodeTypeAPI }
func (LLMData) Kind() NodeType         { return NodeTypeLLM }
func (SetSlotData) Kind() NodeType     { return NodeTypeSetSlot }
func (DelayData) Kind() NodeType       { return NodeTypeDelay }
func (LinkData) Kind() NodeType        { return NodeTypeLink }
func (IframeData) Kind() NodeType      { return NodeTypeIframe }
func (ToastData) Kind() NodeType       { return NodeTypeToast }
func (GroupData) Kind() NodeType       { return NodeTypeScenario }

func (MessageData) isNodeData()     {}
func (BranchData) isNodeData()      {}
func (FormData) isNodeData()        {}
func (SlotFillingData) isNodeData() {}
func (APIData) isNodeData()         {}
func (LLMData) isNodeData()         {}
func (SetSlotData) isNodeData()     {}
func (DelayData) isNodeData()       {}
func (LinkData) isNodeData()        {}
func (IframeData) isNodeData()      {}
func (ToastData) isNodeData()       {}
func (GroupData) isNodeData()       {}

// Content returns the display text of nodes that carry one.
func (n Node) Content() string {
	switch d := n.Data.(type) {
	case MessageData:
		return d.Content
	case BranchData:
		return d.Content
	case SlotFillingData:
		return d.Content
	case LinkData:
		return d.Content
	case IframeData:
		return d.Content
	case ToastData:
		return d.Content
	case FormData:
		return d.Title
	}
	return ""
}

// wireNode is the JSON shape produced by the builder.
type wireNode struct {
	ID         string         `json:"id"`
	Type       NodeType       `json:"type"`
	ParentNode string         `json:"parentNode,omitempty"`
	Data       map[string]any `json:"data"`
}

// UnmarshalJSON decodes the loosely typed builder payload into the typed Data.
func (n *Node) UnmarshalJSON(b []byte) error {
	var w wireNode
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	data, err := DecodeNodeData(w.Type, w.Data)
	if err != nil {
		return fmt.Errorf("node %s: %w", w.ID, err)
	}
	*n = Node{ID: w.ID, Type: w.Type, ParentID: w.ParentNode, Data: data}
	return nil
}

// MarshalJSON emits the builder shape {id, type, parentNode, data}.
func (n Node) MarshalJSON() ([]byte, error) {
	data := n.Data
	if data == nil {
		data = GroupData{}
	}
	return json.Marshal(struct {
		ID         string   `json:"id"`
		Type       NodeType `json:"type"`
		ParentNode string   `json:"parentNode,omitempty"`
		Data       NodeData `json:"data"`
	}{n.ID, n.Type, n.ParentID, data})
}
