package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventNodeEnter    EventType = "node_enter"
	EventNodeLeave    EventType = "node_leave"
	EventRunnerStart  EventType = "runner_start"
	EventRunnerFinish EventType = "runner_finish"
)

// EventBase contains common fields for all lifecycle events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type"`
}

// RunnerEvent represents an automatic node execution (api, llm, delay, setSlot).
type RunnerEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	NodeType NodeType      `json:"node_type"`
	Outcome  string        `json:"outcome,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter    func(context.Context, *NodeEvent)
	OnNodeLeave    func(context.Context, *NodeEvent)
	OnRunnerStart  func(context.Context, *RunnerEvent)
	OnRunnerFinish func(context.Context, *RunnerEvent)
}

// ProgressEvent mirrors a settled run snapshot to the host.
type ProgressEvent struct {
	RunID         string         `json:"runId"`
	Steps         []Step         `json:"steps"`
	Finished      bool           `json:"finished"`
	CurrentNodeID string         `json:"currentNodeId"`
	SlotValues    map[string]any `json:"slotValues"`
	FormValues    map[string]any `json:"formValues"`
}

// HistoryEvent is the final transcript of a run, templates already resolved.
type HistoryEvent struct {
	RunID         string `json:"runId"`
	ScenarioKey   string `json:"scenarioKey"`
	ScenarioTitle string `json:"scenarioTitle,omitempty"`
	Steps         []Step `json:"steps"`
}

// HostCallbacks is the output surface of a run besides the snapshot store.
type HostCallbacks struct {
	OnProgress      func(context.Context, *ProgressEvent)
	OnHistoryAppend func(context.Context, *HistoryEvent)
	OnResetRun      func(ctx context.Context, runID string)
}
