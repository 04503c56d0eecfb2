package domain

// Role identifies who authored a step.
type Role string

const (
	RoleBot  Role = "bot"
	RoleUser Role = "user"
)

// PromptStepPrefix marks steps a node pushes at most once.
const PromptStepPrefix = "prompt:"

// PromptStepID returns the de-duplicated step id for a node's prompt.
func PromptStepID(nodeID string) string {
	return PromptStepPrefix + nodeID
}

// Step is one transcript entry.
type Step struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// RunState is the snapshot of one run of a scenario.
type RunState struct {
	RunID         string `json:"runId"`
	ScenarioKey   string `json:"scenarioKey,omitempty"`
	ScenarioTitle string `json:"scenarioTitle,omitempty"`

	// CurrentNodeID is the active node; empty only before hydration.
	CurrentNodeID string `json:"currentNodeId"`

	// Steps is append-only for the lifetime of a run (until reset).
	Steps []Step `json:"steps"`

	SlotValues map[string]any `json:"slotValues"`
	FormValues map[string]any `json:"formValues"`

	// Finished is a sink: nothing is dispatched once it is set.
	Finished bool `json:"finished"`

	// LLMDone gates the continue action on llm nodes.
	LLMDone bool `json:"llmDone,omitempty"`
}

// NewRunState creates a clean state positioned at startNodeID.
func NewRunState(runID, startNodeID string) *RunState {
	return &RunState{
		RunID:         runID,
		CurrentNodeID: startNodeID,
		Steps:         []Step{},
		SlotValues:    make(map[string]any),
		FormValues:    make(map[string]any),
	}
}

// HasStep reports whether a step with id exists.
func (s *RunState) HasStep(id string) bool {
	for _, st := range s.Steps {
		if st.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, so the result can be mutated or handed to
// another goroutine without sharing maps or slices.
func (s *RunState) Clone() *RunState {
	if s == nil {
		return nil
	}
	next := *s
	next.Steps = append([]Step{}, s.Steps...)
	next.SlotValues = CloneValues(s.SlotValues)
	next.FormValues = CloneValues(s.FormValues)
	return &next
}

// CloneValues deep-copies a slot or form map.
func CloneValues(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneValues(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
