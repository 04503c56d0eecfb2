package domain

import (
	"reflect"
)

// RunDiff represents the changes between two run snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type RunDiff struct {
	// RunID is always present to identify the target.
	RunID string `json:"run_id"`

	CurrentNodeID *string `json:"current_node_id,omitempty"`
	Finished      *bool   `json:"finished,omitempty"`
	LLMDone       *bool   `json:"llm_done,omitempty"`

	// Slots and Forms contain only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Slots map[string]any `json:"slots,omitempty"`
	Forms map[string]any `json:"forms,omitempty"`

	Steps *StepDelta `json:"steps,omitempty"`
}

// StepDelta describes transcript changes. Updated carries steps whose text
// grew in place (streamed llm output). Replaced is set when the transcript
// shrank (reset) and Appended holds the whole new list.
type StepDelta struct {
	Appended []Step `json:"appended,omitempty"`
	Updated  []Step `json:"updated,omitempty"`
	Replaced bool   `json:"replaced,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState.
func Diff(oldState, newState *RunState) *RunDiff {
	if newState == nil {
		return nil
	}

	diff := &RunDiff{RunID: newState.RunID}

	if oldState == nil || oldState.CurrentNodeID != newState.CurrentNodeID {
		diff.CurrentNodeID = &newState.CurrentNodeID
	}
	if oldState == nil {
		if newState.Finished {
			diff.Finished = &newState.Finished
		}
	} else if oldState.Finished != newState.Finished {
		diff.Finished = &newState.Finished
	}
	if oldState != nil && oldState.LLMDone != newState.LLMDone {
		diff.LLMDone = &newState.LLMDone
	}

	var oldSlots, oldForms map[string]any
	var oldSteps []Step
	if oldState != nil {
		oldSlots, oldForms, oldSteps = oldState.SlotValues, oldState.FormValues, oldState.Steps
	}
	diff.Slots = diffValues(oldSlots, newState.SlotValues)
	diff.Forms = diffValues(oldForms, newState.FormValues)
	diff.Steps = diffSteps(oldSteps, newState.Steps)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffValues(old, new map[string]any) map[string]any {
	delta := make(map[string]any)

	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

func diffSteps(old, new []Step) *StepDelta {
	if len(new) < len(old) {
		return &StepDelta{Appended: new, Replaced: true}
	}

	var delta StepDelta
	for i, st := range old {
		if new[i] != st {
			delta.Updated = append(delta.Updated, new[i])
		}
	}
	if len(new) > len(old) {
		delta.Appended = new[len(old):]
	}
	if len(delta.Appended) == 0 && len(delta.Updated) == 0 {
		return nil
	}
	return &delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *RunDiff) IsEmpty() bool {
	return d.CurrentNodeID == nil &&
		d.Finished == nil &&
		d.LLMDone == nil &&
		len(d.Slots) == 0 &&
		len(d.Forms) == 0 &&
		d.Steps == nil
}
