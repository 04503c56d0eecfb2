package domain

// ActionType is the kind of user-driven transition.
type ActionType string

const (
	// ActionContinue advances message, link, iframe, toast and finished llm nodes.
	ActionContinue ActionType = "continue"
	// ActionReply selects a reply on branch and slot-filling nodes.
	ActionReply ActionType = "reply"
	// ActionSubmit submits the current form node.
	ActionSubmit ActionType = "submit"
	// ActionSetFormValue stages one form field while the user is typing.
	ActionSetFormValue ActionType = "setFormValue"
)

// Action is a user event applied to the current node of a run.
type Action struct {
	Type ActionType `json:"type"`

	// Reply is required for ActionReply.
	Reply *Reply `json:"reply,omitempty"`

	// Values are merged into form values before an ActionSubmit is applied.
	Values map[string]any `json:"values,omitempty"`

	// Field and Value are used by ActionSetFormValue.
	Field string `json:"field,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Continue is a convenience constructor.
func Continue() Action {
	return Action{Type: ActionContinue}
}

// Choose builds a reply action.
func Choose(display string, value any) Action {
	return Action{Type: ActionReply, Reply: &Reply{Display: display, Value: value}}
}

// Submit builds a form submit action.
func Submit(values map[string]any) Action {
	return Action{Type: ActionSubmit, Values: values}
}
