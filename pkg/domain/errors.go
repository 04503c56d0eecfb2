package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRunNotFound is returned when a run ID cannot be found in the store.
var ErrRunNotFound = errors.New("run not found")

// ErrScenarioNotFound is returned by loaders for unknown scenario keys.
var ErrScenarioNotFound = errors.New("scenario not found")

// ErrEmptyScenario is returned when a scenario has no entry node.
var ErrEmptyScenario = errors.New("scenario has no root node")

// ErrUnknownNodeType is returned when node data names an unsupported type.
var ErrUnknownNodeType = errors.New("unknown node type")

// ErrNotHydrated is returned when a run is used before Activate.
var ErrNotHydrated = errors.New("run not hydrated")

// ErrRunFinished is returned for actions on a finished run.
var ErrRunFinished = errors.New("run finished")

// ErrRunBusy is returned while a runner is still pending for the current node.
var ErrRunBusy = errors.New("run busy")

// ErrUnexpectedAction is returned when an action does not apply to the current node.
var ErrUnexpectedAction = errors.New("unexpected action for current node")

// ValidationError collects structural problems found in a scenario.
type ValidationError struct {
	ScenarioKey string
	Problems    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scenario %q is invalid: %s", e.ScenarioKey, strings.Join(e.Problems, "; "))
}

// ErrRunClosed is returned for actions on a controller that was closed.
var ErrRunClosed = errors.New("run closed")
