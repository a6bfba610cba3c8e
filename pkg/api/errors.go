package api

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by Engine operations. Wrap-aware callers should
// test them with errors.Is.
var (
	// ErrWorkflowNotFound is returned when the given workflow ID is not
	// in the engine's registry.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrDuplicateWorkflow is returned by CreateWorkflow when the ID is
	// already registered.
	ErrDuplicateWorkflow = errors.New("workflow already exists")

	// ErrStepNotFound is returned when a step ID does not exist within
	// the workflow.
	ErrStepNotFound = errors.New("step not found")

	// ErrDuplicateStep is returned by CreateWorkflow when two steps share
	// an ID.
	ErrDuplicateStep = errors.New("duplicate step id")

	// ErrCheckpointNotFound is returned by RollbackToCheckpoint for an
	// unknown checkpoint name.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrDuplicateCheckpoint is returned by CreateCheckpoint when the
	// name is already taken for this workflow.
	ErrDuplicateCheckpoint = errors.New("checkpoint name already exists")

	// ErrInvalidState is returned when an operation is not permitted in
	// the workflow's current state, e.g. starting a completed workflow.
	ErrInvalidState = errors.New("invalid workflow state")
)

// CycleError reports a cyclic dependency. Nodes lists every step that
// participates in a cycle, in declaration order, so callers can produce an
// actionable message.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic dependency between steps: %s", strings.Join(e.Nodes, ", "))
}

// UnknownDependencyError reports a step that depends on a step ID absent
// from the workflow.
type UnknownDependencyError struct {
	StepID       string
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("step %q depends on unknown step %q", e.StepID, e.DependencyID)
}

// UnknownStepTypeError reports a step whose type has no registered executor.
type UnknownStepTypeError struct {
	StepID string
	Type   string
}

func (e *UnknownStepTypeError) Error() string {
	return fmt.Sprintf("step %q has unknown type %q", e.StepID, e.Type)
}
