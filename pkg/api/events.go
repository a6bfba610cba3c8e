package api

import "time"

// EventType identifies a workflow lifecycle event.
type EventType string

const (
	EventWorkflowCreated      EventType = "workflow.created"
	EventWorkflowStateChanged EventType = "workflow.state_changed"
	EventWorkflowRollback     EventType = "workflow.rollback"

	EventStepStarted   EventType = "step.started"
	EventStepCompleted EventType = "step.completed"
	EventStepFailed    EventType = "step.failed"
	EventStepRetry     EventType = "step.retry"

	EventCheckpointCreated EventType = "checkpoint.created"
)

// Event is a minimal append-only record of a workflow lifecycle event.
// Events for a single workflow are delivered in the order the transitions
// actually occur. It is intentionally small and stable; persistence and
// notification collaborators consume it, never produce it.
type Event struct {
	WorkflowID   string
	WorkflowName string
	At           time.Time
	Type         EventType

	// Step is set for step.* events.
	Step string

	// From and To are set for workflow.state_changed.
	From Status
	To   Status

	// Attempt is set for step.retry (1-indexed retry number).
	Attempt int

	// Duration is set for step.completed and step.failed.
	Duration time.Duration

	// Small, human-oriented details (error string, checkpoint name).
	// Keep this low-volume: do NOT dump large payloads here.
	Detail string
}
