package api

import "context"

// Engine is the workflow orchestration API. One engine instance runs within
// a single process and owns its in-memory workflow registry; cross-process
// coordination belongs to the persistence adapter.
//
// Independent workflows execute concurrently. Within one workflow, step
// selection, status mutation, and history appends are serialized, so no two
// steps observe an inconsistent view of their siblings.
type Engine interface {
	// CreateWorkflow validates the definition and registers the workflow
	// in status CREATED. Structural errors — a duplicate workflow ID,
	// duplicate step IDs, a dependency on an unknown step, a dependency
	// cycle, or an unregistered step type — are rejected here and never
	// reach the scheduling loop.
	CreateWorkflow(ctx context.Context, def WorkflowDefinition) (*Workflow, error)

	// StartWorkflow begins (or resumes, when paused) execution. Only
	// CREATED and PAUSED workflows can be started.
	StartWorkflow(ctx context.Context, id string) error

	// PauseWorkflow stops new step dispatches. In-flight executors run
	// to completion and their results are processed normally.
	PauseWorkflow(ctx context.Context, id string) error

	// CreateCheckpoint captures a named, deep, immutable snapshot of the
	// workflow's steps and data. The name must be unique per workflow.
	CreateCheckpoint(ctx context.Context, workflowID, name string) (*Checkpoint, error)

	// RollbackToCheckpoint atomically replaces the workflow's step
	// statuses, retry counters, and data map with the checkpoint's
	// captured state, keeps the checkpoint list intact, and re-enters
	// the scheduling loop.
	RollbackToCheckpoint(ctx context.Context, workflowID, name string) error

	// GetWorkflow returns a deep snapshot of the workflow, or nil when
	// the ID is not registered.
	GetWorkflow(ctx context.Context, id string) *Workflow

	// ListWorkflowsByStatus returns snapshots of every workflow in the
	// given status, in creation order.
	ListWorkflowsByStatus(ctx context.Context, status Status) []*Workflow

	// RemoveWorkflow deletes the workflow, its checkpoints, and its
	// history from the registry, cancelling the context passed to any
	// in-flight executors.
	RemoveWorkflow(ctx context.Context, id string) error

	// ResetStep returns the step and its whole affected set (the step
	// plus every transitive dependent) to PENDING with zeroed retry
	// counters. A terminal workflow returns to CREATED so it can be
	// started again. Not permitted while the workflow is RUNNING.
	ResetStep(ctx context.Context, workflowID, stepID string) error

	// UpdateStepConfig replaces a step's configuration. When the config
	// fingerprint actually changes, the step's affected set is
	// invalidated exactly like ResetStep; an unchanged fingerprint is a
	// no-op. Not permitted while the workflow is RUNNING.
	UpdateStepConfig(ctx context.Context, workflowID, stepID string, config map[string]any) error

	// History returns a copy of the workflow's transition history,
	// oldest first.
	History(ctx context.Context, id string) ([]HistoryEntry, error)

	// WaitForWorkflow blocks until the workflow reaches COMPLETED,
	// FAILED, or PAUSED, or ctx is done, and returns a final snapshot.
	WaitForWorkflow(ctx context.Context, id string) (*Workflow, error)
}
