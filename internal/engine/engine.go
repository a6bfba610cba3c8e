// Package engine implements the workflow orchestration engine: registry
// management, the per-workflow scheduling loop, retry with backoff,
// checkpoint/rollback, and change-impact invalidation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/petrijr/gantry/internal/checkpoint"
	"github.com/petrijr/gantry/internal/clock"
	"github.com/petrijr/gantry/internal/graph"
	"github.com/petrijr/gantry/internal/persistence"
	"github.com/petrijr/gantry/pkg/api"
)

const (
	defaultMaxHistory         = 256
	defaultMaxConcurrentSteps = 16
)

// Config carries the collaborators and tuning knobs of an Engine. Zero
// values get sensible defaults in New.
type Config struct {
	// Registry maps step types to executors. Required for any workflow
	// that has steps; an empty registry rejects every typed step.
	Registry *api.ExecutorRegistry

	// Observer receives the lifecycle event stream. Defaults to
	// api.NoopObserver.
	Observer api.Observer

	// Snapshots, when set, receives the latest state of each workflow
	// after every transition. Snapshot failures are logged, never fatal.
	Snapshots persistence.SnapshotStore

	// Clock abstracts time for backoff scheduling. Defaults to the real
	// clock.
	Clock clock.Clock

	// DefaultRetry applies to steps without their own policy. Defaults
	// to a single attempt, no retries.
	DefaultRetry api.RetryPolicy

	// MaxHistory bounds each workflow's transition history; the oldest
	// entries are dropped first. Defaults to 256.
	MaxHistory int

	// MaxConcurrentSteps bounds executor concurrency across all
	// workflows. Defaults to 16.
	MaxConcurrentSteps int64

	Logger *slog.Logger
}

// Engine implements api.Engine. One instance owns its workflow registry;
// independent workflows execute concurrently, while each workflow's
// scheduling section is serialized by a per-workflow mutex.
type Engine struct {
	mu    sync.RWMutex
	runs  map[string]*run
	order []string

	registry    *api.ExecutorRegistry
	observer    api.Observer
	snapshots   persistence.SnapshotStore
	checkpoints *checkpoint.Store
	clock       clock.Clock
	logger      *slog.Logger

	defaultRetry api.RetryPolicy
	maxHistory   int
	sem          *semaphore.Weighted
}

// Ensure Engine implements the public interface.
var _ api.Engine = (*Engine)(nil)

// New creates an Engine from the given configuration.
func New(cfg Config) *Engine {
	if cfg.Registry == nil {
		cfg.Registry = api.NewExecutorRegistry()
	}
	if cfg.Observer == nil {
		cfg.Observer = api.NoopObserver{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.DefaultRetry.MaxAttempts < 1 {
		cfg.DefaultRetry.MaxAttempts = 1
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaultMaxHistory
	}
	if cfg.MaxConcurrentSteps <= 0 {
		cfg.MaxConcurrentSteps = defaultMaxConcurrentSteps
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		runs:         make(map[string]*run),
		registry:     cfg.Registry,
		observer:     cfg.Observer,
		snapshots:    cfg.Snapshots,
		checkpoints:  checkpoint.NewStore(),
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		defaultRetry: cfg.DefaultRetry,
		maxHistory:   cfg.MaxHistory,
		sem:          semaphore.NewWeighted(cfg.MaxConcurrentSteps),
	}
}

// CreateWorkflow validates the definition and registers the workflow in
// status CREATED. All structural errors are rejected here.
func (e *Engine) CreateWorkflow(ctx context.Context, def api.WorkflowDefinition) (*api.Workflow, error) {
	id := def.ID
	if id == "" {
		id = uuid.NewString()
	}

	g := graph.New()
	for _, sd := range def.Steps {
		if err := g.Add(sd.ID, sd.DependsOn...); err != nil {
			return nil, err
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	executors := make(map[string]api.StepExecutor, len(def.Steps))
	steps := make([]api.Step, 0, len(def.Steps))
	for _, sd := range def.Steps {
		ex, ok := e.registry.Resolve(sd.Type)
		if !ok {
			return nil, &api.UnknownStepTypeError{StepID: sd.ID, Type: sd.Type}
		}
		executors[sd.ID] = ex

		var retry *api.RetryPolicy
		if sd.Retry != nil {
			r := *sd.Retry
			retry = &r
		}
		steps = append(steps, api.Step{
			ID:          sd.ID,
			Type:        sd.Type,
			DependsOn:   append([]string(nil), sd.DependsOn...),
			Config:      api.CloneData(sd.Config),
			Status:      api.StepPending,
			Fingerprint: api.ComputeStepFingerprint(sd.Type, sd.Config),
			Retry:       retry,
		})
	}

	wf := &api.Workflow{
		ID:        id,
		Name:      def.Name,
		Status:    api.StatusCreated,
		Steps:     steps,
		Data:      api.CloneData(def.InitialData),
		CreatedAt: e.clock.Now(),
	}
	if wf.Data == nil {
		wf.Data = make(map[string]any)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		wf:        wf,
		graph:     g,
		executors: executors,
		ctx:       runCtx,
		cancel:    cancel,
	}

	e.mu.Lock()
	if _, exists := e.runs[id]; exists {
		e.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("workflow %q: %w", id, api.ErrDuplicateWorkflow)
	}
	e.runs[id] = r
	e.order = append(e.order, id)
	e.mu.Unlock()

	r.mu.Lock()
	e.observer.OnWorkflowCreated(ctx, e.eventLocked(r, api.EventWorkflowCreated))
	e.persistLocked(ctx, r)
	snap := r.wf.Clone()
	r.mu.Unlock()

	return snap, nil
}

// GetWorkflow returns a deep snapshot of the workflow, or nil when the ID
// is not registered.
func (e *Engine) GetWorkflow(ctx context.Context, id string) *api.Workflow {
	r := e.lookup(id)
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wf.Clone()
}

// ListWorkflowsByStatus returns snapshots of every workflow in the given
// status, in creation order.
func (e *Engine) ListWorkflowsByStatus(ctx context.Context, status api.Status) []*api.Workflow {
	e.mu.RLock()
	order := append([]string(nil), e.order...)
	runs := make([]*run, 0, len(order))
	for _, id := range order {
		runs = append(runs, e.runs[id])
	}
	e.mu.RUnlock()

	var out []*api.Workflow
	for _, r := range runs {
		r.mu.Lock()
		if r.wf.Status == status {
			out = append(out, r.wf.Clone())
		}
		r.mu.Unlock()
	}
	return out
}

// RemoveWorkflow deletes the workflow, its checkpoints, and its history
// from the registry, cancelling the context seen by in-flight executors.
func (e *Engine) RemoveWorkflow(ctx context.Context, id string) error {
	e.mu.Lock()
	r, ok := e.runs[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("workflow %q: %w", id, api.ErrWorkflowNotFound)
	}
	delete(e.runs, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	r.mu.Lock()
	r.removed = true
	r.gen++
	r.inflight = 0
	r.cancel()
	r.wakeLocked()
	r.mu.Unlock()

	e.checkpoints.Drop(id)
	if e.snapshots != nil {
		if err := e.snapshots.DeleteSnapshot(ctx, id); err != nil {
			e.logger.WarnContext(ctx, "snapshot delete failed",
				slog.String("workflow_id", id), slog.Any("error", err))
		}
	}
	return nil
}

// History returns a copy of the workflow's transition history, oldest
// first.
func (e *Engine) History(ctx context.Context, id string) ([]api.HistoryEntry, error) {
	r := e.lookup(id)
	if r == nil {
		return nil, fmt.Errorf("workflow %q: %w", id, api.ErrWorkflowNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return api.CloneHistory(r.wf.History), nil
}

// CreateCheckpoint captures a named, immutable snapshot of the workflow's
// steps and data. Capture is atomic with respect to the scheduling loop.
func (e *Engine) CreateCheckpoint(ctx context.Context, workflowID, name string) (*api.Checkpoint, error) {
	r := e.lookup(workflowID)
	if r == nil {
		return nil, fmt.Errorf("workflow %q: %w", workflowID, api.ErrWorkflowNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp, err := e.checkpoints.Capture(workflowID, name, r.wf.Steps, r.wf.Data, e.clock.Now())
	if err != nil {
		return nil, err
	}
	r.wf.Checkpoints = append(r.wf.Checkpoints, name)

	ev := e.eventLocked(r, api.EventCheckpointCreated)
	ev.Detail = name
	e.observer.OnCheckpointCreated(ctx, ev)
	e.persistLocked(ctx, r)

	return &cp, nil
}

// ResetStep returns the step and its whole affected set to PENDING with
// zeroed retry counters. A terminal workflow returns to CREATED. Not
// permitted while the workflow is RUNNING.
func (e *Engine) ResetStep(ctx context.Context, workflowID, stepID string) error {
	r := e.lookup(workflowID)
	if r == nil {
		return fmt.Errorf("workflow %q: %w", workflowID, api.ErrWorkflowNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wf.Status == api.StatusRunning {
		return fmt.Errorf("reset step while workflow is running: %w", api.ErrInvalidState)
	}
	if r.wf.Step(stepID) == nil {
		return fmt.Errorf("step %q: %w", stepID, api.ErrStepNotFound)
	}

	e.invalidateLocked(ctx, r, stepID, map[string]string{"step": stepID, "event": "reset"})
	e.persistLocked(ctx, r)
	return nil
}

// UpdateStepConfig replaces a step's configuration. When the config
// fingerprint changes, the step's affected set is invalidated exactly like
// ResetStep; an unchanged fingerprint is a no-op. Not permitted while the
// workflow is RUNNING.
func (e *Engine) UpdateStepConfig(ctx context.Context, workflowID, stepID string, config map[string]any) error {
	r := e.lookup(workflowID)
	if r == nil {
		return fmt.Errorf("workflow %q: %w", workflowID, api.ErrWorkflowNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wf.Status == api.StatusRunning {
		return fmt.Errorf("update step config while workflow is running: %w", api.ErrInvalidState)
	}
	step := r.wf.Step(stepID)
	if step == nil {
		return fmt.Errorf("step %q: %w", stepID, api.ErrStepNotFound)
	}

	fp := api.ComputeStepFingerprint(step.Type, config)
	if fp == step.Fingerprint {
		return nil
	}
	step.Config = api.CloneData(config)
	step.Fingerprint = fp

	e.invalidateLocked(ctx, r, stepID, map[string]string{"step": stepID, "event": "config_changed"})
	e.persistLocked(ctx, r)
	return nil
}

// invalidateLocked resets the affected set of stepID and, when the
// workflow is terminal, returns it to CREATED so it can be started again.
// In-flight results and pending retry timers are discarded via the
// generation counter.
func (e *Engine) invalidateLocked(ctx context.Context, r *run, stepID string, detail map[string]string) {
	r.gen++
	r.inflight = 0
	r.wakeLocked()

	affected := r.graph.AffectedBy(stepID)
	for i := range r.wf.Steps {
		s := &r.wf.Steps[i]
		if _, ok := affected[s.ID]; !ok {
			continue
		}
		s.Status = api.StepPending
		s.Retries = 0
		s.LastError = ""
		s.Result = nil
		s.StartedAt = nil
		s.CompletedAt = nil
	}

	if r.wf.Status == api.StatusCompleted || r.wf.Status == api.StatusFailed {
		e.transitionLocked(ctx, r, api.StatusCreated, detail)
	} else {
		e.appendHistoryLocked(r, r.wf.Status, r.wf.Status, detail)
	}
}

// lookup returns the run for id, or nil.
func (e *Engine) lookup(id string) *run {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runs[id]
}
