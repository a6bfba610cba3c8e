package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/petrijr/gantry/internal/graph"
	"github.com/petrijr/gantry/pkg/api"
)

type signalKind int

const (
	sigWake signalKind = iota
	sigStepResult
	sigRetryDue
)

// signal is one item on a run's event queue. Step results and retry-timer
// expirations flow through it so that all scheduling decisions happen in
// the runner goroutine, never recursively on an executor's stack.
type signal struct {
	kind signalKind
	gen  uint64

	stepID   string
	result   map[string]any
	err      error
	duration time.Duration
}

// run is the engine's live state for one workflow. All fields behind mu;
// wf is the authoritative state, snapshots are cloned from it.
type run struct {
	mu sync.Mutex

	wf        *api.Workflow
	graph     *graph.Graph
	executors map[string]api.StepExecutor

	// gen invalidates in-flight executor results and retry timers after
	// rollback, reset, or config changes. A signal whose gen does not
	// match the current one is discarded.
	gen      uint64
	inflight int

	events       chan signal
	done         chan struct{}
	runnerActive bool

	// ctx is cancelled when the workflow is removed from the registry.
	ctx     context.Context
	cancel  context.CancelFunc
	removed bool
}

// wakeLocked nudges the runner goroutine without blocking. A dropped wake
// is harmless: the queue already holds something that will trigger the
// same re-evaluation.
func (r *run) wakeLocked() {
	if r.events == nil {
		return
	}
	select {
	case r.events <- signal{kind: sigWake, gen: r.gen}:
	default:
	}
}

// StartWorkflow begins (or resumes, when paused) execution. Only CREATED
// and PAUSED workflows can be started.
func (e *Engine) StartWorkflow(ctx context.Context, id string) error {
	r := e.lookup(id)
	if r == nil {
		return fmt.Errorf("workflow %q: %w", id, api.ErrWorkflowNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.wf.Status {
	case api.StatusCreated, api.StatusPaused:
	default:
		return fmt.Errorf("start workflow in status %s: %w", r.wf.Status, api.ErrInvalidState)
	}

	e.transitionLocked(ctx, r, api.StatusRunning, nil)
	e.startRunnerLocked(r)
	e.persistLocked(ctx, r)
	return nil
}

// PauseWorkflow stops new step dispatches. In-flight executors run to
// completion and their results are processed normally.
func (e *Engine) PauseWorkflow(ctx context.Context, id string) error {
	r := e.lookup(id)
	if r == nil {
		return fmt.Errorf("workflow %q: %w", id, api.ErrWorkflowNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wf.Status != api.StatusRunning {
		return fmt.Errorf("pause workflow in status %s: %w", r.wf.Status, api.ErrInvalidState)
	}

	e.transitionLocked(ctx, r, api.StatusPaused, nil)
	e.persistLocked(ctx, r)
	r.wakeLocked()
	return nil
}

// RollbackToCheckpoint atomically replaces the workflow's step statuses,
// retry counters, and data map with the checkpoint's captured state, keeps
// the checkpoint list intact, and re-enters the scheduling loop in status
// RUNNING.
func (e *Engine) RollbackToCheckpoint(ctx context.Context, workflowID, name string) error {
	r := e.lookup(workflowID)
	if r == nil {
		return fmt.Errorf("workflow %q: %w", workflowID, api.ErrWorkflowNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp, err := e.checkpoints.Restore(workflowID, name)
	if err != nil {
		return err
	}

	// Discard whatever is in flight from before the rollback.
	r.gen++
	r.inflight = 0

	r.wf.Steps = cp.Steps
	r.wf.Data = cp.Data
	for i := range r.wf.Steps {
		// A step captured mid-execution has no attempt backing it
		// anymore; it goes through dispatch again.
		if s := &r.wf.Steps[i]; s.Status == api.StepRunning {
			s.Status = api.StepPending
			s.StartedAt = nil
		}
	}

	detail := map[string]string{"checkpoint": name}
	if r.wf.Status != api.StatusRunning {
		e.transitionLocked(ctx, r, api.StatusRunning, detail)
	} else {
		e.appendHistoryLocked(r, api.StatusRunning, api.StatusRunning, detail)
	}

	ev := e.eventLocked(r, api.EventWorkflowRollback)
	ev.Detail = name
	e.observer.OnRollback(ctx, ev)

	if r.runnerActive {
		r.wakeLocked()
	} else {
		e.startRunnerLocked(r)
	}
	e.persistLocked(ctx, r)
	return nil
}

// WaitForWorkflow blocks until the workflow reaches COMPLETED or FAILED,
// or is PAUSED with no in-flight steps left, or ctx is done, and returns a
// final snapshot. Waiting on a CREATED workflow that was never started is
// an error.
func (e *Engine) WaitForWorkflow(ctx context.Context, id string) (*api.Workflow, error) {
	r := e.lookup(id)
	if r == nil {
		return nil, fmt.Errorf("workflow %q: %w", id, api.ErrWorkflowNotFound)
	}

	for {
		r.mu.Lock()
		if r.removed {
			r.mu.Unlock()
			return nil, fmt.Errorf("workflow %q: %w", id, api.ErrWorkflowNotFound)
		}
		switch r.wf.Status {
		case api.StatusCompleted, api.StatusFailed:
			snap := r.wf.Clone()
			r.mu.Unlock()
			return snap, nil
		case api.StatusPaused:
			if !r.runnerActive {
				snap := r.wf.Clone()
				r.mu.Unlock()
				return snap, nil
			}
		case api.StatusCreated:
			if !r.runnerActive {
				r.mu.Unlock()
				return nil, fmt.Errorf("wait for workflow that was never started: %w", api.ErrInvalidState)
			}
		}
		done := r.done
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-done:
		}
	}
}

// startRunnerLocked creates a fresh event queue and done channel and
// launches the runner goroutine. The queue is sized so that every
// in-flight step and retry timer can deliver its one outstanding signal
// without ever blocking a sender.
func (e *Engine) startRunnerLocked(r *run) {
	if r.runnerActive {
		// Resume while the previous runner is still draining: it picks
		// up the new status on the next signal.
		r.wakeLocked()
		return
	}
	r.events = make(chan signal, 2*len(r.wf.Steps)+8)
	r.done = make(chan struct{})
	r.runnerActive = true
	r.wakeLocked()
	go e.runLoop(r, r.events)
}

// runLoop drains the run's event queue until the workflow reaches a
// resting state. It is the single place where scheduling decisions for
// one workflow are made.
func (e *Engine) runLoop(r *run, events <-chan signal) {
	for sig := range events {
		if e.step(r, sig) {
			return
		}
	}
}

// step processes one queued signal and re-evaluates scheduling. It
// reports whether the runner should exit.
func (e *Engine) step(r *run, sig signal) (exit bool) {
	ctx := context.Background()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removed {
		return r.exitLocked()
	}
	if sig.gen != r.gen {
		return false
	}

	switch sig.kind {
	case sigStepResult:
		e.handleResultLocked(ctx, r, sig)
	case sigRetryDue:
		e.handleRetryDueLocked(r, sig)
	}

	switch r.wf.Status {
	case api.StatusRunning:
		e.dispatchLocked(ctx, r)
		if r.inflight == 0 {
			e.finishLocked(ctx, r)
			return r.exitLocked()
		}
	default:
		// Paused (or reset back to CREATED): drain in-flight work,
		// then park the runner.
		if r.inflight == 0 {
			e.persistLocked(ctx, r)
			return r.exitLocked()
		}
	}
	return false
}

// exitLocked marks the runner stopped and releases waiters.
func (r *run) exitLocked() bool {
	r.runnerActive = false
	close(r.done)
	return true
}

// dispatchLocked moves every eligible step to RUNNING and hands it to its
// executor on a fresh goroutine. The run lock is never held across an
// executor call.
func (e *Engine) dispatchLocked(ctx context.Context, r *run) {
	eligible := r.graph.Eligible(func(id string) api.StepStatus {
		return r.wf.Step(id).Status
	})

	for _, id := range eligible {
		step := r.wf.Step(id)
		now := e.clock.Now()
		step.Status = api.StepRunning
		step.StartedAt = &now
		r.inflight++

		ev := e.eventLocked(r, api.EventStepStarted)
		ev.Step = id
		e.observer.OnStepStarted(ctx, ev)

		sc := api.StepContext{
			WorkflowID: r.wf.ID,
			StepID:     id,
			StepType:   step.Type,
			Attempt:    step.Retries + 1,
			Config:     api.CloneData(step.Config),
			Data:       api.CloneData(r.wf.Data),
		}
		go e.execute(r, r.gen, r.executors[id], sc, r.events)
	}
}

// execute runs one step attempt under the engine-wide concurrency limit
// and queues the result. It runs outside any lock.
func (e *Engine) execute(r *run, gen uint64, ex api.StepExecutor, sc api.StepContext, events chan<- signal) {
	if err := e.sem.Acquire(r.ctx, 1); err != nil {
		events <- signal{kind: sigStepResult, gen: gen, stepID: sc.StepID, err: err}
		return
	}
	started := e.clock.Now()
	result, err := ex.Execute(r.ctx, sc)
	duration := e.clock.Now().Sub(started)
	e.sem.Release(1)

	events <- signal{
		kind:     sigStepResult,
		gen:      gen,
		stepID:   sc.StepID,
		result:   result,
		err:      err,
		duration: duration,
	}
}

// handleResultLocked applies one executor result: success completes the
// step and merges its result into the workflow data; failure either
// schedules a retry after backoff or marks the step failed for good.
func (e *Engine) handleResultLocked(ctx context.Context, r *run, sig signal) {
	step := r.wf.Step(sig.stepID)
	if step == nil || step.Status != api.StepRunning {
		return
	}
	r.inflight--

	if sig.err == nil {
		now := e.clock.Now()
		step.Status = api.StepCompleted
		step.CompletedAt = &now
		step.LastError = ""
		step.Result = api.CloneData(sig.result)
		for k, v := range step.Result {
			r.wf.Data[k] = v
		}

		ev := e.eventLocked(r, api.EventStepCompleted)
		ev.Step = sig.stepID
		ev.Duration = sig.duration
		e.observer.OnStepCompleted(ctx, ev)
		e.appendHistoryLocked(r, r.wf.Status, r.wf.Status, map[string]string{
			"step": sig.stepID, "event": "completed",
		})
		e.persistLocked(ctx, r)
		return
	}

	step.LastError = sig.err.Error()
	policy := e.defaultRetry
	if step.Retry != nil {
		policy = *step.Retry
	}

	attempts := step.Retries + 1
	if policy.ShouldRetry(attempts) {
		step.Retries++
		// The step stays RUNNING while the backoff timer counts down;
		// the timer is inflight work, so the workflow cannot finish
		// underneath it.
		r.inflight++

		ev := e.eventLocked(r, api.EventStepRetry)
		ev.Step = sig.stepID
		ev.Attempt = step.Retries
		ev.Detail = step.LastError
		e.observer.OnStepRetry(ctx, ev)
		e.appendHistoryLocked(r, r.wf.Status, r.wf.Status, map[string]string{
			"step": sig.stepID, "event": "retry", "error": step.LastError,
		})

		gen := r.gen
		stepID := sig.stepID
		events := r.events
		e.clock.AfterFunc(policy.Backoff(step.Retries), func() {
			events <- signal{kind: sigRetryDue, gen: gen, stepID: stepID}
		})
		return
	}

	now := e.clock.Now()
	step.Status = api.StepFailed
	step.CompletedAt = &now

	ev := e.eventLocked(r, api.EventStepFailed)
	ev.Step = sig.stepID
	ev.Duration = sig.duration
	ev.Detail = step.LastError
	e.observer.OnStepFailed(ctx, ev)
	e.appendHistoryLocked(r, r.wf.Status, r.wf.Status, map[string]string{
		"step": sig.stepID, "event": "failed", "error": step.LastError,
	})
	e.persistLocked(ctx, r)
}

// handleRetryDueLocked returns a step from its backoff wait to PENDING so
// the next dispatch pass can pick it up. If the workflow was paused in
// the meantime the step simply stays PENDING until resume.
func (e *Engine) handleRetryDueLocked(r *run, sig signal) {
	step := r.wf.Step(sig.stepID)
	if step == nil || step.Status != api.StepRunning {
		return
	}
	r.inflight--
	step.Status = api.StepPending
	step.StartedAt = nil
}

// finishLocked decides the terminal status once nothing is in flight and
// nothing is eligible: COMPLETED iff every step completed, FAILED
// otherwise (a failed step blocks its dependents forever).
func (e *Engine) finishLocked(ctx context.Context, r *run) {
	allCompleted := true
	for i := range r.wf.Steps {
		if r.wf.Steps[i].Status != api.StepCompleted {
			allCompleted = false
			break
		}
	}

	if allCompleted {
		e.transitionLocked(ctx, r, api.StatusCompleted, nil)
	} else {
		e.transitionLocked(ctx, r, api.StatusFailed, nil)
	}
	e.persistLocked(ctx, r)
}

// transitionLocked moves the workflow to a new status, appends history,
// and notifies the observer.
func (e *Engine) transitionLocked(ctx context.Context, r *run, to api.Status, detail map[string]string) {
	from := r.wf.Status
	r.wf.Status = to
	e.appendHistoryLocked(r, from, to, detail)

	ev := e.eventLocked(r, api.EventWorkflowStateChanged)
	ev.From = from
	ev.To = to
	e.observer.OnStateChanged(ctx, ev)
}

// appendHistoryLocked records one transition, truncating from the oldest
// end when the configured bound is exceeded.
func (e *Engine) appendHistoryLocked(r *run, from, to api.Status, detail map[string]string) {
	r.wf.History = append(r.wf.History, api.HistoryEntry{
		WorkflowID: r.wf.ID,
		From:       from,
		To:         to,
		At:         e.clock.Now(),
		Detail:     detail,
	})
	if n := len(r.wf.History) - e.maxHistory; n > 0 {
		r.wf.History = append([]api.HistoryEntry(nil), r.wf.History[n:]...)
	}
}

func (e *Engine) eventLocked(r *run, typ api.EventType) api.Event {
	return api.Event{
		WorkflowID:   r.wf.ID,
		WorkflowName: r.wf.Name,
		At:           e.clock.Now(),
		Type:         typ,
	}
}

// persistLocked writes the current snapshot to the snapshot store, if one
// is configured. Persistence failures must not stall execution.
func (e *Engine) persistLocked(ctx context.Context, r *run) {
	if e.snapshots == nil {
		return
	}
	if err := e.snapshots.SaveSnapshot(ctx, r.wf); err != nil {
		e.logger.WarnContext(ctx, "snapshot save failed",
			slog.String("workflow_id", r.wf.ID), slog.Any("error", err))
	}
}
