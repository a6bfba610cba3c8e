package engine

import (
	"context"
	"fmt"

	"github.com/petrijr/gantry/internal/graph"
	"github.com/petrijr/gantry/internal/persistence"
	"github.com/petrijr/gantry/pkg/api"
)

// RecoverWorkflows loads every snapshot from the snapshot store into the
// registry. Workflows that were RUNNING when the snapshot was taken come
// back PAUSED, with any step caught mid-execution returned to PENDING;
// the in-flight attempt was lost with the process, so the caller resumes
// them explicitly with StartWorkflow.
//
// Already-registered workflow IDs are skipped. It returns the number of
// workflows recovered.
func (e *Engine) RecoverWorkflows(ctx context.Context) (int, error) {
	if e.snapshots == nil {
		return 0, nil
	}

	snaps, err := e.snapshots.ListSnapshots(ctx, persistence.SnapshotFilter{})
	if err != nil {
		return 0, fmt.Errorf("list snapshots: %w", err)
	}

	recovered := 0
	for _, wf := range snaps {
		if e.lookup(wf.ID) != nil {
			continue
		}

		g := graph.New()
		executors := make(map[string]api.StepExecutor, len(wf.Steps))
		for i := range wf.Steps {
			s := &wf.Steps[i]
			if err := g.Add(s.ID, s.DependsOn...); err != nil {
				return recovered, fmt.Errorf("recover workflow %q: %w", wf.ID, err)
			}
			ex, ok := e.registry.Resolve(s.Type)
			if !ok {
				return recovered, fmt.Errorf("recover workflow %q: %w", wf.ID,
					&api.UnknownStepTypeError{StepID: s.ID, Type: s.Type})
			}
			executors[s.ID] = ex

			if s.Status == api.StepRunning {
				s.Status = api.StepPending
				s.StartedAt = nil
			}
		}
		if err := g.Validate(); err != nil {
			return recovered, fmt.Errorf("recover workflow %q: %w", wf.ID, err)
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
		if _, exists := e.runs[wf.ID]; exists {
			e.mu.Unlock()
			cancel()
			continue
		}
		e.runs[wf.ID] = r
		e.order = append(e.order, wf.ID)
		e.mu.Unlock()

		if wf.Status == api.StatusRunning {
			r.mu.Lock()
			e.transitionLocked(ctx, r, api.StatusPaused, map[string]string{"event": "recovered"})
			e.persistLocked(ctx, r)
			r.mu.Unlock()
		}
		recovered++
	}
	return recovered, nil
}
