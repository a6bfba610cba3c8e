// Package checkpoint implements named, immutable snapshots of workflow
// state. Capture and restore both copy deeply, so the live workflow, the
// stored checkpoint, and the restored state never share mutable references.
package checkpoint

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/gantry/pkg/api"
)

// Store holds checkpoints keyed by workflow ID and checkpoint name.
// It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	byWorkflow map[string]map[string]api.Checkpoint
	names      map[string][]string // creation order per workflow
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		byWorkflow: make(map[string]map[string]api.Checkpoint),
		names:      make(map[string][]string),
	}
}

// Capture takes a deep snapshot of the given steps and data under the given
// name, stamped with the given capture time. Re-using a name within the
// same workflow is an error.
func (s *Store) Capture(workflowID, name string, steps []api.Step, data map[string]any, at time.Time) (api.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cps := s.byWorkflow[workflowID]
	if cps == nil {
		cps = make(map[string]api.Checkpoint)
		s.byWorkflow[workflowID] = cps
	}
	if _, exists := cps[name]; exists {
		return api.Checkpoint{}, fmt.Errorf("checkpoint %q: %w", name, api.ErrDuplicateCheckpoint)
	}

	cp := api.Checkpoint{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Name:       name,
		CreatedAt:  at,
		Steps:      api.CloneSteps(steps),
		Data:       api.CloneData(data),
	}
	cps[name] = cp
	s.names[workflowID] = append(s.names[workflowID], name)

	return cloneCheckpoint(cp), nil
}

// Restore returns a deep copy of the named checkpoint. The stored
// checkpoint is left untouched, so repeated rollback to the same point is
// possible.
func (s *Store) Restore(workflowID, name string) (api.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.byWorkflow[workflowID][name]
	if !ok {
		return api.Checkpoint{}, fmt.Errorf("checkpoint %q: %w", name, api.ErrCheckpointNotFound)
	}
	return cloneCheckpoint(cp), nil
}

// Names returns the workflow's checkpoint names in creation order.
func (s *Store) Names(workflowID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.names[workflowID]...)
}

// Drop releases every checkpoint owned by the workflow. Called when the
// workflow is removed from the registry.
func (s *Store) Drop(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byWorkflow, workflowID)
	delete(s.names, workflowID)
}

func cloneCheckpoint(cp api.Checkpoint) api.Checkpoint {
	out := cp
	out.Steps = api.CloneSteps(cp.Steps)
	out.Data = api.CloneData(cp.Data)
	return out
}
