package persistence

import (
	"context"
	"sync"

	"github.com/petrijr/gantry/pkg/api"
)

// MemoryStore is a simple, goroutine-safe implementation of SnapshotStore
// and EventStore backed by maps. It is the default for engines without a
// durable backend.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*api.Workflow
	order     []string
	events    map[string][]api.Event
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*api.Workflow),
		events:    make(map[string][]api.Event),
	}
}

// Ensure MemoryStore implements the interfaces.
var _ SnapshotStore = (*MemoryStore)(nil)

var _ EventStore = (*MemoryStore)(nil)

func (s *MemoryStore) SaveSnapshot(ctx context.Context, w *api.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[w.ID]; !exists {
		s.order = append(s.order, w.ID)
	}
	s.snapshots[w.ID] = w.Clone()
	return nil
}

func (s *MemoryStore) GetSnapshot(ctx context.Context, id string) (*api.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.snapshots[id]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return w.Clone(), nil
}

func (s *MemoryStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*api.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*api.Workflow
	for _, id := range s.order {
		w, ok := s.snapshots[id]
		if !ok {
			continue
		}
		if filter.Name != "" && w.Name != filter.Name {
			continue
		}
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		out = append(out, w.Clone())
	}
	return out, nil
}

func (s *MemoryStore) DeleteSnapshot(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[id]; exists {
		delete(s.snapshots, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, ev api.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[ev.WorkflowID] = append(s.events[ev.WorkflowID], ev)
	return nil
}

func (s *MemoryStore) ListEvents(ctx context.Context, workflowID string) ([]api.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]api.Event(nil), s.events[workflowID]...), nil
}
