// Package persistence provides the durability side of the engine: an
// append-only event store fed by the lifecycle event stream, and a snapshot
// store holding the latest state of each workflow. In-memory and SQLite
// implementations ship in this package; the redis submodule provides
// Redis-backed equivalents.
package persistence

import (
	"context"
	"errors"

	"github.com/petrijr/gantry/pkg/api"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for a
	// workflow ID.
	ErrSnapshotNotFound = errors.New("workflow snapshot not found")
)

// SnapshotFilter selects snapshots from the store. Zero values mean
// "no filter" for that field.
type SnapshotFilter struct {
	Name   string
	Status api.Status
}

// SnapshotStore holds the latest persisted state of each workflow.
type SnapshotStore interface {
	// SaveSnapshot inserts or replaces the snapshot for w.ID.
	SaveSnapshot(ctx context.Context, w *api.Workflow) error

	// GetSnapshot returns the snapshot for the given workflow ID.
	GetSnapshot(ctx context.Context, id string) (*api.Workflow, error)

	// ListSnapshots returns snapshots matching the filter.
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*api.Workflow, error)

	// DeleteSnapshot removes the snapshot; deleting a missing one is not
	// an error.
	DeleteSnapshot(ctx context.Context, id string) error
}

// EventStore is an append-only history store for workflow lifecycle events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.Event) error
	ListEvents(ctx context.Context, workflowID string) ([]api.Event, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.Event) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, workflowID string) ([]api.Event, error) {
	return nil, nil
}
