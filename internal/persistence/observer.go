package persistence

import (
	"context"
	"log/slog"

	"github.com/petrijr/gantry/pkg/api"
)

// Observer is the persistence adapter: an api.Observer that appends every
// lifecycle event to an EventStore. It consumes the event stream and never
// produces into it.
//
// Store errors must not stall workflow execution, so they are logged and
// swallowed.
type Observer struct {
	events EventStore
	logger *slog.Logger
}

// NewObserver creates a persistence adapter writing to the given store.
// If logger is nil, slog.Default() is used for store-error reporting.
func NewObserver(events EventStore, logger *slog.Logger) *Observer {
	if events == nil {
		events = NoopEventStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{events: events, logger: logger}
}

// Ensure Observer implements api.Observer.
var _ api.Observer = (*Observer)(nil)

func (o *Observer) append(ctx context.Context, ev api.Event) {
	if err := o.events.AppendEvent(ctx, ev); err != nil {
		o.logger.ErrorContext(ctx, "event append failed",
			slog.String("workflow_id", ev.WorkflowID),
			slog.String("type", string(ev.Type)),
			slog.Any("error", err),
		)
	}
}

func (o *Observer) OnWorkflowCreated(ctx context.Context, ev api.Event)   { o.append(ctx, ev) }
func (o *Observer) OnStateChanged(ctx context.Context, ev api.Event)      { o.append(ctx, ev) }
func (o *Observer) OnStepStarted(ctx context.Context, ev api.Event)       { o.append(ctx, ev) }
func (o *Observer) OnStepCompleted(ctx context.Context, ev api.Event)     { o.append(ctx, ev) }
func (o *Observer) OnStepFailed(ctx context.Context, ev api.Event)        { o.append(ctx, ev) }
func (o *Observer) OnStepRetry(ctx context.Context, ev api.Event)         { o.append(ctx, ev) }
func (o *Observer) OnCheckpointCreated(ctx context.Context, ev api.Event) { o.append(ctx, ev) }
func (o *Observer) OnRollback(ctx context.Context, ev api.Event)          { o.append(ctx, ev) }
