package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives lifecycle events from the workflow engine for logging,
// metrics, persistence, and notifications.
//
// Callbacks for a single workflow are invoked in transition order, from the
// engine's serialized scheduling section. Implementations should be fast and
// non-blocking; heavy work should be done asynchronously so as not to delay
// workflow execution.
type Observer interface {
	// OnWorkflowCreated is called once when a workflow is registered.
	OnWorkflowCreated(ctx context.Context, ev Event)

	// OnStateChanged is called on every workflow status transition,
	// with ev.From and ev.To populated.
	OnStateChanged(ctx context.Context, ev Event)

	// OnStepStarted is called when a step is dispatched to its executor.
	OnStepStarted(ctx context.Context, ev Event)

	// OnStepCompleted is called when a step's executor returns success.
	OnStepCompleted(ctx context.Context, ev Event)

	// OnStepFailed is called when a step exhausts its retry budget.
	OnStepFailed(ctx context.Context, ev Event)

	// OnStepRetry is called when a failed step is scheduled for another
	// attempt, with ev.Attempt set to the 1-indexed retry number.
	OnStepRetry(ctx context.Context, ev Event)

	// OnCheckpointCreated is called after a checkpoint is captured.
	OnCheckpointCreated(ctx context.Context, ev Event)

	// OnRollback is called after a workflow is rolled back to a
	// checkpoint, with ev.Detail set to the checkpoint name.
	OnRollback(ctx context.Context, ev Event)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnWorkflowCreated(ctx context.Context, ev Event)   {}
func (NoopObserver) OnStateChanged(ctx context.Context, ev Event)      {}
func (NoopObserver) OnStepStarted(ctx context.Context, ev Event)       {}
func (NoopObserver) OnStepCompleted(ctx context.Context, ev Event)     {}
func (NoopObserver) OnStepFailed(ctx context.Context, ev Event)        {}
func (NoopObserver) OnStepRetry(ctx context.Context, ev Event)         {}
func (NoopObserver) OnCheckpointCreated(ctx context.Context, ev Event) {}
func (NoopObserver) OnRollback(ctx context.Context, ev Event)          {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnWorkflowCreated(ctx context.Context, ev Event) {
	for _, o := range c.observers {
		o.OnWorkflowCreated(ctx, ev)
	}
}

func (c *CompositeObserver) OnStateChanged(ctx context.Context, ev Event) {
	for _, o := range c.observers {
		o.OnStateChanged(ctx, ev)
	}
}

func (c *CompositeObserver) OnStepStarted(ctx context.Context, ev Event) {
	for _, o := range c.observers {
		o.OnStepStarted(ctx, ev)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, ev Event) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, ev)
	}
}

func (c *CompositeObserver) OnStepFailed(ctx context.Context, ev Event) {
	for _, o := range c.observers {
		o.OnStepFailed(ctx, ev)
	}
}

func (c *CompositeObserver) OnStepRetry(ctx context.Context, ev Event) {
	for _, o := range c.observers {
		o.OnStepRetry(ctx, ev)
	}
}

func (c *CompositeObserver) OnCheckpointCreated(ctx context.Context, ev Event) {
	for _, o := range c.observers {
		o.OnCheckpointCreated(ctx, ev)
	}
}

func (c *CompositeObserver) OnRollback(ctx context.Context, ev Event) {
	for _, o := range c.observers {
		o.OnRollback(ctx, ev)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs workflow / step lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnWorkflowCreated(ctx context.Context, ev Event) {
	o.Logger.InfoContext(ctx, "workflow_created",
		slog.String("workflow", ev.WorkflowName),
		slog.String("workflow_id", ev.WorkflowID),
	)
}

func (o *LoggingObserver) OnStateChanged(ctx context.Context, ev Event) {
	level := slog.LevelInfo
	if ev.To == StatusFailed {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "workflow_state_changed",
		slog.String("workflow", ev.WorkflowName),
		slog.String("workflow_id", ev.WorkflowID),
		slog.String("from", string(ev.From)),
		slog.String("to", string(ev.To)),
	)
}

func (o *LoggingObserver) OnStepStarted(ctx context.Context, ev Event) {
	o.Logger.DebugContext(ctx, "step_started",
		slog.String("workflow_id", ev.WorkflowID),
		slog.String("step", ev.Step),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, ev Event) {
	o.Logger.DebugContext(ctx, "step_completed",
		slog.String("workflow_id", ev.WorkflowID),
		slog.String("step", ev.Step),
		slog.Duration("duration", ev.Duration),
	)
}

func (o *LoggingObserver) OnStepFailed(ctx context.Context, ev Event) {
	o.Logger.ErrorContext(ctx, "step_failed",
		slog.String("workflow_id", ev.WorkflowID),
		slog.String("step", ev.Step),
		slog.String("error", ev.Detail),
	)
}

func (o *LoggingObserver) OnStepRetry(ctx context.Context, ev Event) {
	o.Logger.WarnContext(ctx, "step_retry",
		slog.String("workflow_id", ev.WorkflowID),
		slog.String("step", ev.Step),
		slog.Int("attempt", ev.Attempt),
		slog.String("error", ev.Detail),
	)
}

func (o *LoggingObserver) OnCheckpointCreated(ctx context.Context, ev Event) {
	o.Logger.InfoContext(ctx, "checkpoint_created",
		slog.String("workflow_id", ev.WorkflowID),
		slog.String("checkpoint", ev.Detail),
	)
}

func (o *LoggingObserver) OnRollback(ctx context.Context, ev Event) {
	o.Logger.InfoContext(ctx, "workflow_rollback",
		slog.String("workflow_id", ev.WorkflowID),
		slog.String("checkpoint", ev.Detail),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	workflowsCreated   atomic.Int64
	workflowsCompleted atomic.Int64
	workflowsFailed    atomic.Int64
	stepsCompleted     atomic.Int64
	stepsFailed        atomic.Int64
	stepRetries        atomic.Int64
	rollbacks          atomic.Int64
	totalStepDuration  atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	WorkflowsCreated   int64
	WorkflowsCompleted int64
	WorkflowsFailed    int64

	StepsCompleted  int64
	StepsFailed     int64
	StepRetries     int64
	Rollbacks       int64
	AvgStepDuration time.Duration
}

func (m *BasicMetrics) OnWorkflowCreated(ctx context.Context, ev Event) {
	m.workflowsCreated.Add(1)
}

func (m *BasicMetrics) OnStateChanged(ctx context.Context, ev Event) {
	switch ev.To {
	case StatusCompleted:
		m.workflowsCompleted.Add(1)
	case StatusFailed:
		m.workflowsFailed.Add(1)
	}
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, ev Event) {
	m.stepsCompleted.Add(1)
	m.totalStepDuration.Add(ev.Duration.Nanoseconds())
}

func (m *BasicMetrics) OnStepFailed(ctx context.Context, ev Event) {
	m.stepsFailed.Add(1)
}

func (m *BasicMetrics) OnStepRetry(ctx context.Context, ev Event) {
	m.stepRetries.Add(1)
}

func (m *BasicMetrics) OnRollback(ctx context.Context, ev Event) {
	m.rollbacks.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	steps := m.stepsCompleted.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		WorkflowsCreated:   m.workflowsCreated.Load(),
		WorkflowsCompleted: m.workflowsCompleted.Load(),
		WorkflowsFailed:    m.workflowsFailed.Load(),
		StepsCompleted:     steps,
		StepsFailed:        m.stepsFailed.Load(),
		StepRetries:        m.stepRetries.Load(),
		Rollbacks:          m.rollbacks.Load(),
		AvgStepDuration:    avg,
	}
}
