package api

import (
	"time"
)

// Status represents the lifecycle state of a workflow.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusRunning   Status = "RUNNING"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// StepStatus represents the lifecycle state of a single step.
type StepStatus string

const (
	StepPending   StepStatus = "PENDING"
	StepRunning   StepStatus = "RUNNING"
	StepCompleted StepStatus = "COMPLETED"
	StepFailed    StepStatus = "FAILED"
)

// RetryPolicy controls how a step is retried when its executor returns an
// error. MaxAttempts includes the first attempt. For example:
//
//	MaxAttempts = 1 => no retries (just the initial call)
//	MaxAttempts = 3 => initial call + up to 2 retries
//
// Backoff between retries is exponential: Base * 2^attempt, where attempt
// starts at 1 for the first retry. Max, when > 0, caps the delay.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

// ShouldRetry reports whether another attempt is allowed after 'attempt'
// attempts have already been made.
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}

// Backoff returns the delay before retry number 'attempt' (1-indexed).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	return d
}

// StepDefinition describes one step of a workflow at creation time.
type StepDefinition struct {
	// ID must be unique within the workflow.
	ID string

	// Type selects which registered StepExecutor handles this step.
	Type string

	// DependsOn lists the IDs of steps that must complete before this
	// step becomes eligible. All IDs must refer to steps in the same
	// workflow; a step may not depend on itself, directly or transitively.
	DependsOn []string

	// Config is opaque executor configuration, passed through unchanged.
	Config map[string]any

	// Retry overrides the engine's default retry policy for this step.
	Retry *RetryPolicy
}

// WorkflowDefinition describes a workflow to be created.
type WorkflowDefinition struct {
	// ID must be unique within the engine's registry. When empty, the
	// engine assigns a generated one.
	ID string

	Name  string
	Steps []StepDefinition

	// InitialData seeds the workflow's shared data map.
	InitialData map[string]any
}

// Step is the runtime state of a single workflow step.
type Step struct {
	ID        string
	Type      string
	DependsOn []string
	Config    map[string]any

	Status      StepStatus
	Retries     int
	StartedAt   *time.Time
	CompletedAt *time.Time
	LastError   string

	// Result is the payload returned by the executor on success. It is
	// also merged into the workflow's data map.
	Result map[string]any

	// Fingerprint is a hash of Type and Config, used to detect config
	// changes for incremental re-execution.
	Fingerprint uint64

	Retry *RetryPolicy
}

// Clone returns a deep copy of the step with no shared mutable state.
func (s Step) Clone() Step {
	c := s
	c.DependsOn = append([]string(nil), s.DependsOn...)
	c.Config = CloneData(s.Config)
	c.Result = CloneData(s.Result)
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.Retry != nil {
		r := *s.Retry
		c.Retry = &r
	}
	return c
}

// Workflow is a point-in-time snapshot of a workflow's state. Engine
// accessors always return snapshots; mutating one never affects the
// engine's live state.
type Workflow struct {
	ID     string
	Name   string
	Status Status

	Steps []Step

	// Data is the shared data map accumulated from step results.
	Data map[string]any

	// History is the bounded, append-only record of state transitions,
	// oldest first.
	History []HistoryEntry

	// Checkpoints lists checkpoint names in creation order.
	Checkpoints []string

	CreatedAt time.Time
}

// Clone returns a deep copy of the workflow snapshot.
func (w *Workflow) Clone() *Workflow {
	c := *w
	c.Steps = CloneSteps(w.Steps)
	c.Data = CloneData(w.Data)
	c.History = CloneHistory(w.History)
	c.Checkpoints = append([]string(nil), w.Checkpoints...)
	return &c
}

// Step returns the step with the given ID, or nil when absent.
func (w *Workflow) Step(id string) *Step {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i]
		}
	}
	return nil
}

// Checkpoint is a named, immutable snapshot of a workflow's steps and data.
// Restoring it never mutates the checkpoint itself, so repeated rollback to
// the same point is possible.
type Checkpoint struct {
	ID         string
	WorkflowID string
	Name       string
	CreatedAt  time.Time

	Steps []Step
	Data  map[string]any
}

// HistoryEntry records a single workflow state transition.
type HistoryEntry struct {
	WorkflowID string
	From       Status
	To         Status
	At         time.Time
	Detail     map[string]string
}

// CloneSteps returns a deep copy of a step slice.
func CloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i := range steps {
		out[i] = steps[i].Clone()
	}
	return out
}

// CloneHistory returns a deep copy of a history slice.
func CloneHistory(entries []HistoryEntry) []HistoryEntry {
	if entries == nil {
		return nil
	}
	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = e
		if e.Detail != nil {
			d := make(map[string]string, len(e.Detail))
			for k, v := range e.Detail {
				d[k] = v
			}
			out[i].Detail = d
		}
	}
	return out
}

// CloneData returns a deep copy of a data map. Nested map[string]any and
// []any values are copied recursively; all other values are copied as-is.
func CloneData(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneData(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
