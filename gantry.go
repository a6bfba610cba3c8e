package gantry

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/petrijr/gantry/internal/engine"
	"github.com/petrijr/gantry/internal/persistence"
	"github.com/petrijr/gantry/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	WorkflowDefinition   = api.WorkflowDefinition
	StepDefinition       = api.StepDefinition
	Workflow             = api.Workflow
	Step                 = api.Step
	Checkpoint           = api.Checkpoint
	HistoryEntry         = api.HistoryEntry
	Status               = api.Status
	StepStatus           = api.StepStatus
	RetryPolicy          = api.RetryPolicy
	StepContext          = api.StepContext
	StepExecutor         = api.StepExecutor
	ExecutorFunc         = api.ExecutorFunc
	ExecutorRegistry     = api.ExecutorRegistry
	Event                = api.Event
	EventType            = api.EventType
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common helpers.

var (
	NewExecutorRegistry  = api.NewExecutorRegistry
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export status values for convenience.

const (
	StatusCreated   = api.StatusCreated
	StatusRunning   = api.StatusRunning
	StatusPaused    = api.StatusPaused
	StatusCompleted = api.StatusCompleted
	StatusFailed    = api.StatusFailed

	StepPending   = api.StepPending
	StepRunning   = api.StepRunning
	StepCompleted = api.StepCompleted
	StepFailed    = api.StepFailed
)

// Re-export sentinel errors.

var (
	ErrWorkflowNotFound    = api.ErrWorkflowNotFound
	ErrDuplicateWorkflow   = api.ErrDuplicateWorkflow
	ErrStepNotFound        = api.ErrStepNotFound
	ErrDuplicateStep       = api.ErrDuplicateStep
	ErrCheckpointNotFound  = api.ErrCheckpointNotFound
	ErrDuplicateCheckpoint = api.ErrDuplicateCheckpoint
	ErrInvalidState        = api.ErrInvalidState
)

// Option adjusts engine construction.
type Option func(*engine.Config)

// WithObserver attaches an observer to the engine's event stream. Combine
// several with NewCompositeObserver.
func WithObserver(obs Observer) Option {
	return func(cfg *engine.Config) { cfg.Observer = obs }
}

// WithDefaultRetry sets the retry policy for steps that do not declare
// their own.
func WithDefaultRetry(p RetryPolicy) Option {
	return func(cfg *engine.Config) { cfg.DefaultRetry = p }
}

// WithMaxConcurrentSteps bounds executor concurrency across all workflows.
func WithMaxConcurrentSteps(n int64) Option {
	return func(cfg *engine.Config) { cfg.MaxConcurrentSteps = n }
}

// WithMaxHistory bounds each workflow's transition history.
func WithMaxHistory(n int) Option {
	return func(cfg *engine.Config) { cfg.MaxHistory = n }
}

// WithLogger sets the logger used for the engine's own diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *engine.Config) { cfg.Logger = l }
}

// Engine constructors
// These wrap the internal/engine package so external callers never need
// to import internal packages.

// NewInMemoryEngine returns an Engine with no durable backend. State is
// lost with the process; best for tests and development.
func NewInMemoryEngine(reg *ExecutorRegistry, opts ...Option) Engine {
	cfg := engine.Config{Registry: reg}
	for _, opt := range opts {
		opt(&cfg)
	}
	return engine.New(cfg)
}

// NewSQLiteEngine returns an Engine that persists workflow snapshots and
// the lifecycle event stream in a SQLite database. The caller imports the
// driver, e.g. modernc.org/sqlite.
func NewSQLiteEngine(db *sql.DB, reg *ExecutorRegistry, opts ...Option) (Engine, error) {
	snapshots, err := persistence.NewSQLiteSnapshotStore(db)
	if err != nil {
		return nil, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, err
	}

	cfg := engine.Config{Registry: reg, Snapshots: snapshots}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Observer = api.NewCompositeObserver(
		persistence.NewObserver(events, cfg.Logger),
		cfg.Observer,
	)
	return engine.New(cfg), nil
}

// RecoverWorkflows reloads persisted workflows into the engine's registry
// after a restart. It is a no-op for engines without a snapshot store.
func RecoverWorkflows(ctx context.Context, eng Engine) (int, error) {
	e, ok := eng.(*engine.Engine)
	if !ok {
		return 0, nil
	}
	return e.RecoverWorkflows(ctx)
}
