// Package api defines the public types of the gantry workflow engine:
// the data model (Workflow, Step, Checkpoint, HistoryEntry), the Engine
// interface, the Observer family, the StepExecutor extension point, and
// the typed errors returned by engine operations.
//
// Most users should import the root gantry package instead, which
// re-exports everything here together with constructors and builders.
//
// # Data model
//
// A Workflow is a named collection of Steps with declared dependencies.
// Steps move through PENDING → RUNNING → COMPLETED, or → FAILED once their
// retry budget is exhausted. A workflow is COMPLETED exactly when every
// step is COMPLETED, and FAILED only after some step has exhausted its
// retries.
//
// All values returned by the Engine are deep snapshots: mutating a
// returned Workflow, Step, or Checkpoint never affects engine state.
//
// # Executors
//
// Step semantics live entirely outside the engine. Each step declares a
// Type; an ExecutorRegistry binds types to StepExecutor implementations,
// resolved once at workflow creation:
//
//	reg := api.NewExecutorRegistry()
//	reg.RegisterFunc("shell", func(ctx context.Context, sc api.StepContext) (map[string]any, error) {
//	    ...
//	})
//
// # Observers
//
// The engine emits a lifecycle event stream through the Observer
// interface. NewCompositeObserver combines observers; LoggingObserver
// writes structured log/slog records; BasicMetrics keeps counters.
// Persistence adapters are just observers that write events durably.
package api
