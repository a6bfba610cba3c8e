// Package gantry provides a dependency-aware workflow orchestration engine
// for Go.
//
// Gantry executes declarative graphs of named steps in an order consistent
// with their dependencies, and gives you checkpoint/rollback for recovery
// and bounded retry with exponential backoff for resilience. It runs fully
// in-process, persists to SQLite or Redis when durability matters, and
// integrates into existing services without extra infrastructure.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Engine
//  2. ExecutorRegistry and StepExecutor
//  3. WorkflowBuilder
//  4. Checkpoints
//  5. Observers
//
// # Engine
//
// The Engine owns a registry of workflows and drives each one through its
// lifecycle: created, running, paused, completed, failed. Within one
// workflow, scheduling is serialized — a step is dispatched exactly when
// all of its dependencies have completed, and no two steps ever observe a
// half-updated view of their siblings. Independent workflows execute
// concurrently.
//
// Engines can be backed by different storage:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Redis (see the redis submodule)
//
// # Executors
//
// The engine never interprets step semantics. Every step declares a type,
// and an ExecutorRegistry maps types to StepExecutor implementations,
// resolved once at workflow creation:
//
//	reg := gantry.NewExecutorRegistry()
//	reg.RegisterFunc("shell", func(ctx context.Context, sc gantry.StepContext) (map[string]any, error) {
//	    cmd, _ := sc.Config["cmd"].(string)
//	    return runShell(ctx, cmd, sc.Data)
//	})
//
// On success an executor returns a result map, which is merged into the
// workflow's shared data and visible to downstream steps. On error the
// step's RetryPolicy decides between a delayed retry and terminal failure.
//
// # WorkflowBuilder
//
// WorkflowBuilder is the ergonomic way to define workflows:
//
//	def := gantry.New("deploy").
//	    Step("build", "shell", gantry.WithConfig(map[string]any{"cmd": "make"})).
//	    Step("test", "shell", gantry.DependsOn("build")).
//	    Step("release", "shell",
//	        gantry.DependsOn("test"),
//	        gantry.WithRetry(gantry.Retry(3).WithExponentialBackoff(time.Second, time.Minute)),
//	    ).
//	    Definition()
//
// Definitions can also be loaded from YAML with LoadDefinition. Cycles,
// unknown dependencies, duplicate IDs, and unknown step types are all
// rejected at CreateWorkflow, before anything executes.
//
// # Checkpoints
//
// CreateCheckpoint captures a named, immutable snapshot of a workflow's
// steps and data. RollbackToCheckpoint restores that state atomically and
// re-enters the scheduling loop, which is the supported way to recover a
// failed workflow. Checkpoints survive rollback, so the same point can be
// replayed repeatedly.
//
// ResetStep and UpdateStepConfig invalidate a step together with its
// affected set (every transitive dependent) for incremental re-execution:
// only the invalidated subgraph runs again.
//
// # Observers
//
// Observers receive the engine's lifecycle event stream — workflow and
// step transitions, retries, checkpoints, rollbacks — in per-workflow
// order. LoggingObserver writes structured logs, BasicMetrics keeps
// counters, and the persistent backends append every event to a durable
// log. Combine them with NewCompositeObserver.
//
// For examples, see the package tests and the redis submodule.
package gantry
