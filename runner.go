package gantry

import (
	"context"
)

// LocalRunner bundles an in-memory Engine with its executor registry to
// provide a simple "local runner" for development and debugging.
//
// Typical usage:
//
//	runner := gantry.NewLocalRunner()
//	runner.MustRegisterFunc("shell", runShell)
//
//	def := gantry.New("deploy").
//	    Step("build", "shell").
//	    Step("release", "shell", gantry.DependsOn("build")).
//	    Definition()
//
//	wf, err := runner.RunAndWait(ctx, def)
type LocalRunner struct {
	// Engine is the in-memory workflow engine used by this runner.
	Engine Engine

	// Registry maps step types to executors. Register executors before
	// creating workflows that use them.
	Registry *ExecutorRegistry
}

// NewLocalRunner constructs a LocalRunner backed by an in-memory engine.
//
// This is intended for local development, tests, and simple single-process
// deployments; state is lost with the process.
func NewLocalRunner(opts ...Option) *LocalRunner {
	reg := NewExecutorRegistry()
	return &LocalRunner{
		Engine:   NewInMemoryEngine(reg, opts...),
		Registry: reg,
	}
}

// MustRegisterFunc binds a function executor to a step type, panicking on
// duplicate registration. Registration errors at startup are programming
// mistakes, not runtime conditions.
func (r *LocalRunner) MustRegisterFunc(stepType string, f ExecutorFunc) {
	if err := r.Registry.RegisterFunc(stepType, f); err != nil {
		panic("gantry: " + err.Error())
	}
}

// Run creates and starts a workflow without waiting for it.
func (r *LocalRunner) Run(ctx context.Context, def WorkflowDefinition) (*Workflow, error) {
	return Run(ctx, r.Engine, def)
}

// RunAndWait creates and starts a workflow, then blocks until it reaches
// a resting state.
func (r *LocalRunner) RunAndWait(ctx context.Context, def WorkflowDefinition) (*Workflow, error) {
	return RunAndWait(ctx, r.Engine, def)
}

// Run creates and starts a workflow on the given engine, returning its
// initial snapshot.
func Run(ctx context.Context, eng Engine, def WorkflowDefinition) (*Workflow, error) {
	wf, err := eng.CreateWorkflow(ctx, def)
	if err != nil {
		return nil, err
	}
	if err := eng.StartWorkflow(ctx, wf.ID); err != nil {
		return nil, err
	}
	return wf, nil
}

// RunAndWait creates and starts a workflow on the given engine and blocks
// until it completes, fails, or is paused.
func RunAndWait(ctx context.Context, eng Engine, def WorkflowDefinition) (*Workflow, error) {
	wf, err := Run(ctx, eng, def)
	if err != nil {
		return nil, err
	}
	return eng.WaitForWorkflow(ctx, wf.ID)
}
