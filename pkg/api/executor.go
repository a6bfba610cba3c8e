package api

import (
	"context"
	"fmt"
	"sync"
)

// StepContext carries everything an executor needs to run one step attempt.
// Config and Data are deep copies of the engine's state; executors may
// mutate them freely without affecting the workflow.
type StepContext struct {
	WorkflowID string
	StepID     string
	StepType   string

	// Attempt is 1 for the first execution, 2 for the first retry, etc.
	Attempt int

	// Config is the step's declared configuration.
	Config map[string]any

	// Data is a snapshot of the workflow's shared data map at dispatch
	// time.
	Data map[string]any
}

// StepExecutor performs the actual work of a step. The engine never
// interprets step semantics; it only sequences and retries.
//
// The ctx passed to Execute is cancelled when the owning workflow is
// removed from the registry. Executors that need cancellation must honour
// it cooperatively; the engine never force-interrupts a running executor.
type StepExecutor interface {
	Execute(ctx context.Context, sc StepContext) (map[string]any, error)
}

// ExecutorFunc adapts a plain function to the StepExecutor interface.
type ExecutorFunc func(ctx context.Context, sc StepContext) (map[string]any, error)

func (f ExecutorFunc) Execute(ctx context.Context, sc StepContext) (map[string]any, error) {
	return f(ctx, sc)
}

// ExecutorRegistry maps step types to executors. Executors are resolved
// once at workflow creation; the scheduling loop never dispatches by
// string comparison.
type ExecutorRegistry struct {
	mu     sync.RWMutex
	byType map[string]StepExecutor
}

// NewExecutorRegistry creates an empty registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{
		byType: make(map[string]StepExecutor),
	}
}

// Register binds an executor to a step type. Registering the same type
// twice is an error.
func (r *ExecutorRegistry) Register(stepType string, ex StepExecutor) error {
	if stepType == "" {
		return fmt.Errorf("step type must not be empty")
	}
	if ex == nil {
		return fmt.Errorf("executor for step type %q is nil", stepType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byType[stepType]; exists {
		return fmt.Errorf("executor already registered for step type %q", stepType)
	}
	r.byType[stepType] = ex
	return nil
}

// RegisterFunc is a convenience wrapper around Register for plain functions.
func (r *ExecutorRegistry) RegisterFunc(stepType string, f ExecutorFunc) error {
	return r.Register(stepType, f)
}

// Resolve returns the executor bound to stepType.
func (r *ExecutorRegistry) Resolve(stepType string) (StepExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ex, ok := r.byType[stepType]
	return ex, ok
}

// Types returns the registered step types, unordered.
func (r *ExecutorRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	return out
}
