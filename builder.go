package gantry

import (
	"context"
	"fmt"

	"github.com/petrijr/gantry/pkg/api"
)

// WorkflowBuilder provides a fluent API for defining workflows:
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
//	wf, err := eng.CreateWorkflow(ctx, def)
type WorkflowBuilder struct {
	def api.WorkflowDefinition
}

// New creates a new workflow builder with the given name.
func New(name string) *WorkflowBuilder {
	return &WorkflowBuilder{
		def: api.WorkflowDefinition{
			Name:  name,
			Steps: make([]api.StepDefinition, 0),
		},
	}
}

// WithID sets an explicit workflow ID. When unset, the engine generates
// one at creation.
func (b *WorkflowBuilder) WithID(id string) *WorkflowBuilder {
	b.def.ID = id
	return b
}

// WithInitialData seeds the workflow's shared data map.
func (b *WorkflowBuilder) WithInitialData(data map[string]any) *WorkflowBuilder {
	b.def.InitialData = data
	return b
}

// Name returns the workflow name.
func (b *WorkflowBuilder) Name() string {
	return b.def.Name
}

// Definition returns the underlying WorkflowDefinition.
// Typically used when interacting with lower-level APIs.
func (b *WorkflowBuilder) Definition() WorkflowDefinition {
	return b.def
}

// StepOption configures one step of the workflow.
type StepOption func(*api.StepDefinition)

// DependsOn declares the steps that must complete before this one becomes
// eligible.
func DependsOn(ids ...string) StepOption {
	return func(sd *api.StepDefinition) {
		sd.DependsOn = append(sd.DependsOn, ids...)
	}
}

// WithConfig sets the step's executor configuration.
func WithConfig(cfg map[string]any) StepOption {
	return func(sd *api.StepDefinition) {
		sd.Config = cfg
	}
}

// WithRetry overrides the engine's default retry policy for this step.
func WithRetry(rb RetryBuilder) StepOption {
	return func(sd *api.StepDefinition) {
		p := rb.Policy()
		sd.Retry = &p
	}
}

// Step appends a step of the given executor type to the workflow.
func (b *WorkflowBuilder) Step(id, stepType string, opts ...StepOption) *WorkflowBuilder {
	if id == "" {
		panic("gantry: step id must not be empty")
	}
	if stepType == "" {
		panic(fmt.Sprintf("gantry: step %q has empty type", id))
	}

	sd := api.StepDefinition{ID: id, Type: stepType}
	for _, opt := range opts {
		opt(&sd)
	}
	b.def.Steps = append(b.def.Steps, sd)
	return b
}

// Create registers the built workflow with the engine.
func (b *WorkflowBuilder) Create(ctx context.Context, eng Engine) (*Workflow, error) {
	return eng.CreateWorkflow(ctx, b.def)
}
