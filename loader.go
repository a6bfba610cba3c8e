package gantry

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/gantry/pkg/api"
)

// yamlStep mirrors StepDefinition for YAML decoding. Backoff durations are
// Go duration strings ("100ms", "2s").
type yamlStep struct {
	ID        string         `yaml:"id"`
	Type      string         `yaml:"type"`
	DependsOn []string       `yaml:"depends_on"`
	Config    map[string]any `yaml:"config"`
	Retry     *yamlRetry     `yaml:"retry"`
}

type yamlRetry struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseBackoff string `yaml:"base_backoff"`
	MaxBackoff  string `yaml:"max_backoff"`
}

type yamlDefinition struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	InitialData map[string]any `yaml:"initial_data"`
	Steps       []yamlStep     `yaml:"steps"`
}

// LoadDefinition reads a WorkflowDefinition from YAML:
//
//	name: deploy
//	steps:
//	  - id: build
//	    type: shell
//	    config:
//	      cmd: make
//	  - id: release
//	    type: shell
//	    depends_on: [build]
//	    retry:
//	      max_attempts: 3
//	      base_backoff: 100ms
//	      max_backoff: 2s
//
// Structural validation (cycles, unknown dependencies, unknown step types)
// happens later, at CreateWorkflow.
func LoadDefinition(r io.Reader) (WorkflowDefinition, error) {
	var raw yamlDefinition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return WorkflowDefinition{}, fmt.Errorf("decode workflow definition: %w", err)
	}
	if raw.Name == "" {
		return WorkflowDefinition{}, fmt.Errorf("workflow definition has no name")
	}

	def := WorkflowDefinition{
		ID:          raw.ID,
		Name:        raw.Name,
		InitialData: raw.InitialData,
		Steps:       make([]api.StepDefinition, 0, len(raw.Steps)),
	}
	for _, s := range raw.Steps {
		if s.ID == "" {
			return WorkflowDefinition{}, fmt.Errorf("workflow %q: step with empty id", raw.Name)
		}
		if s.Type == "" {
			return WorkflowDefinition{}, fmt.Errorf("workflow %q: step %q has no type", raw.Name, s.ID)
		}

		sd := api.StepDefinition{
			ID:        s.ID,
			Type:      s.Type,
			DependsOn: s.DependsOn,
			Config:    s.Config,
		}
		if s.Retry != nil {
			p, err := s.Retry.policy()
			if err != nil {
				return WorkflowDefinition{}, fmt.Errorf("workflow %q: step %q: %w", raw.Name, s.ID, err)
			}
			sd.Retry = &p
		}
		def.Steps = append(def.Steps, sd)
	}
	return def, nil
}

// LoadDefinitionFile reads a WorkflowDefinition from a YAML file.
func LoadDefinitionFile(path string) (WorkflowDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return WorkflowDefinition{}, fmt.Errorf("open workflow definition: %w", err)
	}
	defer f.Close()
	return LoadDefinition(f)
}

func (r *yamlRetry) policy() (api.RetryPolicy, error) {
	p := api.RetryPolicy{MaxAttempts: r.MaxAttempts}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var err error
	if r.BaseBackoff != "" {
		if p.Base, err = time.ParseDuration(r.BaseBackoff); err != nil {
			return api.RetryPolicy{}, fmt.Errorf("invalid base_backoff: %w", err)
		}
	}
	if r.MaxBackoff != "" {
		if p.Max, err = time.ParseDuration(r.MaxBackoff); err != nil {
			return api.RetryPolicy{}, fmt.Errorf("invalid max_backoff: %w", err)
		}
	}
	return p, nil
}
