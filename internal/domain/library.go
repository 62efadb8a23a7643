package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"converse/internal/logging"
)

// Library is the YAML shape of a domain file. It declares tasks (ordered
// plan steps), questions (sort, prompt, prerequisites), sorts (value
// inventories feeding the knowledge base), actions and negotiable
// alternatives.
type Library struct {
	Name        string `yaml:"name"`
	DefaultTask string `yaml:"default_task"`

	Tasks map[string]TaskSpec `yaml:"tasks"`

	Questions map[string]QuestionSpec `yaml:"questions"`

	Sorts map[string][]string `yaml:"sorts"`

	Actions map[string]ActionSpec `yaml:"actions"`

	// CriticalTypes lists action types that always require confirmation
	// (e.g. booking, payment), in addition to per-action flags.
	CriticalTypes []string `yaml:"critical_types"`

	Alternatives map[string][]Alternative `yaml:"alternatives"`

	// Axioms is raw Mangle appended to the knowledge-base program.
	Axioms string `yaml:"axioms"`
}

// TaskSpec declares one task: trigger keywords and ordered plan steps.
type TaskSpec struct {
	Triggers []string   `yaml:"triggers"`
	Steps    []StepSpec `yaml:"steps"`
}

// StepSpec is one plan step; exactly one field is set.
type StepSpec struct {
	Findout string `yaml:"findout,omitempty"`
	Raise   string `yaml:"raise,omitempty"`
	Execute string `yaml:"execute,omitempty"`
}

// QuestionSpec declares how a question predicate behaves.
type QuestionSpec struct {
	Sort     string   `yaml:"sort,omitempty"`
	Prompt   string   `yaml:"prompt,omitempty"`
	Requires []string `yaml:"requires,omitempty"`
}

// ActionSpec declares a device action.
type ActionSpec struct {
	Type           string   `yaml:"type"`
	Critical       bool     `yaml:"critical"`
	Preconditions  []string `yaml:"preconditions,omitempty"`
	Postconditions []string `yaml:"postconditions,omitempty"`

	// ParamsFrom names the committed predicates whose values become the
	// action's parameters when it is queued.
	ParamsFrom []string `yaml:"params_from,omitempty"`
}

// Alternative is one negotiable candidate with its preference rank; a
// higher rank dominates a lower one.
type Alternative struct {
	Value string `yaml:"value"`
	Rank  int    `yaml:"rank"`
}

// LoadLibrary reads, parses and compiles a domain library file.
func LoadLibrary(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read domain library %s: %w", path, err)
	}
	reg, err := ParseLibrary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load domain library %s: %w", path, err)
	}
	logging.Domain("loaded domain library %q from %s (%d tasks, %d questions)",
		reg.Name, path, len(reg.tasks), len(reg.questions))
	return reg, nil
}

// ParseLibrary parses YAML bytes and compiles them into a Registry.
func ParseLibrary(data []byte) (*Registry, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("failed to parse domain yaml: %w", err)
	}
	return NewRegistry(lib)
}
