// Package plan runs a sequence of wait steps described in YAML, e.g. the
// readiness checks a test performs before interacting with a form.
package plan

import (
	"time"

	"github.com/cgast/agwait/pkg/wait"
)

// Plan is an ordered list of wait steps.
type Plan struct {
	APIVersion string `yaml:"apiVersion" json:"apiVersion"`
	Kind       string `yaml:"kind" json:"kind"`
	Meta       Meta   `yaml:"meta" json:"meta"`
	Steps      []Step `yaml:"steps" json:"steps"`
}

// Meta contains metadata about the plan.
type Meta struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Tags        []string `yaml:"tags" json:"tags"`
}

// Step is one wait invocation.
type Step struct {
	Name      string `yaml:"name" json:"name,omitempty"`
	Command   string `yaml:"command" json:"command"`     // "enabled", "value", or a full command name
	Selector  string `yaml:"selector" json:"selector"`   // empty means the last addressed target
	TimeoutMS int    `yaml:"timeout_ms" json:"timeout_ms"` // 0 means the configured default
	Reverse   bool   `yaml:"reverse" json:"reverse"`
}

// Options converts the step into wait options.
func (s Step) Options() wait.Options {
	return wait.Options{
		Timeout: time.Duration(s.TimeoutMS) * time.Millisecond,
		Reverse: s.Reverse,
	}
}

// Result holds the outcome of running a plan.
type Result struct {
	Passed    bool          `json:"passed"`
	Steps     []StepResult  `json:"steps"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// StepResult records the outcome of a single step.
type StepResult struct {
	Step     Step          `json:"step"`
	Passed   bool          `json:"passed"`
	Outcome  wait.Outcome  `json:"outcome"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// commandAliases maps the short command names used in plan files.
var commandAliases = map[string]string{
	"enabled":        wait.NameEnabled,
	"value":          wait.NameValue,
	wait.NameEnabled: wait.NameEnabled,
	wait.NameValue:   wait.NameValue,
}

// CommandName resolves a plan command to a wait command name. The second
// result is false for unknown commands.
func CommandName(command string) (string, bool) {
	name, ok := commandAliases[command]
	return name, ok
}
