package plan

import (
	"fmt"
	"strings"
)

const (
	APIVersion = "agwait/v1"
	Kind       = "WaitPlan"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors for a plan.
type ValidationResult struct {
	Errors []ValidationError
}

// Valid returns true if no validation errors were found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r ValidationResult) Error() string {
	if r.Valid() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Validate checks a plan for required fields and known commands.
func Validate(p Plan) ValidationResult {
	var result ValidationResult
	add := func(field, format string, args ...any) {
		result.Errors = append(result.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch p.APIVersion {
	case "":
		add("apiVersion", "required")
	case APIVersion:
	default:
		add("apiVersion", "unsupported version %q (expected %s)", p.APIVersion, APIVersion)
	}

	switch p.Kind {
	case "":
		add("kind", "required")
	case Kind:
	default:
		add("kind", "unsupported kind %q (expected %s)", p.Kind, Kind)
	}

	if p.Meta.Name == "" {
		add("meta.name", "required")
	}
	if len(p.Steps) == 0 {
		add("steps", "at least one step is required")
	}

	for i, step := range p.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if step.Command == "" {
			add(field+".command", "required")
		} else if _, ok := CommandName(step.Command); !ok {
			add(field+".command", "unknown command %q", step.Command)
		}
		if step.TimeoutMS < 0 {
			add(field+".timeout_ms", "must not be negative")
		}
		if i == 0 && step.Selector == "" {
			add(field+".selector", "required on the first step")
		}
	}

	return result
}
