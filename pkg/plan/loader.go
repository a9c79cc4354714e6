package plan

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML plan file. ${VAR} references are replaced from vars
// first and the environment second.
func Load(path string, vars map[string]string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan %s: %w", path, err)
	}
	return Parse(data, vars)
}

// Parse parses YAML plan data with variable interpolation.
func Parse(data []byte, vars map[string]string) (Plan, error) {
	var p Plan
	if err := yaml.Unmarshal([]byte(interpolateVars(string(data), vars)), &p); err != nil {
		return Plan{}, fmt.Errorf("parse plan: %w", err)
	}
	return p, nil
}

// varPattern matches ${VAR_NAME} patterns.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func interpolateVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := vars[name]; ok {
			return val
		}
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}
