package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cgast/agwait/internal/sandbox"
)

// Config represents the runtime configuration from .agwait/config.yaml.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Wait      WaitConfig      `yaml:"wait"`
	Store     StoreConfig     `yaml:"store"`
	Fixture   FixtureConfig   `yaml:"fixture"`
	History   HistoryConfig   `yaml:"history"`
	Sandbox   sandbox.Config  `yaml:"sandbox"`
	Inspector InspectorConfig `yaml:"inspector"`
}

// WaitConfig holds the process-wide wait defaults.
type WaitConfig struct {
	TimeoutMS  int `yaml:"timeout_ms"`  // used when a wait gives no timeout
	IntervalMS int `yaml:"interval_ms"` // pause between state queries
}

// Timeout returns TimeoutMS as a duration.
func (w WaitConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutMS) * time.Millisecond
}

// Interval returns IntervalMS as a duration.
func (w WaitConfig) Interval() time.Duration {
	return time.Duration(w.IntervalMS) * time.Millisecond
}

// StoreConfig locates the session database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// FixtureConfig names the page fixture used when no --fixture flag is given.
type FixtureConfig struct {
	Path string `yaml:"path"`
}

// HistoryConfig defines wait history settings.
type HistoryConfig struct {
	MaxEntries  int  `yaml:"max_entries"`
	EventBuffer int  `yaml:"event_buffer"`
	Persist     bool `yaml:"persist"`
}

// InspectorConfig enables the HTTP inspector in agent mode. An empty Addr
// disables it.
type InspectorConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Wait: WaitConfig{
			TimeoutMS:  500,
			IntervalMS: 500,
		},
		Store: StoreConfig{
			Path: ".agwait/session.db",
		},
		History: HistoryConfig{
			MaxEntries:  10000,
			EventBuffer: 1024,
			Persist:     true,
		},
		Sandbox: sandbox.Config{
			MaxFileSize: "1MB",
		},
	}
}

// LoadConfig reads and parses a runtime config YAML file, interpolating
// ${VAR} references from the environment. Returns the default config if the
// file doesn't exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	interpolated := interpolateEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize replaces non-positive numeric settings with their defaults.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Wait.TimeoutMS <= 0 {
		c.Wait.TimeoutMS = def.Wait.TimeoutMS
	}
	if c.Wait.IntervalMS <= 0 {
		c.Wait.IntervalMS = def.Wait.IntervalMS
	}
	if c.History.MaxEntries < 0 {
		c.History.MaxEntries = def.History.MaxEntries
	}
	if c.History.EventBuffer <= 0 {
		c.History.EventBuffer = def.History.EventBuffer
	}
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match // Leave unresolved if not set.
	})
}
