// Package config loads the linter configuration from .mglint.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"mglint/internal/mangle/diag"
)

// DefaultFileName is looked up in the working directory when no --config
// flag is given.
const DefaultFileName = ".mglint.yaml"

// Config holds all mglint configuration.
type Config struct {
	Checks ChecksConfig `yaml:"checks"`

	// Parallel file analyses in one run.
	Workers int `yaml:"workers"`

	// Lowest severity that makes `mglint check` exit non-zero.
	FailOn string `yaml:"fail_on"`

	// Glob patterns (doublestar syntax) applied when walking directories.
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`

	History HistoryConfig `yaml:"history"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// ChecksConfig tunes which diagnostics are reported and how loudly.
type ChecksConfig struct {
	Disabled  []string          `yaml:"disabled,omitempty"`
	Severity  map[string]string `yaml:"severity,omitempty"`
	Reference bool              `yaml:"reference"` // cross-check with the upstream analyzer
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers: runtime.NumCPU(),
		FailOn:  "error",
		Include: []string{"**/*.mg"},
		Exclude: []string{".git/**", "vendor/**", "node_modules/**"},
		History: HistoryConfig{
			Path: filepath.Join(".mglint", "history.db"),
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
// Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("MGLINT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MGLINT_WORKERS %q: %w", v, err)
		}
		c.Workers = n
	}
	if v := os.Getenv("MGLINT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MGLINT_HISTORY_DB"); v != "" {
		c.History.Path = v
		c.History.Enabled = true
	}
	if v := os.Getenv("MGLINT_FAIL_ON"); v != "" {
		c.FailOn = v
	}
	return nil
}

// GetWatchDebounce returns the watch debounce, falling back to 500ms.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// FailLevel returns the parsed fail_on severity, defaulting to error.
func (c *Config) FailLevel() diag.Severity {
	s, err := diag.ParseSeverity(c.FailOn)
	if err != nil {
		return diag.SeverityError
	}
	return s
}

// IsDisabled reports whether code is switched off.
func (c *Config) IsDisabled(code diag.Code) bool {
	for _, d := range c.Checks.Disabled {
		if diag.Code(d) == code {
			return true
		}
	}
	return false
}

// SeverityFor returns the configured severity for code, or def.
func (c *Config) SeverityFor(code diag.Code, def diag.Severity) diag.Severity {
	if v, ok := c.Checks.Severity[string(code)]; ok {
		if s, err := diag.ParseSeverity(v); err == nil {
			return s
		}
	}
	return def
}

// Validate checks that every code and level in the configuration exists.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := diag.ParseSeverity(c.FailOn); err != nil {
		return fmt.Errorf("fail_on: %w", err)
	}
	for _, code := range c.Checks.Disabled {
		if !diag.Code(code).Known() {
			return fmt.Errorf("checks.disabled: unknown code %s", code)
		}
	}
	for code, level := range c.Checks.Severity {
		if !diag.Code(code).Known() {
			return fmt.Errorf("checks.severity: unknown code %s", code)
		}
		if _, err := diag.ParseSeverity(level); err != nil {
			return fmt.Errorf("checks.severity[%s]: %w", code, err)
		}
	}
	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return fmt.Errorf("watch.debounce: %w", err)
		}
	}
	return c.Logging.Validate()
}
