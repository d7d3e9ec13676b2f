package config

import "fmt"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format    string `yaml:"format" json:"format,omitempty"`         // json, text
	File      string `yaml:"file" json:"file,omitempty"`             // empty means stderr
	DebugMode bool   `yaml:"debug_mode" json:"debug_mode,omitempty"` // forces debug level

	// Per-category toggles; unlisted categories are enabled.
	Categories map[string]bool `yaml:"categories,omitempty" json:"categories,omitempty"`
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// Validate checks level and format.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q (valid: debug, info, warn, error)", c.Level)
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q (valid: text, json)", c.Format)
	}
	return nil
}
