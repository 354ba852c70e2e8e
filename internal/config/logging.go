package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`         // json, console
	File       string          `yaml:"file" json:"file,omitempty"`             // empty = stderr
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"` // Per-category toggles
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

// ZapLevel parses Level, defaulting to info when empty.
func (c *LoggingConfig) ZapLevel() (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(c.Level)))
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid logging.level %q: %w", c.Level, err)
	}
	return lvl, nil
}
