// Package logging builds the zap loggers used across the household tool.
// Each subsystem logs through a named child logger (its category), and
// categories can be switched off individually from the config file.
package logging

import (
	"fmt"
	"strings"
	"time"

	"household/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup, config loading
	CategorySolver     Category = "solver"     // Discrete and continuous solves
	CategorySweep      Category = "sweep"      // Wage sweeps
	CategoryRegression Category = "regression" // Log-log regression
	CategoryScenario   Category = "scenario"   // Scenario batteries
	CategoryReport     Category = "report"     // Output rendering
)

// New builds the root logger. verbose forces debug level.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	level, err := cfg.ZapLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	var zc zap.Config
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		zc = zap.NewProductionConfig()
	case "", "console", "text":
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("invalid logging.format %q (valid: json, console)", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// For returns the named child logger for a category, or a no-op logger
// when the category is disabled.
func For(root *zap.Logger, cfg config.LoggingConfig, category Category) *zap.Logger {
	if root == nil || !cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return root.Named(string(category))
}

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	logger *zap.Logger
	op     string
	start  time.Time
}

// StartTimer begins timing an operation
func StartTimer(logger *zap.Logger, operation string) *Timer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Timer{
		logger: logger,
		op:     operation,
		start:  time.Now(),
	}
}

// Stop ends the timer and logs the duration at debug level
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.logger.Debug("Operation completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		t.logger.Warn("Slow operation",
			zap.String("op", t.op),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", threshold))
	} else {
		t.logger.Debug("Operation completed", zap.String("op", t.op), zap.Duration("elapsed", elapsed))
	}
	return elapsed
}
