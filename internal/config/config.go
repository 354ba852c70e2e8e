package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"household/internal/model"
	"household/internal/solver"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all household solver configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Model calibration
	Model model.Parameters `yaml:"model"`

	// Solver tuning
	Solver SolverConfig `yaml:"solver"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Output rendering
	Output OutputConfig `yaml:"output"`
}

// SolverConfig configures both solvers.
type SolverConfig struct {
	Discrete   solver.GridConfig       `yaml:"discrete"`
	Continuous solver.ContinuousConfig `yaml:"continuous"`
}

// OutputConfig selects how results are rendered.
type OutputConfig struct {
	Format string `yaml:"format"` // text, json, yaml, markdown
}

// ValidFormats lists the supported output formats.
var ValidFormats = []string{"text", "json", "yaml", "markdown"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "household",
		Version: "0.3.0",

		Model: model.DefaultParameters(),

		Solver: SolverConfig{
			Discrete:   solver.DefaultGridConfig(),
			Continuous: solver.DefaultContinuousConfig(),
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},

		Output: OutputConfig{
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
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

// envOverrides lists the environment variables that may override a
// loaded config. Nil or empty fields leave the config untouched.
type envOverrides struct {
	Rho     *float64  `env:"HOUSEHOLD_RHO"`
	Nu      *float64  `env:"HOUSEHOLD_NU"`
	Epsilon *float64  `env:"HOUSEHOLD_EPSILON"`
	Omega   *float64  `env:"HOUSEHOLD_OMEGA"`
	Alpha   *float64  `env:"HOUSEHOLD_ALPHA"`
	Sigma   *float64  `env:"HOUSEHOLD_SIGMA"`
	WM      *float64  `env:"HOUSEHOLD_WM"`
	WF      *float64  `env:"HOUSEHOLD_WF"`
	WFVec   []float64 `env:"HOUSEHOLD_WF_VEC" envSeparator:","`

	Workers *int `env:"HOUSEHOLD_WORKERS"`

	LogLevel  string `env:"HOUSEHOLD_LOG_LEVEL"`
	LogFormat string `env:"HOUSEHOLD_LOG_FORMAT"`
	LogFile   string `env:"HOUSEHOLD_LOG_FILE"`
	Output    string `env:"HOUSEHOLD_OUTPUT"`
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	for _, o := range []struct {
		src *float64
		dst *float64
	}{
		{ov.Rho, &c.Model.Rho},
		{ov.Nu, &c.Model.Nu},
		{ov.Epsilon, &c.Model.Epsilon},
		{ov.Omega, &c.Model.Omega},
		{ov.Alpha, &c.Model.Alpha},
		{ov.Sigma, &c.Model.Sigma},
		{ov.WM, &c.Model.WM},
		{ov.WF, &c.Model.WF},
	} {
		if o.src != nil {
			*o.dst = *o.src
		}
	}
	if len(ov.WFVec) > 0 {
		c.Model.WFVec = ov.WFVec
	}
	if ov.Workers != nil {
		c.Solver.Discrete.Workers = *ov.Workers
	}
	if ov.LogLevel != "" {
		c.Logging.Level = ov.LogLevel
	}
	if ov.LogFormat != "" {
		c.Logging.Format = ov.LogFormat
	}
	if ov.LogFile != "" {
		c.Logging.File = ov.LogFile
	}
	if ov.Output != "" {
		c.Output.Format = ov.Output
	}
	return nil
}

// Validate checks the structure of the configuration. Economic parameters
// are not checked.
func (c *Config) Validate() error {
	if len(c.Model.WFVec) == 0 {
		return fmt.Errorf("model.wf_vec must not be empty")
	}
	for i := 1; i < len(c.Model.WFVec); i++ {
		if c.Model.WFVec[i] <= c.Model.WFVec[i-1] {
			return fmt.Errorf("model.wf_vec must be strictly increasing (index %d: %g <= %g)",
				i, c.Model.WFVec[i], c.Model.WFVec[i-1])
		}
	}

	d := c.Solver.Discrete
	if d.Points < 2 {
		return fmt.Errorf("solver.discrete.points must be >= 2")
	}
	if d.Max <= 0 {
		return fmt.Errorf("solver.discrete.max must be positive")
	}
	if d.Workers < 0 {
		return fmt.Errorf("solver.discrete.workers must be >= 0")
	}

	ct := c.Solver.Continuous
	if ct.Upper <= 0 || ct.Budget <= 0 {
		return fmt.Errorf("solver.continuous upper and budget must be positive")
	}
	if ct.BarrierShrink <= 0 || ct.BarrierShrink >= 1 {
		return fmt.Errorf("solver.continuous.barrier_shrink must be in (0,1)")
	}
	if ct.BarrierStart <= 0 || ct.BarrierMin <= 0 || ct.BarrierMin > ct.BarrierStart {
		return fmt.Errorf("solver.continuous barrier weights must satisfy 0 < barrier_min <= barrier_start")
	}

	if _, err := c.Logging.ZapLevel(); err != nil {
		return err
	}

	format := strings.ToLower(strings.TrimSpace(c.Output.Format))
	for _, f := range ValidFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid output format: %s (valid: %v)", c.Output.Format, ValidFormats)
}
