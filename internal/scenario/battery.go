// Package scenario runs YAML-defined batteries of parameter scenarios.
// Each scenario overrides part of a base calibration, sweeps the F wage
// grid and fits the log-log regression, so elasticities can be compared
// across parameterizations in one run.
package scenario

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"household/internal/household"
	"household/internal/model"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Battery is a collection of scenarios.
type Battery struct {
	Version   int        `yaml:"version"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario overrides selected parameters of the base calibration.
// Unset fields keep the base value.
type Scenario struct {
	ID         string    `yaml:"id"`
	Method     string    `yaml:"method,omitempty"` // "continuous" (default) or "discrete"
	TimeoutSec int       `yaml:"timeout_sec,omitempty"`
	Alpha      *float64  `yaml:"alpha,omitempty"`
	Sigma      *float64  `yaml:"sigma,omitempty"`
	Rho        *float64  `yaml:"rho,omitempty"`
	Nu         *float64  `yaml:"nu,omitempty"`
	Epsilon    *float64  `yaml:"epsilon,omitempty"`
	Omega      *float64  `yaml:"omega,omitempty"`
	WM         *float64  `yaml:"wm,omitempty"`
	WFVec      []float64 `yaml:"wf_vec,omitempty"`
}

// Apply returns base with the scenario's overrides applied.
func (s Scenario) Apply(base model.Parameters) model.Parameters {
	p := base.Clone()
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.Alpha, s.Alpha)
	set(&p.Sigma, s.Sigma)
	set(&p.Rho, s.Rho)
	set(&p.Nu, s.Nu)
	set(&p.Epsilon, s.Epsilon)
	set(&p.Omega, s.Omega)
	set(&p.WM, s.WM)
	if len(s.WFVec) > 0 {
		p.WFVec = append([]float64(nil), s.WFVec...)
	}
	return p
}

// Result captures the outcome of one scenario.
type Result struct {
	ScenarioID string  `yaml:"scenario_id" json:"scenario_id"`
	Success    bool    `yaml:"success" json:"success"`
	Beta0      float64 `yaml:"beta0" json:"beta0"`
	Beta1      float64 `yaml:"beta1" json:"beta1"`
	RSquared   float64 `yaml:"r_squared" json:"r_squared"`
	Error      string  `yaml:"error,omitempty" json:"error,omitempty"`
	DurationMs int64   `yaml:"duration_ms" json:"duration_ms"`
}

// LoadBattery reads a YAML battery file from disk.
func LoadBattery(path string) (*Battery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Battery
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse battery YAML: %w", err)
	}
	return &b, nil
}

// RunBattery runs every scenario in order against base, stopping at the
// first failure. opts configures each scenario's model; logger receives
// per-scenario outcomes.
func RunBattery(ctx context.Context, b *Battery, base model.Parameters, opts household.Options, logger *zap.Logger) ([]Result, error) {
	if b == nil || len(b.Scenarios) == 0 {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	results := make([]Result, 0, len(b.Scenarios))

	for _, sc := range b.Scenarios {
		start := time.Now()
		res := Result{ScenarioID: sc.ID}

		method := strings.ToLower(strings.TrimSpace(sc.Method))
		switch method {
		case "", "continuous", "discrete":
			timeout := time.Duration(sc.TimeoutSec) * time.Second
			if timeout <= 0 {
				timeout = 5 * time.Minute
			}
			sctx, cancel := context.WithTimeout(ctx, timeout)
			fit, err := runScenario(sctx, sc.Apply(base), opts, method == "discrete")
			cancel()
			if err != nil {
				res.Error = err.Error()
			} else {
				res.Success = true
				res.Beta0, res.Beta1, res.RSquared = fit.Beta0, fit.Beta1, fit.RSquared
			}
		default:
			res.Error = fmt.Sprintf("unsupported method: %s", sc.Method)
		}

		res.DurationMs = time.Since(start).Milliseconds()
		results = append(results, res)
		logger.Info("Scenario finished",
			zap.String("scenario", sc.ID),
			zap.Bool("success", res.Success),
			zap.Int64("duration_ms", res.DurationMs))

		if !res.Success {
			break
		}
	}

	return results, nil
}

func runScenario(ctx context.Context, p model.Parameters, opts household.Options, discrete bool) (household.Coefficients, error) {
	m := household.New(p, opts)
	if _, err := m.SolveWageSweep(ctx, household.SweepOptions{Discrete: discrete}); err != nil {
		return household.Coefficients{}, err
	}
	return m.RunRegression()
}

// DefaultBatteryPath returns the canonical battery path for a workspace.
func DefaultBatteryPath(workspace string) string {
	return filepath.Join(workspace, "scenarios", "battery.yaml")
}
