package solver

import (
	"context"
	"fmt"
	"math"

	"household/internal/model"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"
)

// convergeWindow is how many Nelder-Mead iterations may pass without
// improvement before a barrier round is considered converged.
const convergeWindow = 100

// ContinuousConfig tunes the interior-point solver.
type ContinuousConfig struct {
	Upper  float64 `yaml:"upper" json:"upper"`   // box bound on every component
	Budget float64 `yaml:"budget" json:"budget"` // bound on LM+HM and on LF+HF

	InitialGuess   [4]float64 `yaml:"initial_guess" json:"initial_guess"`
	InteriorOffset float64    `yaml:"interior_offset" json:"interior_offset"`

	// The barrier weight starts at BarrierStart and is multiplied by
	// BarrierShrink each round until it drops below BarrierMin.
	BarrierStart  float64 `yaml:"barrier_start" json:"barrier_start"`
	BarrierShrink float64 `yaml:"barrier_shrink" json:"barrier_shrink"`
	BarrierMin    float64 `yaml:"barrier_min" json:"barrier_min"`

	MaxEvaluations int     `yaml:"max_evaluations" json:"max_evaluations"` // per round
	Tolerance      float64 `yaml:"tolerance" json:"tolerance"`
}

// DefaultContinuousConfig uses the relaxed 25 hour bounds and starts from
// the zero allocation.
func DefaultContinuousConfig() ContinuousConfig {
	return ContinuousConfig{
		Upper:          25,
		Budget:         25,
		InteriorOffset: 1e-2,
		BarrierStart:   1e-2,
		BarrierShrink:  0.1,
		BarrierMin:     1e-10,
		MaxEvaluations: 20000,
		Tolerance:      1e-13,
	}
}

// Result is the outcome of a continuous solve.
type Result struct {
	model.Allocation `yaml:",inline"`

	Utility float64 `yaml:"utility" json:"utility"`
	Status  Status  `yaml:"status" json:"status"`

	Rounds      int `yaml:"rounds" json:"rounds"`
	Iterations  int `yaml:"iterations" json:"iterations"`
	Evaluations int `yaml:"evaluations" json:"evaluations"`
}

// Continuous maximizes utility over real-valued allocations with a
// log-barrier interior-point method. Each barrier subproblem is minimized
// with Nelder-Mead, which never needs the objective outside the feasible
// set to be finite.
type Continuous struct {
	cfg    ContinuousConfig
	logger *zap.Logger
}

// NewContinuous creates a continuous solver. A nil logger disables logging.
func NewContinuous(cfg ContinuousConfig, logger *zap.Logger) *Continuous {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Continuous{cfg: cfg, logger: logger}
}

// Solve returns the best allocation found. Running out of iterations or
// evaluations is reported through Result.Status, not as an error; the
// status is the worst seen over all barrier rounds. A canceled ctx stops
// the solve between evaluations and is returned as an error.
func (c *Continuous) Solve(ctx context.Context, p model.Parameters) (Result, error) {
	if c.cfg.BarrierShrink <= 0 || c.cfg.BarrierShrink >= 1 {
		return Result{}, fmt.Errorf("barrier shrink must be in (0,1), got %g", c.cfg.BarrierShrink)
	}
	if c.cfg.BarrierStart <= 0 {
		return Result{}, fmt.Errorf("barrier start must be positive, got %g", c.cfg.BarrierStart)
	}

	x := c.interiorStart()
	res := Result{Status: Converged}

	for mu := c.cfg.BarrierStart; mu >= c.cfg.BarrierMin; mu *= c.cfg.BarrierShrink {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("continuous solve aborted after %d rounds: %w", res.Rounds, err)
		}
		problem := optimize.Problem{Func: c.barrier(&p, mu)}
		settings := &optimize.Settings{
			FuncEvaluations: c.cfg.MaxEvaluations,
			Converger: &optimize.FunctionConverge{
				Absolute:   c.cfg.Tolerance,
				Relative:   c.cfg.Tolerance,
				Iterations: convergeWindow,
			},
			Recorder: contextRecorder{ctx: ctx},
		}

		out, err := optimize.Minimize(problem, x, settings, &optimize.NelderMead{})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("continuous solve aborted in round %d: %w", res.Rounds+1, ctxErr)
		}
		if out == nil {
			return Result{}, fmt.Errorf("barrier round %d (mu=%g): %w", res.Rounds, mu, err)
		}
		res.Rounds++
		res.Iterations += out.MajorIterations
		res.Evaluations += out.FuncEvaluations
		round := statusFrom(out.Status)
		if err != nil {
			round = Failed
			c.logger.Warn("Barrier round stopped early",
				zap.Float64("mu", mu), zap.Stringer("status", out.Status), zap.Error(err))
		}
		res.Status = worse(res.Status, round)

		if c.strictlyFeasible(out.X) {
			copy(x, out.X)
		}
		c.logger.Debug("Barrier round finished",
			zap.Int("round", res.Rounds),
			zap.Float64("mu", mu),
			zap.Float64s("x", x),
			zap.Stringer("status", out.Status))
	}

	res.Allocation = model.AllocationFromVector(x)
	res.Utility = p.Utility(x[0], x[1], x[2], x[3])
	if face, u, ok := c.boundaryImproves(&p, x, res.Utility); ok {
		res.Status = Failed
		c.logger.Warn("Boundary point beats the interior solution",
			zap.Int("zeroed_component", face),
			zap.Float64("interior_utility", res.Utility),
			zap.Float64("boundary_utility", u))
	}
	if res.Status != Converged {
		c.logger.Warn("Continuous solve did not converge",
			zap.Stringer("status", res.Status),
			zap.Int("evaluations", res.Evaluations))
	}
	return res, nil
}

// boundaryTolerance is how much a boundary point must beat the interior
// solution by before the solve is reported as failed.
const boundaryTolerance = 1e-9

// boundaryImproves checks the lower-bound faces next to x: for each
// component it sets that component to zero and compares utilities. The
// barrier never reaches these faces, so an optimum on one of them, as
// happens when home production diverges at zero hours, would otherwise go
// unreported. It returns the first improving component.
func (c *Continuous) boundaryImproves(p *model.Parameters, x []float64, u float64) (int, float64, bool) {
	y := make([]float64, len(x))
	for i := range x {
		copy(y, x)
		y[i] = 0
		if bu := p.Utility(y[0], y[1], y[2], y[3]); bu > u+boundaryTolerance {
			return i, bu, true
		}
	}
	return -1, 0, false
}

// contextRecorder stops the minimizer once ctx is done.
type contextRecorder struct {
	ctx context.Context
}

func (r contextRecorder) Init() error { return r.ctx.Err() }

func (r contextRecorder) Record(*optimize.Location, optimize.Operation, *optimize.Stats) error {
	return r.ctx.Err()
}

// barrier is -U(x) minus mu times the log of every constraint slack.
func (c *Continuous) barrier(p *model.Parameters, mu float64) func(x []float64) float64 {
	return func(x []float64) float64 {
		var logSum float64
		for _, s := range c.slacks(x) {
			if !(s > 0) {
				return math.Inf(1)
			}
			logSum += math.Log(s)
		}
		f := -p.Utility(x[0], x[1], x[2], x[3])
		if math.IsNaN(f) {
			return math.Inf(1)
		}
		return f - mu*logSum
	}
}

// slacks lists the distance to every constraint: lower and upper box
// bounds, then the two time budgets.
func (c *Continuous) slacks(x []float64) [10]float64 {
	var s [10]float64
	for i, v := range x[:4] {
		s[i] = v
		s[4+i] = c.cfg.Upper - v
	}
	s[8] = c.cfg.Budget - (x[0] + x[1])
	s[9] = c.cfg.Budget - (x[2] + x[3])
	return s
}

func (c *Continuous) strictlyFeasible(x []float64) bool {
	for _, s := range c.slacks(x) {
		if !(s > 0) {
			return false
		}
	}
	return true
}

// interiorStart moves the initial guess at least InteriorOffset inside
// every constraint.
func (c *Continuous) interiorStart() []float64 {
	off := c.cfg.InteriorOffset
	x := make([]float64, 4)
	for i, g := range c.cfg.InitialGuess {
		x[i] = math.Min(math.Max(g, off), c.cfg.Upper-off)
	}
	for _, pair := range [][2]int{{0, 1}, {2, 3}} {
		sum := x[pair[0]] + x[pair[1]]
		if limit := c.cfg.Budget - off; sum > limit {
			scale := limit / sum
			x[pair[0]] *= scale
			x[pair[1]] *= scale
		}
	}
	return x
}
