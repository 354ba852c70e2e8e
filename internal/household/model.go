// Package household ties the parameter and solution stores to the solvers:
// single solves, the F-wage sweep, and the log-log regression over it.
package household

import (
	"context"
	"fmt"

	"household/internal/model"
	"household/internal/regression"
	"household/internal/solver"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures the solvers a Model uses.
type Options struct {
	Grid       solver.GridConfig
	Continuous solver.ContinuousConfig

	// One logger per concern; nil disables that concern's logging.
	SolverLogger     *zap.Logger
	SweepLogger      *zap.Logger
	RegressionLogger *zap.Logger
}

// WithLogger returns a copy of o logging every concern through a named
// child of root.
func (o Options) WithLogger(root *zap.Logger) Options {
	if root == nil {
		return o
	}
	o.SolverLogger = root.Named("solver")
	o.SweepLogger = root.Named("sweep")
	o.RegressionLogger = root.Named("regression")
	return o
}

// DefaultOptions returns the default solver settings with logging off.
func DefaultOptions() Options {
	return Options{
		Grid:       solver.DefaultGridConfig(),
		Continuous: solver.DefaultContinuousConfig(),
	}
}

// Model owns one parameter set and the solution store sized to its wage grid.
// It is not safe for concurrent use: the sweep rewrites Params.WF.
type Model struct {
	Params   model.Parameters
	Solution *model.Solution

	discrete   *solver.Discrete
	continuous *solver.Continuous

	sweepLogger      *zap.Logger
	regressionLogger *zap.Logger
}

// New creates a Model. The solution store is allocated with one slot per
// entry of params.WFVec.
func New(params model.Parameters, opts Options) *Model {
	params = params.Clone()
	return &Model{
		Params:           params,
		Solution:         model.NewSolution(len(params.WFVec)),
		discrete:         solver.NewDiscrete(opts.Grid, opts.SolverLogger),
		continuous:       solver.NewContinuous(opts.Continuous, opts.SolverLogger),
		sweepLogger:      orNop(opts.SweepLogger),
		regressionLogger: orNop(opts.RegressionLogger),
	}
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Utility evaluates household utility under the current parameters.
func (m *Model) Utility(lm, hm, lf, hf float64) float64 {
	return m.Params.Utility(lm, hm, lf, hf)
}

// SolveDiscrete returns the best allocation on the search grid.
func (m *Model) SolveDiscrete(ctx context.Context) (model.Allocation, error) {
	return m.discrete.Solve(ctx, m.Params)
}

// SolveContinuously returns the interior-point optimum and its utility.
func (m *Model) SolveContinuously(ctx context.Context) (solver.Result, error) {
	return m.continuous.Solve(ctx, m.Params)
}

// SweepOptions selects how each wage point is solved.
type SweepOptions struct {
	// Discrete solves each point on the grid instead of continuously.
	Discrete bool
}

// Sweep is the output of one pass over the wage grid.
type Sweep struct {
	RunID   string              `yaml:"run_id" json:"run_id"`
	Method  string              `yaml:"method" json:"method"`
	Records []model.SweepRecord `yaml:"records" json:"records"`
}

// SolveWageSweep solves the model once per entry of Params.WFVec, in order.
// Each iteration sets Params.WF, solves, and stores the hours at its index;
// WF is left at the last grid value. A zero HM or HF yields an error
// wrapping model.ErrDomain after that index has been stored.
func (m *Model) SolveWageSweep(ctx context.Context, opts SweepOptions) (*Sweep, error) {
	if len(m.Params.WFVec) != m.Solution.Len() {
		return nil, fmt.Errorf("wage grid has %d points but solution store holds %d",
			len(m.Params.WFVec), m.Solution.Len())
	}

	sweep := &Sweep{
		RunID:   uuid.NewString(),
		Method:  "continuous",
		Records: make([]model.SweepRecord, 0, len(m.Params.WFVec)),
	}
	if opts.Discrete {
		sweep.Method = "discrete"
	}
	logger := m.sweepLogger.With(zap.String("run_id", sweep.RunID))
	logger.Info("Starting wage sweep",
		zap.String("method", sweep.Method),
		zap.Float64s("wf_vec", m.Params.WFVec))

	for i, wf := range m.Params.WFVec {
		if err := ctx.Err(); err != nil {
			return sweep, fmt.Errorf("sweep interrupted at index %d: %w", i, err)
		}
		m.Params.WF = wf

		alloc, err := m.solvePoint(ctx, opts)
		if err != nil {
			return sweep, fmt.Errorf("solve wF=%g (index %d): %w", wf, i, err)
		}
		m.Solution.Set(i, alloc)

		rec := model.SweepRecord{
			Index: i,
			WF:    wf,
			WM:    m.Params.WM,
			LM:    alloc.LM,
			HM:    alloc.HM,
			LF:    alloc.LF,
			HF:    alloc.HF,
		}
		if rec.LogHFHM, err = model.LogRatio(alloc.HF, alloc.HM); err != nil {
			return sweep, fmt.Errorf("index %d: %w", i, err)
		}
		if rec.LogWFWM, err = model.LogRatio(wf, m.Params.WM); err != nil {
			return sweep, fmt.Errorf("index %d: %w", i, err)
		}
		sweep.Records = append(sweep.Records, rec)

		logger.Debug("Wage point solved",
			zap.Int("index", i),
			zap.Float64("wf", wf),
			zap.Float64("log_hf_hm", rec.LogHFHM))
	}

	logger.Info("Wage sweep finished", zap.Int("points", len(sweep.Records)))
	return sweep, nil
}

func (m *Model) solvePoint(ctx context.Context, opts SweepOptions) (model.Allocation, error) {
	if opts.Discrete {
		return m.discrete.Solve(ctx, m.Params)
	}
	res, err := m.continuous.Solve(ctx, m.Params)
	if err != nil {
		return model.Allocation{}, err
	}
	return res.Allocation, nil
}

// Coefficients are the fitted log-log coefficients next to the
// calibration targets they would be compared with.
type Coefficients struct {
	regression.Fit `yaml:",inline"`

	Beta0Target float64 `yaml:"beta0_target" json:"beta0_target"`
	Beta1Target float64 `yaml:"beta1_target" json:"beta1_target"`
}

// Gap0 is the distance of beta0 from its target.
func (c Coefficients) Gap0() float64 { return c.Beta0 - c.Beta0Target }

// Gap1 is the distance of beta1 from its target.
func (c Coefficients) Gap1() float64 { return c.Beta1 - c.Beta1Target }

// RunRegression fits log(HF/HM) on log(wF/wM) over the stored sweep and
// writes Beta0 and Beta1 into the solution store. Zero hours anywhere in
// the store produce an error wrapping model.ErrDomain.
func (m *Model) RunRegression() (Coefficients, error) {
	n := m.Solution.Len()
	if len(m.Params.WFVec) != n {
		return Coefficients{}, fmt.Errorf("wage grid has %d points but solution store holds %d",
			len(m.Params.WFVec), n)
	}

	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		var err error
		if x[i], err = model.LogRatio(m.Params.WFVec[i], m.Params.WM); err != nil {
			return Coefficients{}, fmt.Errorf("index %d: %w", i, err)
		}
		if y[i], err = model.LogRatio(m.Solution.HFVec[i], m.Solution.HMVec[i]); err != nil {
			return Coefficients{}, fmt.Errorf("index %d: %w", i, err)
		}
	}

	fit, err := regression.OLS(x, y)
	if err != nil {
		return Coefficients{}, fmt.Errorf("regression failed: %w", err)
	}
	m.Solution.Beta0 = fit.Beta0
	m.Solution.Beta1 = fit.Beta1

	m.regressionLogger.Info("Regression fitted",
		zap.Float64("beta0", fit.Beta0),
		zap.Float64("beta1", fit.Beta1),
		zap.Float64("r_squared", fit.RSquared))

	return Coefficients{
		Fit:         fit,
		Beta0Target: m.Params.Beta0Target,
		Beta1Target: m.Params.Beta1Target,
	}, nil
}

// EstimateOptions optionally fixes alpha and sigma for an estimation.
type EstimateOptions struct {
	Alpha *float64
	Sigma *float64
}

// Estimate is reserved for fitting alpha and sigma to the beta targets.
// It currently does nothing and never fails.
func (m *Model) Estimate(opts EstimateOptions) error {
	m.regressionLogger.Debug("Estimate called; estimation is not implemented",
		zap.Bool("alpha_fixed", opts.Alpha != nil),
		zap.Bool("sigma_fixed", opts.Sigma != nil))
	return nil
}
