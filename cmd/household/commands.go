package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"household/internal/config"
	"household/internal/household"
	"household/internal/logging"
	"household/internal/scenario"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	sweepDiscrete  bool
	estimateAlpha  bool
	estimateSigma  bool
	batteryWorkDir string
)

// utilityCmd evaluates utility at one allocation
var utilityCmd = &cobra.Command{
	Use:   "utility LM HM LF HF",
	Short: "Evaluate household utility at an allocation",
	Long: `Evaluates utility at the given hours under the configured parameters.

Example:
  household utility 4.5 4.5 4.5 4.5 --wf 1.2`,
	Args: cobra.ExactArgs(4),
	RunE: runUtility,
}

// discreteCmd solves on the hour grid
var discreteCmd = &cobra.Command{
	Use:   "discrete",
	Short: "Solve by exhaustive search over the half-hour grid",
	RunE:  runDiscrete,
}

// continuousCmd solves with the interior-point method
var continuousCmd = &cobra.Command{
	Use:   "continuous",
	Short: "Solve over real-valued hours",
	RunE:  runContinuous,
}

// sweepCmd solves once per wage in wf_vec
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Solve the model for each female wage in wf_vec",
	RunE:  runSweep,
}

// regressCmd sweeps and fits the log-log regression
var regressCmd = &cobra.Command{
	Use:   "regress",
	Short: "Run the wage sweep and regress log(HF/HM) on log(wF/wM)",
	Long: `Runs the wage sweep, then fits

  log(HF/HM) = beta0 + beta1 * log(wF/wM)

and reports the coefficients next to the calibration targets.`,
	RunE: runRegress,
}

// estimateCmd is reserved for fitting alpha and sigma
var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate alpha and sigma against the beta targets (not implemented)",
	RunE:  runEstimate,
}

// batteryCmd runs a scenario battery
var batteryCmd = &cobra.Command{
	Use:   "battery [path]",
	Short: "Run a battery of parameter scenarios",
	Long: `Runs each scenario of a YAML battery (sweep plus regression) and
reports the fitted coefficients. Stops at the first failing scenario.

Without a path, scenarios/battery.yaml under --workspace is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBattery,
}

// configCmd groups config helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepDiscrete, "discrete", false, "Solve each wage point on the grid")
	regressCmd.Flags().BoolVar(&sweepDiscrete, "discrete", false, "Solve each wage point on the grid")

	estimateCmd.Flags().BoolVar(&estimateAlpha, "fix-alpha", false, "Hold alpha at its configured value")
	estimateCmd.Flags().BoolVar(&estimateSigma, "fix-sigma", false, "Hold sigma at its configured value")

	batteryCmd.Flags().StringVarP(&batteryWorkDir, "workspace", "w", ".", "Workspace directory")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runUtility(cmd *cobra.Command, args []string) error {
	hours := make([]float64, 4)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("invalid hours %q: %w", a, err)
		}
		hours[i] = v
	}

	m := newModel()
	u := m.Utility(hours[0], hours[1], hours[2], hours[3])
	logger.Debug("Utility evaluated", zap.Float64s("hours", hours), zap.Float64("utility", u))

	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", u)
	return err
}

func runDiscrete(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	m := newModel()
	timer := logging.StartTimer(logging.For(logger, cfg.Logging, logging.CategorySolver), "discrete")
	alloc, err := m.SolveDiscrete(ctx)
	timer.Stop()
	if err != nil {
		return err
	}

	w, err := newWriter(cmd)
	if err != nil {
		return err
	}
	return w.Allocation("discrete", alloc, m.Utility(alloc.LM, alloc.HM, alloc.LF, alloc.HF))
}

func runContinuous(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	m := newModel()
	timer := logging.StartTimer(logging.For(logger, cfg.Logging, logging.CategorySolver), "continuous")
	res, err := m.SolveContinuously(ctx)
	timer.Stop()
	if err != nil {
		return err
	}

	w, err := newWriter(cmd)
	if err != nil {
		return err
	}
	return w.Continuous(res)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	m := newModel()
	timer := logging.StartTimer(logging.For(logger, cfg.Logging, logging.CategorySweep), "sweep")
	sweep, err := m.SolveWageSweep(ctx, household.SweepOptions{Discrete: sweepDiscrete})
	timer.StopWithThreshold(time.Minute)
	if err != nil {
		return err
	}

	w, err := newWriter(cmd)
	if err != nil {
		return err
	}
	return w.Sweep(sweep)
}

func runRegress(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	m := newModel()
	sweep, err := m.SolveWageSweep(ctx, household.SweepOptions{Discrete: sweepDiscrete})
	if err != nil {
		return err
	}
	coef, err := m.RunRegression()
	if err != nil {
		return err
	}

	w, err := newWriter(cmd)
	if err != nil {
		return err
	}
	return w.Regression(sweep, coef)
}

func runEstimate(cmd *cobra.Command, args []string) error {
	var opts household.EstimateOptions
	if estimateAlpha {
		a := cfg.Model.Alpha
		opts.Alpha = &a
	}
	if estimateSigma {
		s := cfg.Model.Sigma
		opts.Sigma = &s
	}

	if err := newModel().Estimate(opts); err != nil {
		return err
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), "estimation is not implemented; parameters unchanged")
	return err
}

func runBattery(cmd *cobra.Command, args []string) error {
	path := scenario.DefaultBatteryPath(batteryWorkDir)
	if len(args) == 1 {
		path = args[0]
	}

	b, err := scenario.LoadBattery(path)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	results, err := scenario.RunBattery(ctx, b, cfg.Model, householdOptions(),
		logging.For(logger, cfg.Logging, logging.CategoryScenario))
	if err != nil {
		return err
	}

	w, err := newWriter(cmd)
	if err != nil {
		return err
	}
	if err := w.Scenarios(results); err != nil {
		return err
	}
	for _, r := range results {
		if !r.Success {
			return fmt.Errorf("scenario %s failed: %s", r.ScenarioID, r.Error)
		}
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	logger.Info("Config written", zap.String("path", path))
	abs, _ := filepath.Abs(path)
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", abs)
	return err
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
