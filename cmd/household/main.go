package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"household/internal/config"
	"household/internal/household"
	"household/internal/logging"
	"household/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	output     string
	timeout    time.Duration

	// Parameter overrides, applied only when the flag is set
	alpha, sigma, rho, nu, epsilon, omega, wm, wf float64

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "household",
	Short: "Household time allocation model",
	Long: `Solves a two-member household's allocation of market work and home
production hours, sweeps the solution over female wages, and fits
log(HF/HM) on log(wF/wM).

Parameters come from household.yaml, HOUSEHOLD_* environment variables,
and the parameter flags, in increasing order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := applyFlagOverrides(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		logging.For(logger, cfg.Logging, logging.CategoryBoot).Debug("Configuration loaded",
			zap.String("path", configPath),
			zap.Float64("alpha", cfg.Model.Alpha),
			zap.Float64("sigma", cfg.Model.Sigma),
			zap.Float64s("wf_vec", cfg.Model.WFVec))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVarP(&configPath, "config", "c", "household.yaml", "Config file")
	pf.StringVarP(&output, "output", "o", "", "Output format: text, json, yaml, markdown (default from config)")
	pf.DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	// Model parameters
	pf.Float64Var(&alpha, "alpha", 0, "Home productivity weight of F")
	pf.Float64Var(&sigma, "sigma", 0, "Elasticity of substitution in home production")
	pf.Float64Var(&rho, "rho", 0, "Curvature of consumption utility")
	pf.Float64Var(&nu, "nu", 0, "Weight on disutility of work")
	pf.Float64Var(&epsilon, "epsilon", 0, "Curvature of disutility of work")
	pf.Float64Var(&omega, "omega", 0, "Weight of home production in consumption")
	pf.Float64Var(&wm, "wm", 0, "Wage of M")
	pf.Float64Var(&wf, "wf", 0, "Wage of F for single solves")

	rootCmd.AddCommand(utilityCmd)
	rootCmd.AddCommand(discreteCmd)
	rootCmd.AddCommand(continuousCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(regressCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(batteryCmd)
	rootCmd.AddCommand(configCmd)
}

// applyFlagOverrides copies explicitly set parameter and output flags into cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	overrides := []struct {
		name string
		src  float64
		dst  *float64
	}{
		{"alpha", alpha, &cfg.Model.Alpha},
		{"sigma", sigma, &cfg.Model.Sigma},
		{"rho", rho, &cfg.Model.Rho},
		{"nu", nu, &cfg.Model.Nu},
		{"epsilon", epsilon, &cfg.Model.Epsilon},
		{"omega", omega, &cfg.Model.Omega},
		{"wm", wm, &cfg.Model.WM},
		{"wf", wf, &cfg.Model.WF},
	}
	for _, o := range overrides {
		if flags.Changed(o.name) {
			*o.dst = o.src
		}
	}
	if flags.Changed("output") {
		if _, err := report.ParseFormat(output); err != nil {
			return err
		}
		cfg.Output.Format = output
	}
	return nil
}

// commandContext returns a context bounded by --timeout and cancelled on SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	sigCtx, stop := signal.NotifyContext(baseCtx, os.Interrupt, syscall.SIGTERM)
	d := timeout
	if d <= 0 {
		d = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(sigCtx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

func newModel() *household.Model {
	return household.New(cfg.Model, householdOptions())
}

func householdOptions() household.Options {
	return household.Options{
		Grid:             cfg.Solver.Discrete,
		Continuous:       cfg.Solver.Continuous,
		SolverLogger:     logging.For(logger, cfg.Logging, logging.CategorySolver),
		SweepLogger:      logging.For(logger, cfg.Logging, logging.CategorySweep),
		RegressionLogger: logging.For(logger, cfg.Logging, logging.CategoryRegression),
	}
}

func newWriter(cmd *cobra.Command) (*report.Writer, error) {
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	return report.NewWriter(cmd.OutOrStdout(), format, logging.For(logger, cfg.Logging, logging.CategoryReport)), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
