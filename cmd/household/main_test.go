package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"household/internal/config"
	"household/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// setup installs a default config and a no-op logger, and returns a
// command whose output is captured.
func setup(t *testing.T, format string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.Output.Format = format
	sweepDiscrete = false
	t.Cleanup(func() {
		cfg = nil
		sweepDiscrete = false
	})

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestUtilityCmd(t *testing.T) {
	cmd, buf := setup(t, "text")

	if err := runUtility(cmd, []string{"4", "4", "4", "4"}); err != nil {
		t.Fatalf("runUtility failed: %v", err)
	}
	got, err := strconv.ParseFloat(strings.TrimSpace(buf.String()), 64)
	if err != nil {
		t.Fatalf("unexpected output %q", buf.String())
	}
	// C = 8, H = 4: -1/sqrt(32) - 0.064
	if want := -0.240777; got < want-1e-6 || got > want+1e-6 {
		t.Errorf("utility = %v, want %v", got, want)
	}

	if err := runUtility(cmd, []string{"4", "x", "4", "4"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestDiscreteCmd_JSON(t *testing.T) {
	cmd, buf := setup(t, "json")

	if err := runDiscrete(cmd, nil); err != nil {
		t.Fatalf("runDiscrete failed: %v", err)
	}
	var rep report.AllocationReport
	if err := json.Unmarshal(buf.Bytes(), &rep); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if rep.Method != "discrete" {
		t.Errorf("method = %q", rep.Method)
	}
	if !rep.Allocation.Feasible(24) {
		t.Errorf("infeasible allocation %+v", rep.Allocation)
	}
}

func TestContinuousCmd_Text(t *testing.T) {
	cmd, buf := setup(t, "text")

	if err := runContinuous(cmd, nil); err != nil {
		t.Fatalf("runContinuous failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"LM = ", "HF = ", "utility = ", "status = "} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRegressCmd_JSON(t *testing.T) {
	cmd, buf := setup(t, "json")

	if err := runRegress(cmd, nil); err != nil {
		t.Fatalf("runRegress failed: %v", err)
	}
	var rep report.RegressionReport
	if err := json.Unmarshal(buf.Bytes(), &rep); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rep.Sweep == nil || len(rep.Sweep.Records) != 5 {
		t.Fatalf("expected 5 sweep records, got %+v", rep.Sweep)
	}
	if b1 := rep.Coefficients.Beta1; b1 < -1.05 || b1 > -0.95 {
		t.Errorf("beta1 = %v, want about -1", b1)
	}
}

func TestRegressCmd_CategoryToggles(t *testing.T) {
	cmd, _ := setup(t, "json")
	core, logs := observer.New(zapcore.DebugLevel)
	logger = zap.New(core)
	cfg.Logging.Categories = map[string]bool{"sweep": false}

	if err := runRegress(cmd, nil); err != nil {
		t.Fatalf("runRegress failed: %v", err)
	}

	seen := map[string]int{}
	for _, e := range logs.All() {
		seen[e.LoggerName]++
	}
	if seen["sweep"] != 0 {
		t.Errorf("sweep category is disabled but logged %d entries", seen["sweep"])
	}
	if seen["regression"] == 0 {
		t.Errorf("expected regression entries, got loggers %v", seen)
	}
	if seen["solver"] == 0 {
		t.Errorf("expected solver entries, got loggers %v", seen)
	}
	for name := range seen {
		if strings.Contains(name, ".") {
			t.Errorf("unexpected nested logger name %q", name)
		}
	}
}

func TestContinuousCmd_Canceled(t *testing.T) {
	cmd, _ := setup(t, "text")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd.SetContext(ctx)

	if err := runContinuous(cmd, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSweepCmd_DiscreteYAML(t *testing.T) {
	cmd, buf := setup(t, "yaml")
	sweepDiscrete = true

	if err := runSweep(cmd, nil); err != nil {
		t.Fatalf("runSweep failed: %v", err)
	}
	if !strings.Contains(buf.String(), "method: discrete") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestEstimateCmd(t *testing.T) {
	cmd, buf := setup(t, "text")
	estimateAlpha = true
	defer func() { estimateAlpha = false }()

	if err := runEstimate(cmd, nil); err != nil {
		t.Fatalf("runEstimate failed: %v", err)
	}
	if !strings.Contains(buf.String(), "not implemented") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestBatteryCmd(t *testing.T) {
	cmd, buf := setup(t, "text")

	ws := t.TempDir()
	path := filepath.Join(ws, "scenarios", "battery.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	content := `version: 1
scenarios:
  - id: baseline
  - id: broken
    method: annealing
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	batteryWorkDir = ws
	defer func() { batteryWorkDir = "." }()

	err := runBattery(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected failure naming the broken scenario, got %v", err)
	}
	if !strings.Contains(buf.String(), "baseline") {
		t.Errorf("results not rendered:\n%s", buf.String())
	}
}

func TestConfigInitAndShow(t *testing.T) {
	cmd, buf := setup(t, "text")

	path := filepath.Join(t.TempDir(), "household.yaml")
	if err := runConfigInit(cmd, []string{path}); err != nil {
		t.Fatalf("runConfigInit failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if err := runConfigInit(cmd, []string{path}); err == nil {
		t.Error("expected error when config exists")
	}

	buf.Reset()
	if err := runConfigShow(cmd, nil); err != nil {
		t.Fatalf("runConfigShow failed: %v", err)
	}
	if !strings.Contains(buf.String(), "wf_vec:") {
		t.Errorf("unexpected config output:\n%s", buf.String())
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	c := config.DefaultConfig()
	cmd := &cobra.Command{}
	cmd.Flags().Float64Var(&sigma, "sigma", 0, "")
	cmd.Flags().Float64Var(&alpha, "alpha", 0, "")
	cmd.Flags().StringVar(&output, "output", "", "")
	defer func() { sigma, alpha, output = 0, 0, "" }()

	if err := cmd.Flags().Parse([]string{"--sigma", "0.5", "--output", "json"}); err != nil {
		t.Fatal(err)
	}
	if err := applyFlagOverrides(cmd, c); err != nil {
		t.Fatalf("applyFlagOverrides failed: %v", err)
	}
	if c.Model.Sigma != 0.5 {
		t.Errorf("sigma = %v, want 0.5", c.Model.Sigma)
	}
	if c.Model.Alpha != 0.5 {
		t.Errorf("alpha should keep its default, got %v", c.Model.Alpha)
	}
	if c.Output.Format != "json" {
		t.Errorf("output = %q", c.Output.Format)
	}

	bad := &cobra.Command{}
	bad.Flags().StringVar(&output, "output", "", "")
	if err := bad.Flags().Parse([]string{"--output", "xml"}); err != nil {
		t.Fatal(err)
	}
	if err := applyFlagOverrides(bad, config.DefaultConfig()); err == nil {
		t.Error("expected error for unknown output format")
	}
}
