package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"household/internal/household"
	"household/internal/model"
	"household/internal/regression"
	"household/internal/scenario"
	"household/internal/solver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSweep() *household.Sweep {
	return &household.Sweep{
		RunID:  "run-1",
		Method: "continuous",
		Records: []model.SweepRecord{
			{Index: 0, WF: 0.8, WM: 1, LM: 4, HM: 4, LF: 3.5, HF: 5, LogHFHM: 0.2231, LogWFWM: -0.2231},
			{Index: 1, WF: 1.2, WM: 1, LM: 4.5, HM: 4.2, LF: 4.6, HF: 3.5, LogHFHM: -0.1823, LogWFWM: 0.1823},
		},
	}
}

func sampleCoefficients() household.Coefficients {
	return household.Coefficients{
		Fit:         regression.Fit{Beta0: 0.01, Beta1: -0.98, RSquared: 0.999, N: 2},
		Beta0Target: 0.4,
		Beta1Target: -0.1,
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"":         FormatText,
		"text":     FormatText,
		"JSON":     FormatJSON,
		"yaml":     FormatYAML,
		"markdown": FormatMarkdown,
		"md":       FormatMarkdown,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestAllocation_Text(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatText, nil)

	a := model.Allocation{LM: 4.5, HM: 4.5, LF: 4.5, HF: 4.5}
	require.NoError(t, w.Allocation("discrete", a, -0.25))

	out := buf.String()
	assert.Contains(t, out, "discrete solution")
	assert.Contains(t, out, "LM = 4.5000\nHM = 4.5000\nLF = 4.5000\nHF = 4.5000")
	assert.Contains(t, out, "utility = -0.250000")
}

func TestAllocation_JSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatJSON, nil)
	require.NoError(t, w.Allocation("discrete", model.Allocation{LM: 1, HM: 2, LF: 3, HF: 4}, -1))

	var got AllocationReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "discrete", got.Method)
	assert.Equal(t, 4.0, got.Allocation.HF)
}

func TestContinuous_Formats(t *testing.T) {
	res := solver.Result{
		Allocation:  model.Allocation{LM: 4.45, HM: 4.45, LF: 4.45, HF: 4.45},
		Utility:     -0.3,
		Status:      solver.Converged,
		Rounds:      9,
		Iterations:  120,
		Evaluations: 300,
	}

	var text bytes.Buffer
	require.NoError(t, NewWriter(&text, FormatText, nil).Continuous(res))
	assert.Contains(t, text.String(), "status = converged (rounds 9")

	var js bytes.Buffer
	require.NoError(t, NewWriter(&js, FormatJSON, nil).Continuous(res))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "converged", decoded["status"])
	assert.Equal(t, 4.45, decoded["lm"])

	var ym bytes.Buffer
	require.NoError(t, NewWriter(&ym, FormatYAML, nil).Continuous(res))
	assert.Contains(t, ym.String(), "status: converged")
	assert.Contains(t, ym.String(), "lm: 4.45")
}

func TestSweep_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, FormatText, nil).Sweep(sampleSweep()))

	out := buf.String()
	assert.Contains(t, out, "run run-1")
	assert.Contains(t, out, "log(HF/HM)")
	assert.Contains(t, out, "0.2231")
	assert.Contains(t, out, "-0.1823")
}

func TestSweep_YAMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, FormatYAML, nil).Sweep(sampleSweep()))

	var got household.Sweep
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleSweep(), &got)
}

func TestRegression_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, FormatText, nil).Regression(sampleSweep(), sampleCoefficients()))

	out := buf.String()
	assert.Contains(t, out, "beta0 = 0.0100 (target 0.4000, gap -0.3900)")
	assert.Contains(t, out, "beta1 = -0.9800 (target -0.1000, gap -0.8800)")
	assert.Contains(t, out, "n = 2")
}

func TestRegression_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter(&buf, FormatJSON, nil).Regression(sampleSweep(), sampleCoefficients()))

	var got RegressionReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.InDelta(t, -0.98, got.Coefficients.Beta1, 1e-12)
	assert.InDelta(t, -0.88, got.Gap1, 1e-12)
	require.NotNil(t, got.Sweep)
	assert.Len(t, got.Sweep.Records, 2)
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatMarkdown, nil)
	require.NoError(t, w.Regression(sampleSweep(), sampleCoefficients()))

	out := buf.String()
	assert.Contains(t, out, "Regression")
	assert.Contains(t, out, "beta1")
	assert.False(t, strings.Contains(out, "|---|"), "table separators should be rendered")
}

func TestScenarios(t *testing.T) {
	results := []scenario.Result{
		{ScenarioID: "baseline", Success: true, Beta0: 0, Beta1: -1, RSquared: 1, DurationMs: 12},
		{ScenarioID: "broken", Success: false, Error: "log domain error"},
	}

	var text bytes.Buffer
	require.NoError(t, NewWriter(&text, FormatText, nil).Scenarios(results))
	assert.Contains(t, text.String(), "baseline")
	assert.Contains(t, text.String(), "log domain error")

	var js bytes.Buffer
	require.NoError(t, NewWriter(&js, FormatJSON, nil).Scenarios(results))
	var got []scenario.Result
	require.NoError(t, json.Unmarshal(js.Bytes(), &got))
	assert.Equal(t, results, got)
}

func TestEncode_UnknownFormat(t *testing.T) {
	w := NewWriter(&bytes.Buffer{}, Format("xml"), nil)
	assert.Error(t, w.Sweep(sampleSweep()))
}
