// Package model holds the household specialization model: its parameters,
// the utility function, and the containers solvers write into.
package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrDomain is returned when a solution cannot be log-transformed
// because a home-production entry is zero or negative.
var ErrDomain = errors.New("log domain error")

// Parameters configures preferences, home production and wages.
// Nothing here is validated; rho == 1 and non-positive wages are undefined.
type Parameters struct {
	// Preferences
	Rho     float64 `yaml:"rho" json:"rho"`
	Nu      float64 `yaml:"nu" json:"nu"`
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`
	Omega   float64 `yaml:"omega" json:"omega"`

	// Household production
	Alpha float64 `yaml:"alpha" json:"alpha"`
	Sigma float64 `yaml:"sigma" json:"sigma"`

	// Wages
	WM    float64   `yaml:"wm" json:"wm"`
	WF    float64   `yaml:"wf" json:"wf"`
	WFVec []float64 `yaml:"wf_vec" json:"wf_vec"`

	// Calibration targets, reported only
	Beta0Target float64 `yaml:"beta0_target" json:"beta0_target"`
	Beta1Target float64 `yaml:"beta1_target" json:"beta1_target"`

	// NM is the resolution reserved for continuous bookkeeping.
	NM int `yaml:"nm" json:"nm"`
}

// DefaultParameters returns the baseline calibration.
func DefaultParameters() Parameters {
	return Parameters{
		Rho:     2.0,
		Nu:      0.001,
		Epsilon: 1.0,
		Omega:   0.5,

		Alpha: 0.5,
		Sigma: 1.0,

		WM:    1.0,
		WF:    1.0,
		WFVec: []float64{0.8, 0.9, 1.0, 1.1, 1.2},

		Beta0Target: 0.4,
		Beta1Target: -0.1,

		NM: 100,
	}
}

// Clone returns a copy that shares no slices with p.
func (p Parameters) Clone() Parameters {
	out := p
	out.WFVec = append([]float64(nil), p.WFVec...)
	return out
}

// Allocation is one choice of hours: market labor and home production
// for members M and F.
type Allocation struct {
	LM float64 `yaml:"lm" json:"lm"`
	HM float64 `yaml:"hm" json:"hm"`
	LF float64 `yaml:"lf" json:"lf"`
	HF float64 `yaml:"hf" json:"hf"`
}

// Vector returns the allocation as (LM, HM, LF, HF).
func (a Allocation) Vector() []float64 {
	return []float64{a.LM, a.HM, a.LF, a.HF}
}

// AllocationFromVector is the inverse of Vector.
func AllocationFromVector(x []float64) Allocation {
	return Allocation{LM: x[0], HM: x[1], LF: x[2], HF: x[3]}
}

// Feasible reports whether both members stay within budget hours and
// no component is negative.
func (a Allocation) Feasible(budget float64) bool {
	for _, v := range a.Vector() {
		if v < 0 {
			return false
		}
	}
	return a.LM+a.HM <= budget && a.LF+a.HF <= budget
}

// String renders each field on its own line with four decimals.
func (a Allocation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "LM = %6.4f\n", a.LM)
	fmt.Fprintf(&b, "HM = %6.4f\n", a.HM)
	fmt.Fprintf(&b, "LF = %6.4f\n", a.LF)
	fmt.Fprintf(&b, "HF = %6.4f", a.HF)
	return b.String()
}

// Solution stores per-wage results of a sweep and the fitted coefficients.
// Beta0 and Beta1 are NaN until a regression has run.
type Solution struct {
	LMVec []float64 `yaml:"lm_vec" json:"lm_vec"`
	HMVec []float64 `yaml:"hm_vec" json:"hm_vec"`
	LFVec []float64 `yaml:"lf_vec" json:"lf_vec"`
	HFVec []float64 `yaml:"hf_vec" json:"hf_vec"`

	Beta0 float64 `yaml:"beta0" json:"beta0"`
	Beta1 float64 `yaml:"beta1" json:"beta1"`
}

// NewSolution allocates zeroed vectors of length n.
func NewSolution(n int) *Solution {
	return &Solution{
		LMVec: make([]float64, n),
		HMVec: make([]float64, n),
		LFVec: make([]float64, n),
		HFVec: make([]float64, n),
		Beta0: math.NaN(),
		Beta1: math.NaN(),
	}
}

// Len is the number of wage points the solution holds.
func (s *Solution) Len() int {
	return len(s.HFVec)
}

// Set writes the allocation at wage index i.
func (s *Solution) Set(i int, a Allocation) {
	s.LMVec[i] = a.LM
	s.HMVec[i] = a.HM
	s.LFVec[i] = a.LF
	s.HFVec[i] = a.HF
}

// At reads the allocation at wage index i.
func (s *Solution) At(i int) Allocation {
	return Allocation{LM: s.LMVec[i], HM: s.HMVec[i], LF: s.LFVec[i], HF: s.HFVec[i]}
}

// Regressed reports whether both coefficients have been computed.
func (s *Solution) Regressed() bool {
	return !math.IsNaN(s.Beta0) && !math.IsNaN(s.Beta1)
}

// SweepRecord is the per-wage output of a wage sweep.
type SweepRecord struct {
	Index   int     `yaml:"index" json:"index"`
	WF      float64 `yaml:"wf" json:"wf"`
	WM      float64 `yaml:"wm" json:"wm"`
	LM      float64 `yaml:"lm" json:"lm"`
	HM      float64 `yaml:"hm" json:"hm"`
	LF      float64 `yaml:"lf" json:"lf"`
	HF      float64 `yaml:"hf" json:"hf"`
	LogHFHM float64 `yaml:"log_hf_hm" json:"log_hf_hm"`
	LogWFWM float64 `yaml:"log_wf_wm" json:"log_wf_wm"`
}

// LogRatio returns log(num/den), or an ErrDomain wrap when either side
// is not strictly positive.
func LogRatio(num, den float64) (float64, error) {
	if !(num > 0) || !(den > 0) {
		return math.NaN(), fmt.Errorf("%w: log(%g/%g)", ErrDomain, num, den)
	}
	return math.Log(num / den), nil
}
