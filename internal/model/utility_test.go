package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParameters(t *testing.T) {
	p := DefaultParameters()
	assert.Equal(t, 2.0, p.Rho)
	assert.Equal(t, 0.001, p.Nu)
	assert.Equal(t, 0.5, p.Alpha)
	assert.Equal(t, 1.0, p.Sigma)
	assert.Equal(t, []float64{0.8, 0.9, 1.0, 1.1, 1.2}, p.WFVec)
	assert.Equal(t, 100, p.NM)
}

func TestParameters_CloneDoesNotShareGrid(t *testing.T) {
	p := DefaultParameters()
	c := p.Clone()
	c.WFVec[0] = 42
	assert.Equal(t, 0.8, p.WFVec[0])
}

func TestHomeProduction(t *testing.T) {
	t.Run("perfect complements take the minimum", func(t *testing.T) {
		p := DefaultParameters()
		p.Sigma = 0
		for _, tc := range [][2]float64{{3, 7}, {7, 3}, {0, 5}, {2.5, 2.5}} {
			assert.Equal(t, math.Min(tc[0], tc[1]), p.HomeProduction(tc[0], tc[1]))
		}
	})

	t.Run("cobb-douglas", func(t *testing.T) {
		p := DefaultParameters()
		assert.InDelta(t, 2.0, p.HomeProduction(4, 1), 1e-12)
	})

	t.Run("ces without outer exponent", func(t *testing.T) {
		p := DefaultParameters()
		p.Sigma = 0.5
		// r = 1 - 1/0.5 = -1, so H = 0.5/hm + 0.5/hf
		assert.InDelta(t, 0.375, p.HomeProduction(2, 4), 1e-12)
	})
}

func TestUtility_KnownValue(t *testing.T) {
	p := DefaultParameters()
	want := -1/math.Sqrt(32) - 0.064
	assert.InDelta(t, want, p.Utility(4, 4, 4, 4), 1e-12)
}

func TestUtility_FloorsCompositeGood(t *testing.T) {
	p := DefaultParameters()
	u := p.Utility(0, 0, 0, 0)
	assert.InDelta(t, -1e8, u, 1e-3)

	p.Sigma = 0.5
	u = p.Utility(0, 0, 0, 0)
	assert.False(t, math.IsNaN(u), "zero hours with CES must not produce NaN")
}

func TestUtility_NonIncreasingInNu(t *testing.T) {
	allocs := []Allocation{
		{LM: 4, HM: 4, LF: 4, HF: 4},
		{LM: 10, HM: 2, LF: 0.5, HF: 12},
		{LM: 0, HM: 24, LF: 24, HF: 0},
	}
	for _, a := range allocs {
		prev := math.Inf(1)
		for _, nu := range []float64{0, 0.001, 0.01, 0.1, 1} {
			p := DefaultParameters()
			p.Nu = nu
			u := p.UtilityOf(a)
			assert.LessOrEqual(t, u, prev, "nu=%g alloc=%+v", nu, a)
			prev = u
		}
	}
}

func TestUtilityBatch_MatchesScalar(t *testing.T) {
	p := DefaultParameters()
	p.Sigma = 0.7
	lm := []float64{0, 1, 4.5, 12}
	hm := []float64{0, 2, 4.5, 3}
	lf := []float64{1, 0, 4.5, 6}
	hf := []float64{2, 8, 4.5, 0.5}

	got := p.UtilityBatch(nil, lm, hm, lf, hf)
	require.Len(t, got, 4)
	for i := range got {
		assert.Equal(t, p.Utility(lm[i], hm[i], lf[i], hf[i]), got[i])
	}

	buf := make([]float64, 0, 8)
	got2 := p.UtilityBatch(buf, lm, hm, lf, hf)
	assert.Equal(t, got, got2)
}

func TestUtilityBatch_PanicsOnLengthMismatch(t *testing.T) {
	p := DefaultParameters()
	assert.Panics(t, func() {
		p.UtilityBatch(nil, []float64{1}, []float64{1, 2}, []float64{1}, []float64{1})
	})
}

func TestAllocation_String(t *testing.T) {
	a := Allocation{LM: 4.5, HM: 4.25, LF: 0, HF: 12.34567}
	assert.Equal(t, "LM = 4.5000\nHM = 4.2500\nLF = 0.0000\nHF = 12.3457", a.String())
}

func TestAllocation_Feasible(t *testing.T) {
	assert.True(t, Allocation{LM: 12, HM: 12, LF: 0, HF: 24}.Feasible(24))
	assert.False(t, Allocation{LM: 12.5, HM: 12, LF: 0, HF: 0}.Feasible(24))
	assert.False(t, Allocation{LM: -1, HM: 0, LF: 0, HF: 0}.Feasible(24))
}

func TestSolution_Lifecycle(t *testing.T) {
	s := NewSolution(3)
	assert.Equal(t, 3, s.Len())
	assert.False(t, s.Regressed())

	a := Allocation{LM: 1, HM: 2, LF: 3, HF: 4}
	s.Set(1, a)
	assert.Equal(t, a, s.At(1))
	assert.Equal(t, Allocation{}, s.At(0))

	s.Beta0, s.Beta1 = 0.1, -0.9
	assert.True(t, s.Regressed())
}

func TestLogRatio(t *testing.T) {
	v, err := LogRatio(math.E, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	_, err = LogRatio(1, 0)
	assert.True(t, errors.Is(err, ErrDomain))

	_, err = LogRatio(0, 1)
	assert.True(t, errors.Is(err, ErrDomain))
}
