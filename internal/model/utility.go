package model

import "math"

// utilityFloor keeps the composite good away from zero before it is
// raised to 1-rho.
const utilityFloor = 1e-8

// HomeProduction aggregates the two members' home hours according to sigma:
// perfect complements at 0, Cobb-Douglas at 1, and the CES sum otherwise.
// The CES branch has no outer sigma/(sigma-1) exponent.
func (p *Parameters) HomeProduction(hm, hf float64) float64 {
	switch p.Sigma {
	case 0:
		return math.Min(hm, hf)
	case 1:
		return math.Pow(hm, 1-p.Alpha) * math.Pow(hf, p.Alpha)
	default:
		r := 1 - 1/p.Sigma
		return (1-p.Alpha)*math.Pow(hm, r) + p.Alpha*math.Pow(hf, r)
	}
}

// Consumption is market consumption bought with both members' wages.
func (p *Parameters) Consumption(lm, lf float64) float64 {
	return p.WM*lm + p.WF*lf
}

// Disutility is the cost of total hours worked by both members.
func (p *Parameters) Disutility(tm, tf float64) float64 {
	e := 1 + 1/p.Epsilon
	return p.Nu * (math.Pow(tm, e)/e + math.Pow(tf, e)/e)
}

// Utility evaluates household utility for one allocation. It never panics;
// inputs outside the intended domain produce meaningless but finite or
// infinite values.
func (p *Parameters) Utility(lm, hm, lf, hf float64) float64 {
	c := p.Consumption(lm, lf)
	h := p.HomeProduction(hm, hf)

	q := math.Pow(c, p.Omega) * math.Pow(h, 1-p.Omega)
	// NaN floors too, as numpy's fmax does.
	if !(q >= utilityFloor) {
		q = utilityFloor
	}
	u := math.Pow(q, 1-p.Rho) / (1 - p.Rho)

	return u - p.Disutility(lm+hm, lf+hf)
}

// UtilityOf is Utility on an Allocation.
func (p *Parameters) UtilityOf(a Allocation) float64 {
	return p.Utility(a.LM, a.HM, a.LF, a.HF)
}

// UtilityBatch evaluates Utility element-wise. The slices must share a
// length; dst is reused when it has enough capacity.
func (p *Parameters) UtilityBatch(dst, lm, hm, lf, hf []float64) []float64 {
	n := len(lm)
	if len(hm) != n || len(lf) != n || len(hf) != n {
		panic("model: UtilityBatch length mismatch")
	}
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = p.Utility(lm[i], hm[i], lf[i], hf[i])
	}
	return dst
}
