// Package regression fits the two-coefficient log-log model
// y = beta0 + beta1*x by ordinary least squares.
package regression

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrTooFewPoints is returned when fewer than two observations are given.
var ErrTooFewPoints = errors.New("regression needs at least two observations")

// Fit is an estimated line with its goodness of fit.
type Fit struct {
	Beta0    float64 `yaml:"beta0" json:"beta0"`
	Beta1    float64 `yaml:"beta1" json:"beta1"`
	RSquared float64 `yaml:"r_squared" json:"r_squared"`
	N        int     `yaml:"n" json:"n"`
}

// OLS regresses y on a constant and x using a QR least-squares solve of
// the design matrix [1 x].
func OLS(x, y []float64) (Fit, error) {
	if len(x) != len(y) {
		return Fit{}, fmt.Errorf("x and y lengths differ: %d vs %d", len(x), len(y))
	}
	n := len(x)
	if n < 2 {
		return Fit{}, ErrTooFewPoints
	}
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return Fit{}, fmt.Errorf("observation %d is not finite: x=%g y=%g", i, x[i], y[i])
		}
	}

	design := mat.NewDense(n, 2, nil)
	for i, v := range x {
		design.Set(i, 0, 1)
		design.Set(i, 1, v)
	}

	var qr mat.QR
	qr.Factorize(design)
	if cond := qr.Cond(); math.IsInf(cond, 1) || cond > 1e12 {
		return Fit{}, fmt.Errorf("design matrix is rank deficient (cond=%g)", cond)
	}

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(n, y)); err != nil {
		return Fit{}, fmt.Errorf("least squares solve failed: %w", err)
	}

	fit := Fit{Beta0: beta.AtVec(0), Beta1: beta.AtVec(1), N: n}
	// Undefined for constant y; reported as zero.
	if r2 := stat.RSquared(x, y, nil, fit.Beta0, fit.Beta1); !math.IsNaN(r2) {
		fit.RSquared = r2
	}
	return fit, nil
}
