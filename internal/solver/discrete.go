// Package solver maximizes household utility over time allocations,
// either by exhaustive grid search or by a continuous interior-point method.
package solver

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"household/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// GridConfig describes the uniform grid searched by Discrete.
type GridConfig struct {
	Max     float64 `yaml:"max" json:"max"`         // upper end of the grid and the per-member time budget
	Points  int     `yaml:"points" json:"points"`   // grid points per dimension, including both ends
	Workers int     `yaml:"workers" json:"workers"` // 0 means GOMAXPROCS
}

// DefaultGridConfig is a 49-point grid over [0,24] with half-hour steps.
func DefaultGridConfig() GridConfig {
	return GridConfig{Max: 24, Points: 49}
}

// Discrete finds the best allocation on a finite grid.
type Discrete struct {
	cfg    GridConfig
	logger *zap.Logger
}

// NewDiscrete creates a grid solver. A nil logger disables logging.
func NewDiscrete(cfg GridConfig, logger *zap.Logger) *Discrete {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discrete{cfg: cfg, logger: logger}
}

// Grid returns the points searched along each dimension.
func (d *Discrete) Grid() []float64 {
	return floats.Span(make([]float64, d.cfg.Points), 0, d.cfg.Max)
}

// candidate is the best point found in one slice of the grid.
type candidate struct {
	index int
	u     float64
	alloc model.Allocation
}

// Solve evaluates every grid point and returns the feasible maximizer.
// Points are enumerated LM outermost, then HM, LF and HF innermost; ties
// resolve to the earliest point in that order regardless of Workers.
func (d *Discrete) Solve(ctx context.Context, p model.Parameters) (model.Allocation, error) {
	if d.cfg.Points < 2 {
		return model.Allocation{}, fmt.Errorf("grid needs at least 2 points, got %d", d.cfg.Points)
	}
	x := d.Grid()
	n := len(x)
	budget := d.cfg.Max

	workers := d.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// One slice of the grid per LM value.
	best := make([]candidate, n)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range x {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			best[i] = scanSlice(&p, x, i, budget)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return model.Allocation{}, fmt.Errorf("discrete search aborted: %w", err)
	}

	winner := candidate{index: -1, u: math.Inf(-1)}
	for _, c := range best {
		if c.index >= 0 && (winner.index < 0 || c.u > winner.u) {
			winner = c
		}
	}
	if winner.index < 0 {
		return model.Allocation{}, fmt.Errorf("no feasible grid point")
	}

	d.logger.Debug("Discrete solve finished",
		zap.Int("grid_points", n),
		zap.Int("candidates", n*n*n*n),
		zap.Int("argmax", winner.index),
		zap.Float64("utility", winner.u))
	return winner.alloc, nil
}

// scanSlice scans every point with LM = x[i]. Infeasible points count as
// -Inf, so a slice whose feasible points are all -Inf still reports its
// first feasible index.
func scanSlice(p *model.Parameters, x []float64, i int, budget float64) candidate {
	n := len(x)
	lm := x[i]
	best := candidate{index: -1, u: math.Inf(-1)}
	for j, hm := range x {
		if lm+hm > budget {
			continue
		}
		for k, lf := range x {
			for l, hf := range x {
				if lf+hf > budget {
					continue
				}
				u := p.Utility(lm, hm, lf, hf)
				if best.index < 0 || u > best.u {
					best = candidate{
						index: ((i*n+j)*n+k)*n + l,
						u:     u,
						alloc: model.Allocation{LM: lm, HM: hm, LF: lf, HF: hf},
					}
				}
			}
		}
	}
	return best
}
