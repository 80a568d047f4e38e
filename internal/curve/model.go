package curve

import (
	"errors"
	"fmt"
	"math"
)

// FourParam evaluates the four-parameter dose-response curve at x.
func FourParam(x float64, p Params) float64 {
	return (p.Bottom - p.Top) / (1 + math.Pow(x/p.EC50, p.HillSlope))
}

// Fitting setup matching the production assay: initial guess, parameter
// bounds (top, bottom, ec50, hill slope) and evaluation budget.
var (
	fitInitial = []float64{0, 100, 0.015, 1}
	fitLower   = []float64{-0.01, 0, -10, -10}
	fitUpper   = []float64{100, 120, 10, 10}
)

const maxFitIterations = 500

// ErrFitConverge is returned when the least-squares fit does not
// converge within the iteration budget.
var ErrFitConverge = errors.New("model fit did not converge")

// FitDoseResponse fits the four-parameter dose-response model to a
// dilution series by bounded nonlinear least squares.
func FitDoseResponse(pts []Point) (Params, error) {
	if len(pts) < 4 {
		return Params{}, fmt.Errorf("need at least 4 points to fit, got %d", len(pts))
	}
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, pt := range pts {
		xs[i] = pt.Dilution
		ys[i] = pt.PercentInfected
	}
	eval := func(x float64, p []float64) float64 {
		return FourParam(x, Params{Top: p[0], Bottom: p[1], EC50: p[2], HillSlope: p[3]})
	}
	p, err := fitLeastSquares(eval, xs, ys, fitInitial, fitLower, fitUpper, maxFitIterations)
	if err != nil {
		return Params{}, err
	}
	return Params{Top: p[0], Bottom: p[1], EC50: p[2], HillSlope: p[3]}, nil
}

// fitLeastSquares is a Levenberg-Marquardt solver with parameter bounds
// enforced by projection. Raising negative numbers to fractional powers
// produces NaNs during the search, so NaN residuals are replaced with a
// large penalty to steer the solver back into the feasible region.
func fitLeastSquares(
	f func(x float64, p []float64) float64,
	xs, ys, p0, lo, hi []float64,
	maxIter int,
) ([]float64, error) {
	np := len(p0)
	p := clampParams(append([]float64(nil), p0...), lo, hi)

	residuals := func(p []float64) []float64 {
		r := make([]float64, len(xs))
		for i := range xs {
			v := f(xs[i], p) - ys[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 1e6
			}
			r[i] = v
		}
		return r
	}
	cost := func(r []float64) float64 {
		var c float64
		for _, v := range r {
			c += v * v
		}
		return c
	}

	r := residuals(p)
	c := cost(r)
	lambda := 1e-3

	for iter := 0; iter < maxIter; iter++ {
		// numerical Jacobian
		jac := make([][]float64, len(xs))
		for i := range jac {
			jac[i] = make([]float64, np)
		}
		for j := 0; j < np; j++ {
			h := 1e-8 * math.Max(1, math.Abs(p[j]))
			pj := append([]float64(nil), p...)
			pj[j] += h
			for i := range xs {
				v := f(xs[i], pj)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					v = 1e6 + ys[i]
				}
				jac[i][j] = (v - ys[i] - r[i]) / h
			}
		}

		// normal equations: (JtJ + lambda*diag(JtJ)) delta = -Jt r
		jtj := make([][]float64, np)
		jtr := make([]float64, np)
		for j := 0; j < np; j++ {
			jtj[j] = make([]float64, np)
			for k := 0; k < np; k++ {
				var s float64
				for i := range xs {
					s += jac[i][j] * jac[i][k]
				}
				jtj[j][k] = s
			}
			var s float64
			for i := range xs {
				s += jac[i][j] * r[i]
			}
			jtr[j] = -s
		}

		var delta []float64
		var solveErr error
		for attempt := 0; attempt < 20; attempt++ {
			aug := make([][]float64, np)
			for j := 0; j < np; j++ {
				aug[j] = append([]float64(nil), jtj[j]...)
				aug[j][j] += lambda * math.Max(jtj[j][j], 1e-12)
			}
			delta, solveErr = solveLinear(aug, jtr)
			if solveErr != nil {
				lambda *= 10
				continue
			}
			cand := clampParams(addVec(p, delta), lo, hi)
			rCand := residuals(cand)
			cCand := cost(rCand)
			if cCand < c {
				// accepted step
				converged := math.Abs(c-cCand) < 1e-10*(c+1e-10) || normVec(delta) < 1e-12
				p, r, c = cand, rCand, cCand
				lambda = math.Max(lambda/10, 1e-12)
				if converged {
					return p, nil
				}
				break
			}
			lambda *= 10
			if lambda > 1e12 {
				// cannot improve further from here
				if iter > 0 {
					return p, nil
				}
				return nil, ErrFitConverge
			}
		}
	}
	return nil, ErrFitConverge
}

func clampParams(p, lo, hi []float64) []float64 {
	for i := range p {
		if p[i] < lo[i] {
			p[i] = lo[i]
		}
		if p[i] > hi[i] {
			p[i] = hi[i]
		}
	}
	return p
}

func addVec(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func normVec(a []float64) float64 {
	var s float64
	for _, v := range a {
		s += v * v
	}
	return math.Sqrt(s)
}

// solveLinear solves a small dense system by Gaussian elimination with
// partial pivoting.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = append(append([]float64(nil), a[i]...), b[i])
	}
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-14 {
			return nil, errors.New("singular matrix")
		}
		m[col], m[pivot] = m[pivot], m[col]
		for row := col + 1; row < n; row++ {
			factor := m[row][col] / m[col][col]
			for k := col; k <= n; k++ {
				m[row][k] -= factor * m[col][k]
			}
		}
	}
	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		s := m[row][n]
		for k := row + 1; k < n; k++ {
			s -= m[row][k] * x[k]
		}
		x[row] = s / m[row][row]
	}
	return x, nil
}
