package curve

import (
	"math"
	"sort"
)

// Median returns the median of xs, ignoring NaNs. Returns NaN for an
// empty or all-NaN input.
func Median(xs []float64) float64 {
	vals := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			vals = append(vals, x)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// Mean returns the arithmetic mean of xs, ignoring NaNs.
func Mean(xs []float64) float64 {
	var sum float64
	var n int
	for _, x := range xs {
		if !math.IsNaN(x) {
			sum += x
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// MSE is the mean squared error between observed and fitted values.
func MSE(observed, fitted []float64) float64 {
	if len(observed) != len(fitted) || len(observed) == 0 {
		return math.NaN()
	}
	var sum float64
	for i := range observed {
		d := observed[i] - fitted[i]
		sum += d * d
	}
	return sum / float64(len(observed))
}

// Logspace returns n values spaced evenly on a log10 scale between
// 10^lo and 10^hi inclusive.
func Logspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{math.Pow(10, lo)}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = math.Pow(10, lo+float64(i)*step)
	}
	return out
}

// Hampel runs Hampel's outlier test over xs with window half-width k
// and threshold t0 standard deviations, returning the indices of
// outliers. NaN values are skipped.
func Hampel(xs []float64, k int, t0 float64) []int {
	const l = 1.4826
	n := len(xs)
	var indices []int
	for i := k + 1; i < n-k; i++ {
		window := xs[i-k : i+k+1]
		x0 := Median(window)
		if math.IsNaN(x0) {
			continue
		}
		dev := make([]float64, len(window))
		for j, w := range window {
			dev[j] = math.Abs(w - x0)
		}
		s0 := l * Median(dev)
		if math.Abs(xs[i]-x0) > t0*s0 {
			indices = append(indices, i)
		}
	}
	return indices
}
