package curve

import (
	"errors"
	"math"
	"sort"
)

// Interpolation range for reading the IC50 off the fitted curve, in
// dilution fractions.
const (
	interpXMin   = 0.0000390625
	interpXMax   = 0.25
	interpPoints = 10000
)

var errNoSingleIntersect = errors.New("curve does not cross the threshold exactly once")

// FindIntersect locates the x position where the curve crosses the
// given level. xs and ys describe the curve. An error is returned when
// the curve crosses the level zero times or more than once.
func FindIntersect(xs, ys []float64, level float64) (float64, error) {
	var crossings []int
	prev := sign(level - ys[0])
	for i := 1; i < len(ys); i++ {
		cur := sign(level - ys[i])
		if cur != prev && cur != 0 {
			crossings = append(crossings, i-1)
			prev = cur
		}
	}
	if len(crossings) != 1 {
		return 0, errNoSingleIntersect
	}
	return xs[crossings[0]], nil
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// FitSeries analyses one dilution series end to end: dilution
// heuristics first, then a model fit with curve heuristics, then the
// IC50 from the 50% intercept of the fitted curve.
func FitSeries(pts []Point, threshold, weakThreshold float64) Result {
	pts = cleanSorted(pts)
	res := Result{MSE: math.NaN()}

	if status, ok := HeuristicFromDilutions(pts, threshold, weakThreshold); ok {
		res.FitMethod = "heuristic"
		res.Status = status
		return res
	}
	res.FitMethod = "model fit"

	params, err := FitDoseResponse(pts)
	if err != nil {
		res.Status = StatusFitFailed
		return res
	}
	res.Params = &params

	// fitted values on the interpolation grid for the intercept, and at
	// the measured dilutions for the MSE
	xGrid := Logspace(math.Log10(interpXMin), math.Log10(interpXMax), interpPoints)
	yGrid := make([]float64, len(xGrid))
	for i, x := range xGrid {
		yGrid[i] = FourParam(x, params)
	}
	observed := make([]float64, len(pts))
	fitted := make([]float64, len(pts))
	var xMaxObserved float64
	for i, pt := range pts {
		observed[i] = pt.PercentInfected
		fitted[i] = FourParam(pt.Dilution, params)
		if pt.Dilution > xMaxObserved {
			xMaxObserved = pt.Dilution
		}
	}
	res.MSE = MSE(observed, fitted)

	if status, ok := HeuristicFromCurve(xGrid, yGrid, threshold, weakThreshold); ok {
		res.Status = status
		return res
	}

	xCross, err := FindIntersect(xGrid, yGrid, threshold)
	if err != nil {
		res.Status = StatusFitFailed
		return res
	}
	ic50 := 1 / xCross
	if xMaxObserved > 0 && ic50 < 1/xMaxObserved {
		// intercept below the lowest dilution tested
		res.Status = StatusWeakInhibition
		return res
	}
	res.Status = StatusIC50
	res.IC50 = ic50
	return res
}

// cleanSorted drops NaN measurements and sorts by ascending dilution.
func cleanSorted(pts []Point) []Point {
	out := make([]Point, 0, len(pts))
	for _, pt := range pts {
		if math.IsNaN(pt.Dilution) || math.IsNaN(pt.PercentInfected) {
			continue
		}
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dilution < out[j].Dilution })
	return out
}
