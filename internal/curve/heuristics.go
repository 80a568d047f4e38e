package curve

import "math"

// Default classification thresholds: below Threshold counts as
// inhibited, between Threshold and WeakThreshold as weakly inhibited.
const (
	DefaultThreshold     = 50.0
	DefaultWeakThreshold = 60.0
)

// meanByDilution averages percentage infected per dilution, keyed by
// the reciprocal dilution rounded to the nearest 10 (so 0.025 -> 40).
func meanByDilution(pts []Point) map[int]float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, pt := range pts {
		if math.IsNaN(pt.PercentInfected) || pt.Dilution == 0 {
			continue
		}
		key := int(math.Round(1/pt.Dilution/10) * 10)
		sums[key] += pt.PercentInfected
		counts[key]++
	}
	out := make(map[int]float64, len(sums))
	for k, s := range sums {
		out[k] = s / float64(counts[k])
	}
	return out
}

// HeuristicFromDilutions classifies a dilution series from the raw
// per-dilution means, without fitting a model. The boolean reports
// whether a classification was reached; when false the series should go
// to the curve-fitting path.
func HeuristicFromDilutions(pts []Point, threshold, weakThreshold float64) (Status, bool) {
	avg := meanByDilution(pts)
	if len(avg) == 0 {
		return StatusFitFailed, true
	}
	var status Status
	found := false

	all := func(pred func(v float64) bool) bool {
		for _, v := range avg {
			if !pred(v) {
				return false
			}
		}
		return true
	}

	if all(func(v float64) bool { return v <= threshold }) {
		status, found = StatusCompleteInhibition, true
	}

	// complete inhibition when the 2 most dilute values are below the
	// threshold; fall back to the next pair when a dilution is missing
	// (e.g. removed for high background)
	if v2560, ok1 := avg[2560]; ok1 {
		if v640, ok2 := avg[640]; ok2 {
			if v2560 <= threshold && v640 <= threshold {
				status, found = StatusCompleteInhibition, true
			}
		} else {
			status, found = checkPair(avg, 640, 160, threshold, status, found)
		}
	} else {
		status, found = checkPair(avg, 640, 160, threshold, status, found)
	}

	// weak inhibition at the strongest concentration
	if v40, ok := avg[40]; ok {
		if v40 > threshold && v40 < weakThreshold {
			status, found = StatusWeakInhibition, true
		}
	} else if v160, ok := avg[160]; ok {
		if v160 > threshold && v160 < weakThreshold {
			status, found = StatusWeakInhibition, true
		}
	} else {
		status, found = StatusFitFailed, true
	}

	if all(func(v float64) bool { return v > weakThreshold }) {
		status, found = StatusNoInhibition, true
	}
	return status, found
}

func checkPair(avg map[int]float64, a, b int, threshold float64, status Status, found bool) (Status, bool) {
	va, okA := avg[a]
	vb, okB := avg[b]
	if !okA || !okB {
		// missing 2 dilutions, nothing meaningful left for the model
		return StatusFitFailed, true
	}
	if va <= threshold && vb <= threshold {
		return StatusCompleteInhibition, true
	}
	return status, found
}

// HeuristicFromCurve inspects a fitted curve for outcomes that cannot
// be read off the 50% intercept: sharp discontinuities indicating a bad
// fit, and curves that only dip between the two thresholds.
func HeuristicFromCurve(xs, ys []float64, threshold, weakThreshold float64) (Status, bool) {
	var status Status
	found := false
	if len(Hampel(ys, 5, 3)) > 0 {
		status, found = StatusFitFailed, true
	}
	minY := math.Inf(1)
	idxMin := 0
	for i, y := range ys {
		if y < minY {
			minY = y
			idxMin = i
		}
	}
	// a curve that only dips between the thresholds overrides the
	// outlier verdict
	if minY > threshold && minY < weakThreshold {
		// the minimum should sit on the strong-concentration side;
		// x-values are reciprocal dilutions so the check is inverted
		if idxMin > len(xs)/4 {
			status, found = StatusWeakInhibition, true
		} else {
			status, found = StatusFitFailed, true
		}
	}
	return status, found
}
