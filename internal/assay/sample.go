package assay

import (
	"fmt"
	"math"
	"strconv"

	"github.com/crick-pipelines-stp/plaque-assay/internal/config"
	"github.com/crick-pipelines-stp/plaque-assay/internal/curve"
	"github.com/crick-pipelines-stp/plaque-assay/internal/labware"
)

// Sample is one well's dilution series across the 4 dilution plates
// and both replicates.
type Sample struct {
	Name    string
	Variant string
	Points  []curve.Point
	Result  curve.Result

	IsPositiveControl bool
	Failures          []WellFailure
}

// NewSample fits the dilution series and runs the sample-level QC
// checks (positive-control range, replicate difference, model MSE).
func NewSample(name string, pts []curve.Point, variant string, cfg *config.Config) *Sample {
	s := &Sample{
		Name:              name,
		Variant:           variant,
		Points:            pts,
		IsPositiveControl: labware.Contains(labware.PositiveControlWells, name),
	}
	s.Result = curve.FitSeries(pts, cfg.Threshold, cfg.WeakThreshold)
	s.checkFitFailure()
	s.checkPositiveControl(cfg.QC)
	s.checkDuplicateDifference(cfg.QC)
	s.checkModelMSE(cfg.QC)
	return s
}

// IC50 returns the numeric titre, or the negative LIMS code for a
// non-numeric outcome.
func (s *Sample) IC50() float64 {
	if s.Result.Status == curve.StatusIC50 {
		return s.Result.IC50
	}
	return float64(s.Result.Status.Code())
}

// IC50Pretty is the human-readable titre: the number, or the status
// string for a non-numeric outcome.
func (s *Sample) IC50Pretty() string {
	if s.Result.Status == curve.StatusIC50 {
		return strconv.FormatFloat(s.Result.IC50, 'f', 2, 64)
	}
	return s.Result.Status.String()
}

// checkFitFailure records a well failure when the series reached the
// model-fitting path but no acceptable curve came out of it.
func (s *Sample) checkFitFailure() {
	if s.Result.FitMethod != "model fit" || s.Result.Status != curve.StatusFitFailed {
		return
	}
	s.Failures = append(s.Failures, WellFailure{
		Well:   s.Name,
		Plate:  "DILUTION SERIES",
		Reason: "failed to fit model to data points",
	})
}

// checkPositiveControl fails positive-control wells whose IC50 falls
// outside the variant's expected range.
func (s *Sample) checkPositiveControl(criteria config.QCCriteria) {
	if !s.IsPositiveControl {
		return
	}
	limits := criteria.PositiveControlFor(s.Variant)
	if !limits.Contains(s.IC50()) {
		s.Failures = append(s.Failures, WellFailure{
			Well:   s.Name,
			Plate:  "DILUTION SERIES",
			Reason: fmt.Sprintf("positive control failure. IC50 = %s", s.IC50Pretty()),
		})
	}
}

// checkDuplicateDifference fails the well when the replicates disagree
// by more than the allowed gap in percentage infected at 2 or more
// dilutions. A series already classified as no inhibition is exempt.
func (s *Sample) checkDuplicateDifference(criteria config.QCCriteria) {
	if s.Result.Status == curve.StatusNoInhibition {
		return
	}
	byDilution := make(map[float64][]float64)
	for _, pt := range s.Points {
		if math.IsNaN(pt.PercentInfected) {
			continue
		}
		byDilution[pt.Dilution] = append(byDilution[pt.Dilution], pt.PercentInfected)
	}
	offending := 0
	for _, values := range byDilution {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if len(values) > 1 && hi-lo > criteria.DuplicateDifference {
			offending++
		}
	}
	if offending >= 2 {
		s.Failures = append(s.Failures, WellFailure{
			Well:  s.Name,
			Plate: "DILUTION SERIES",
			Reason: fmt.Sprintf(
				"2 or more duplicates differ by more than %g%% infected",
				criteria.DuplicateDifference,
			),
		})
	}
}

// checkModelMSE fails the well when the fitted model's mean squared
// error exceeds the allowed limit.
func (s *Sample) checkModelMSE(criteria config.QCCriteria) {
	mse := s.Result.MSE
	if math.IsNaN(mse) || mse <= criteria.MSELimit {
		return
	}
	s.Failures = append(s.Failures, WellFailure{
		Well:  s.Name,
		Plate: "DILUTION SERIES",
		Reason: fmt.Sprintf(
			"model mean squared error (%.1f) greater than limit %g",
			mse, criteria.MSELimit,
		),
	})
}
