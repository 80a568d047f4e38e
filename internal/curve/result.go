// Package curve fits four-parameter dose-response curves to dilution
// series and derives IC50 neutralisation titres from them.
package curve

import "fmt"

// Status classifies the outcome of analysing a dilution series.
type Status int

const (
	// StatusIC50 means a numeric titre was obtained from the fitted curve.
	StatusIC50 Status = iota
	StatusNoInhibition
	StatusWeakInhibition
	StatusCompleteInhibition
	StatusFitFailed
)

// Integer codes stored in the LIMS results tables for non-numeric
// outcomes.
const (
	CodeNoInhibition       = -600
	CodeWeakInhibition     = -400
	CodeCompleteInhibition = -200
	CodeFitFailed          = -999
)

func (s Status) String() string {
	switch s {
	case StatusIC50:
		return "ic50"
	case StatusNoInhibition:
		return "no inhibition"
	case StatusWeakInhibition:
		return "weak inhibition"
	case StatusCompleteInhibition:
		return "complete inhibition"
	case StatusFitFailed:
		return "failed to fit model"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Code returns the LIMS integer code for a non-numeric status.
func (s Status) Code() int {
	switch s {
	case StatusNoInhibition:
		return CodeNoInhibition
	case StatusWeakInhibition:
		return CodeWeakInhibition
	case StatusCompleteInhibition:
		return CodeCompleteInhibition
	default:
		return CodeFitFailed
	}
}

// StatusFromCode maps a LIMS integer code back to a Status.
func StatusFromCode(code int) (Status, error) {
	switch code {
	case CodeNoInhibition:
		return StatusNoInhibition, nil
	case CodeWeakInhibition:
		return StatusWeakInhibition, nil
	case CodeCompleteInhibition:
		return StatusCompleteInhibition, nil
	case CodeFitFailed:
		return StatusFitFailed, nil
	default:
		return 0, fmt.Errorf("unknown result code %d", code)
	}
}

// Params holds the four fitted dose-response parameters.
type Params struct {
	Top       float64
	Bottom    float64
	EC50      float64
	HillSlope float64
}

// Result is the outcome of fitting a single dilution series.
type Result struct {
	// FitMethod records whether the outcome came from the dilution
	// heuristics or from a model fit.
	FitMethod string
	Status    Status
	// IC50 is only meaningful when Status == StatusIC50.
	IC50 float64
	// Params is nil when no model was fitted.
	Params *Params
	// MSE is the mean squared error of the fit, NaN when no model was
	// fitted.
	MSE float64
}

// Point is a single measurement of a dilution series: the dilution as a
// fraction (e.g. 1/40 = 0.025) and the percentage-infected value.
type Point struct {
	Dilution        float64
	PercentInfected float64
}
