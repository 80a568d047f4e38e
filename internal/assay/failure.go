// Package assay holds the core analysis model: plates, samples and an
// experiment covering one workflow and variant.
package assay

import (
	"fmt"
	"strings"
)

// Failure type labels stored in the LIMS failed-results table.
const (
	FailureTypeWell  = "well_failure"
	FailureTypePlate = "plate_failure"
)

// WellFailure marks a single well that failed QC.
type WellFailure struct {
	Well   string
	Plate  string
	Reason string
}

// PlateFailure marks an entire plate that failed QC, with the wells
// that triggered it.
type PlateFailure struct {
	Plate  string
	Wells  []string
	Reason string
}

func newCellAreaPlateFailure(plate string, wells []string) PlateFailure {
	return PlateFailure{
		Plate:  plate,
		Wells:  wells,
		Reason: "cell-image-region-area outside expected limits",
	}
}

func newDAPIPlateFailure(plate string, wells []string) PlateFailure {
	return PlateFailure{
		Plate:  plate,
		Wells:  wells,
		Reason: "possible plate fail - check DAPI plate image",
	}
}

func newInfectionPlateFailure(plate string, wells []string, reason string) PlateFailure {
	return PlateFailure{Plate: plate, Wells: wells, Reason: reason}
}

// FailureRecord is the flat representation of a failure used for
// export and database upload. Plate failures join their wells with
// semicolons.
type FailureRecord struct {
	Type       string
	Plate      string
	Well       string
	Reason     string
	Experiment string
	Variant    string
}

func (w WellFailure) record(experiment, variant string) FailureRecord {
	return FailureRecord{
		Type:       FailureTypeWell,
		Plate:      w.Plate,
		Well:       w.Well,
		Reason:     w.Reason,
		Experiment: experiment,
		Variant:    variant,
	}
}

func (p PlateFailure) record(experiment, variant string) FailureRecord {
	return FailureRecord{
		Type:       FailureTypePlate,
		Plate:      p.Plate,
		Well:       strings.Join(p.Wells, ";"),
		Reason:     p.Reason,
		Experiment: experiment,
		Variant:    variant,
	}
}

func (p PlateFailure) String() string {
	return fmt.Sprintf("plate %s failed: %s", p.Plate, p.Reason)
}

func (w WellFailure) String() string {
	return fmt.Sprintf("well %s (plate %s) failed: %s", w.Well, w.Plate, w.Reason)
}
