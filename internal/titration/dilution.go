// Package titration analyses virus titration plates. A titration
// plate carries six virus dilution factors in pairs of columns, each
// with its own controls, so normalisation runs per dilution factor
// rather than per plate. Titrations skip QC entirely.
package titration

import (
	"fmt"

	"github.com/crick-pipelines-stp/plaque-assay/internal/curve"
	"github.com/crick-pipelines-stp/plaque-assay/internal/ingest"
	"github.com/crick-pipelines-stp/plaque-assay/internal/labware"
)

// Dilution covers the two columns of a titration plate that share a
// single virus dilution factor.
type Dilution struct {
	Factor  int
	Records []*ingest.Record

	// InfectionRate is the median background-subtracted plaque area
	// of the virus-only wells within these columns.
	InfectionRate float64
}

// NewDilution normalises the records of one virus dilution factor:
// background subtraction against the no-virus wells, then percentage
// infected against the virus-only median.
func NewDilution(factor int, records []*ingest.Record) (*Dilution, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("titration dilution %d has no records", factor)
	}
	for _, rec := range records {
		if rec.VirusDilutionFactor != factor {
			return nil, fmt.Errorf("titration dilution %d contains record with factor %d",
				factor, rec.VirusDilutionFactor)
		}
	}
	d := &Dilution{Factor: factor, Records: records}
	d.subtractBackground()
	d.calcPercentageInfected()
	return d, nil
}

func (d *Dilution) subtractBackground() {
	var noVirus []float64
	for _, rec := range d.Records {
		if kind, err := labware.ClassifyTitrationWell(rec.Well); err == nil && kind == labware.TitrationNoVirus {
			noVirus = append(noVirus, rec.NormalisedPlaqueArea)
		}
	}
	background := curve.Median(noVirus)
	for _, rec := range d.Records {
		rec.BackgroundSubtracted = rec.NormalisedPlaqueArea - background
	}
}

func (d *Dilution) calcPercentageInfected() {
	var virusOnly []float64
	for _, rec := range d.Records {
		if kind, err := labware.ClassifyTitrationWell(rec.Well); err == nil && kind == labware.TitrationVirusOnly {
			virusOnly = append(virusOnly, rec.BackgroundSubtracted)
		}
	}
	d.InfectionRate = curve.Median(virusOnly)
	for _, rec := range d.Records {
		rec.PercentageInfected = rec.BackgroundSubtracted / d.InfectionRate * 100
	}
}
