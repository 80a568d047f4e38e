package assay

import (
	"fmt"
	"math"
	"strings"

	"github.com/crick-pipelines-stp/plaque-assay/internal/config"
	"github.com/crick-pipelines-stp/plaque-assay/internal/curve"
	"github.com/crick-pipelines-stp/plaque-assay/internal/ingest"
	"github.com/crick-pipelines-stp/plaque-assay/internal/labware"
)

// Plate is a mock 96-well plate of a single dilution, carved out of a
// physical 384-well plate. Normalisation and the plate-level QC checks
// happen here.
type Plate struct {
	Barcode     string
	DilutionInt int
	Dilution    float64
	Records     []*ingest.Record

	PlateFailed   bool
	WellFailures  []WellFailure
	PlateFailures []PlateFailure
}

// Wells that fail QC on a control position (column 12) fail the whole
// plate; more than this many cell-area outliers flags a possible DAPI
// plate failure.
const maxCellAreaOutliers = 8

// NewPlate normalises the records of one mock plate and runs the
// plate-level QC checks. All records must share a barcode and dilution.
func NewPlate(records []*ingest.Record, criteria config.QCCriteria, variant string) (*Plate, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("plate has no records")
	}
	barcode := records[0].PlateBarcode
	dilutionInt := records[0].PlateNum
	for _, rec := range records {
		if rec.PlateBarcode != barcode {
			return nil, fmt.Errorf("plate %s: mixed barcodes (%s)", barcode, rec.PlateBarcode)
		}
		if rec.PlateNum != dilutionInt {
			return nil, fmt.Errorf("plate %s: mixed dilutions (%d and %d)", barcode, dilutionInt, rec.PlateNum)
		}
	}
	p := &Plate{
		Barcode:     barcode,
		DilutionInt: dilutionInt,
		Dilution:    records[0].Dilution,
		Records:     records,
	}
	p.subtractBackground()
	p.calcPercentageInfected(criteria, variant)
	p.checkCellRegionArea(criteria)
	return p, nil
}

func (p *Plate) String() string { return fmt.Sprintf("Plate %s", p.Barcode) }

// Len returns the number of wells on the plate.
func (p *Plate) Len() int { return len(p.Records) }

// subtractBackground subtracts the median normalised plaque area of
// the no-virus wells from every well. Done per plate.
func (p *Plate) subtractBackground() {
	var background []float64
	for _, rec := range p.Records {
		if labware.Contains(labware.NoVirusWells, rec.Well) {
			background = append(background, rec.NormalisedPlaqueArea)
		}
	}
	median := curve.Median(background)
	for _, rec := range p.Records {
		rec.BackgroundSubtracted = rec.NormalisedPlaqueArea - median
	}
}

// calcPercentageInfected divides each well's background-subtracted
// plaque area by the virus-only median, x100. The virus-only median is
// the plate's infection rate and must sit within the variant's
// acceptable limits.
func (p *Plate) calcPercentageInfected(criteria config.QCCriteria, variant string) {
	var virusOnly []float64
	for _, rec := range p.Records {
		if labware.Contains(labware.VirusOnlyWells, rec.Well) {
			virusOnly = append(virusOnly, rec.BackgroundSubtracted)
		}
	}
	infection := curve.Median(virusOnly)
	limits := criteria.InfectionRateFor(variant)
	if !limits.Contains(infection) {
		reason := fmt.Sprintf(
			"virus-only infection median (%f) outside range: (%g, %g)",
			infection, limits.Low, limits.High,
		)
		p.PlateFailed = true
		p.PlateFailures = append(p.PlateFailures,
			newInfectionPlateFailure(p.Barcode, labware.VirusOnlyWells, reason))
	}
	for _, rec := range p.Records {
		rec.PercentageInfected = rec.BackgroundSubtracted / infection * 100
	}
}

// checkCellRegionArea flags wells whose DAPI cell image-region-area
// sits outside the expected ratio of the plate median. Outliers on
// control wells fail the plate; a large outlier count flags a possible
// DAPI plate failure.
func (p *Plate) checkCellRegionArea(criteria config.QCCriteria) {
	areas := make([]float64, len(p.Records))
	for i, rec := range p.Records {
		areas[i] = rec.CellRegionArea
	}
	median := curve.Median(areas)

	var outliers []*ingest.Record
	var controlOutliers []string
	for _, rec := range p.Records {
		ratio := rec.CellRegionArea / median
		// a well with no area measurement cannot be an outlier
		if math.IsNaN(ratio) || criteria.CellRegionArea.Contains(ratio) {
			continue
		}
		outliers = append(outliers, rec)
		if strings.HasSuffix(rec.Well, "12") {
			controlOutliers = append(controlOutliers, rec.Well)
		}
	}
	if len(controlOutliers) > 0 {
		p.PlateFailed = true
		p.PlateFailures = append(p.PlateFailures,
			newCellAreaPlateFailure(p.Barcode, controlOutliers))
	}
	if len(outliers) > 0 {
		outlierWells := make([]string, len(outliers))
		for i, rec := range outliers {
			outlierWells[i] = rec.Well
			p.WellFailures = append(p.WellFailures, WellFailure{
				Well:   rec.Well,
				Plate:  p.Barcode,
				Reason: "cell region area outside expected range",
			})
		}
		if len(outliers) > maxCellAreaOutliers {
			p.PlateFailures = append(p.PlateFailures,
				newDAPIPlateFailure(p.Barcode, outlierWells))
		}
	}
}
