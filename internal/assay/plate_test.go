package assay

import (
	"math"
	"testing"

	"github.com/crick-pipelines-stp/plaque-assay/internal/config"
	"github.com/crick-pipelines-stp/plaque-assay/internal/ingest"
	"github.com/crick-pipelines-stp/plaque-assay/internal/labware"
)

// plateRecords builds a minimal mock plate: the control wells plus one
// sample well "A01". Plaque areas are chosen so the background is
// 0.05, the infection rate 0.8, and the sample well 50% infected.
func plateRecords(barcode string, dilutionInt int) []*ingest.Record {
	var records []*ingest.Record
	add := func(well string, npa float64) {
		row, col, _ := labware.SplitWell(well)
		records = append(records, &ingest.Record{
			Row:                  row,
			Column:               col,
			Well:                 well,
			PlateBarcode:         barcode,
			PlateNum:             dilutionInt,
			Dilution:             labware.DilutionSeries[dilutionInt],
			CellRegionArea:       1.0,
			NormalisedPlaqueArea: npa,
			BackgroundSubtracted: math.NaN(),
			PercentageInfected:   math.NaN(),
		})
	}
	for _, w := range labware.NoVirusWells {
		add(w, 0.05)
	}
	for _, w := range labware.VirusOnlyWells {
		add(w, 0.85)
	}
	add("A01", 0.45)
	return records
}

func TestNewPlateNormalisation(t *testing.T) {
	records := plateRecords("A11000034", 1)
	criteria := config.DefaultConfig().QC

	plate, err := NewPlate(records, criteria, "England2")
	if err != nil {
		t.Fatal(err)
	}
	if plate.PlateFailed {
		t.Fatalf("unexpected plate failure: %v", plate.PlateFailures)
	}
	if len(plate.WellFailures) != 0 {
		t.Fatalf("unexpected well failures: %v", plate.WellFailures)
	}

	for _, rec := range plate.Records {
		if rec.Well != "A01" {
			continue
		}
		if math.Abs(rec.BackgroundSubtracted-0.4) > 1e-9 {
			t.Errorf("background subtracted = %v, want 0.4", rec.BackgroundSubtracted)
		}
		if math.Abs(rec.PercentageInfected-50) > 1e-9 {
			t.Errorf("percentage infected = %v, want 50", rec.PercentageInfected)
		}
	}
}

func TestNewPlateRejectsMixedBarcodes(t *testing.T) {
	records := plateRecords("A11000034", 1)
	records[0].PlateBarcode = "A21000034"
	if _, err := NewPlate(records, config.DefaultConfig().QC, ""); err == nil {
		t.Error("expected error for mixed barcodes")
	}
}

func TestNewPlateLowInfectionRate(t *testing.T) {
	records := plateRecords("A11000034", 1)
	// drop the virus-only wells to just above background
	for _, rec := range records {
		if labware.Contains(labware.VirusOnlyWells, rec.Well) {
			rec.NormalisedPlaqueArea = 0.1
		}
	}
	plate, err := NewPlate(records, config.DefaultConfig().QC, "")
	if err != nil {
		t.Fatal(err)
	}
	if !plate.PlateFailed {
		t.Fatal("expected plate failure for low infection rate")
	}
	if len(plate.PlateFailures) == 0 {
		t.Fatal("expected a plate failure record")
	}
}

func TestNewPlateVariantInfectionOverride(t *testing.T) {
	records := plateRecords("A11000034", 1)
	criteria := config.DefaultConfig().QC
	criteria.InfectionRateByVariant = map[string]config.Range{
		"B.1.1.7": {Low: 0.9},
	}
	// infection rate 0.8 passes the default limits but not the
	// variant's
	plate, err := NewPlate(records, criteria, "B.1.1.7")
	if err != nil {
		t.Fatal(err)
	}
	if !plate.PlateFailed {
		t.Error("expected plate failure under variant-specific limits")
	}
}

func TestNewPlateCellAreaOutliers(t *testing.T) {
	records := plateRecords("A11000034", 1)
	// an outlier on a non-control well fails the well only
	for _, rec := range records {
		if rec.Well == "A01" {
			rec.CellRegionArea = 5.0
		}
	}
	plate, err := NewPlate(records, config.DefaultConfig().QC, "")
	if err != nil {
		t.Fatal(err)
	}
	if plate.PlateFailed {
		t.Error("sample-well outlier should not fail the plate")
	}
	if len(plate.WellFailures) != 1 || plate.WellFailures[0].Well != "A01" {
		t.Errorf("well failures = %v, want one for A01", plate.WellFailures)
	}
}

func TestNewPlateNaNCellAreaNotOutlier(t *testing.T) {
	records := plateRecords("A11000034", 1)
	// a missing area measurement on a control well must not look like
	// an outlier
	for _, rec := range records {
		if rec.Well == "A12" {
			rec.CellRegionArea = math.NaN()
		}
	}
	plate, err := NewPlate(records, config.DefaultConfig().QC, "")
	if err != nil {
		t.Fatal(err)
	}
	if plate.PlateFailed {
		t.Errorf("unexpected plate failure: %v", plate.PlateFailures)
	}
	if len(plate.WellFailures) != 0 {
		t.Errorf("unexpected well failures: %v", plate.WellFailures)
	}
}

func TestNewPlateControlWellOutlierFailsPlate(t *testing.T) {
	records := plateRecords("A11000034", 1)
	for _, rec := range records {
		if rec.Well == "A12" {
			rec.CellRegionArea = 5.0
		}
	}
	plate, err := NewPlate(records, config.DefaultConfig().QC, "")
	if err != nil {
		t.Fatal(err)
	}
	if !plate.PlateFailed {
		t.Error("control-well outlier should fail the plate")
	}
}
