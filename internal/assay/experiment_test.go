package assay

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/crick-pipelines-stp/plaque-assay/internal/config"
	"github.com/crick-pipelines-stp/plaque-assay/internal/curve"
	"github.com/crick-pipelines-stp/plaque-assay/internal/ingest"
	"github.com/crick-pipelines-stp/plaque-assay/internal/labware"
)

// experimentRecords builds records for a full workflow: 4 dilutions x
// 2 replicates, each mock plate carrying the control wells and one
// sample well "A01" whose percentage infected will follow values. The
// plate background is zero and the infection rate 1.0, so a sample
// well's normalised plaque area equals its percentage infected / 100.
func experimentRecords(values []float64) []*ingest.Record {
	var records []*ingest.Record
	for dilution := 1; dilution <= 4; dilution++ {
		for replicate := 1; replicate <= 2; replicate++ {
			barcode := "A" + string(rune('0'+dilution)) + string(rune('0'+replicate)) + "000034"
			add := func(well string, npa float64) {
				row, col, _ := labware.SplitWell(well)
				records = append(records, &ingest.Record{
					Row:                  row,
					Column:               col,
					Well:                 well,
					PlateBarcode:         barcode,
					PlateNum:             dilution,
					Dilution:             labware.DilutionSeries[dilution],
					CellRegionArea:       1.0,
					NormalisedPlaqueArea: npa,
					BackgroundSubtracted: math.NaN(),
					PercentageInfected:   math.NaN(),
				})
			}
			for _, w := range labware.NoVirusWells {
				add(w, 0)
			}
			for _, w := range labware.VirusOnlyWells {
				add(w, 1.0)
			}
			// values are ordered weakest dilution first, matching the
			// dilution series test vectors
			add("A01", values[(dilution-1)*2+replicate-1]/100)
		}
	}
	return records
}

var goodSeries = []float64{
	12.517334, 13.988952,
	60.787072, 54.955933,
	80.246412, 82.365569,
	100.556437, 102.200186,
}

func TestNewExperiment(t *testing.T) {
	records := experimentRecords(goodSeries)
	cfg := config.DefaultConfig()

	e, err := NewExperiment(records, "England2", cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if e.WorkflowID != 34 {
		t.Errorf("workflow ID = %d, want 34", e.WorkflowID)
	}
	if e.Name != "000034" {
		t.Errorf("name = %q, want %q", e.Name, "000034")
	}
	if len(e.Plates) != 8 {
		t.Fatalf("plates = %d, want 8", len(e.Plates))
	}

	sample, ok := e.Samples["A01"]
	if !ok {
		t.Fatal("no sample for well A01")
	}
	if sample.Result.Status != curve.StatusIC50 {
		t.Fatalf("sample status = %v, want numeric IC50", sample.Result.Status)
	}
	if math.Abs(sample.Result.IC50-150) > 50 {
		t.Errorf("IC50 = %.2f, want within 150 +/- 50", sample.Result.IC50)
	}
}

func TestExperimentFinalResults(t *testing.T) {
	records := experimentRecords(goodSeries)
	cfg := config.DefaultConfig()
	e, err := NewExperiment(records, "England2", cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	results := e.FinalResults()
	byWell := make(map[string]FinalResult)
	for _, res := range results {
		byWell[res.Well] = res
	}

	a01, ok := byWell["A01"]
	if !ok {
		t.Fatal("no final result for A01")
	}
	if a01.Status != "" || math.IsNaN(a01.IC50) {
		t.Errorf("A01 result = %+v, want numeric IC50", a01)
	}
	if a01.Variant != "England2" || a01.Experiment != "000034" {
		t.Errorf("A01 metadata = %+v", a01)
	}

	// no-virus wells sit at 0% infected across all dilutions, which is
	// complete inhibition
	f12, ok := byWell["F12"]
	if !ok {
		t.Fatal("no final result for F12")
	}
	if f12.Status != "complete inhibition" {
		t.Errorf("F12 status = %q, want complete inhibition", f12.Status)
	}
}

func TestExperimentModelParameters(t *testing.T) {
	records := experimentRecords(goodSeries)
	cfg := config.DefaultConfig()
	e, err := NewExperiment(records, "England2", cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range e.ModelParameters() {
		if p.Well != "A01" {
			continue
		}
		if p.Params == nil {
			t.Fatal("A01 should carry model parameters")
		}
		if math.IsNaN(p.MSE) {
			t.Error("A01 should carry a mean squared error")
		}
	}
}

func TestExperimentSummary(t *testing.T) {
	records := experimentRecords(goodSeries)
	cfg := config.DefaultConfig()
	e, err := NewExperiment(records, "England2", cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	summary := e.Summary()
	if summary.ResultMapping[curve.CodeNoInhibition] != "no inhibition" {
		t.Error("result mapping missing no inhibition code")
	}
	if _, ok := summary.Results["A01"]; !ok {
		t.Error("summary missing well A01")
	}
}
