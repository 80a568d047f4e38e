package assay

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/crick-pipelines-stp/plaque-assay/internal/config"
	"github.com/crick-pipelines-stp/plaque-assay/internal/curve"
	"github.com/crick-pipelines-stp/plaque-assay/internal/ingest"
	"github.com/crick-pipelines-stp/plaque-assay/internal/labware"
)

// Experiment covers one workflow and variant: a pair of replicate
// plates split into mock 96-well plates, and a sample per well.
type Experiment struct {
	// Name is the workflow ID portion of the plate barcodes.
	Name       string
	WorkflowID int
	Variant    string

	Plates  map[string]*Plate
	Samples map[string]*Sample

	records []*ingest.Record
}

// NewExperiment groups records by mock plate barcode, normalises each
// plate, and fits a dilution series per well.
func NewExperiment(records []*ingest.Record, variant string, cfg *config.Config, logger *zap.Logger) (*Experiment, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("experiment has no records")
	}
	workflowID, err := labware.WorkflowID(records[0].PlateBarcode)
	if err != nil {
		return nil, err
	}
	e := &Experiment{
		Name:       records[0].PlateBarcode[3:],
		WorkflowID: workflowID,
		Variant:    variant,
		Plates:     make(map[string]*Plate),
		Samples:    make(map[string]*Sample),
		records:    records,
	}

	byBarcode := make(map[string][]*ingest.Record)
	for _, rec := range records {
		rec.Variant = variant
		byBarcode[rec.PlateBarcode] = append(byBarcode[rec.PlateBarcode], rec)
	}
	for barcode, plateRecords := range byBarcode {
		plate, err := NewPlate(plateRecords, cfg.QC, variant)
		if err != nil {
			return nil, err
		}
		e.Plates[barcode] = plate
		for _, pf := range plate.PlateFailures {
			logger.Warn("plate failure",
				zap.String("plate", pf.Plate),
				zap.String("reason", pf.Reason))
		}
	}

	byWell := make(map[string][]curve.Point)
	for _, rec := range records {
		byWell[rec.Well] = append(byWell[rec.Well], curve.Point{
			Dilution:        rec.Dilution,
			PercentInfected: rec.PercentageInfected,
		})
	}
	for well, pts := range byWell {
		sample := NewSample(well, pts, variant, cfg)
		e.Samples[well] = sample
		logger.Debug("sample fitted",
			zap.String("well", well),
			zap.String("method", sample.Result.FitMethod),
			zap.String("result", sample.IC50Pretty()))
		for _, f := range sample.Failures {
			logger.Warn("well failure",
				zap.String("well", f.Well),
				zap.String("reason", f.Reason))
		}
	}
	return e, nil
}

// Records returns all normalised measurement records of the
// experiment.
func (e *Experiment) Records() []*ingest.Record { return e.records }

// SampleNames returns the well labels in sorted order.
func (e *Experiment) SampleNames() []string {
	names := make([]string, 0, len(e.Samples))
	for name := range e.Samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PlateBarcodes returns the mock plate barcodes in sorted order.
func (e *Experiment) PlateBarcodes() []string {
	barcodes := make([]string, 0, len(e.Plates))
	for b := range e.Plates {
		barcodes = append(barcodes, b)
	}
	sort.Strings(barcodes)
	return barcodes
}

// FinalResult is the well-level outcome: either a numeric IC50 or a
// status string.
type FinalResult struct {
	Well string
	// IC50 is NaN when Status is set.
	IC50       float64
	Status     string
	Experiment string
	Variant    string
}

// FinalResults returns the per-well IC50 results, sorted by well.
func (e *Experiment) FinalResults() []FinalResult {
	out := make([]FinalResult, 0, len(e.Samples))
	for _, name := range e.SampleNames() {
		sample := e.Samples[name]
		res := FinalResult{
			Well:       name,
			IC50:       math.NaN(),
			Experiment: e.Name,
			Variant:    e.Variant,
		}
		if sample.Result.Status == curve.StatusIC50 {
			res.IC50 = sample.Result.IC50
		} else {
			res.Status = sample.Result.Status.String()
		}
		out = append(out, res)
	}
	return out
}

// ModelParameterRecord holds the fitted curve parameters for one well.
// Params is nil when no model was fitted.
type ModelParameterRecord struct {
	Well       string
	Params     *curve.Params
	MSE        float64
	Experiment string
	Variant    string
}

// ModelParameters returns a row per well with the fitted parameters,
// sorted by well.
func (e *Experiment) ModelParameters() []ModelParameterRecord {
	out := make([]ModelParameterRecord, 0, len(e.Samples))
	for _, name := range e.SampleNames() {
		sample := e.Samples[name]
		out = append(out, ModelParameterRecord{
			Well:       name,
			Params:     sample.Result.Params,
			MSE:        sample.Result.MSE,
			Experiment: e.Name,
			Variant:    e.Variant,
		})
	}
	return out
}

// Failures flattens all plate, well, and positive-control failures of
// the experiment.
func (e *Experiment) Failures() []FailureRecord {
	var out []FailureRecord
	for _, barcode := range e.PlateBarcodes() {
		plate := e.Plates[barcode]
		for _, pf := range plate.PlateFailures {
			out = append(out, pf.record(e.Name, e.Variant))
		}
		for _, wf := range plate.WellFailures {
			out = append(out, wf.record(e.Name, e.Variant))
		}
	}
	for _, name := range e.SampleNames() {
		for _, wf := range e.Samples[name].Failures {
			out = append(out, wf.record(e.Name, e.Variant))
		}
	}
	return out
}

// ResultsSummary maps the non-numeric result codes plus the per-well
// outcomes, mirroring the JSON results artifact.
type ResultsSummary struct {
	ResultMapping map[int]string     `json:"result_mapping"`
	Results       map[string]float64 `json:"results"`
}

// Summary returns the per-well IC50 values keyed by well, with
// non-numeric outcomes encoded as the LIMS negative codes.
func (e *Experiment) Summary() ResultsSummary {
	summary := ResultsSummary{
		ResultMapping: map[int]string{
			curve.CodeNoInhibition:       curve.StatusNoInhibition.String(),
			curve.CodeWeakInhibition:     curve.StatusWeakInhibition.String(),
			curve.CodeCompleteInhibition: curve.StatusCompleteInhibition.String(),
			curve.CodeFitFailed:          curve.StatusFitFailed.String(),
		},
		Results: make(map[string]float64, len(e.Samples)),
	}
	for name, sample := range e.Samples {
		summary.Results[name] = sample.IC50()
	}
	return summary
}
