package titration

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/crick-pipelines-stp/plaque-assay/internal/assay"
	"github.com/crick-pipelines-stp/plaque-assay/internal/config"
	"github.com/crick-pipelines-stp/plaque-assay/internal/curve"
	"github.com/crick-pipelines-stp/plaque-assay/internal/ingest"
)

// Titration holds the normalised dilutions of a titration workflow
// and a fitted sample per virus dilution factor.
type Titration struct {
	WorkflowID string
	Variant    string

	Dilutions map[int]*Dilution
	Samples   map[int]*assay.Sample

	records []*ingest.Record
}

// New groups titration records by virus dilution factor, normalises
// each, and fits a concentration-response curve per factor from the
// positive-control wells.
func New(records []*ingest.Record, variant string, cfg *config.Config, logger *zap.Logger) (*Titration, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("titration has no records")
	}
	t := &Titration{
		WorkflowID: records[0].PlateBarcode[3:],
		Variant:    variant,
		Dilutions:  make(map[int]*Dilution),
		Samples:    make(map[int]*assay.Sample),
		records:    records,
	}

	byFactor := make(map[int][]*ingest.Record)
	for _, rec := range records {
		rec.Variant = variant
		byFactor[rec.VirusDilutionFactor] = append(byFactor[rec.VirusDilutionFactor], rec)
	}
	for factor, group := range byFactor {
		dilution, err := NewDilution(factor, group)
		if err != nil {
			return nil, err
		}
		t.Dilutions[factor] = dilution
	}

	for factor, dilution := range t.Dilutions {
		var pts []curve.Point
		for _, rec := range dilution.Records {
			pts = append(pts, curve.Point{
				Dilution:        rec.Dilution,
				PercentInfected: rec.PercentageInfected,
			})
		}
		sample := assay.NewSample(strconv.Itoa(factor), pts, variant, cfg)
		t.Samples[factor] = sample
		logger.Debug("titration dilution fitted",
			zap.Int("factor", factor),
			zap.String("result", sample.IC50Pretty()))
	}
	return t, nil
}

// Records returns all normalised titration records.
func (t *Titration) Records() []*ingest.Record { return t.records }

// Factors returns the virus dilution factors in ascending order.
func (t *Titration) Factors() []int {
	factors := make([]int, 0, len(t.Samples))
	for f := range t.Samples {
		factors = append(factors, f)
	}
	sort.Ints(factors)
	return factors
}

// FinalResult is the outcome for one virus dilution factor.
type FinalResult struct {
	Dilution int
	// IC50 is NaN when Status is set.
	IC50       float64
	Status     string
	WorkflowID string
}

// FinalResults returns a result per virus dilution factor, ascending.
func (t *Titration) FinalResults() []FinalResult {
	out := make([]FinalResult, 0, len(t.Samples))
	for _, factor := range t.Factors() {
		sample := t.Samples[factor]
		res := FinalResult{
			Dilution:   factor,
			IC50:       math.NaN(),
			WorkflowID: t.WorkflowID,
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

// ModelParameterRecord holds the fitted parameters for one virus
// dilution factor. Params is nil when no model was fitted.
type ModelParameterRecord struct {
	Dilution   int
	Params     *curve.Params
	MSE        float64
	WorkflowID string
}

// ModelParameters returns a row per virus dilution factor, ascending.
func (t *Titration) ModelParameters() []ModelParameterRecord {
	out := make([]ModelParameterRecord, 0, len(t.Samples))
	for _, factor := range t.Factors() {
		sample := t.Samples[factor]
		out = append(out, ModelParameterRecord{
			Dilution:   factor,
			Params:     sample.Result.Params,
			MSE:        sample.Result.MSE,
			WorkflowID: t.WorkflowID,
		})
	}
	return out
}
