package db

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/crick-pipelines-stp/plaque-assay/internal/assay"
	"github.com/crick-pipelines-stp/plaque-assay/internal/curve"
	"github.com/crick-pipelines-stp/plaque-assay/internal/ingest"
	"github.com/crick-pipelines-stp/plaque-assay/internal/labware"
	"github.com/crick-pipelines-stp/plaque-assay/internal/titration"
)

// ReporterStatusAwaiting marks a plate as waiting for a reporter
// pass/fail decision.
const ReporterStatusAwaiting = "awaiting"

// Uploader converts analysis results to database rows and writes them
// through a Store. Wells are unpadded at this boundary ("A01" becomes
// "A1") to match the LIMS conventions.
type Uploader struct {
	store  Store
	logger *zap.Logger
}

// NewUploader wraps a Store.
func NewUploader(store Store, logger *zap.Logger) *Uploader {
	return &Uploader{store: store, logger: logger}
}

// UploadRawResults writes the raw measurement records.
func (u *Uploader) UploadRawResults(ctx context.Context, records []*ingest.Record) error {
	rows := make([]RawResultRow, 0, len(records))
	for _, rec := range records {
		workflowID, err := labware.WorkflowID(rec.PlateBarcode)
		if err != nil {
			return err
		}
		rows = append(rows, RawResultRow{
			Row:                       rec.Row,
			Column:                    rec.Column,
			VPGAreaMean:               rec.VPGAreaMean,
			VPGIntensityMean:          rec.VPGIntensityMean,
			VPGIntensityStdDev:        rec.VPGIntensityStdDev,
			VPGIntensityMedian:        rec.VPGIntensityMedian,
			VPGIntensitySum:           rec.VPGIntensitySum,
			CellsIntensityMean:        rec.CellIntensityMean,
			CellsIntensityStdDev:      rec.CellIntensityStdDev,
			CellsIntensityMedian:      rec.CellIntensityMedian,
			CellsIntensitySum:         rec.CellIntensitySum,
			CellsImageRegionAreaMean:  rec.CellRegionArea,
			NormalisedPlaqueArea:      rec.NormalisedPlaqueArea,
			NormalisedPlaqueIntensity: rec.NormalisedPlaqueIntensity,
			NumberAnalyzedFields:      rec.NumberAnalyzedFields,
			Dilution:                  rec.Dilution,
			Well:                      labware.UnpadWell(rec.Well),
			PlateNum:                  rec.PlateNum,
			PlateBarcode:              rec.PlateBarcode,
			WorkflowID:                workflowID,
			Variant:                   rec.Variant,
		})
	}
	u.logger.Debug("uploading raw results", zap.Int("rows", len(rows)))
	return u.store.InsertRawResults(ctx, rows)
}

// UploadIndexFiles writes the image index records.
func (u *Uploader) UploadIndexFiles(ctx context.Context, records []*ingest.IndexRecord) error {
	rows := make([]RawIndexRow, 0, len(records))
	for _, rec := range records {
		workflowID, err := labware.WorkflowID(rec.PlateBarcode)
		if err != nil {
			return err
		}
		rows = append(rows, RawIndexRow{
			Row:              rec.Row,
			Column:           rec.Column,
			Field:            rec.Field,
			ChannelID:        rec.ChannelID,
			ChannelName:      rec.ChannelName,
			ChannelType:      rec.ChannelType,
			URL:              rec.URL,
			ImageResolutionX: rec.ImageResolutionX,
			ImageResolutionY: rec.ImageResolutionY,
			ImageSizeX:       rec.ImageSizeX,
			ImageSizeY:       rec.ImageSizeY,
			PositionX:        rec.PositionX,
			PositionY:        rec.PositionY,
			TimeStamp:        rec.Timestamp,
			PlateBarcode:     rec.PlateBarcode,
			WorkflowID:       workflowID,
			Variant:          rec.Variant,
		})
	}
	u.logger.Debug("uploading index files", zap.Int("rows", len(rows)))
	return u.store.InsertRawIndex(ctx, rows)
}

// UploadNormalisedResults writes the background-subtracted and
// percentage-infected values.
func (u *Uploader) UploadNormalisedResults(ctx context.Context, records []*ingest.Record) error {
	rows := make([]NormalisedResultRow, 0, len(records))
	for _, rec := range records {
		workflowID, err := labware.WorkflowID(rec.PlateBarcode)
		if err != nil {
			return err
		}
		rows = append(rows, NormalisedResultRow{
			Well:                 labware.UnpadWell(rec.Well),
			Row:                  rec.Row,
			Column:               rec.Column,
			Dilution:             rec.Dilution,
			PlateBarcode:         rec.PlateBarcode,
			BackgroundSubtracted: rec.BackgroundSubtracted,
			PercentageInfected:   rec.PercentageInfected,
			WorkflowID:           workflowID,
			Variant:              rec.Variant,
		})
	}
	u.logger.Debug("uploading normalised results", zap.Int("rows", len(rows)))
	return u.store.InsertNormalisedResults(ctx, rows)
}

// UploadFinalResults writes the per-well IC50 outcomes.
func (u *Uploader) UploadFinalResults(ctx context.Context, e *assay.Experiment) error {
	results := e.FinalResults()
	rows := make([]FinalResultRow, 0, len(results))
	for _, res := range results {
		rows = append(rows, FinalResultRow{
			Well:       labware.UnpadWell(res.Well),
			IC50:       res.IC50,
			Status:     res.Status,
			Experiment: res.Experiment,
			WorkflowID: e.WorkflowID,
			Variant:    res.Variant,
		})
	}
	u.logger.Debug("uploading final results", zap.Int("rows", len(rows)))
	return u.store.InsertFinalResults(ctx, rows)
}

// UploadFailures writes the QC failures. No-op when the experiment
// has none.
func (u *Uploader) UploadFailures(ctx context.Context, e *assay.Experiment) error {
	failures := e.Failures()
	if len(failures) == 0 {
		return nil
	}
	rows := make([]FailedResultRow, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, FailedResultRow{
			FailureType:   f.Type,
			Plate:         f.Plate,
			Well:          f.Well,
			FailureReason: f.Reason,
			Experiment:    f.Experiment,
			WorkflowID:    e.WorkflowID,
			Variant:       f.Variant,
		})
	}
	u.logger.Debug("uploading failures", zap.Int("rows", len(rows)))
	return u.store.InsertFailures(ctx, rows)
}

// UploadModelParameters writes the fitted curve parameters.
func (u *Uploader) UploadModelParameters(ctx context.Context, e *assay.Experiment) error {
	params := e.ModelParameters()
	rows := make([]ModelParameterRow, 0, len(params))
	for _, p := range params {
		rows = append(rows, ModelParameterRow{
			Well:           labware.UnpadWell(p.Well),
			ParamTop:       paramOrNaN(p.Params, func(pp *curve.Params) float64 { return pp.Top }),
			ParamBottom:    paramOrNaN(p.Params, func(pp *curve.Params) float64 { return pp.Bottom }),
			ParamEC50:      paramOrNaN(p.Params, func(pp *curve.Params) float64 { return pp.EC50 }),
			ParamHillSlope: paramOrNaN(p.Params, func(pp *curve.Params) float64 { return pp.HillSlope }),
			MSE:            p.MSE,
			WorkflowID:     e.WorkflowID,
			Variant:        p.Variant,
		})
	}
	u.logger.Debug("uploading model parameters", zap.Int("rows", len(rows)))
	return u.store.InsertModelParameters(ctx, rows)
}

func paramOrNaN(p *curve.Params, get func(*curve.Params) float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return get(p)
}

// MarkAwaitingReporter inserts a reporter plate status row for the
// workflow and variant.
func (u *Uploader) MarkAwaitingReporter(ctx context.Context, workflowID int, variant string) error {
	return u.store.InsertReporterPlateStatus(ctx, workflowID, variant, ReporterStatusAwaiting)
}

// IsFinalUpload reports whether this upload completes the workflow,
// judged by comparing the distinct variants now present against the
// expected count in the workflow tracking table. Called after
// UploadFinalResults so the current variant is included in the count.
func (u *Uploader) IsFinalUpload(ctx context.Context, workflowID int) (bool, error) {
	expected, err := u.store.ExpectedVariants(ctx, workflowID)
	if err != nil {
		return false, err
	}
	current, err := u.store.UploadedVariants(ctx, workflowID)
	if err != nil {
		return false, err
	}
	if current > expected {
		return false, fmt.Errorf("unexpected no. of variants %d, expecting max of %d", current, expected)
	}
	if current == expected {
		u.logger.Info("final variant upload, marking workflow as complete",
			zap.Int("workflow_id", workflowID))
		return true, nil
	}
	u.logger.Info("not final variant upload",
		zap.Int("workflow_id", workflowID),
		zap.Int("uploaded_variants", current),
		zap.Int("expected_variants", expected))
	return false, nil
}

// MarkWorkflowComplete stamps the workflow as complete.
func (u *Uploader) MarkWorkflowComplete(ctx context.Context, workflowID int) error {
	return u.store.MarkWorkflowComplete(ctx, workflowID, time.Now().UTC())
}

// UploadTitrationNormalisedResults writes the normalised titration
// data. Titration wells stay in 384-well form but are still unpadded.
func (u *Uploader) UploadTitrationNormalisedResults(ctx context.Context, t *titration.Titration) error {
	records := t.Records()
	rows := make([]TitrationNormalisedRow, 0, len(records))
	for _, rec := range records {
		workflowID, err := labware.WorkflowID(rec.PlateBarcode)
		if err != nil {
			return err
		}
		rows = append(rows, TitrationNormalisedRow{
			PlaqueArea:           rec.VPGAreaMean,
			NormalisedPlaqueArea: rec.NormalisedPlaqueArea,
			BackgroundSubtracted: rec.BackgroundSubtracted,
			PercentageInfected:   rec.PercentageInfected,
			Dilution:             rec.VirusDilutionFactor,
			Well:                 labware.UnpadWell(rec.Well),
			PlateBarcode:         rec.PlateBarcode,
			WorkflowID:           workflowID,
		})
	}
	u.logger.Debug("uploading titration normalised results", zap.Int("rows", len(rows)))
	return u.store.InsertTitrationNormalisedResults(ctx, rows)
}

// UploadTitrationModelParameters writes the fitted parameters per
// virus dilution factor.
func (u *Uploader) UploadTitrationModelParameters(ctx context.Context, t *titration.Titration, workflowID int) error {
	params := t.ModelParameters()
	rows := make([]TitrationModelParameterRow, 0, len(params))
	for _, p := range params {
		rows = append(rows, TitrationModelParameterRow{
			Dilution:       p.Dilution,
			ParamTop:       paramOrNaN(p.Params, func(pp *curve.Params) float64 { return pp.Top }),
			ParamBottom:    paramOrNaN(p.Params, func(pp *curve.Params) float64 { return pp.Bottom }),
			ParamEC50:      paramOrNaN(p.Params, func(pp *curve.Params) float64 { return pp.EC50 }),
			ParamHillSlope: paramOrNaN(p.Params, func(pp *curve.Params) float64 { return pp.HillSlope }),
			MSE:            p.MSE,
			WorkflowID:     workflowID,
		})
	}
	u.logger.Debug("uploading titration model parameters", zap.Int("rows", len(rows)))
	return u.store.InsertTitrationModelParameters(ctx, rows)
}

// UploadTitrationFinalResults writes the outcome per virus dilution
// factor.
func (u *Uploader) UploadTitrationFinalResults(ctx context.Context, t *titration.Titration, workflowID int) error {
	results := t.FinalResults()
	rows := make([]TitrationFinalResultRow, 0, len(results))
	for _, res := range results {
		rows = append(rows, TitrationFinalResultRow{
			Dilution:   res.Dilution,
			IC50:       res.IC50,
			Status:     res.Status,
			WorkflowID: workflowID,
		})
	}
	u.logger.Debug("uploading titration final results", zap.Int("rows", len(rows)))
	return u.store.InsertTitrationFinalResults(ctx, rows)
}

// MarkTitrationComplete stamps the titration workflow as complete.
func (u *Uploader) MarkTitrationComplete(ctx context.Context, workflowID int, variant string) error {
	return u.store.MarkTitrationComplete(ctx, workflowID, variant, time.Now().UTC())
}
