// Package pipeline orchestrates a full analysis run: variant lookup,
// ingest, analysis, database upload and local artifacts.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crick-pipelines-stp/plaque-assay/internal/assay"
	"github.com/crick-pipelines-stp/plaque-assay/internal/config"
	"github.com/crick-pipelines-stp/plaque-assay/internal/db"
	"github.com/crick-pipelines-stp/plaque-assay/internal/export"
	"github.com/crick-pipelines-stp/plaque-assay/internal/ingest"
	"github.com/crick-pipelines-stp/plaque-assay/internal/labware"
	"github.com/crick-pipelines-stp/plaque-assay/internal/titration"
)

// Options control optional behaviour of a run.
type Options struct {
	// OutputDir, when set, receives local CSV and JSON artifacts in
	// addition to the database upload.
	OutputDir string
}

// workflowFromDirs derives the shared barcode metadata of a replicate
// pair: all plates must agree on the workflow ID. The plate IDs differ
// per replicate and are returned for the strain lookup.
func workflowFromDirs(plateDirs []string) (workflowID int, plateIDs []string, err error) {
	if len(plateDirs) == 0 {
		return 0, nil, fmt.Errorf("no plate directories given")
	}
	for i, dir := range plateDirs {
		barcode, err := labware.BarcodeFromPath(dir)
		if err != nil {
			return 0, nil, err
		}
		id, err := labware.WorkflowID(barcode)
		if err != nil {
			return 0, nil, err
		}
		if i == 0 {
			workflowID = id
		} else if id != workflowID {
			return 0, nil, fmt.Errorf("plates disagree on workflow ID: %d vs %d", workflowID, id)
		}
		plateIDs = append(plateIDs, labware.PlateID(barcode))
	}
	return workflowID, plateIDs, nil
}

// variantForPlates resolves the variant from the strain table. Each
// replicate's plate ID must map to the same strain.
func variantForPlates(ctx context.Context, store db.Store, plateIDs []string) (string, error) {
	var variant string
	for i, plateID := range plateIDs {
		v, err := store.VariantForPlateID(ctx, plateID)
		if err != nil {
			return "", err
		}
		if i == 0 {
			variant = v
		} else if v != variant {
			return "", fmt.Errorf("plates disagree on variant: %s vs %s", variant, v)
		}
	}
	return variant, nil
}

// Run analyses a replicate pair of analysis plates and uploads the
// results. A workflow and variant already present in the database is
// skipped without error so re-runs stay idempotent.
func Run(ctx context.Context, logger *zap.Logger, store db.Store, cfg *config.Config, plateDirs []string, opts Options) error {
	workflowID, plateIDs, err := workflowFromDirs(plateDirs)
	if err != nil {
		return err
	}
	variant, err := variantForPlates(ctx, store, plateIDs)
	if err != nil {
		return err
	}
	logger.Info("starting analysis",
		zap.Int("workflow_id", workflowID),
		zap.String("variant", variant),
		zap.Strings("plates", plateDirs))

	uploaded, err := store.AlreadyUploaded(ctx, workflowID, variant)
	if err != nil {
		return err
	}
	if uploaded {
		logger.Info("results already in database, skipping",
			zap.Int("workflow_id", workflowID),
			zap.String("variant", variant))
		return nil
	}

	records, err := ingest.ReadPlates(logger, plateDirs)
	if err != nil {
		return err
	}
	indexRecords, err := ingest.ReadIndexFiles(logger, plateDirs)
	if err != nil {
		return err
	}
	for _, rec := range indexRecords {
		rec.Variant = variant
	}

	experiment, err := assay.NewExperiment(records, variant, cfg, logger)
	if err != nil {
		return err
	}

	uploader := db.NewUploader(store, logger)
	if err := uploader.UploadRawResults(ctx, records); err != nil {
		return err
	}
	if err := uploader.UploadIndexFiles(ctx, indexRecords); err != nil {
		return err
	}
	if err := uploader.UploadNormalisedResults(ctx, records); err != nil {
		return err
	}
	if err := uploader.UploadFinalResults(ctx, experiment); err != nil {
		return err
	}
	if err := uploader.UploadFailures(ctx, experiment); err != nil {
		return err
	}
	if err := uploader.UploadModelParameters(ctx, experiment); err != nil {
		return err
	}
	if err := uploader.MarkAwaitingReporter(ctx, workflowID, variant); err != nil {
		return err
	}
	final, err := uploader.IsFinalUpload(ctx, workflowID)
	if err != nil {
		return err
	}
	if final {
		if err := uploader.MarkWorkflowComplete(ctx, workflowID); err != nil {
			return err
		}
	}

	if opts.OutputDir != "" {
		if err := saveArtifacts(opts.OutputDir, experiment); err != nil {
			return err
		}
		logger.Info("wrote local artifacts", zap.String("dir", opts.OutputDir))
	}
	logger.Info("analysis complete", zap.Int("workflow_id", workflowID))
	return nil
}

// RunTitration analyses a replicate pair of titration plates and
// uploads the results.
func RunTitration(ctx context.Context, logger *zap.Logger, store db.Store, cfg *config.Config, plateDirs []string, opts Options) error {
	workflowID, _, err := workflowFromDirs(plateDirs)
	if err != nil {
		return err
	}
	variant, err := store.TitrationVariantForWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	logger.Info("starting titration analysis",
		zap.Int("workflow_id", workflowID),
		zap.String("variant", variant),
		zap.Strings("plates", plateDirs))

	uploaded, err := store.TitrationAlreadyUploaded(ctx, workflowID)
	if err != nil {
		return err
	}
	if uploaded {
		logger.Info("titration results already in database, skipping",
			zap.Int("workflow_id", workflowID))
		return nil
	}

	records, err := ingest.ReadTitrationPlates(logger, plateDirs)
	if err != nil {
		return err
	}
	t, err := titration.New(records, variant, cfg, logger)
	if err != nil {
		return err
	}

	uploader := db.NewUploader(store, logger)
	if err := uploader.UploadTitrationNormalisedResults(ctx, t); err != nil {
		return err
	}
	if err := uploader.UploadTitrationModelParameters(ctx, t, workflowID); err != nil {
		return err
	}
	if err := uploader.UploadTitrationFinalResults(ctx, t, workflowID); err != nil {
		return err
	}
	if err := uploader.MarkTitrationComplete(ctx, workflowID, variant); err != nil {
		return err
	}

	if opts.OutputDir != "" {
		store := export.New(opts.OutputDir)
		if err := store.Init(); err != nil {
			return err
		}
		if err := store.SaveTitration(t); err != nil {
			return err
		}
		logger.Info("wrote local artifacts", zap.String("dir", opts.OutputDir))
	}
	logger.Info("titration analysis complete", zap.Int("workflow_id", workflowID))
	return nil
}

// Analyse runs the analysis without any database access, writing only
// local artifacts. The variant is supplied by the caller since it
// normally comes from the database.
func Analyse(logger *zap.Logger, cfg *config.Config, plateDirs []string, variant, outputDir string) (*assay.Experiment, error) {
	records, err := ingest.ReadPlates(logger, plateDirs)
	if err != nil {
		return nil, err
	}
	experiment, err := assay.NewExperiment(records, variant, cfg, logger)
	if err != nil {
		return nil, err
	}
	if outputDir != "" {
		if err := saveArtifacts(outputDir, experiment); err != nil {
			return nil, err
		}
		logger.Info("wrote local artifacts", zap.String("dir", outputDir))
	}
	return experiment, nil
}

func saveArtifacts(dir string, e *assay.Experiment) error {
	store := export.New(dir)
	if err := store.Init(); err != nil {
		return err
	}
	return store.SaveExperiment(e)
}
