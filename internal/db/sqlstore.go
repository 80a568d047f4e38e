package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// sqlStore implements Store on top of database/sql. MySQL and SQLite
// share it since both drivers use ? placeholders; only the schema
// dialect differs.
type sqlStore struct {
	db *sql.DB
}

// schemaStatements returns the DDL for every table the pipeline
// touches. pk is the dialect's auto-increment primary key fragment.
func schemaStatements(pk string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_workflow_tracking (
			id %s,
			master_plate VARCHAR(45),
			assay_plate_type VARCHAR(45),
			start_date TIMESTAMP,
			no_of_variants INTEGER DEFAULT 0,
			final_results_upload TIMESTAMP,
			end_date TIMESTAMP,
			status VARCHAR(45),
			workflow_id INTEGER NOT NULL
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_available_strains (
			id %s,
			mutant_strain VARCHAR(45),
			plate_id_1 VARCHAR(5),
			plate_id_2 VARCHAR(5)
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_raw_index (
			id %s,
			` + "`row`" + ` INTEGER NOT NULL,
			` + "`column`" + ` INTEGER NOT NULL,
			field INTEGER NOT NULL,
			channel_id INTEGER NOT NULL,
			channel_name VARCHAR(45),
			channel_type VARCHAR(45),
			url VARCHAR(240),
			image_resolutionx VARCHAR(45),
			image_resolutiony VARCHAR(45),
			image_sizex INTEGER,
			image_sizey INTEGER,
			positionx DOUBLE,
			positiony DOUBLE,
			time_stamp VARCHAR(45),
			plate_barcode VARCHAR(45) NOT NULL,
			workflow_id INTEGER,
			variant VARCHAR(45)
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_raw_results (
			id %s,
			` + "`row`" + ` INTEGER NOT NULL,
			` + "`column`" + ` INTEGER NOT NULL,
			VPG_area_mean DOUBLE,
			VPG_intensity_mean_per_well DOUBLE,
			VPG_intensity_stddev_mean_per_well DOUBLE,
			VPG_intensity_median_per_well DOUBLE,
			VPG_intensity_sum_per_well DOUBLE,
			cells_intensity_mean_per_well DOUBLE,
			cells_intensity_stddev_mean_per_well DOUBLE,
			cells_intensity_median_mean_per_well DOUBLE,
			cells_intensity_sum_mean_per_well DOUBLE,
			cells_image_region_area_mean_per_well DOUBLE,
			normalised_plaque_area DOUBLE,
			normalised_plaque_intensity DOUBLE,
			number_analyzed_fields DOUBLE,
			dilution DOUBLE,
			well VARCHAR(45) NOT NULL,
			plate_num INTEGER,
			plate_barcode VARCHAR(45) NOT NULL,
			workflow_id INTEGER,
			variant VARCHAR(45)
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_normalized_results (
			id %s,
			well VARCHAR(45) NOT NULL,
			` + "`row`" + ` INTEGER NOT NULL,
			` + "`column`" + ` INTEGER NOT NULL,
			dilution DOUBLE,
			plate_barcode VARCHAR(45) NOT NULL,
			background_subtracted_plaque_area DOUBLE,
			percentage_infected DOUBLE,
			workflow_id INTEGER,
			variant VARCHAR(45)
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_final_results (
			id %s,
			master_plate VARCHAR(45),
			well VARCHAR(45) NOT NULL,
			ic50 DOUBLE,
			status VARCHAR(45),
			experiment VARCHAR(45),
			workflow_id INTEGER,
			variant VARCHAR(45)
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_failed_results (
			id %s,
			failure_type VARCHAR(45) NOT NULL,
			plate VARCHAR(45) NOT NULL,
			well VARCHAR(45) NOT NULL,
			failure_reason TEXT,
			experiment VARCHAR(45),
			workflow_id INTEGER,
			variant VARCHAR(45)
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_model_parameters (
			id %s,
			well VARCHAR(45) NOT NULL,
			param_top DOUBLE,
			param_bottom DOUBLE,
			param_ec50 DOUBLE,
			param_hillslope DOUBLE,
			mean_squared_error DOUBLE,
			workflow_id INTEGER,
			variant VARCHAR(45)
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_reporter_plate_status (
			id %s,
			workflow_id INTEGER NOT NULL,
			variant VARCHAR(45) NOT NULL,
			status VARCHAR(45) NOT NULL,
			reporter VARCHAR(45),
			updated_at TIMESTAMP,
			reason TEXT
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_titration_workflow_tracking (
			id %s,
			variant VARCHAR(45),
			plate_1 VARCHAR(45),
			plate_2 VARCHAR(45),
			virus_batch_no VARCHAR(45),
			start_date TIMESTAMP,
			end_date TIMESTAMP,
			complete_operator VARCHAR(45),
			status VARCHAR(45),
			workflow_id INTEGER NOT NULL
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_virus_titration_normalised_results (
			id %s,
			plaque_area DOUBLE,
			normalised_plaque_area DOUBLE,
			background_subtracted_plaque_area DOUBLE,
			percentage_infected DOUBLE,
			dilution INTEGER NOT NULL,
			well VARCHAR(3) NOT NULL,
			plate_barcode VARCHAR(9),
			workflow_id INTEGER NOT NULL
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_virus_titration_model_parameters (
			id %s,
			dilution INTEGER NOT NULL,
			param_top DOUBLE,
			param_bottom DOUBLE,
			param_ec50 DOUBLE,
			param_hillslope DOUBLE,
			mean_squared_error DOUBLE,
			workflow_id INTEGER NOT NULL
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS NE_virus_titration_final_results (
			id %s,
			dilution INTEGER NOT NULL,
			ic50 DOUBLE,
			status VARCHAR(45),
			workflow_id INTEGER NOT NULL
		)`, pk),
	}
}

func (s *sqlStore) createTables(ctx context.Context, pk string) error {
	for _, stmt := range schemaStatements(pk) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// batchInsert inserts n rows inside a single transaction using a
// prepared statement. args returns the placeholder values for row i.
func (s *sqlStore) batchInsert(ctx context.Context, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert: %w", err)
	}
	return nil
}

func (s *sqlStore) VariantForPlateID(ctx context.Context, plateID string) (string, error) {
	var variant string
	err := s.db.QueryRowContext(ctx,
		`SELECT mutant_strain FROM NE_available_strains WHERE plate_id_1 = ? OR plate_id_2 = ?`,
		plateID, plateID).Scan(&variant)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("plate ID %q: %w", plateID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up variant for plate ID %q: %w", plateID, err)
	}
	return variant, nil
}

func (s *sqlStore) TitrationVariantForWorkflow(ctx context.Context, workflowID int) (string, error) {
	var variant string
	err := s.db.QueryRowContext(ctx,
		`SELECT variant FROM NE_titration_workflow_tracking WHERE workflow_id = ?`,
		workflowID).Scan(&variant)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("titration workflow %d: %w", workflowID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up titration variant for workflow %d: %w", workflowID, err)
	}
	return variant, nil
}

func (s *sqlStore) AlreadyUploaded(ctx context.Context, workflowID int, variant string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM NE_final_results WHERE workflow_id = ? AND variant = ?)`,
		workflowID, variant).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing results: %w", err)
	}
	return exists, nil
}

func (s *sqlStore) TitrationAlreadyUploaded(ctx context.Context, workflowID int) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM NE_virus_titration_final_results WHERE workflow_id = ?)`,
		workflowID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing titration results: %w", err)
	}
	return exists, nil
}

func (s *sqlStore) InsertRawResults(ctx context.Context, rows []RawResultRow) error {
	query := "INSERT INTO NE_raw_results (`row`, `column`, VPG_area_mean," +
		` VPG_intensity_mean_per_well, VPG_intensity_stddev_mean_per_well,
		VPG_intensity_median_per_well, VPG_intensity_sum_per_well,
		cells_intensity_mean_per_well, cells_intensity_stddev_mean_per_well,
		cells_intensity_median_mean_per_well, cells_intensity_sum_mean_per_well,
		cells_image_region_area_mean_per_well, normalised_plaque_area,
		normalised_plaque_intensity, number_analyzed_fields, dilution, well,
		plate_num, plate_barcode, workflow_id, variant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return s.batchInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.Row, r.Column, nullFloat(r.VPGAreaMean),
			nullFloat(r.VPGIntensityMean), nullFloat(r.VPGIntensityStdDev),
			nullFloat(r.VPGIntensityMedian), nullFloat(r.VPGIntensitySum),
			nullFloat(r.CellsIntensityMean), nullFloat(r.CellsIntensityStdDev),
			nullFloat(r.CellsIntensityMedian), nullFloat(r.CellsIntensitySum),
			nullFloat(r.CellsImageRegionAreaMean), nullFloat(r.NormalisedPlaqueArea),
			nullFloat(r.NormalisedPlaqueIntensity), nullFloat(r.NumberAnalyzedFields),
			nullFloat(r.Dilution), r.Well, r.PlateNum, r.PlateBarcode,
			r.WorkflowID, nullString(r.Variant),
		}
	})
}

func (s *sqlStore) InsertRawIndex(ctx context.Context, rows []RawIndexRow) error {
	query := "INSERT INTO NE_raw_index (`row`, `column`, field, channel_id," +
		` channel_name, channel_type, url, image_resolutionx, image_resolutiony,
		image_sizex, image_sizey, positionx, positiony, time_stamp,
		plate_barcode, workflow_id, variant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return s.batchInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.Row, r.Column, r.Field, r.ChannelID, r.ChannelName,
			r.ChannelType, r.URL, r.ImageResolutionX, r.ImageResolutionY,
			r.ImageSizeX, r.ImageSizeY, nullFloat(r.PositionX),
			nullFloat(r.PositionY), r.TimeStamp, r.PlateBarcode,
			r.WorkflowID, nullString(r.Variant),
		}
	})
}

func (s *sqlStore) InsertNormalisedResults(ctx context.Context, rows []NormalisedResultRow) error {
	query := "INSERT INTO NE_normalized_results (well, `row`, `column`," +
		` dilution, plate_barcode, background_subtracted_plaque_area,
		percentage_infected, workflow_id, variant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return s.batchInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.Well, r.Row, r.Column, nullFloat(r.Dilution), r.PlateBarcode,
			nullFloat(r.BackgroundSubtracted), nullFloat(r.PercentageInfected),
			r.WorkflowID, nullString(r.Variant),
		}
	})
}

func (s *sqlStore) InsertFinalResults(ctx context.Context, rows []FinalResultRow) error {
	query := `INSERT INTO NE_final_results (master_plate, well, ic50, status,
		experiment, workflow_id, variant)
		VALUES (NULL, ?, ?, ?, ?, ?, ?)`
	return s.batchInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.Well, nullFloat(r.IC50), nullString(r.Status),
			r.Experiment, r.WorkflowID, nullString(r.Variant),
		}
	})
}

func (s *sqlStore) InsertFailures(ctx context.Context, rows []FailedResultRow) error {
	query := `INSERT INTO NE_failed_results (failure_type, plate, well,
		failure_reason, experiment, workflow_id, variant)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	return s.batchInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.FailureType, r.Plate, r.Well, r.FailureReason,
			r.Experiment, r.WorkflowID, nullString(r.Variant),
		}
	})
}

func (s *sqlStore) InsertModelParameters(ctx context.Context, rows []ModelParameterRow) error {
	query := `INSERT INTO NE_model_parameters (well, param_top, param_bottom,
		param_ec50, param_hillslope, mean_squared_error, workflow_id, variant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	return s.batchInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.Well, nullFloat(r.ParamTop), nullFloat(r.ParamBottom),
			nullFloat(r.ParamEC50), nullFloat(r.ParamHillSlope),
			nullFloat(r.MSE), r.WorkflowID, nullString(r.Variant),
		}
	})
}

func (s *sqlStore) InsertReporterPlateStatus(ctx context.Context, workflowID int, variant, status string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO NE_reporter_plate_status (workflow_id, variant, status) VALUES (?, ?, ?)`,
		workflowID, variant, status)
	if err != nil {
		return fmt.Errorf("failed to insert reporter plate status: %w", err)
	}
	return nil
}

func (s *sqlStore) ExpectedVariants(ctx context.Context, workflowID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT no_of_variants FROM NE_workflow_tracking WHERE workflow_id = ?`,
		workflowID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("workflow %d: %w", workflowID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read expected variants for workflow %d: %w", workflowID, err)
	}
	return n, nil
}

func (s *sqlStore) UploadedVariants(ctx context.Context, workflowID int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT variant) FROM NE_final_results WHERE workflow_id = ?`,
		workflowID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count uploaded variants for workflow %d: %w", workflowID, err)
	}
	return n, nil
}

func (s *sqlStore) MarkWorkflowComplete(ctx context.Context, workflowID int, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE NE_workflow_tracking
		SET status = 'complete', end_date = ?, final_results_upload = ?
		WHERE workflow_id = ?`,
		now, now, workflowID)
	if err != nil {
		return fmt.Errorf("failed to mark workflow %d complete: %w", workflowID, err)
	}
	return nil
}

func (s *sqlStore) InsertTitrationNormalisedResults(ctx context.Context, rows []TitrationNormalisedRow) error {
	query := `INSERT INTO NE_virus_titration_normalised_results (plaque_area,
		normalised_plaque_area, background_subtracted_plaque_area,
		percentage_infected, dilution, well, plate_barcode, workflow_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	return s.batchInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			nullFloat(r.PlaqueArea), nullFloat(r.NormalisedPlaqueArea),
			nullFloat(r.BackgroundSubtracted), nullFloat(r.PercentageInfected),
			r.Dilution, r.Well, r.PlateBarcode, r.WorkflowID,
		}
	})
}

func (s *sqlStore) InsertTitrationModelParameters(ctx context.Context, rows []TitrationModelParameterRow) error {
	query := `INSERT INTO NE_virus_titration_model_parameters (dilution,
		param_top, param_bottom, param_ec50, param_hillslope,
		mean_squared_error, workflow_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	return s.batchInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{
			r.Dilution, nullFloat(r.ParamTop), nullFloat(r.ParamBottom),
			nullFloat(r.ParamEC50), nullFloat(r.ParamHillSlope),
			nullFloat(r.MSE), r.WorkflowID,
		}
	})
}

func (s *sqlStore) InsertTitrationFinalResults(ctx context.Context, rows []TitrationFinalResultRow) error {
	query := `INSERT INTO NE_virus_titration_final_results (dilution, ic50,
		status, workflow_id)
		VALUES (?, ?, ?, ?)`
	return s.batchInsert(ctx, query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{r.Dilution, nullFloat(r.IC50), nullString(r.Status), r.WorkflowID}
	})
}

func (s *sqlStore) MarkTitrationComplete(ctx context.Context, workflowID int, variant string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE NE_titration_workflow_tracking
		SET status = 'complete', end_date = ?
		WHERE workflow_id = ? AND variant = ?`,
		now, workflowID, variant)
	if err != nil {
		return fmt.Errorf("failed to mark titration workflow %d complete: %w", workflowID, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
