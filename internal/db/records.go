// Package db persists analysis results to the LIMS serology
// database. It offers a MySQL backend for production, a SQLite
// backend for local runs, and an in-memory backend for tests.
package db

import (
	"database/sql"
	"math"
)

// RawResultRow is one well of the raw Phenix export, destined for
// NE_raw_results.
type RawResultRow struct {
	Row                            int
	Column                         int
	VPGAreaMean                    float64
	VPGIntensityMean               float64
	VPGIntensityStdDev             float64
	VPGIntensityMedian             float64
	VPGIntensitySum                float64
	CellsIntensityMean             float64
	CellsIntensityStdDev           float64
	CellsIntensityMedian           float64
	CellsIntensitySum              float64
	CellsImageRegionAreaMean       float64
	NormalisedPlaqueArea           float64
	NormalisedPlaqueIntensity      float64
	NumberAnalyzedFields           float64
	Dilution                       float64
	Well                           string
	PlateNum                       int
	PlateBarcode                   string
	WorkflowID                     int
	Variant                        string
}

// RawIndexRow is one image entry of an indexfile, destined for
// NE_raw_index. The index is kept for the image URLs.
type RawIndexRow struct {
	Row              int
	Column           int
	Field            int
	ChannelID        int
	ChannelName      string
	ChannelType      string
	URL              string
	ImageResolutionX string
	ImageResolutionY string
	ImageSizeX       int
	ImageSizeY       int
	PositionX        float64
	PositionY        float64
	TimeStamp        string
	PlateBarcode     string
	WorkflowID       int
	Variant          string
}

// NormalisedResultRow is one well of normalised data, destined for
// NE_normalized_results.
type NormalisedResultRow struct {
	Well                 string
	Row                  int
	Column               int
	Dilution             float64
	PlateBarcode         string
	BackgroundSubtracted float64
	PercentageInfected   float64
	WorkflowID           int
	Variant              string
}

// FinalResultRow is one well's outcome, destined for
// NE_final_results. IC50 is NaN when Status is set.
type FinalResultRow struct {
	Well       string
	IC50       float64
	Status     string
	Experiment string
	WorkflowID int
	Variant    string
}

// FailedResultRow is one QC failure, destined for NE_failed_results.
type FailedResultRow struct {
	FailureType   string
	Plate         string
	Well          string
	FailureReason string
	Experiment    string
	WorkflowID    int
	Variant       string
}

// ModelParameterRow holds one well's fitted curve parameters,
// destined for NE_model_parameters. Parameter fields are NaN when no
// model was fitted.
type ModelParameterRow struct {
	Well           string
	ParamTop       float64
	ParamBottom    float64
	ParamEC50      float64
	ParamHillSlope float64
	MSE            float64
	WorkflowID     int
	Variant        string
}

// TitrationNormalisedRow is one well of normalised titration data,
// destined for NE_virus_titration_normalised_results.
type TitrationNormalisedRow struct {
	PlaqueArea           float64
	NormalisedPlaqueArea float64
	BackgroundSubtracted float64
	PercentageInfected   float64
	Dilution             int
	Well                 string
	PlateBarcode         string
	WorkflowID           int
}

// TitrationModelParameterRow is the fitted parameters for one virus
// dilution factor, destined for NE_virus_titration_model_parameters.
type TitrationModelParameterRow struct {
	Dilution       int
	ParamTop       float64
	ParamBottom    float64
	ParamEC50      float64
	ParamHillSlope float64
	MSE            float64
	WorkflowID     int
}

// TitrationFinalResultRow is the outcome for one virus dilution
// factor, destined for NE_virus_titration_final_results. IC50 is NaN
// when Status is set.
type TitrationFinalResultRow struct {
	Dilution   int
	IC50       float64
	Status     string
	WorkflowID int
}

// nullFloat maps NaN and infinities to NULL. MySQL cannot store
// either, so the conversion happens at the database boundary.
func nullFloat(f float64) sql.NullFloat64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

// nullString maps the empty string to NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
