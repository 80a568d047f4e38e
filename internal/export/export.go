// Package export writes local CSV and JSON artifacts of an analysis,
// mirroring what gets uploaded to the LIMS database. Useful for
// inspecting a run without database access.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/crick-pipelines-stp/plaque-assay/internal/assay"
	"github.com/crick-pipelines-stp/plaque-assay/internal/titration"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// SaveExperiment writes the final results, failures, normalised data
// and model parameters of an experiment as CSV, plus a JSON summary.
func (s *Store) SaveExperiment(e *assay.Experiment) error {
	name := e.Name
	if err := s.saveResults(e, fmt.Sprintf("results_%s.csv", name)); err != nil {
		return err
	}
	if err := s.saveFailures(e, fmt.Sprintf("failures_%s.csv", name)); err != nil {
		return err
	}
	if err := s.saveNormalised(e, fmt.Sprintf("normalised_%s.csv", name)); err != nil {
		return err
	}
	if err := s.saveModelParameters(e, fmt.Sprintf("model_parameters_%s.csv", name)); err != nil {
		return err
	}
	return s.saveSummary(e, fmt.Sprintf("results_%s.json", name))
}

func (s *Store) writeCSV(filename string, header []string, rows [][]string) error {
	path := filepath.Join(s.baseDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// formatFloat renders NaN and infinities as empty cells.
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func (s *Store) saveResults(e *assay.Experiment, filename string) error {
	header := []string{"well", "ic50", "status", "experiment", "variant"}
	var rows [][]string
	for _, res := range e.FinalResults() {
		rows = append(rows, []string{
			res.Well, formatFloat(res.IC50), res.Status, res.Experiment, res.Variant,
		})
	}
	return s.writeCSV(filename, header, rows)
}

func (s *Store) saveFailures(e *assay.Experiment, filename string) error {
	header := []string{"failure_type", "plate", "well", "failure_reason", "experiment", "variant"}
	var rows [][]string
	for _, f := range e.Failures() {
		rows = append(rows, []string{
			f.Type, f.Plate, f.Well, f.Reason, f.Experiment, f.Variant,
		})
	}
	return s.writeCSV(filename, header, rows)
}

func (s *Store) saveNormalised(e *assay.Experiment, filename string) error {
	header := []string{
		"well", "row", "column", "dilution", "plate_barcode",
		"background_subtracted_plaque_area", "percentage_infected", "variant",
	}
	var rows [][]string
	for _, rec := range e.Records() {
		rows = append(rows, []string{
			rec.Well,
			strconv.Itoa(rec.Row),
			strconv.Itoa(rec.Column),
			formatFloat(rec.Dilution),
			rec.PlateBarcode,
			formatFloat(rec.BackgroundSubtracted),
			formatFloat(rec.PercentageInfected),
			rec.Variant,
		})
	}
	return s.writeCSV(filename, header, rows)
}

func (s *Store) saveModelParameters(e *assay.Experiment, filename string) error {
	header := []string{
		"well", "param_top", "param_bottom", "param_ec50", "param_hillslope",
		"mean_squared_error", "variant",
	}
	var rows [][]string
	for _, p := range e.ModelParameters() {
		top, bottom, ec50, hill := "", "", "", ""
		if p.Params != nil {
			top = formatFloat(p.Params.Top)
			bottom = formatFloat(p.Params.Bottom)
			ec50 = formatFloat(p.Params.EC50)
			hill = formatFloat(p.Params.HillSlope)
		}
		rows = append(rows, []string{
			p.Well, top, bottom, ec50, hill, formatFloat(p.MSE), p.Variant,
		})
	}
	return s.writeCSV(filename, header, rows)
}

func (s *Store) saveSummary(e *assay.Experiment, filename string) error {
	path := filepath.Join(s.baseDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(e.Summary())
}

// SaveTitration writes the titration final results and model
// parameters as CSV.
func (s *Store) SaveTitration(t *titration.Titration) error {
	header := []string{"dilution", "ic50", "status", "workflow_id"}
	var rows [][]string
	for _, res := range t.FinalResults() {
		rows = append(rows, []string{
			strconv.Itoa(res.Dilution), formatFloat(res.IC50), res.Status, res.WorkflowID,
		})
	}
	filename := fmt.Sprintf("titration_results_%s.csv", t.WorkflowID)
	if err := s.writeCSV(filename, header, rows); err != nil {
		return err
	}

	header = []string{
		"dilution", "param_top", "param_bottom", "param_ec50",
		"param_hillslope", "mean_squared_error", "workflow_id",
	}
	rows = nil
	for _, p := range t.ModelParameters() {
		top, bottom, ec50, hill := "", "", "", ""
		if p.Params != nil {
			top = formatFloat(p.Params.Top)
			bottom = formatFloat(p.Params.Bottom)
			ec50 = formatFloat(p.Params.EC50)
			hill = formatFloat(p.Params.HillSlope)
		}
		rows = append(rows, []string{
			strconv.Itoa(p.Dilution), top, bottom, ec50, hill,
			formatFloat(p.MSE), p.WorkflowID,
		})
	}
	filename = fmt.Sprintf("titration_model_parameters_%s.csv", t.WorkflowID)
	return s.writeCSV(filename, header, rows)
}
