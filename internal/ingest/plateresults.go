package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Number of metadata lines before the column header in a Phenix
// PlateResults.txt export.
const plateResultsHeaderLines = 8

// Measurement column names as exported by the Phenix.
const (
	colRow                = "Row"
	colColumn             = "Column"
	colVPGArea            = "Viral Plaques (global) - Area of Viral Plaques Area [µm²] - Mean per Well"
	colVPGIntensityMean   = "Viral Plaques (global) - Intensity Viral Plaques Alexa 488 (global) Mean - Mean per Well"
	colVPGIntensityStdDev = "Viral Plaques (global) - Intensity Viral Plaques Alexa 488 (global) StdDev - Mean per Well"
	colVPGIntensityMedian = "Viral Plaques (global) - Intensity Viral Plaques Alexa 488 (global) Median - Mean per Well"
	colVPGIntensitySum    = "Viral Plaques (global) - Intensity Viral Plaques Alexa 488 (global) Sum - Mean per Well"
	colCellIntensityMean  = "Cells - Intensity Image Region DAPI (global) Mean - Mean per Well"
	colCellIntensityStd   = "Cells - Intensity Image Region DAPI (global) StdDev - Mean per Well"
	colCellIntensityMed   = "Cells - Intensity Image Region DAPI (global) Median - Mean per Well"
	colCellIntensitySum   = "Cells - Intensity Image Region DAPI (global) Sum - Mean per Well"
	colCellRegionArea     = "Cells - Image Region Area [µm²] - Mean per Well"
	colNormPlaqueArea     = "Normalised Plaque area"
	colNormPlaqueIntens   = "Normalised Plaque intensity"
	colAnalyzedFields     = "Number of Analyzed Fields"
)

// readPlateResults parses a PlateResults.txt export into records. Only
// row/column and the measurement columns are read; well labels,
// barcodes and dilutions are assigned by the callers.
func readPlateResults(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parsePlateResults(f)
}

func parsePlateResults(r io.Reader) ([]*Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	for i := 0; i < plateResultsHeaderLines; i++ {
		if _, err := cr.Read(); err != nil {
			return nil, fmt.Errorf("reading plate results metadata: %w", err)
		}
	}
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading plate results header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colRow, colColumn, colNormPlaqueArea, colCellRegionArea} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("plate results missing column %q", required)
		}
	}

	var records []*Record
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading plate results row: %w", err)
		}
		if len(fields) == 0 || (len(fields) == 1 && strings.TrimSpace(fields[0]) == "") {
			continue
		}
		rec := newRecord()
		rec.Row, err = fieldInt(fields, idx, colRow)
		if err != nil {
			return nil, err
		}
		rec.Column, err = fieldInt(fields, idx, colColumn)
		if err != nil {
			return nil, err
		}
		rec.VPGAreaMean = fieldFloat(fields, idx, colVPGArea)
		rec.VPGIntensityMean = fieldFloat(fields, idx, colVPGIntensityMean)
		rec.VPGIntensityStdDev = fieldFloat(fields, idx, colVPGIntensityStdDev)
		rec.VPGIntensityMedian = fieldFloat(fields, idx, colVPGIntensityMedian)
		rec.VPGIntensitySum = fieldFloat(fields, idx, colVPGIntensitySum)
		rec.CellIntensityMean = fieldFloat(fields, idx, colCellIntensityMean)
		rec.CellIntensityStdDev = fieldFloat(fields, idx, colCellIntensityStd)
		rec.CellIntensityMedian = fieldFloat(fields, idx, colCellIntensityMed)
		rec.CellIntensitySum = fieldFloat(fields, idx, colCellIntensitySum)
		rec.CellRegionArea = fieldFloat(fields, idx, colCellRegionArea)
		rec.NormalisedPlaqueArea = fieldFloat(fields, idx, colNormPlaqueArea)
		rec.NormalisedPlaqueIntensity = fieldFloat(fields, idx, colNormPlaqueIntens)
		rec.NumberAnalyzedFields = fieldFloat(fields, idx, colAnalyzedFields)

		// Empty wells with no background produce NaN rather than 0 in
		// the image analysis, which would drop truely complete
		// inhibition from the series.
		if math.IsNaN(rec.NormalisedPlaqueArea) {
			rec.NormalisedPlaqueArea = 0
		}
		if math.IsNaN(rec.NormalisedPlaqueIntensity) {
			rec.NormalisedPlaqueIntensity = 0
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("plate results contain no data rows")
	}
	return records, nil
}

func fieldInt(fields []string, idx map[string]int, name string) (int, error) {
	i, ok := idx[name]
	if !ok || i >= len(fields) {
		return 0, fmt.Errorf("missing value for column %q", name)
	}
	v, err := strconv.Atoi(strings.TrimSpace(fields[i]))
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", name, err)
	}
	return v, nil
}

func fieldFloat(fields []string, idx map[string]int, name string) float64 {
	i, ok := idx[name]
	if !ok || i >= len(fields) {
		return math.NaN()
	}
	s := strings.TrimSpace(fields[i])
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
