package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/crick-pipelines-stp/plaque-assay/internal/labware"
)

// Each experiment is a pair of replicate plates.
const expectedPlates = 2

// evaluationSubdir is where the Phenix writes the analysed results
// inside each plate export directory.
const evaluationSubdir = "Evaluation1"

// PlateDirs lists the plate export directories inside dataDir and
// checks the expected replicate count.
func PlateDirs(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dataDir, e.Name()))
		}
	}
	sort.Strings(dirs)
	if len(dirs) != expectedPlates {
		return nil, fmt.Errorf("expected %d plate directories in %s, found %d", expectedPlates, dataDir, len(dirs))
	}
	return dirs, nil
}

// ReadPlates reads a pair of replicate 384-well plate exports and
// returns them as mock 96-well records: barcodes and well labels are
// rewritten per dilution quadrant and the serum dilution assigned.
func ReadPlates(logger *zap.Logger, plateDirs []string) ([]*Record, error) {
	if len(plateDirs) != expectedPlates {
		return nil, fmt.Errorf("expected %d plate directories, got %d", expectedPlates, len(plateDirs))
	}
	var all []*Record
	for _, dir := range plateDirs {
		barcode, err := labware.BarcodeFromPath(dir)
		if err != nil {
			return nil, err
		}
		logger.Info("reading plate", zap.String("barcode", barcode), zap.String("dir", dir))
		records, err := readPlateResults(filepath.Join(dir, evaluationSubdir, "PlateResults.txt"))
		if err != nil {
			return nil, fmt.Errorf("plate %s: %w", barcode, err)
		}
		for _, rec := range records {
			well384, err := labware.RowColToWell(rec.Row, rec.Column)
			if err != nil {
				return nil, fmt.Errorf("plate %s: %w", barcode, err)
			}
			// mock the barcode before converting the well label
			mocked, err := labware.MockBarcode384(barcode, well384)
			if err != nil {
				return nil, fmt.Errorf("plate %s well %s: %w", barcode, well384, err)
			}
			well96, err := labware.Well384To96(well384)
			if err != nil {
				return nil, fmt.Errorf("plate %s well %s: %w", barcode, well384, err)
			}
			rec.PlateBarcode = mocked
			rec.Well = well96
			rec.PlateNum, err = labware.DilutionFromBarcode(mocked)
			if err != nil {
				return nil, err
			}
			rec.Dilution, err = labware.DilutionFraction(rec.PlateNum)
			if err != nil {
				return nil, err
			}
		}
		all = append(all, records...)
	}
	logger.Debug("ingested plate results", zap.Int("records", len(all)))
	return all, nil
}

// ReadTitrationPlates reads a pair of replicate titration plate
// exports. Wells keep their 384-well labels; empty wells are dropped
// and the sample dilution and virus dilution factor are assigned from
// the well position.
func ReadTitrationPlates(logger *zap.Logger, plateDirs []string) ([]*Record, error) {
	if len(plateDirs) != expectedPlates {
		return nil, fmt.Errorf("expected %d plate directories, got %d", expectedPlates, len(plateDirs))
	}
	var all []*Record
	for _, dir := range plateDirs {
		barcode, err := labware.BarcodeFromPath(dir)
		if err != nil {
			return nil, err
		}
		logger.Info("reading titration plate", zap.String("barcode", barcode), zap.String("dir", dir))
		records, err := readPlateResults(filepath.Join(dir, evaluationSubdir, "PlateResults.txt"))
		if err != nil {
			return nil, fmt.Errorf("plate %s: %w", barcode, err)
		}
		for _, rec := range records {
			well, err := labware.RowColToWell(rec.Row, rec.Column)
			if err != nil {
				return nil, fmt.Errorf("plate %s: %w", barcode, err)
			}
			kind, err := labware.ClassifyTitrationWell(well)
			if err != nil {
				return nil, fmt.Errorf("plate %s: %w", barcode, err)
			}
			if kind == labware.TitrationEmpty {
				continue
			}
			rec.Well = well
			rec.PlateBarcode = barcode
			if dilutionInt, err := labware.TitrationSampleDilution(well); err != nil {
				return nil, err
			} else if dilutionInt > 0 {
				rec.PlateNum = dilutionInt
				rec.Dilution, err = labware.DilutionFraction(dilutionInt)
				if err != nil {
					return nil, err
				}
			}
			rec.VirusDilutionFactor = labware.TitrationColumnDilution[rec.Column]
			all = append(all, rec)
		}
	}
	logger.Debug("ingested titration results", zap.Int("records", len(all)))
	return all, nil
}

// ReadIndexFiles reads the indexfile.txt image indexes of a pair of
// plate exports.
func ReadIndexFiles(logger *zap.Logger, plateDirs []string) ([]*IndexRecord, error) {
	var all []*IndexRecord
	for _, dir := range plateDirs {
		barcode, err := labware.BarcodeFromPath(dir)
		if err != nil {
			return nil, err
		}
		records, err := readIndexFile(filepath.Join(dir, "indexfile.txt"))
		if err != nil {
			return nil, fmt.Errorf("plate %s: %w", barcode, err)
		}
		for _, rec := range records {
			rec.PlateBarcode = barcode
		}
		all = append(all, records...)
	}
	logger.Debug("ingested indexfiles", zap.Int("records", len(all)))
	return all, nil
}

// Indexfile column names.
const (
	idxColRow         = "Row"
	idxColColumn      = "Column"
	idxColField       = "Field"
	idxColChannelID   = "Channel ID"
	idxColChannelName = "Channel Name"
	idxColChannelType = "Channel Type"
	idxColURL         = "URL"
	idxColResX        = "ImageResolutionX [m]"
	idxColResY        = "ImageResolutionY [m]"
	idxColSizeX       = "ImageSizeX"
	idxColSizeY       = "ImageSizeY"
	idxColPosX        = "PositionX [m]"
	idxColPosY        = "PositionY [m]"
	idxColTimestamp   = "Time Stamp"
)

func readIndexFile(path string) ([]*IndexRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading indexfile header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		// trailing tabs produce unnamed columns, which are dropped
		name = strings.TrimSpace(name)
		if name != "" {
			idx[name] = i
		}
	}

	var records []*IndexRecord
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading indexfile row: %w", err)
		}
		if len(fields) == 0 || (len(fields) == 1 && strings.TrimSpace(fields[0]) == "") {
			continue
		}
		rec := &IndexRecord{
			ChannelName:      fieldString(fields, idx, idxColChannelName),
			ChannelType:      fieldString(fields, idx, idxColChannelType),
			URL:              fieldString(fields, idx, idxColURL),
			ImageResolutionX: fieldString(fields, idx, idxColResX),
			ImageResolutionY: fieldString(fields, idx, idxColResY),
			Timestamp:        fieldString(fields, idx, idxColTimestamp),
			PositionX:        fieldFloat(fields, idx, idxColPosX),
			PositionY:        fieldFloat(fields, idx, idxColPosY),
		}
		if rec.Row, err = fieldInt(fields, idx, idxColRow); err != nil {
			return nil, err
		}
		if rec.Column, err = fieldInt(fields, idx, idxColColumn); err != nil {
			return nil, err
		}
		if rec.Field, err = fieldInt(fields, idx, idxColField); err != nil {
			return nil, err
		}
		if rec.ChannelID, err = fieldInt(fields, idx, idxColChannelID); err != nil {
			return nil, err
		}
		rec.ImageSizeX = intOrZero(fieldString(fields, idx, idxColSizeX))
		rec.ImageSizeY = intOrZero(fieldString(fields, idx, idxColSizeY))
		records = append(records, rec)
	}
	return records, nil
}

func fieldString(fields []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

func intOrZero(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
