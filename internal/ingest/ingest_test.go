package ingest

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"
)

const plateResultsHeader = "Row\tColumn\t" + colVPGArea + "\t" + colVPGIntensityMean + "\t" +
	colVPGIntensityStdDev + "\t" + colVPGIntensityMedian + "\t" + colVPGIntensitySum + "\t" +
	colCellIntensityMean + "\t" + colCellIntensityStd + "\t" + colCellIntensityMed + "\t" +
	colCellIntensitySum + "\t" + colCellRegionArea + "\t" + colNormPlaqueArea + "\t" +
	colNormPlaqueIntens + "\t" + colAnalyzedFields

// plateResultsContent assembles a PlateResults.txt body: the metadata
// preamble, the column header and the given data rows.
func plateResultsContent(rows ...string) string {
	var b strings.Builder
	for i := 0; i < plateResultsHeaderLines; i++ {
		b.WriteString("Database link\tsome metadata\n")
	}
	b.WriteString(plateResultsHeader)
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(row)
		b.WriteString("\n")
	}
	return b.String()
}

func dataRow(row, col int, area, npa, npi string) string {
	fields := []string{
		"ROW", "COL",
		"120.5", "3301.2", "210.4", "3280.1", "90321.7",
		"1501.9", "80.2", "1490.3", "60192.5",
		area, npa, npi, "9",
	}
	fields[0] = strconv.Itoa(row)
	fields[1] = strconv.Itoa(col)
	return strings.Join(fields, "\t")
}

func TestParsePlateResults(t *testing.T) {
	content := plateResultsContent(
		dataRow(1, 1, "650000.0", "0.0451", "0.021"),
		dataRow(1, 2, "648000.0", "NaN", "NaN"),
	)
	records, err := parsePlateResults(strings.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	first := records[0]
	if first.Row != 1 || first.Column != 1 {
		t.Errorf("first record position = (%d, %d), want (1, 1)", first.Row, first.Column)
	}
	if first.NormalisedPlaqueArea != 0.0451 {
		t.Errorf("normalised plaque area = %v, want 0.0451", first.NormalisedPlaqueArea)
	}
	if first.CellRegionArea != 650000.0 {
		t.Errorf("cell region area = %v, want 650000", first.CellRegionArea)
	}

	// NaN normalised values mean an empty image region and are read as
	// zero so complete inhibition stays in the dilution series
	second := records[1]
	if second.NormalisedPlaqueArea != 0 || second.NormalisedPlaqueIntensity != 0 {
		t.Errorf("NaN normalised values = (%v, %v), want zeros",
			second.NormalisedPlaqueArea, second.NormalisedPlaqueIntensity)
	}

	// computed fields start undefined
	if !math.IsNaN(first.BackgroundSubtracted) || !math.IsNaN(first.PercentageInfected) {
		t.Error("computed fields should start as NaN")
	}
}

func TestParsePlateResultsMissingColumn(t *testing.T) {
	var b strings.Builder
	for i := 0; i < plateResultsHeaderLines; i++ {
		b.WriteString("meta\n")
	}
	b.WriteString("Row\tColumn\tSomething Else\n")
	b.WriteString("1\t1\t0.5\n")

	if _, err := parsePlateResults(strings.NewReader(b.String())); err == nil {
		t.Fatal("expected error for missing measurement columns")
	}
}

func TestParsePlateResultsEmpty(t *testing.T) {
	content := plateResultsContent()
	if _, err := parsePlateResults(strings.NewReader(content)); err == nil {
		t.Fatal("expected error for plate results without data rows")
	}
}

// writePlateDir lays out a plate export directory the way the Phenix
// does: <barcode>__<timestamp>/Evaluation1/PlateResults.txt plus the
// indexfile at the top level.
func writePlateDir(t *testing.T, root, barcode string, results, index string) string {
	t.Helper()
	dir := filepath.Join(root, barcode+"__2021-01-14T11_21_59-Measurement 1")
	if err := os.MkdirAll(filepath.Join(dir, evaluationSubdir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, evaluationSubdir, "PlateResults.txt"), []byte(results), 0o644); err != nil {
		t.Fatal(err)
	}
	if index != "" {
		if err := os.WriteFile(filepath.Join(dir, "indexfile.txt"), []byte(index), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestReadPlates(t *testing.T) {
	results := plateResultsContent(
		dataRow(1, 1, "650000.0", "0.045", "0.02"),
		dataRow(16, 24, "651000.0", "0.050", "0.03"),
	)
	root := t.TempDir()
	dir1 := writePlateDir(t, root, "S01000034", results, "")
	dir2 := writePlateDir(t, root, "S02000034", results, "")

	records, err := ReadPlates(zap.NewNop(), []string{dir1, dir2})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}

	// A01 on the 384-well plate is quadrant dilution 4, well A01 on the
	// mocked 96-well plate
	first := records[0]
	if first.Well != "A01" {
		t.Errorf("first well = %q, want A01", first.Well)
	}
	if first.PlateBarcode != "S41000034" {
		t.Errorf("first barcode = %q, want S41000034", first.PlateBarcode)
	}
	if first.PlateNum != 4 {
		t.Errorf("first dilution int = %d, want 4", first.PlateNum)
	}

	// P24 is quadrant dilution 1, well H12
	last := records[1]
	if last.Well != "H12" {
		t.Errorf("second well = %q, want H12", last.Well)
	}
	if last.PlateBarcode != "S11000034" {
		t.Errorf("second barcode = %q, want S11000034", last.PlateBarcode)
	}
	if last.Dilution != 1.0/40 {
		t.Errorf("second dilution = %v, want 1/40", last.Dilution)
	}
}

func TestReadPlatesWrongCount(t *testing.T) {
	if _, err := ReadPlates(zap.NewNop(), []string{"only-one"}); err == nil {
		t.Fatal("expected error for a single plate directory")
	}
}

func TestReadTitrationPlates(t *testing.T) {
	results := plateResultsContent(
		dataRow(1, 1, "650000.0", "0.045", "0.02"),  // A01: virus only
		dataRow(7, 3, "650000.0", "0.500", "0.40"),  // G03: positive control
		dataRow(16, 5, "650000.0", "0.010", "0.01"), // P05: no virus
		dataRow(1, 13, "650000.0", "0.045", "0.02"), // A13: empty, dropped
	)
	root := t.TempDir()
	dir1 := writePlateDir(t, root, "T11000102", results, "")
	dir2 := writePlateDir(t, root, "T12000102", results, "")

	records, err := ReadTitrationPlates(zap.NewNop(), []string{dir1, dir2})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 6 {
		t.Fatalf("got %d records, want 6 (empty wells dropped)", len(records))
	}

	first := records[0]
	if first.Well != "A01" || first.PlateBarcode != "T11000102" {
		t.Errorf("first record = %q on %q", first.Well, first.PlateBarcode)
	}
	if first.VirusDilutionFactor != 8 {
		t.Errorf("A01 virus dilution factor = %d, want 8", first.VirusDilutionFactor)
	}
	if !math.IsNaN(first.Dilution) {
		t.Errorf("A01 sample dilution = %v, want NaN for non-control wells", first.Dilution)
	}

	control := records[1]
	if control.Well != "G03" {
		t.Fatalf("second record = %q, want G03", control.Well)
	}
	// G03: odd row, odd column quadrant
	if control.PlateNum != 4 {
		t.Errorf("G03 dilution int = %d, want 4", control.PlateNum)
	}
	if control.Dilution != 1.0/2560 {
		t.Errorf("G03 dilution = %v, want 1/2560", control.Dilution)
	}
}

const indexFileContent = "Row\tColumn\tField\tChannel ID\tChannel Name\tChannel Type\tURL\t" +
	"ImageResolutionX [m]\tImageResolutionY [m]\tImageSizeX\tImageSizeY\t" +
	"PositionX [m]\tPositionY [m]\tTime Stamp\t\n" +
	"1\t1\t1\t1\tDAPI\tFluorescence\thttp://example/image-1.tiff\t" +
	"2.98E-07\t2.98E-07\t1080\t1080\t-0.00016\t0.00016\t2021-01-14T11:22:04\t\n" +
	"1\t1\t2\t1\tDAPI\tFluorescence\thttp://example/image-2.tiff\t" +
	"2.98E-07\t2.98E-07\t1080\t1080\t-0.00048\t0.00016\t2021-01-14T11:22:06\t\n"

func TestReadIndexFiles(t *testing.T) {
	results := plateResultsContent(dataRow(1, 1, "650000.0", "0.045", "0.02"))
	root := t.TempDir()
	dir1 := writePlateDir(t, root, "S01000034", results, indexFileContent)
	dir2 := writePlateDir(t, root, "S02000034", results, indexFileContent)

	records, err := ReadIndexFiles(zap.NewNop(), []string{dir1, dir2})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}

	first := records[0]
	if first.PlateBarcode != "S01000034" {
		t.Errorf("barcode = %q, want S01000034", first.PlateBarcode)
	}
	if first.Row != 1 || first.Column != 1 || first.Field != 1 {
		t.Errorf("position = (%d, %d, %d), want (1, 1, 1)", first.Row, first.Column, first.Field)
	}
	if first.ChannelName != "DAPI" {
		t.Errorf("channel name = %q, want DAPI", first.ChannelName)
	}
	if first.URL != "http://example/image-1.tiff" {
		t.Errorf("url = %q", first.URL)
	}
	if first.ImageSizeX != 1080 || first.ImageSizeY != 1080 {
		t.Errorf("image size = (%d, %d), want (1080, 1080)", first.ImageSizeX, first.ImageSizeY)
	}
	if first.PositionX != -0.00016 {
		t.Errorf("position x = %v, want -0.00016", first.PositionX)
	}
}

func TestPlateDirs(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"S01000034__export", "S02000034__export"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	dirs, err := PlateDirs(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 {
		t.Fatalf("got %d dirs, want 2", len(dirs))
	}
	if filepath.Base(dirs[0]) != "S01000034__export" {
		t.Errorf("dirs not sorted: %v", dirs)
	}

	if err := os.Mkdir(filepath.Join(root, "S03000034__export"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := PlateDirs(root); err == nil {
		t.Fatal("expected error for three plate directories")
	}
}
