// Package ingest reads Phenix plate exports (PlateResults.txt and
// indexfile.txt) into measurement records for the analysis.
package ingest

import "math"

// Record is one well's measurements. Wells and barcodes are the mock
// 96-well values after quadrant conversion for analysis plates, and the
// physical 384-well values for titration plates. Missing measurements
// are NaN.
type Record struct {
	Row    int
	Column int
	Well   string

	PlateBarcode string
	// PlateNum is the dilution integer (1-4) of the mock plate.
	PlateNum int
	// Dilution is the serum dilution as a fraction (1/40 .. 1/2560).
	Dilution float64
	Variant  string
	// VirusDilutionFactor is only set on titration plates (2-64).
	VirusDilutionFactor int

	VPGAreaMean               float64
	VPGIntensityMean          float64
	VPGIntensityStdDev        float64
	VPGIntensityMedian        float64
	VPGIntensitySum           float64
	CellIntensityMean         float64
	CellIntensityStdDev       float64
	CellIntensityMedian       float64
	CellIntensitySum          float64
	CellRegionArea            float64
	NormalisedPlaqueArea      float64
	NormalisedPlaqueIntensity float64
	NumberAnalyzedFields      float64

	// Computed during normalisation.
	BackgroundSubtracted float64
	PercentageInfected   float64
}

func newRecord() *Record {
	return &Record{
		Dilution:             math.NaN(),
		BackgroundSubtracted: math.NaN(),
		PercentageInfected:   math.NaN(),
	}
}

// IndexRecord is one row of an indexfile.txt image index. The index is
// kept because it holds the URLs to the microscope images.
type IndexRecord struct {
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
	Timestamp        string
	PlateBarcode     string
	Variant          string
}
