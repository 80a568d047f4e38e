// Package labware handles well labels and plate barcodes.
//
// The assay originated in 96-well plates with one dilution per plate,
// four plates in total. When the assay moved to 384-well plates all four
// dilutions were stamped onto a single plate in quadrants, so one sample
// occupies four adjacent wells, each a different dilution. The analysis
// still works in terms of mock 96-well plates, so 384-well labels and
// barcodes are converted back to their 96-well equivalents here.
package labware

import (
	"fmt"
	"strconv"
	"strings"
)

// RowColToWell converts 1-indexed row/column indices to a zero-padded
// well label, e.g. (1, 1) -> "A01", (8, 12) -> "H12".
func RowColToWell(row, col int) (string, error) {
	if row < 1 || row > 26 {
		return "", fmt.Errorf("row %d out of range", row)
	}
	if col < 1 || col > 99 {
		return "", fmt.Errorf("column %d out of range", col)
	}
	return fmt.Sprintf("%c%02d", 'A'+row-1, col), nil
}

// SplitWell returns the 1-indexed row and column of a well label.
func SplitWell(well string) (row, col int, err error) {
	if len(well) < 2 {
		return 0, 0, fmt.Errorf("invalid well label %q", well)
	}
	r := well[0]
	if r < 'A' || r > 'Z' {
		return 0, 0, fmt.Errorf("invalid well row in %q", well)
	}
	c, err := strconv.Atoi(well[1:])
	if err != nil || c < 1 {
		return 0, 0, fmt.Errorf("invalid well column in %q", well)
	}
	return int(r-'A') + 1, c, nil
}

// UnpadWell removes zero-padding from a well label: "A01" -> "A1".
// The LIMS database stores unpadded labels.
func UnpadWell(well string) string {
	if len(well) < 2 {
		return well
	}
	col := strings.TrimLeft(well[1:], "0")
	if col == "" {
		col = "0"
	}
	return well[:1] + col
}

// UnpadWells unpads a slice of well labels.
func UnpadWells(wells []string) []string {
	out := make([]string, len(wells))
	for i, w := range wells {
		out[i] = UnpadWell(w)
	}
	return out
}

// Well384To96 converts a 384-well label to the label of the well on the
// source 96-well plate it was stamped from, e.g. "P24" -> "H12".
func Well384To96(well string) (string, error) {
	row, col, err := SplitWell(well)
	if err != nil {
		return "", err
	}
	row96 := (row + 1) / 2
	col96 := (col + 1) / 2
	return RowColToWell(row96, col96)
}

// DilutionFromWell384 returns the dilution integer (1-4) encoded by the
// quadrant position of a 384-well label.
//
// Within each 2x2 quadrant the dilutions are laid out as:
//
//	+----+----+
//	| 4  | 3  |
//	| 2  | 1  |
//	+----+----+
func DilutionFromWell384(well string) (int, error) {
	row, col, err := SplitWell(well)
	if err != nil {
		return 0, err
	}
	oddRow := row%2 != 0
	oddCol := col%2 != 0
	switch {
	case oddRow && oddCol:
		return 4, nil
	case oddRow && !oddCol:
		return 2, nil
	case !oddRow && oddCol:
		return 3, nil
	default:
		return 1, nil
	}
}
