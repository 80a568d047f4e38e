package labware

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Plate barcodes encode the assay type, dilution, replicate and workflow:
//
//	position 0    assay type letter ("A" analysis, "T" titration)
//	position 1    dilution integer 1-4 ("A" on raw 384-well barcodes,
//	              replaced per quadrant when mocking 96-well plates)
//	position 2    replicate number
//	position 3+   workflow ID digits
//
// e.g. "A11000034" is dilution 1, replicate 1, workflow 1000034.

// BarcodeFromPath extracts the plate barcode from a plate export
// directory name such as
// "A11000034__2021-01-05T12_00_00-Measurement 1".
func BarcodeFromPath(path string) (string, error) {
	base := filepath.Base(filepath.Clean(path))
	barcode := strings.SplitN(base, "__", 2)[0]
	if len(barcode) < 4 {
		return "", fmt.Errorf("cannot parse barcode from %q", path)
	}
	return barcode, nil
}

// WorkflowID returns the workflow ID encoded in a barcode.
func WorkflowID(barcode string) (int, error) {
	if len(barcode) < 4 {
		return 0, fmt.Errorf("barcode %q too short for workflow ID", barcode)
	}
	id, err := strconv.Atoi(barcode[3:])
	if err != nil {
		return 0, fmt.Errorf("barcode %q: invalid workflow ID: %w", barcode, err)
	}
	return id, nil
}

// DilutionFromBarcode returns the dilution integer (1-4) from a mocked
// 96-well plate barcode.
func DilutionFromBarcode(barcode string) (int, error) {
	if len(barcode) < 2 {
		return 0, fmt.Errorf("barcode %q too short for dilution", barcode)
	}
	d := int(barcode[1] - '0')
	if d < 1 || d > 4 {
		return 0, fmt.Errorf("barcode %q: dilution %q out of range", barcode, barcode[1])
	}
	return d, nil
}

// ReplicateFromBarcode returns the replicate number from a barcode.
func ReplicateFromBarcode(barcode string) (int, error) {
	if len(barcode) < 3 {
		return 0, fmt.Errorf("barcode %q too short for replicate", barcode)
	}
	r, err := strconv.Atoi(barcode[2:3])
	if err != nil {
		return 0, fmt.Errorf("barcode %q: invalid replicate: %w", barcode, err)
	}
	return r, nil
}

// PlateID returns the leading plate identifier used by the LIMS
// available-strains table to map plates to variants.
func PlateID(barcode string) string {
	if len(barcode) < 3 {
		return barcode
	}
	return barcode[:3]
}

// IsTitration reports whether a barcode belongs to a titration plate.
func IsTitration(barcode string) bool {
	return strings.HasPrefix(barcode, "T")
}

// MockBarcode384 rewrites the dilution position of a 384-well plate
// barcode using the quadrant dilution of the given 384-well label. The
// resulting barcode identifies the mock 96-well plate the well belongs
// to.
func MockBarcode384(barcode, well string) (string, error) {
	if len(barcode) < 2 {
		return "", fmt.Errorf("barcode %q too short to mock", barcode)
	}
	dilution, err := DilutionFromWell384(well)
	if err != nil {
		return "", err
	}
	return barcode[:1] + strconv.Itoa(dilution) + barcode[2:], nil
}
