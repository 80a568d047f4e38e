package labware

import "fmt"

// Control well layout of the mock 96-well analysis plates.
var (
	VirusOnlyWells = []string{
		"A12", "B12", "C12",
		"B06", "C06", "D06", "E06", "F06", "G06",
	}
	NoVirusWells         = []string{"F12", "G12", "H12"}
	PositiveControlWells = []string{"D12", "E12", "A06", "H06"}
)

// Reciprocal serum dilutions of the four dilution plates.
const (
	Dilution1 = 40
	Dilution2 = 160
	Dilution3 = 640
	Dilution4 = 2560
)

// DilutionSeries maps the dilution integer to the dilution fraction.
var DilutionSeries = map[int]float64{
	1: 1.0 / Dilution1,
	2: 1.0 / Dilution2,
	3: 1.0 / Dilution3,
	4: 1.0 / Dilution4,
}

// DilutionFraction returns the dilution fraction for a dilution
// integer.
func DilutionFraction(dilution int) (float64, error) {
	f, ok := DilutionSeries[dilution]
	if !ok {
		return 0, fmt.Errorf("unknown dilution integer %d", dilution)
	}
	return f, nil
}

// Contains reports whether the well is in the given layout group.
func Contains(group []string, well string) bool {
	for _, w := range group {
		if w == well {
			return true
		}
	}
	return false
}

// Titration plates are physical 384-well plates: columns 1-12 carry the
// samples, columns 13-24 are empty. Rows G and H are the positive
// control (the antibody dilution series), row P has no virus, the
// remaining rows are virus only. Each pair of columns shares one virus
// dilution factor.
var (
	titrationVirusOnlyRows = []byte{'A', 'B', 'C', 'D', 'E', 'F', 'I', 'J', 'K', 'L', 'M', 'N', 'O'}

	// TitrationColumnDilution maps a plate column to its virus
	// dilution factor.
	TitrationColumnDilution = map[int]int{
		1: 8, 2: 8,
		3: 16, 4: 16,
		5: 32, 6: 32,
		7: 40, 8: 40,
		9: 50, 10: 50,
		11: 64, 12: 64,
	}
)

// TitrationWellKind classifies a well on a titration plate.
type TitrationWellKind int

const (
	TitrationEmpty TitrationWellKind = iota
	TitrationVirusOnly
	TitrationNoVirus
	TitrationPositiveControl
)

// ClassifyTitrationWell returns the role of a titration-plate well.
func ClassifyTitrationWell(well string) (TitrationWellKind, error) {
	row, col, err := SplitWell(well)
	if err != nil {
		return 0, err
	}
	if col > 12 {
		return TitrationEmpty, nil
	}
	letter := byte('A' + row - 1)
	switch {
	case letter == 'P':
		return TitrationNoVirus, nil
	case letter == 'G' || letter == 'H':
		return TitrationPositiveControl, nil
	default:
		for _, r := range titrationVirusOnlyRows {
			if r == letter {
				return TitrationVirusOnly, nil
			}
		}
		// rows held for later use count as empty
		return TitrationEmpty, nil
	}
}

// TitrationSampleDilution returns the antibody dilution integer (1-4)
// for a positive-control well on a titration plate. The two control
// rows and column parity encode the four dilutions:
//
//	       col odd | col even
//	G (odd)    4   |    2
//	H (even)   3   |    1
//
// Returns 0 for wells outside the positive-control rows.
func TitrationSampleDilution(well string) (int, error) {
	kind, err := ClassifyTitrationWell(well)
	if err != nil {
		return 0, err
	}
	if kind != TitrationPositiveControl {
		return 0, nil
	}
	row, col, err := SplitWell(well)
	if err != nil {
		return 0, err
	}
	oddRow := row%2 != 0
	oddCol := col%2 != 0
	switch {
	case oddRow && oddCol:
		return 4, nil
	case !oddRow && oddCol:
		return 3, nil
	case oddRow && !oddCol:
		return 2, nil
	default:
		return 1, nil
	}
}
