package labware

import "testing"

func TestRowColToWell(t *testing.T) {
	cases := []struct {
		row, col int
		want     string
	}{
		{1, 1, "A01"},
		{1, 12, "A12"},
		{8, 12, "H12"},
		{16, 24, "P24"},
	}
	for _, c := range cases {
		got, err := RowColToWell(c.row, c.col)
		if err != nil {
			t.Fatalf("RowColToWell(%d, %d): %v", c.row, c.col, err)
		}
		if got != c.want {
			t.Errorf("RowColToWell(%d, %d) = %q, want %q", c.row, c.col, got, c.want)
		}
	}
	if _, err := RowColToWell(0, 1); err == nil {
		t.Error("RowColToWell(0, 1) expected error")
	}
}

func TestUnpadWell(t *testing.T) {
	cases := []struct{ in, want string }{
		{"A01", "A1"},
		{"A12", "A12"},
		{"H09", "H9"},
	}
	for _, c := range cases {
		if got := UnpadWell(c.in); got != c.want {
			t.Errorf("UnpadWell(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestWell384To96(t *testing.T) {
	cases := []struct{ in, want string }{
		{"A01", "A01"},
		{"A02", "A01"},
		{"B01", "A01"},
		{"B02", "A01"},
		{"P24", "H12"},
		{"C05", "B03"},
	}
	for _, c := range cases {
		got, err := Well384To96(c.in)
		if err != nil {
			t.Fatalf("Well384To96(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("Well384To96(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDilutionFromWell384(t *testing.T) {
	// quadrants: odd row and odd column carry the most dilute stamp
	cases := []struct {
		well string
		want int
	}{
		{"A01", 4},
		{"A02", 2},
		{"B01", 3},
		{"B02", 1},
		{"P24", 1},
		{"O23", 4},
	}
	for _, c := range cases {
		got, err := DilutionFromWell384(c.well)
		if err != nil {
			t.Fatalf("DilutionFromWell384(%q): %v", c.well, err)
		}
		if got != c.want {
			t.Errorf("DilutionFromWell384(%q) = %d, want %d", c.well, got, c.want)
		}
	}
}

func TestSplitWellRejectsBadLabels(t *testing.T) {
	for _, bad := range []string{"", "5", "A", "AA", "A00"} {
		if _, _, err := SplitWell(bad); err == nil {
			t.Errorf("SplitWell(%q) expected error", bad)
		}
	}
}
