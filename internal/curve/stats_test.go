package curve

import (
	"math"
	"testing"
)

func TestMedian(t *testing.T) {
	cases := []struct {
		in   []float64
		want float64
	}{
		{[]float64{1, 2, 3}, 2},
		{[]float64{1, 2, 3, 4}, 2.5},
		{[]float64{3, 1, 2}, 2},
		{[]float64{1, math.NaN(), 3}, 2},
	}
	for _, c := range cases {
		if got := Median(c.in); got != c.want {
			t.Errorf("Median(%v) = %v, want %v", c.in, got, c.want)
		}
	}
	if !math.IsNaN(Median(nil)) {
		t.Error("Median(nil) should be NaN")
	}
	if !math.IsNaN(Median([]float64{math.NaN()})) {
		t.Error("Median of all-NaN should be NaN")
	}
}

func TestMean(t *testing.T) {
	if got := Mean([]float64{1, 2, 3}); got != 2 {
		t.Errorf("Mean = %v, want 2", got)
	}
	if got := Mean([]float64{1, math.NaN(), 3}); got != 2 {
		t.Errorf("Mean ignoring NaN = %v, want 2", got)
	}
	if !math.IsNaN(Mean(nil)) {
		t.Error("Mean(nil) should be NaN")
	}
}

func TestMSE(t *testing.T) {
	observed := []float64{1, 2, 3}
	fitted := []float64{1, 2, 3}
	if got := MSE(observed, fitted); got != 0 {
		t.Errorf("MSE of identical series = %v, want 0", got)
	}
	fitted = []float64{2, 3, 4}
	if got := MSE(observed, fitted); got != 1 {
		t.Errorf("MSE = %v, want 1", got)
	}
}

func TestLogspace(t *testing.T) {
	xs := Logspace(0, 2, 3)
	want := []float64{1, 10, 100}
	for i := range want {
		if math.Abs(xs[i]-want[i]) > 1e-9 {
			t.Errorf("Logspace[%d] = %v, want %v", i, xs[i], want[i])
		}
	}
	if len(Logspace(-4, 0, 100)) != 100 {
		t.Error("Logspace length mismatch")
	}
}

func TestHampel(t *testing.T) {
	// flat series with a single spike in the middle
	xs := make([]float64, 30)
	for i := range xs {
		xs[i] = 10 + 0.1*float64(i%3)
	}
	xs[15] = 500
	outliers := Hampel(xs, 5, 3)
	if len(outliers) != 1 || outliers[0] != 15 {
		t.Errorf("Hampel outliers = %v, want [15]", outliers)
	}

	// no outliers in a smooth series
	for i := range xs {
		xs[i] = float64(i)
	}
	if got := Hampel(xs, 5, 3); len(got) != 0 {
		t.Errorf("Hampel on smooth series = %v, want none", got)
	}
}
