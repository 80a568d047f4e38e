package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Threshold != 50 {
		t.Errorf("threshold = %v, want 50", cfg.Threshold)
	}
	if cfg.QC.PositiveControl.Low != 350 || cfg.QC.PositiveControl.High != 650 {
		t.Errorf("positive control range = %+v", cfg.QC.PositiveControl)
	}
	if cfg.Database.Name != "serology" {
		t.Errorf("database name = %q, want serology", cfg.Database.Name)
	}
}

func TestRangeContains(t *testing.T) {
	cases := []struct {
		r    Range
		v    float64
		want bool
	}{
		{Range{Low: 0.6, High: 1.5}, 1.0, true},
		{Range{Low: 0.6, High: 1.5}, 0.6, true},
		{Range{Low: 0.6, High: 1.5}, 1.5, true},
		{Range{Low: 0.6, High: 1.5}, 0.59, false},
		{Range{Low: 0.6, High: 1.5}, 1.51, false},
		// zero high means unbounded above
		{Range{Low: 0.4}, 1e9, true},
		{Range{Low: 0.4}, 0.3, false},
	}
	for _, c := range cases {
		if got := c.r.Contains(c.v); got != c.want {
			t.Errorf("%+v.Contains(%v) = %v, want %v", c.r, c.v, got, c.want)
		}
	}
}

func TestVariantOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QC.InfectionRateByVariant = map[string]Range{
		"B.1.1.7": {Low: 0.9},
	}

	if got := cfg.QC.InfectionRateFor("B.1.1.7"); got.Low != 0.9 {
		t.Errorf("B.1.1.7 infection rate low = %v, want 0.9", got.Low)
	}
	if got := cfg.QC.InfectionRateFor("England2"); got.Low != DefaultInfectionLow {
		t.Errorf("default infection rate low = %v, want %v", got.Low, DefaultInfectionLow)
	}
	if got := cfg.QC.PositiveControlFor("England2"); got != cfg.QC.PositiveControl {
		t.Errorf("default positive control range = %+v", got)
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WeakThreshold = 55
	cfg.QC.DuplicateDifference = 40
	cfg.Database.UseTestHost = true

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.WeakThreshold != 55 {
		t.Errorf("weak threshold = %v, want 55", loaded.WeakThreshold)
	}
	if loaded.QC.DuplicateDifference != 40 {
		t.Errorf("duplicate difference = %v, want 40", loaded.QC.DuplicateDifference)
	}
	if !loaded.Database.UseTestHost {
		t.Error("use_test_host not round-tripped")
	}
}

func TestLoadPartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "qc:\n  mse_limit: 200\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.QC.MSELimit != 200 {
		t.Errorf("mse limit = %v, want 200", cfg.QC.MSELimit)
	}
	// untouched fields keep their defaults
	if cfg.Threshold != DefaultThreshold {
		t.Errorf("threshold = %v, want default %v", cfg.Threshold, DefaultThreshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
