// Package config holds the analysis thresholds and QC criteria, with
// optional YAML overrides and variant-specific limits.
package config

import (
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultThreshold           = 50.0
	DefaultWeakThreshold       = 60.0
	DefaultCellAreaLow         = 0.6
	DefaultCellAreaHigh        = 1.5
	DefaultInfectionLow        = 0.4
	DefaultPositiveControlLow  = 350.0
	DefaultPositiveControlHigh = 650.0
	DefaultDuplicateDifference = 37.0
	DefaultMSELimit            = 150.0
)

// Range is an inclusive low/high limit pair. A zero High means
// unbounded above.
type Range struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	high := r.High
	if high == 0 {
		high = math.Inf(1)
	}
	return v >= r.Low && v <= high
}

// QCCriteria are the thresholds used by the plate and sample QC checks.
type QCCriteria struct {
	// CellRegionArea limits the per-well cell image-region-area as a
	// ratio of the plate median.
	CellRegionArea Range `yaml:"cell_region_area"`
	// InfectionRate limits the virus-only-well infection median.
	InfectionRate Range `yaml:"infection_rate"`
	// PositiveControl limits the IC50 of positive control wells.
	PositiveControl Range `yaml:"positive_control"`
	// DuplicateDifference is the largest allowed percentage-infected
	// gap between replicates at the same dilution.
	DuplicateDifference float64 `yaml:"duplicate_difference"`
	// MSELimit flags model fits with a mean squared error above it.
	MSELimit float64 `yaml:"mse_limit"`

	// Variant-specific overrides keyed by variant name.
	InfectionRateByVariant   map[string]Range `yaml:"infection_rate_by_variant"`
	PositiveControlByVariant map[string]Range `yaml:"positive_control_by_variant"`
}

// InfectionRateFor returns the infection-rate limits for a variant.
func (q QCCriteria) InfectionRateFor(variant string) Range {
	if r, ok := q.InfectionRateByVariant[variant]; ok {
		return r
	}
	return q.InfectionRate
}

// PositiveControlFor returns the positive-control IC50 limits for a
// variant.
func (q QCCriteria) PositiveControlFor(variant string) Range {
	if r, ok := q.PositiveControlByVariant[variant]; ok {
		return r
	}
	return q.PositiveControl
}

// Database holds connection settings for the LIMS serology database.
// Credentials come from the environment, not from the config file.
type Database struct {
	// Name of the database schema, "serology" in production.
	Name string `yaml:"name"`
	// UseTestHost selects the staging host (NE_HOST_TEST) over the
	// production host (NE_HOST_PROD).
	UseTestHost bool `yaml:"use_test_host"`
	// SQLitePath, when set, uses a local SQLite database instead of
	// MySQL.
	SQLitePath string `yaml:"sqlite_path"`
}

// Config is the full pipeline configuration.
type Config struct {
	// Threshold is the percentage-infected level defining the IC50.
	Threshold float64 `yaml:"threshold"`
	// WeakThreshold is the upper bound for weak inhibition.
	WeakThreshold float64    `yaml:"weak_threshold"`
	QC            QCCriteria `yaml:"qc"`
	Database      Database   `yaml:"database"`
}

func DefaultConfig() *Config {
	return &Config{
		Threshold:     DefaultThreshold,
		WeakThreshold: DefaultWeakThreshold,
		QC: QCCriteria{
			CellRegionArea:      Range{Low: DefaultCellAreaLow, High: DefaultCellAreaHigh},
			InfectionRate:       Range{Low: DefaultInfectionLow},
			PositiveControl:     Range{Low: DefaultPositiveControlLow, High: DefaultPositiveControlHigh},
			DuplicateDifference: DefaultDuplicateDifference,
			MSELimit:            DefaultMSELimit,
		},
		Database: Database{Name: "serology"},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
