// Package config defines the process configuration and how it is loaded.
//
// Conventions:
// - New returns defaults; Load layers a YAML file and environment variables on top.
// - The loaded value is converted once into the domain settings it feeds;
//   core packages never read configuration globally.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/rostr/internal/domain/availability"
	"github.com/okian/rostr/internal/domain/forecast"
	"github.com/okian/rostr/internal/domain/model"
)

// Version is the schema version of the configuration value.
const Version = 1

// Row orders accepted by the order key.
const (
	OrderInsertion    = "insertion"
	OrderAlphabetical = "alphabetical"
)

// Config contains process configuration.
type Config struct {
	// Version of the configuration schema. Only Version is accepted.
	Version int `koanf:"version"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// DataDir holds the journal and the derived snapshot files.
	DataDir string `koanf:"data_dir"`
	// JournalFile is the journal name inside DataDir, or an absolute path.
	JournalFile string `koanf:"journal_file"`
	// MetricsFile, when set, receives a Prometheus textfile after every command.
	MetricsFile string `koanf:"metrics_file"`
	// LockTimeout bounds the wait for the journal lock.
	LockTimeout time.Duration `koanf:"lock_timeout"`

	// DateFormat is the Go layout used to parse and print dates.
	DateFormat string `koanf:"date_format"`
	// DefaultWeeklyHours is the capacity given to people added without one.
	DefaultWeeklyHours float64 `koanf:"default_weekly_hours"`
	// PersonShortCodeLen and ProjectShortCodeLen bound generated short codes.
	PersonShortCodeLen  int `koanf:"person_shortcode_len"`
	ProjectShortCodeLen int `koanf:"project_shortcode_len"`
	// DefaultAllocationDays is used when an allocation has no end date.
	DefaultAllocationDays int `koanf:"default_allocation_days"`

	// WorkingDays lists the weekdays that carry capacity.
	WorkingDays []string `koanf:"working_days"`
	// ForecastMonths is the default forecast horizon.
	ForecastMonths int `koanf:"forecast_months"`
	// UtilizationTarget is the lower bound of the healthy band, in percent.
	UtilizationTarget float64 `koanf:"utilization_target"`
	// Order is the default row order: insertion or alphabetical.
	Order string `koanf:"order"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		Version:               Version,
		LogLevel:              "info",
		LogFormat:             "text",
		DataDir:               defaultDataDir(),
		JournalFile:           "journal.jsonl",
		LockTimeout:           5 * time.Second,
		DateFormat:            "2006-01-02",
		DefaultWeeklyHours:    model.DefaultWeeklyHours,
		PersonShortCodeLen:    4,
		ProjectShortCodeLen:   6,
		DefaultAllocationDays: 365,
		WorkingDays:           []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		ForecastMonths:        3,
		UtilizationTarget:     forecast.DefaultUtilizationTarget,
		Order:                 OrderInsertion,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".rostr"
	}
	return filepath.Join(home, ".rostr")
}

// JournalPath resolves the journal file against the data directory.
func (c *Config) JournalPath() string {
	if filepath.IsAbs(c.JournalFile) {
		return c.JournalFile
	}
	return filepath.Join(c.DataDir, c.JournalFile)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Version != Version:
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidConfig, c.Version)
	case strings.TrimSpace(c.DataDir) == "":
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.JournalFile) == "":
		return fmt.Errorf("%w: journal_file must not be empty", ErrInvalidConfig)
	case c.DefaultWeeklyHours <= 0:
		return fmt.Errorf("%w: default_weekly_hours must be positive", ErrInvalidConfig)
	case c.PersonShortCodeLen < 1 || c.ProjectShortCodeLen < 1:
		return fmt.Errorf("%w: short code lengths must be at least 1", ErrInvalidConfig)
	case c.DefaultAllocationDays < 1:
		return fmt.Errorf("%w: default_allocation_days must be at least 1", ErrInvalidConfig)
	case c.ForecastMonths < 1:
		return fmt.Errorf("%w: forecast_months must be at least 1", ErrInvalidConfig)
	case c.LockTimeout <= 0:
		return fmt.Errorf("%w: lock_timeout must be positive", ErrInvalidConfig)
	case c.DateFormat == "":
		return fmt.Errorf("%w: date_format must not be empty", ErrInvalidConfig)
	}
	if _, err := c.Convention(); err != nil {
		return err
	}
	if _, err := c.Settings(); err != nil {
		return err
	}
	return nil
}

// Convention converts WorkingDays into the calculator's working-day convention.
func (c *Config) Convention() (availability.Convention, error) {
	conv, err := availability.ParseConvention(c.WorkingDays)
	if err != nil {
		return availability.Convention{}, fmt.Errorf("%w: working_days: %w", ErrInvalidConfig, err)
	}
	return conv, nil
}

// Settings converts the report preferences for the forecast engine.
func (c *Config) Settings() (forecast.Settings, error) {
	s := forecast.Settings{UtilizationTarget: c.UtilizationTarget}
	switch strings.ToLower(strings.TrimSpace(c.Order)) {
	case "", OrderInsertion:
		s.Order = model.OrderInsertion
	case OrderAlphabetical:
		s.Order = model.OrderAlphabetical
	default:
		return forecast.Settings{}, fmt.Errorf("%w: unknown order %q", ErrInvalidConfig, c.Order)
	}
	if s.UtilizationTarget <= 0 || s.UtilizationTarget > 100 {
		return forecast.Settings{}, fmt.Errorf("%w: utilization_target must be in (0, 100]", ErrInvalidConfig)
	}
	return s, nil
}
