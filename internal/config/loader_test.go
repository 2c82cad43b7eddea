package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/rostr/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
				convey.So(cfg.WorkingDays, convey.ShouldHaveLength, 5)
				convey.So(cfg.UtilizationTarget, convey.ShouldEqual, 75)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ROSTR_DATA_DIR", "/srv/rostr")
			_ = os.Setenv("ROSTR_DEFAULT_WEEKLY_HOURS", "37.5")
			_ = os.Setenv("ROSTR_FORECAST_MONTHS", "6")
			_ = os.Setenv("ROSTR_LOCK_TIMEOUT", "250ms")
			_ = os.Setenv("ROSTR_ORDER", "alphabetical")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DataDir, convey.ShouldEqual, "/srv/rostr")
				convey.So(cfg.DefaultWeeklyHours, convey.ShouldEqual, 37.5)
				convey.So(cfg.ForecastMonths, convey.ShouldEqual, 6)
				convey.So(cfg.LockTimeout, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(cfg.Order, convey.ShouldEqual, "alphabetical")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# Sunday to Thursday week
data_dir: /data/rostr
date_format: "02/01/2006"
person_shortcode_len: 3
working_days:
  - sunday
  - monday
  - tuesday
  - wednesday
  - thursday
utilization_target: 80
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ROSTR_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DataDir, convey.ShouldEqual, "/data/rostr")
				convey.So(cfg.DateFormat, convey.ShouldEqual, "02/01/2006")
				convey.So(cfg.PersonShortCodeLen, convey.ShouldEqual, 3)
				convey.So(cfg.WorkingDays, convey.ShouldResemble, []string{"sunday", "monday", "tuesday", "wednesday", "thursday"})
				convey.So(cfg.UtilizationTarget, convey.ShouldEqual, 80)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
data_dir: /data/rostr
forecast_months: 4
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ROSTR_CONFIG", tmpFile)
			_ = os.Setenv("ROSTR_FORECAST_MONTHS", "9")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DataDir, convey.ShouldEqual, "/data/rostr") // From file
				convey.So(cfg.ForecastMonths, convey.ShouldEqual, 9)      // Overridden by env
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("ROSTR_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("ROSTR_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an invalid value", func() {
			_ = os.Setenv("ROSTR_DEFAULT_WEEKLY_HOURS", "-1")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "default_weekly_hours")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"ROSTR_CONFIG",
		"ROSTR_DATA_DIR",
		"ROSTR_DEFAULT_WEEKLY_HOURS",
		"ROSTR_FORECAST_MONTHS",
		"ROSTR_LOCK_TIMEOUT",
		"ROSTR_ORDER",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "rostr-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
