package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads, parses, and validates the YAML configuration file.
// It applies defaults before returning the validated configuration.
func LoadConfig(filename string) (*RunConfig, error) {
	fileBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filename, err)
	}

	var config RunConfig
	err = yaml.Unmarshal(fileBytes, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML in '%s': %w", filename, err)
	}

	ApplyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ApplyDefaults sets default values for unset configuration sections. The
// HTTP boundary builds configs programmatically and calls this directly.
func ApplyDefaults(cfg *RunConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}

	if cfg.Window.ScheduledStart == "" {
		cfg.Window.ScheduledStart = DefaultScheduledStart
	}
	if cfg.Window.ScheduledEnd == "" {
		cfg.Window.ScheduledEnd = DefaultScheduledEnd
	}
	if cfg.Window.LateThresholdMinutes == 0 {
		cfg.Window.LateThresholdMinutes = DefaultLateThresholdMinutes
	}
	if cfg.Window.EarlyThresholdMinutes == 0 {
		cfg.Window.EarlyThresholdMinutes = DefaultEarlyThresholdMinutes
	}

	// Zero means unset for the anomaly thresholds; rules are disabled by
	// configuring a negative value.
	if cfg.Anomaly.ExcessiveHoursDaily == 0 {
		cfg.Anomaly.ExcessiveHoursDaily = DefaultExcessiveHoursDaily
	}
	if cfg.Anomaly.OutlierMultiplier == 0 {
		cfg.Anomaly.OutlierMultiplier = DefaultOutlierMultiplier
	}
	if cfg.Anomaly.DuplicateTolerance == 0 {
		cfg.Anomaly.DuplicateTolerance = DefaultDuplicateTolerance
	}

	if cfg.Billing.BaseDailyHours == 0 {
		cfg.Billing.BaseDailyHours = DefaultBaseDailyHours
	}
	if cfg.Billing.OvertimeMultiplier == 0 {
		cfg.Billing.OvertimeMultiplier = DefaultOvertimeMultiplier
	}

	for i := range cfg.Sources {
		src := &cfg.Sources[i]
		if len(src.Required) > 0 {
			continue
		}
		switch src.Role {
		case RoleSecondary:
			src.Required = append([]string(nil), DefaultSecondaryRequired...)
		default:
			src.Required = append([]string(nil), DefaultPrimaryRequired...)
		}
	}
}
