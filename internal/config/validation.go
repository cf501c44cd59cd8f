package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Knetic/govaluate"

	"fleet-recon/internal/logging"
	"fleet-recon/internal/reconcile"
	"fleet-recon/internal/report"
)

// Define known valid enum values for configuration fields.
var (
	knownLogLevels   = []string{"none", "error", "warn", "warning", "info", "debug"}
	knownRoles       = []string{RolePrimary, RoleSecondary}
	knownLookupTypes = []string{LookupTypeStatic, LookupTypePostgres, LookupTypeSQLite}
)

// isValidEnumValue checks if a value is present in a list of allowed string values (case-insensitive).
func isValidEnumValue(value string, allowedValues []string) bool {
	lowerValue := strings.ToLower(value)
	for _, allowed := range allowedValues {
		if lowerValue == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// ValidateConfig performs comprehensive validation of the entire run configuration.
func ValidateConfig(cfg *RunConfig) error {
	var allErrors []string

	if !isValidEnumValue(cfg.Logging.Level, knownLogLevels) {
		allErrors = append(allErrors, fmt.Sprintf("- Config.Logging.Level: invalid log level '%s', must be one of %v", cfg.Logging.Level, knownLogLevels))
	}

	if len(cfg.Sources) == 0 {
		allErrors = append(allErrors, "- Config.Sources: at least one source is required")
	}
	seenNames := make(map[string]bool)
	roleCounts := make(map[string]int)
	for i, src := range cfg.Sources {
		prefix := fmt.Sprintf("Config.Sources[%d]", i)
		if src.Name == "" {
			allErrors = append(allErrors, fmt.Sprintf("- %s.Name: is required", prefix))
		} else if seenNames[src.Name] {
			allErrors = append(allErrors, fmt.Sprintf("- %s.Name: duplicate source name '%s'", prefix, src.Name))
		}
		seenNames[src.Name] = true

		if !isValidEnumValue(src.Role, knownRoles) {
			allErrors = append(allErrors, fmt.Sprintf("- %s.Role: invalid role '%s', must be one of %v", prefix, src.Role, knownRoles))
		} else {
			roleCounts[strings.ToLower(src.Role)]++
		}
		if src.File == "" {
			allErrors = append(allErrors, fmt.Sprintf("- %s.File: is required", prefix))
		}
		if src.Filter != "" {
			if _, err := govaluate.NewEvaluableExpression(src.Filter); err != nil {
				allErrors = append(allErrors, fmt.Sprintf("- %s.Filter: invalid expression syntax: %v", prefix, err))
			}
		}
	}
	if len(cfg.Sources) > 0 && roleCounts[RolePrimary] == 0 {
		allErrors = append(allErrors, "- Config.Sources: at least one primary source is required")
	}

	if err := reconcile.ValidateWindow(cfg.Window); err != nil {
		allErrors = append(allErrors, fmt.Sprintf("- Config.Window: %v", err))
	}

	if cfg.Billing.BaseDailyHours < 0 {
		allErrors = append(allErrors, "- Config.Billing.BaseDailyHours: must not be negative")
	}
	if cfg.Billing.OvertimeMultiplier < 0 {
		allErrors = append(allErrors, "- Config.Billing.OvertimeMultiplier: must not be negative")
	}

	if cfg.Lookup != nil {
		allErrors = append(allErrors, validateLookupConfig("Config.Lookup", cfg.Lookup)...)
	}

	if _, err := report.ParseFormat(cfg.Destination.Format); err != nil {
		allErrors = append(allErrors, fmt.Sprintf("- Config.Destination.Format: %v", err))
	}

	allErrors = append(allErrors, validateDateRange("Config", cfg.DateFrom, cfg.DateTo)...)

	if len(allErrors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(allErrors, "\n"))
	}
	logging.Logf(logging.Debug, "Configuration validation successful.")
	return nil
}

// validateLookupConfig validates the Lookup section of the configuration.
func validateLookupConfig(prefix string, cfg *LookupConfig) []string {
	var errs []string
	if !isValidEnumValue(cfg.Type, knownLookupTypes) {
		errs = append(errs, fmt.Sprintf("- %s.Type: invalid lookup type '%s', must be one of %v", prefix, cfg.Type, knownLookupTypes))
		return errs
	}
	switch strings.ToLower(cfg.Type) {
	case LookupTypeStatic:
		if len(cfg.Rates) == 0 {
			errs = append(errs, fmt.Sprintf("- %s.Rates: is required for static lookup", prefix))
		}
	case LookupTypePostgres:
		if cfg.Query == "" {
			errs = append(errs, fmt.Sprintf("- %s.Query: is required for postgres lookup", prefix))
		}
	case LookupTypeSQLite:
		if cfg.File == "" {
			errs = append(errs, fmt.Sprintf("- %s.File: is required for sqlite lookup", prefix))
		}
		if cfg.Query == "" {
			errs = append(errs, fmt.Sprintf("- %s.Query: is required for sqlite lookup", prefix))
		}
	}
	return errs
}

// validateDateRange checks the optional inclusive date range bounds.
func validateDateRange(prefix, from, to string) []string {
	var errs []string
	parse := func(field, value string) (time.Time, bool) {
		if value == "" {
			return time.Time{}, false
		}
		t, err := time.Parse("2006-01-02", value)
		if err != nil {
			errs = append(errs, fmt.Sprintf("- %s.%s: invalid date '%s', expected YYYY-MM-DD", prefix, field, value))
			return time.Time{}, false
		}
		return t, true
	}
	fromT, fromOK := parse("DateFrom", from)
	toT, toOK := parse("DateTo", to)
	if fromOK && toOK && toT.Before(fromT) {
		errs = append(errs, fmt.Sprintf("- %s.DateTo: '%s' is before DateFrom '%s'", prefix, to, from))
	}
	return errs
}
