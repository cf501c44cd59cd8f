package config

import "fleet-recon/internal/model"

// Define constants for configuration roles, lookup backends and defaults.
const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"

	LookupTypeStatic   = "static"
	LookupTypePostgres = "postgres"
	LookupTypeSQLite   = "sqlite"

	DefaultLogLevel = "info"

	DefaultScheduledStart        = "07:00"
	DefaultScheduledEnd          = "17:00"
	DefaultLateThresholdMinutes  = 15
	DefaultEarlyThresholdMinutes = 30

	DefaultExcessiveHoursDaily = 12.0
	DefaultOutlierMultiplier   = 3.0
	DefaultDuplicateTolerance  = 0.95

	DefaultBaseDailyHours     = 8.0
	DefaultOvertimeMultiplier = 1.5
)

// Default required fields per source role, applied when a source does not
// declare its own.
var (
	DefaultPrimaryRequired   = []string{model.FieldPersonName, model.FieldDate}
	DefaultSecondaryRequired = []string{model.FieldPersonName, model.FieldDate, model.FieldKeyOn}
)

// RunConfig defines the overall structure for a reconciliation run's YAML
// configuration file.
type RunConfig struct {
	// Logging configuration specifies the verbosity level.
	Logging LoggingConfig `yaml:"logging"`
	// Sources lists the input files. At least one primary and one secondary
	// source are required for a reconciliation.
	Sources []SourceConfig `yaml:"sources"`
	// Window is the scheduled shift the telematics events are compared to.
	Window model.ScheduleWindow `yaml:"window"`
	// Anomaly holds the detector thresholds. Unset values get defaults;
	// negative values disable the corresponding rule.
	Anomaly model.AnomalyRules `yaml:"anomaly,omitempty"`
	// Billing configures the overtime split applied during enrichment.
	Billing BillingConfig `yaml:"billing,omitempty"`
	// Lookup optionally configures an external rate source used to fill in
	// missing rates before billing.
	Lookup *LookupConfig `yaml:"lookup,omitempty"`
	// Destination defines the report format and output path.
	Destination DestinationConfig `yaml:"destination"`
	// DateFrom/DateTo optionally restrict the run to records inside the
	// inclusive date range (YYYY-MM-DD).
	DateFrom string `yaml:"dateFrom,omitempty"`
	DateTo   string `yaml:"dateTo,omitempty"`
}

// LoggingConfig holds settings related to logging verbosity.
type LoggingConfig struct {
	// Level defines the logging detail (none, error, warn, info, debug).
	// Defaults to "info".
	Level string `yaml:"level"`
}

// SourceConfig describes one input file and how to interpret it.
type SourceConfig struct {
	// Name identifies the source in logs and the skipped-files report
	// section. Required and unique.
	Name string `yaml:"name"`
	// Role is "primary" (roster / billing lines) or "secondary" (telematics
	// history). Required.
	Role string `yaml:"role"`
	// File is the path to the input file. Environment variables are
	// expanded. Required.
	File string `yaml:"file"`
	// Delimiter overrides delimiter sniffing for CSV/TXT files. Use "\t"
	// for tab.
	Delimiter string `yaml:"delimiter,omitempty"`
	// SheetName selects a workbook sheet by exact name.
	SheetName string `yaml:"sheetName,omitempty"`
	// SheetContains selects the first sheet whose header row contains the
	// given text (case-insensitive). Ignored when SheetName is set.
	SheetContains string `yaml:"sheetContains,omitempty"`
	// Aliases adds source-specific header aliases on top of the built-in
	// table, keyed by canonical field name.
	Aliases map[string][]string `yaml:"aliases,omitempty"`
	// Required lists the canonical fields a row must carry to survive
	// cleaning. Defaults depend on the role.
	Required []string `yaml:"required,omitempty"`
	// Filter is an optional expression (govaluate syntax) evaluated against
	// each raw row before cleaning. Rows evaluating to false are dropped.
	// Example: "hours > 0 && location != 'YARD'"
	Filter string `yaml:"filter,omitempty"`
}

// BillingConfig configures the billing enrichment.
type BillingConfig struct {
	// BaseDailyHours is the boundary beyond which hours bill at the
	// overtime multiplier. Defaults to 8.0.
	BaseDailyHours float64 `yaml:"baseDailyHours,omitempty"`
	// OvertimeMultiplier is the rate multiplier for overtime hours.
	// Defaults to 1.5.
	OvertimeMultiplier float64 `yaml:"overtimeMultiplier,omitempty"`
}

// LookupConfig selects and configures the external rate source.
type LookupConfig struct {
	// Type is "static", "postgres" or "sqlite". Required.
	Type string `yaml:"type"`
	// ConnStr is the PostgreSQL connection string. Environment variables
	// are expanded; falls back to the DB_CREDENTIALS variable or the -db
	// flag when empty. Only for type "postgres".
	ConnStr string `yaml:"connStr,omitempty"`
	// File is the SQLite database path. Only for type "sqlite".
	File string `yaml:"file,omitempty"`
	// Query returns (key, rate) rows. Required for "postgres" and "sqlite".
	Query string `yaml:"query,omitempty"`
	// Rates is the inline rate table for type "static".
	Rates map[string]float64 `yaml:"rates,omitempty"`
}

// DestinationConfig defines where and how the report is written.
type DestinationConfig struct {
	// Format is "json", "csv" or "xlsx". Defaults to "json".
	Format string `yaml:"format,omitempty"`
	// File is the output path. When empty the report goes to stdout.
	// Environment variables are expanded.
	File string `yaml:"file,omitempty"`
}
