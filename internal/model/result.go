package model

// Status classifies a reconciled primary record, or marks a secondary record
// that never matched a primary one.
type Status string

const (
	StatusOnTime    Status = "on_time"
	StatusLate      Status = "late"
	StatusEarlyEnd  Status = "early_end"
	StatusNotOnJob  Status = "not_on_job"
	StatusUnmatched Status = "unmatched"
)

// PrimaryStatuses lists the statuses a primary record can receive, in the
// fixed order reports use. Every primary record lands in exactly one of them.
var PrimaryStatuses = []Status{StatusOnTime, StatusLate, StatusEarlyEnd, StatusNotOnJob}

// ReconciledEntry is a primary-source record enriched with the matched
// secondary source's key-on/key-off extremes and a computed status.
type ReconciledEntry struct {
	Record       CanonicalRecord `json:"record"`
	KeyOn        string          `json:"key_on,omitempty"`
	KeyOff       string          `json:"key_off,omitempty"`
	Status       Status          `json:"status"`
	StatusReason string          `json:"status_reason"`
	BilledAmount *float64        `json:"billed_amount,omitempty"`
}

// ScheduleWindow is the scheduled shift against which telematics events are
// compared. Times are wall-clock "HH:MM" strings.
type ScheduleWindow struct {
	ScheduledStart        string `yaml:"scheduledStart" json:"scheduled_start"`
	ScheduledEnd          string `yaml:"scheduledEnd" json:"scheduled_end"`
	LateThresholdMinutes  int    `yaml:"lateThresholdMinutes" json:"late_threshold_minutes"`
	EarlyThresholdMinutes int    `yaml:"earlyThresholdMinutes" json:"early_threshold_minutes"`
}

// AnomalyRules holds the detector thresholds. All fields are configuration
// inputs; zero values are replaced with defaults at config load.
type AnomalyRules struct {
	ExcessiveHoursDaily float64 `yaml:"excessiveHoursDaily" json:"excessive_hours_daily"`
	OutlierMultiplier   float64 `yaml:"outlierMultiplier" json:"outlier_multiplier"`
	DuplicateTolerance  float64 `yaml:"duplicateTolerance" json:"duplicate_tolerance"`
}

// AnomalyType tags the kind of anomaly detected.
type AnomalyType string

const (
	AnomalyExcessiveHours     AnomalyType = "excessive_hours"
	AnomalyOutlierRate        AnomalyType = "outlier_rate"
	AnomalyPotentialDuplicate AnomalyType = "potential_duplicate"
)

// Severity grades an anomaly flag.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AnomalyFlag references one record (or a pair, for duplicates) that tripped
// a detector rule. Flags are report artifacts recomputed every run.
type AnomalyFlag struct {
	Type     AnomalyType `json:"type"`
	Severity Severity    `json:"severity"`
	Records  []RecordRef `json:"records"`
	Key      string      `json:"key,omitempty"`
	Date     string      `json:"date,omitempty"`
	Score    float64     `json:"score"`
	Detail   string      `json:"detail"`
}

// ReportSummary holds the aggregates derived from a reconciliation run.
// It is recomputed every run and never mutated in place.
type ReportSummary struct {
	TotalPrimary       int            `json:"total_primary"`
	StatusCounts       map[Status]int `json:"status_counts"`
	UnmatchedSecondary int            `json:"unmatched_secondary"`
	TotalHours         float64        `json:"total_hours"`
	TotalBilled        float64        `json:"total_billed"`
	AnomalyCount       int            `json:"anomaly_count"`
	DateFrom           string         `json:"date_from,omitempty"`
	DateTo             string         `json:"date_to,omitempty"`
	RowsDropped        int            `json:"rows_dropped"`
}

// FileIssue records a per-file failure that the batch boundary caught and
// skipped. These always appear in the emitted report, even on success.
type FileIssue struct {
	File  string `json:"file"`
	Error string `json:"error"`
}
