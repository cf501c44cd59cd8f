// Package report assembles a reconciliation run into a payload and emits it
// as JSON, CSV or XLSX. The payload always carries the summary and the
// skipped-files diagnostics, even for a fully successful run.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"fleet-recon/internal/logging"
	"fleet-recon/internal/model"
)

// Supported output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ParseFormat normalizes a format name, defaulting to JSON when empty.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported report format '%s' (expected json, csv or xlsx)", s)
	}
}

// Payload is the complete output of one reconciliation run. Slices are never
// nil so the JSON rendering always contains every section.
type Payload struct {
	Records      []model.ReconciledEntry `json:"records"`
	Unmatched    []model.CanonicalRecord `json:"unmatched"`
	Anomalies    []model.AnomalyFlag     `json:"anomalies"`
	Summary      model.ReportSummary     `json:"summary"`
	SkippedFiles []model.FileIssue       `json:"skipped_files"`
}

// Build assembles the payload and computes the summary. Non-finite float
// fields (NaN, Inf) cannot be serialized and are degraded to absent values
// rather than failing the whole report.
func Build(entries []model.ReconciledEntry, unmatched []model.CanonicalRecord, anomalies []model.AnomalyFlag, skipped []model.FileIssue, rowsDropped int) Payload {
	if entries == nil {
		entries = []model.ReconciledEntry{}
	}
	if unmatched == nil {
		unmatched = []model.CanonicalRecord{}
	}
	if anomalies == nil {
		anomalies = []model.AnomalyFlag{}
	}
	if skipped == nil {
		skipped = []model.FileIssue{}
	}

	for i := range entries {
		entries[i].Record.Hours = finiteOrNil(entries[i].Record.Hours)
		entries[i].Record.Rate = finiteOrNil(entries[i].Record.Rate)
		entries[i].BilledAmount = finiteOrNil(entries[i].BilledAmount)
	}
	for i := range unmatched {
		unmatched[i].Hours = finiteOrNil(unmatched[i].Hours)
		unmatched[i].Rate = finiteOrNil(unmatched[i].Rate)
	}
	for i := range anomalies {
		if !isFinite(anomalies[i].Score) {
			anomalies[i].Score = 0
		}
	}

	summary := model.ReportSummary{
		StatusCounts:       make(map[model.Status]int, len(model.PrimaryStatuses)),
		TotalPrimary:       len(entries),
		UnmatchedSecondary: len(unmatched),
		AnomalyCount:       len(anomalies),
		RowsDropped:        rowsDropped,
	}
	for _, s := range model.PrimaryStatuses {
		summary.StatusCounts[s] = 0
	}
	for _, e := range entries {
		summary.StatusCounts[e.Status]++
		if e.Record.Hours != nil {
			summary.TotalHours += *e.Record.Hours
		}
		if e.BilledAmount != nil {
			summary.TotalBilled += *e.BilledAmount
		}
		if e.Record.Date != "" {
			if summary.DateFrom == "" || e.Record.Date < summary.DateFrom {
				summary.DateFrom = e.Record.Date
			}
			if e.Record.Date > summary.DateTo {
				summary.DateTo = e.Record.Date
			}
		}
	}

	return Payload{
		Records:      entries,
		Unmatched:    unmatched,
		Anomalies:    anomalies,
		Summary:      summary,
		SkippedFiles: skipped,
	}
}

// Emit renders the payload in the requested format.
func Emit(p Payload, format string) ([]byte, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatJSON:
		return emitJSON(p)
	case FormatCSV:
		return emitCSV(p)
	default:
		return emitXLSX(p)
	}
}

// WriteFile renders the payload and writes it to path, creating parent
// directories as needed.
func WriteFile(p Payload, format, path string) error {
	data, err := Emit(p, format)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("report: failed to create directory for '%s': %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("report: failed to write '%s': %w", path, err)
	}
	logging.Logf(logging.Info, "Report written to %s (%s, %d bytes)", path, format, len(data))
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOrNil(v *float64) *float64 {
	if v == nil || isFinite(*v) {
		return v
	}
	return nil
}
