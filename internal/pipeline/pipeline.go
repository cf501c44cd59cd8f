// Package pipeline orchestrates one reconciliation run: read every
// configured source, filter and clean the rows, reconcile primary against
// secondary, enrich with billing, detect anomalies and assemble the report
// payload. This is also the error propagation boundary: a failure reading or
// parsing one file skips that file and is recorded in the payload's
// skipped-files section instead of aborting the run.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"

	"fleet-recon/internal/anomaly"
	"fleet-recon/internal/cleaner"
	"fleet-recon/internal/config"
	"fleet-recon/internal/io"
	"fleet-recon/internal/logging"
	"fleet-recon/internal/model"
	"fleet-recon/internal/reconcile"
	"fleet-recon/internal/report"
	"fleet-recon/internal/schema"
	"fleet-recon/internal/util"
)

// Factory variables allow overriding dependencies for testing.
var (
	readTableFunc     = io.ReadTable
	anomalyDetectFunc = anomaly.Detect
)

// Run executes one reconciliation against the given configuration. The rate
// source may be nil when no lookup is configured. An error is returned only
// for run-level problems (a malformed window); per-file failures land in the
// payload's skipped-files section.
func Run(ctx context.Context, cfg *config.RunConfig, rates reconcile.RateSource) (report.Payload, error) {
	var primary, secondary []model.CanonicalRecord
	var skipped []model.FileIssue
	rowsDropped := 0

	for _, src := range cfg.Sources {
		if err := ctx.Err(); err != nil {
			return report.Payload{}, fmt.Errorf("run cancelled: %w", err)
		}

		records, dropped, err := loadSource(src)
		if err != nil {
			logging.Logf(logging.Error, "Skipping source '%s' (%s): %v", src.Name, src.File, err)
			skipped = append(skipped, model.FileIssue{File: src.File, Error: err.Error()})
			continue
		}
		rowsDropped += dropped

		if strings.EqualFold(src.Role, config.RoleSecondary) {
			secondary = append(secondary, records...)
		} else {
			primary = append(primary, records...)
		}
	}

	reconcile.SortRecords(primary)
	reconcile.SortRecords(secondary)

	primary = filterDateRange(primary, cfg.DateFrom, cfg.DateTo)
	secondary = filterDateRange(secondary, cfg.DateFrom, cfg.DateTo)

	entries, unmatched, err := reconcile.Reconcile(primary, secondary, cfg.Window)
	if err != nil {
		return report.Payload{}, err
	}

	reconcile.ApplyBilling(entries, rates, cfg.Billing.BaseDailyHours, cfg.Billing.OvertimeMultiplier)

	flags := anomalyDetectFunc(primary, cfg.Anomaly)

	payload := report.Build(entries, unmatched, flags, skipped, rowsDropped)
	logging.Logf(logging.Info, "Run complete: %d reconciled, %d unmatched, %d anomalies, %d rows dropped, %d files skipped",
		len(entries), len(unmatched), len(flags), rowsDropped, len(skipped))
	return payload, nil
}

// loadSource reads, filters and cleans one configured source. The returned
// drop count covers both filter rejections and cleaning drops.
func loadSource(src config.SourceConfig) ([]model.CanonicalRecord, int, error) {
	path := util.ExpandEnvUniversal(src.File)
	opts := io.Options{
		SheetName:     src.SheetName,
		SheetContains: src.SheetContains,
	}
	if src.Delimiter != "" {
		opts.Delimiter = []rune(src.Delimiter)[0]
	}

	table, err := readTableFunc(path, opts)
	if err != nil {
		return nil, 0, err
	}
	logging.Logf(logging.Debug, "Source '%s': read %d raw rows from %s", src.Name, len(table.Rows), path)

	headerMap := sourceHeaderMap(table.Headers, src.Aliases)

	rows := table.Rows
	filterDropped := 0
	if src.Filter != "" {
		rows, filterDropped, err = applyFilter(rows, headerMap, src.Filter)
		if err != nil {
			return nil, 0, err
		}
	}

	records, stats := cleaner.Clean(rows, table.Headers, headerMap, src.Required, src.Name)
	logging.Logf(logging.Info, "Source '%s': %d rows in, %d kept, %d dropped, %d filtered",
		src.Name, stats.Input+filterDropped, stats.Kept, stats.Dropped, filterDropped)
	return records, stats.Dropped + filterDropped, nil
}

// sourceHeaderMap maps the file's headers, in file order, through the
// built-in alias table merged with any source-specific aliases. Config-owned
// alias slices are copied, never appended into.
func sourceHeaderMap(headers []string, extra map[string][]string) map[string]string {
	aliases := schema.DefaultAliases()
	for canonical, names := range extra {
		merged := make([]string, 0, len(names)+len(aliases[canonical]))
		merged = append(merged, names...)
		merged = append(merged, aliases[canonical]...)
		aliases[canonical] = merged
	}
	return schema.MapHeaders(headers, aliases)
}

// applyFilter evaluates the row filter expression against each raw row.
// Rows that evaluate to false, fail to evaluate, or yield a non-boolean are
// dropped and counted. Parameters are the canonical field names; values that
// parse as numbers are passed numerically so comparisons work.
func applyFilter(rows []model.RawRow, headerMap map[string]string, filter string) ([]model.RawRow, int, error) {
	expr, err := govaluate.NewEvaluableExpression(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid filter expression '%s': %w", filter, err)
	}

	kept := make([]model.RawRow, 0, len(rows))
	dropped := 0
	for i, row := range rows {
		params := make(map[string]interface{}, len(row))
		for k, v := range row {
			name := headerMap[k]
			if name == "" {
				name = strings.ToLower(strings.TrimSpace(k))
			}
			params[name] = coerceParam(v)
		}

		result, evalErr := expr.Evaluate(params)
		if evalErr != nil {
			logging.Logf(logging.Warning, "Filter failed on row %d: %v. Dropping row.", i+1, evalErr)
			dropped++
			continue
		}
		keep, isBool := result.(bool)
		if !isBool {
			logging.Logf(logging.Warning, "Filter returned non-boolean %T on row %d. Dropping row.", result, i+1)
			dropped++
			continue
		}
		if keep {
			kept = append(kept, row)
		} else {
			dropped++
		}
	}
	return kept, dropped, nil
}

func coerceParam(v string) interface{} {
	trimmed := strings.TrimSpace(v)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return trimmed
}

// filterDateRange keeps records inside the inclusive bounds. Empty bounds
// are open; records without a date are kept.
func filterDateRange(records []model.CanonicalRecord, from, to string) []model.CanonicalRecord {
	if from == "" && to == "" {
		return records
	}
	kept := records[:0]
	for _, rec := range records {
		if rec.Date != "" {
			if from != "" && rec.Date < from {
				continue
			}
			if to != "" && rec.Date > to {
				continue
			}
		}
		kept = append(kept, rec)
	}
	return kept
}
