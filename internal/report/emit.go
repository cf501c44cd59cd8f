package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"fleet-recon/internal/model"
)

// recordHeader is the fixed column order for tabular renderings. It never
// depends on which fields happen to be populated in a given run.
var recordHeader = []string{
	"source", "row", "entity_id", "person_name", "normalized_name", "date",
	"location", "category", "hours", "rate", "key_on", "key_off",
	"status", "status_reason", "billed_amount",
}

func emitJSON(p Payload) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("report: failed to marshal JSON payload: %w", err)
	}
	return append(data, '\n'), nil
}

// emitCSV renders the flat record table: one row per reconciled entry
// followed by one row per unmatched secondary record. The summary and
// anomaly sections only exist in the JSON and XLSX renderings.
func emitCSV(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(recordHeader); err != nil {
		return nil, fmt.Errorf("report: failed to write CSV header: %w", err)
	}
	for _, e := range p.Records {
		if err := w.Write(entryRow(e)); err != nil {
			return nil, fmt.Errorf("report: failed to write CSV row: %w", err)
		}
	}
	for _, rec := range p.Unmatched {
		e := model.ReconciledEntry{
			Record: rec,
			KeyOn:  rec.KeyOn,
			KeyOff: rec.KeyOff,
			Status: model.StatusUnmatched,
		}
		if err := w.Write(entryRow(e)); err != nil {
			return nil, fmt.Errorf("report: failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("report: CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func entryRow(e model.ReconciledEntry) []string {
	r := e.Record
	return []string{
		r.Source,
		strconv.Itoa(r.Row),
		r.EntityID,
		r.PersonName,
		r.NormalizedName,
		r.Date,
		r.Location,
		r.Category,
		floatCell(r.Hours),
		floatCell(r.Rate),
		e.KeyOn,
		e.KeyOff,
		string(e.Status),
		e.StatusReason,
		floatCell(e.BilledAmount),
	}
}

// floatCell renders an optional float. Absent or non-finite values become an
// empty cell rather than failing the row.
func floatCell(v *float64) string {
	if v == nil || !isFinite(*v) {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func emitXLSX(p Payload) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const recordsSheet = "Reconciliation"
	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return nil, fmt.Errorf("report: failed to name records sheet: %w", err)
	}

	rows := make([][]interface{}, 0, len(p.Records)+len(p.Unmatched))
	for _, e := range p.Records {
		rows = append(rows, toInterfaceRow(entryRow(e)))
	}
	for _, rec := range p.Unmatched {
		e := model.ReconciledEntry{Record: rec, KeyOn: rec.KeyOn, KeyOff: rec.KeyOff, Status: model.StatusUnmatched}
		rows = append(rows, toInterfaceRow(entryRow(e)))
	}
	if err := writeSheet(f, recordsSheet, toInterfaceRow(recordHeader), rows); err != nil {
		return nil, err
	}

	anomalyRows := make([][]interface{}, 0, len(p.Anomalies))
	for _, a := range p.Anomalies {
		refs := ""
		for i, r := range a.Records {
			if i > 0 {
				refs += "; "
			}
			refs += fmt.Sprintf("%s:%d", r.Source, r.Row)
		}
		anomalyRows = append(anomalyRows, []interface{}{
			string(a.Type), string(a.Severity), a.Key, a.Date, a.Score, a.Detail, refs,
		})
	}
	if err := addSheet(f, "Anomalies",
		[]interface{}{"type", "severity", "key", "date", "score", "detail", "records"},
		anomalyRows); err != nil {
		return nil, err
	}

	s := p.Summary
	summaryRows := [][]interface{}{
		{"total_primary", s.TotalPrimary},
		{"unmatched_secondary", s.UnmatchedSecondary},
		{"total_hours", s.TotalHours},
		{"total_billed", s.TotalBilled},
		{"anomaly_count", s.AnomalyCount},
		{"rows_dropped", s.RowsDropped},
		{"date_from", s.DateFrom},
		{"date_to", s.DateTo},
	}
	for _, st := range model.PrimaryStatuses {
		summaryRows = append(summaryRows, []interface{}{"status_" + string(st), s.StatusCounts[st]})
	}
	for _, issue := range p.SkippedFiles {
		summaryRows = append(summaryRows, []interface{}{"skipped_file", issue.File + ": " + issue.Error})
	}
	if err := addSheet(f, "Summary", []interface{}{"metric", "value"}, summaryRows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("report: failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func addSheet(f *excelize.File, name string, header []interface{}, rows [][]interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("report: failed to create sheet '%s': %w", name, err)
	}
	return writeSheet(f, name, header, rows)
}

func writeSheet(f *excelize.File, name string, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("report: failed to write header of sheet '%s': %w", name, err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("report: failed to address row %d of sheet '%s': %w", i+2, name, err)
		}
		if err := f.SetSheetRow(name, cell, &rows[i]); err != nil {
			return fmt.Errorf("report: failed to write row %d of sheet '%s': %w", i+2, name, err)
		}
	}
	return nil
}

func toInterfaceRow(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
