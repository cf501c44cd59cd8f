// Package cleaner turns raw rows into validated CanonicalRecords. It trims
// and coerces values, treats the usual null spellings as absent, and drops
// rows that fail the caller's required-field contract. Dropped rows are
// counted, never partially emitted.
package cleaner

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"fleet-recon/internal/logging"
	"fleet-recon/internal/model"
	"fleet-recon/internal/names"
)

// Stats reports what happened to a batch of rows. Dropped rows are a
// diagnostic, not an error; the batch boundary aggregates them per run.
type Stats struct {
	Input   int
	Kept    int
	Dropped int
}

// hoursMin/hoursMax bound the sanity check for required hours values.
// A shift of exactly 24 hours is suspicious but possible; zero or negative
// hours are not.
const (
	hoursMin = 0.0
	hoursMax = 24.0
)

// absentValues are cell contents treated as "no value" (case-insensitive).
var absentValues = map[string]struct{}{
	"":     {},
	"null": {},
	"n/a":  {},
	"na":   {},
	"none": {},
	"nan":  {},
}

// dateLayouts are tried in order when normalizing date cells.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"2006-01-02 15:04:05",
	"1/2/2006 15:04",
}

// Clean maps each raw row through headerMap onto the canonical field set and
// validates it. Rows missing any required field, or whose required hours fall
// outside (0, 24], are dropped and counted. Output order matches input order;
// the same inputs always produce the same outputs.
//
// headers gives the raw column names in file order; when two raw columns
// collapse to the same canonical field, the earlier column's value wins. An
// empty headers slice falls back to the row's keys in sorted order.
//
// source names the originating file; it is recorded on every record along
// with the 1-based data row index.
func Clean(rows []model.RawRow, headers []string, headerMap map[string]string, required []string, source string) ([]model.CanonicalRecord, Stats) {
	stats := Stats{Input: len(rows)}
	records := make([]model.CanonicalRecord, 0, len(rows))

	requiredSet := make(map[string]bool, len(required))
	for _, f := range required {
		requiredSet[strings.ToLower(strings.TrimSpace(f))] = true
	}

	for i, row := range rows {
		rec, ok := cleanRow(row, headers, headerMap, requiredSet)
		if !ok {
			stats.Dropped++
			logging.Logf(logging.Debug, "Dropped row %d of '%s' (missing/invalid required fields)", i+1, source)
			continue
		}
		rec.Source = source
		rec.Row = i + 1
		records = append(records, rec)
	}

	stats.Kept = len(records)
	if stats.Dropped > 0 {
		logging.Logf(logging.Info, "Cleaned '%s': kept %d of %d rows (%d dropped)", source, stats.Kept, stats.Input, stats.Dropped)
	}
	return records, stats
}

func cleanRow(row model.RawRow, headers []string, headerMap map[string]string, required map[string]bool) (model.CanonicalRecord, bool) {
	if len(headers) == 0 {
		headers = make([]string, 0, len(row))
		for k := range row {
			headers = append(headers, k)
		}
		sort.Strings(headers)
	}

	fields := make(map[string]string, len(row))
	for _, rawKey := range headers {
		rawVal, present := row[rawKey]
		if !present {
			continue
		}
		key, ok := headerMap[rawKey]
		if !ok {
			key = strings.ToLower(strings.TrimSpace(rawKey))
		}
		val := strings.TrimSpace(rawVal)
		if isAbsent(val) {
			continue
		}
		// First non-absent column wins if two raw columns map to one field.
		if _, exists := fields[key]; !exists {
			fields[key] = val
		}
	}

	var rec model.CanonicalRecord
	rec.EntityID = fields[model.FieldEntityID]
	rec.PersonName = fields[model.FieldPersonName]
	rec.NormalizedName = names.Normalize(rec.PersonName)
	rec.Date = normalizeDate(fields[model.FieldDate])
	rec.Location = fields[model.FieldLocation]
	rec.Category = fields[model.FieldCategory]
	rec.KeyOn = fields[model.FieldKeyOn]
	rec.KeyOff = fields[model.FieldKeyOff]

	if v, ok := parseNumeric(fields[model.FieldHours]); ok {
		rec.Hours = &v
	}
	if v, ok := parseNumeric(fields[model.FieldRate]); ok {
		rec.Rate = &v
	}

	for field := range required {
		if !hasField(rec, field) {
			return model.CanonicalRecord{}, false
		}
	}
	if required[model.FieldHours] && rec.Hours != nil && (*rec.Hours <= hoursMin || *rec.Hours > hoursMax) {
		return model.CanonicalRecord{}, false
	}

	return rec, true
}

func hasField(rec model.CanonicalRecord, field string) bool {
	switch field {
	case model.FieldEntityID:
		return rec.EntityID != ""
	case model.FieldPersonName:
		// A placeholder name normalizes to "", which is "no identity".
		return rec.NormalizedName != ""
	case model.FieldDate:
		return rec.Date != ""
	case model.FieldLocation:
		return rec.Location != ""
	case model.FieldCategory:
		return rec.Category != ""
	case model.FieldHours:
		return rec.Hours != nil
	case model.FieldRate:
		return rec.Rate != nil
	case model.FieldKeyOn:
		return rec.KeyOn != ""
	case model.FieldKeyOff:
		return rec.KeyOff != ""
	default:
		// Unknown required field can never be satisfied; drop the row so the
		// misconfiguration is visible in the drop count rather than silent.
		return false
	}
}

func isAbsent(val string) bool {
	_, ok := absentValues[strings.ToLower(val)]
	return ok
}

// parseNumeric coerces a numeric-looking cell to a float, stripping thousand
// separators and a leading currency sign. Returns false for anything else.
func parseNumeric(val string) (float64, bool) {
	if val == "" {
		return 0, false
	}
	s := strings.TrimSpace(val)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// normalizeDate reduces the date spellings seen in the wild to YYYY-MM-DD.
// Unparseable values pass through trimmed so the reconciler's exact-match
// join still behaves deterministically.
func normalizeDate(val string) string {
	if val == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, val); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return val
}
