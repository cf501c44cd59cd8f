// Package reconcile joins a primary roster (asset list / billing lines)
// against secondary telematics history on identity key and date, and
// classifies each primary record's attendance against a schedule window.
// Everything here is pure: no I/O, no global state.
package reconcile

import (
	"fmt"
	"sort"
	"time"

	"fleet-recon/internal/model"
)

// Error marks a programmer-error condition such as a malformed schedule
// window. It should not occur with validated configuration.
type Error struct {
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

func errorf(format string, v ...interface{}) *Error {
	return &Error{msg: fmt.Sprintf(format, v...)}
}

// clockLayouts cover the time spellings telematics exports use.
var clockLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "15.04"}

// parseClock converts a wall-clock string to seconds since midnight.
func parseClock(s string) (int, bool) {
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*3600 + t.Minute()*60 + t.Second(), true
		}
	}
	return 0, false
}

// presence aggregates all secondary events for one (identity, date): the
// earliest key-on and the latest key-off, chosen deterministically no matter
// the input order of events.
type presence struct {
	keyOn     string
	keyOnSec  int
	hasKeyOn  bool
	keyOff    string
	keyOffSec int
	hasKeyOff bool
}

func indexKey(identity, date string) string {
	return identity + "\x00" + date
}

// Reconcile classifies every primary record against the secondary history.
// Each primary record yields exactly one entry with status OnTime, Late,
// EarlyEnd or NotOnJob; Late takes precedence over EarlyEnd when both would
// apply, and matched history with no parseable key events counts as NotOnJob
// rather than OnTime. Secondary records whose identity never appears in
// primary for the same date are returned separately as unmatched.
//
// Minutes in status reasons are the floor of elapsed minutes.
func Reconcile(primary, secondary []model.CanonicalRecord, window model.ScheduleWindow) ([]model.ReconciledEntry, []model.CanonicalRecord, error) {
	startSec, endSec, err := validateWindow(window)
	if err != nil {
		return nil, nil, err
	}

	index := make(map[string]*presence)
	for _, rec := range secondary {
		key := indexKey(rec.Key(), rec.Date)
		p := index[key]
		if p == nil {
			p = &presence{}
			index[key] = p
		}
		if sec, ok := parseClock(rec.KeyOn); ok {
			if !p.hasKeyOn || sec < p.keyOnSec {
				p.keyOn, p.keyOnSec, p.hasKeyOn = rec.KeyOn, sec, true
			}
		}
		if sec, ok := parseClock(rec.KeyOff); ok {
			if !p.hasKeyOff || sec > p.keyOffSec {
				p.keyOff, p.keyOffSec, p.hasKeyOff = rec.KeyOff, sec, true
			}
		}
	}

	lateCutoff := startSec + window.LateThresholdMinutes*60
	earlyCutoff := endSec - window.EarlyThresholdMinutes*60

	primaryKeys := make(map[string]bool, len(primary))
	entries := make([]model.ReconciledEntry, 0, len(primary))
	for _, rec := range primary {
		key := indexKey(rec.Key(), rec.Date)
		primaryKeys[key] = true

		entry := model.ReconciledEntry{Record: rec}
		p, found := index[key]
		switch {
		case !found:
			entry.Status = model.StatusNotOnJob
			entry.StatusReason = "not in driving history"
		case !p.hasKeyOn && !p.hasKeyOff:
			// Matched history whose clocks never parsed proves nothing;
			// don't report it as a confirmed on-time attendance.
			entry.Status = model.StatusNotOnJob
			entry.StatusReason = "driving history has no parseable key events"
		case p.hasKeyOn && p.keyOnSec > lateCutoff:
			entry.KeyOn, entry.KeyOff = p.keyOn, p.keyOff
			minutesLate := (p.keyOnSec - startSec) / 60
			entry.Status = model.StatusLate
			entry.StatusReason = fmt.Sprintf("key-on %s is %d minutes after scheduled start %s", p.keyOn, minutesLate, window.ScheduledStart)
		case p.hasKeyOff && p.keyOffSec < earlyCutoff:
			entry.KeyOn, entry.KeyOff = p.keyOn, p.keyOff
			minutesEarly := (endSec - p.keyOffSec) / 60
			entry.Status = model.StatusEarlyEnd
			entry.StatusReason = fmt.Sprintf("key-off %s is %d minutes before scheduled end %s", p.keyOff, minutesEarly, window.ScheduledEnd)
		default:
			entry.KeyOn, entry.KeyOff = p.keyOn, p.keyOff
			entry.Status = model.StatusOnTime
			entry.StatusReason = "within scheduled window"
		}
		entries = append(entries, entry)
	}

	var unmatched []model.CanonicalRecord
	for _, rec := range secondary {
		if !primaryKeys[indexKey(rec.Key(), rec.Date)] {
			unmatched = append(unmatched, rec)
		}
	}

	return entries, unmatched, nil
}

// ValidateWindow checks a schedule window without running a reconciliation.
// Config validation uses it so a malformed window is rejected at load time.
func ValidateWindow(window model.ScheduleWindow) error {
	_, _, err := validateWindow(window)
	return err
}

func validateWindow(window model.ScheduleWindow) (startSec, endSec int, err error) {
	startSec, ok := parseClock(window.ScheduledStart)
	if !ok {
		return 0, 0, errorf("schedule window: cannot parse scheduled start '%s'", window.ScheduledStart)
	}
	endSec, ok = parseClock(window.ScheduledEnd)
	if !ok {
		return 0, 0, errorf("schedule window: cannot parse scheduled end '%s'", window.ScheduledEnd)
	}
	if endSec <= startSec {
		return 0, 0, errorf("schedule window: scheduled end %s is not after start %s", window.ScheduledEnd, window.ScheduledStart)
	}
	if window.LateThresholdMinutes < 0 || window.EarlyThresholdMinutes < 0 {
		return 0, 0, errorf("schedule window: thresholds must be non-negative")
	}
	return startSec, endSec, nil
}

// RateSource supplies hourly rates by identity key. Lookup stores satisfy it.
type RateSource interface {
	Rate(key string) (float64, bool)
}

// ApplyBilling fills in BilledAmount for entries that have hours and a rate.
// The record's own rate wins; otherwise the rate source is consulted by
// identity key. Hours beyond baseDailyHours bill at the overtime multiplier.
// Entries without hours or any rate are left unbilled.
func ApplyBilling(entries []model.ReconciledEntry, rates RateSource, baseDailyHours, overtimeMultiplier float64) {
	for i := range entries {
		rec := entries[i].Record
		if rec.Hours == nil {
			continue
		}
		var rate float64
		switch {
		case rec.Rate != nil:
			rate = *rec.Rate
		case rates != nil:
			r, ok := rates.Rate(rec.Key())
			if !ok {
				continue
			}
			rate = r
		default:
			continue
		}

		hours := *rec.Hours
		billed := hours * rate
		if baseDailyHours > 0 && hours > baseDailyHours {
			billed = baseDailyHours*rate + (hours-baseDailyHours)*rate*overtimeMultiplier
		}
		entries[i].BilledAmount = &billed
	}
}

// SortRecords orders records by source filename then row index. Callers that
// read independent files (possibly concurrently) use it to restore the
// deterministic order reconciliation depends on.
func SortRecords(records []model.CanonicalRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Source != records[j].Source {
			return records[i].Source < records[j].Source
		}
		return records[i].Row < records[j].Row
	})
}
