package reconcile

import (
	"strings"
	"testing"

	"fleet-recon/internal/model"
)

var testWindow = model.ScheduleWindow{
	ScheduledStart:        "07:00",
	ScheduledEnd:          "17:00",
	LateThresholdMinutes:  15,
	EarlyThresholdMinutes: 30,
}

func primaryRec(name, date string) model.CanonicalRecord {
	return model.CanonicalRecord{
		Source:         "assets.xlsx",
		PersonName:     name,
		NormalizedName: strings.ToLower(name),
		Date:           date,
	}
}

func secondaryRec(name, date, keyOn, keyOff string) model.CanonicalRecord {
	return model.CanonicalRecord{
		Source:         "history.csv",
		PersonName:     name,
		NormalizedName: strings.ToLower(name),
		Date:           date,
		KeyOn:          keyOn,
		KeyOff:         keyOff,
	}
}

func TestReconcileStatuses(t *testing.T) {
	testCases := []struct {
		name       string
		primary    []model.CanonicalRecord
		secondary  []model.CanonicalRecord
		wantStatus model.Status
		wantReason string
	}{
		{
			// Key-on 20 minutes after start with a 15 minute threshold.
			name:       "Late with exact minutes",
			primary:    []model.CanonicalRecord{primaryRec("john smith", "2025-05-18")},
			secondary:  []model.CanonicalRecord{secondaryRec("john smith", "2025-05-18", "07:20", "17:00")},
			wantStatus: model.StatusLate,
			wantReason: "20 minutes",
		},
		{
			// Key-on inside the threshold, key-off 40 minutes before end.
			name:       "Early end with exact minutes",
			primary:    []model.CanonicalRecord{primaryRec("john smith", "2025-05-18")},
			secondary:  []model.CanonicalRecord{secondaryRec("john smith", "2025-05-18", "06:55", "16:20")},
			wantStatus: model.StatusEarlyEnd,
			wantReason: "40 minutes",
		},
		{
			name:       "Not on job",
			primary:    []model.CanonicalRecord{primaryRec("jane doe", "2025-05-18")},
			secondary:  nil,
			wantStatus: model.StatusNotOnJob,
			wantReason: "not in driving history",
		},
		{
			name:       "On time",
			primary:    []model.CanonicalRecord{primaryRec("john smith", "2025-05-18")},
			secondary:  []model.CanonicalRecord{secondaryRec("john smith", "2025-05-18", "07:05", "16:45")},
			wantStatus: model.StatusOnTime,
		},
		{
			name:       "Exactly at late threshold is not late",
			primary:    []model.CanonicalRecord{primaryRec("john smith", "2025-05-18")},
			secondary:  []model.CanonicalRecord{secondaryRec("john smith", "2025-05-18", "07:15", "17:00")},
			wantStatus: model.StatusOnTime,
		},
		{
			// Both conditions would apply; Late is checked first.
			name:       "Late wins over early end",
			primary:    []model.CanonicalRecord{primaryRec("john smith", "2025-05-18")},
			secondary:  []model.CanonicalRecord{secondaryRec("john smith", "2025-05-18", "08:00", "15:00")},
			wantStatus: model.StatusLate,
		},
		{
			// Matched history rows exist but neither clock parses; treating
			// that as on-time would confirm attendance nothing verifies.
			name:       "Matched history without parseable events",
			primary:    []model.CanonicalRecord{primaryRec("john smith", "2025-05-18")},
			secondary:  []model.CanonicalRecord{secondaryRec("john smith", "2025-05-18", "morning", "")},
			wantStatus: model.StatusNotOnJob,
			wantReason: "no parseable key events",
		},
		{
			name:       "Same driver different date is not on job",
			primary:    []model.CanonicalRecord{primaryRec("john smith", "2025-05-18")},
			secondary:  []model.CanonicalRecord{secondaryRec("john smith", "2025-05-19", "07:00", "17:00")},
			wantStatus: model.StatusNotOnJob,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, _, err := Reconcile(tc.primary, tc.secondary, testWindow)
			if err != nil {
				t.Fatalf("Reconcile: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("got %d entries, want 1", len(entries))
			}
			if entries[0].Status != tc.wantStatus {
				t.Errorf("status = %s, want %s (reason: %s)", entries[0].Status, tc.wantStatus, entries[0].StatusReason)
			}
			if tc.wantReason != "" && !strings.Contains(entries[0].StatusReason, tc.wantReason) {
				t.Errorf("reason %q does not contain %q", entries[0].StatusReason, tc.wantReason)
			}
		})
	}
}

// Multiple telematics events per driver per day collapse to the earliest
// key-on and latest key-off, regardless of input order.
func TestReconcileEventExtremes(t *testing.T) {
	primary := []model.CanonicalRecord{primaryRec("john smith", "2025-05-18")}
	secondary := []model.CanonicalRecord{
		secondaryRec("john smith", "2025-05-18", "09:10", "12:00"),
		secondaryRec("john smith", "2025-05-18", "07:30", "10:00"),
		secondaryRec("john smith", "2025-05-18", "13:00", "16:55"),
	}

	entries, unmatched, err := Reconcile(primary, secondary, testWindow)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(unmatched) != 0 {
		t.Errorf("unexpected unmatched records: %v", unmatched)
	}
	e := entries[0]
	if e.KeyOn != "07:30" || e.KeyOff != "16:55" {
		t.Errorf("extremes = (%s, %s), want (07:30, 16:55)", e.KeyOn, e.KeyOff)
	}
	// 07:30 is 30 minutes after a 07:00 start with a 15 minute threshold.
	if e.Status != model.StatusLate || !strings.Contains(e.StatusReason, "30 minutes") {
		t.Errorf("status = %s (%s), want late by 30", e.Status, e.StatusReason)
	}
}

// Every primary record lands in exactly one status bucket and every secondary
// record is either matched or returned as unmatched.
func TestReconcilePartitionInvariants(t *testing.T) {
	primary := []model.CanonicalRecord{
		primaryRec("a", "2025-05-18"),
		primaryRec("b", "2025-05-18"),
		primaryRec("c", "2025-05-18"),
		primaryRec("a", "2025-05-19"),
	}
	secondary := []model.CanonicalRecord{
		secondaryRec("a", "2025-05-18", "07:00", "17:00"),
		secondaryRec("b", "2025-05-18", "08:30", "17:00"),
		secondaryRec("d", "2025-05-18", "07:00", "17:00"),
		secondaryRec("d", "2025-05-18", "09:00", "15:00"),
		secondaryRec("a", "2025-05-20", "07:00", "17:00"),
	}

	entries, unmatched, err := Reconcile(primary, secondary, testWindow)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if len(entries) != len(primary) {
		t.Fatalf("got %d entries for %d primary records", len(entries), len(primary))
	}
	counts := map[model.Status]int{}
	for _, e := range entries {
		counts[e.Status]++
	}
	total := 0
	for _, s := range model.PrimaryStatuses {
		total += counts[s]
	}
	if total != len(primary) {
		t.Errorf("status buckets sum to %d, want %d (%v)", total, len(primary), counts)
	}

	matched := len(secondary) - len(unmatched)
	if matched+len(unmatched) != len(secondary) {
		t.Errorf("matched %d + unmatched %d != %d secondary records", matched, len(unmatched), len(secondary))
	}
	// Driver d (both events) and a@2025-05-20 never appear in primary.
	if len(unmatched) != 3 {
		t.Errorf("unmatched = %d, want 3: %v", len(unmatched), unmatched)
	}
}

func TestReconcileWindowValidation(t *testing.T) {
	testCases := []struct {
		name   string
		window model.ScheduleWindow
	}{
		{"End before start", model.ScheduleWindow{ScheduledStart: "17:00", ScheduledEnd: "07:00", LateThresholdMinutes: 15, EarlyThresholdMinutes: 30}},
		{"End equals start", model.ScheduleWindow{ScheduledStart: "07:00", ScheduledEnd: "07:00"}},
		{"Unparseable start", model.ScheduleWindow{ScheduledStart: "7 o'clock", ScheduledEnd: "17:00"}},
		{"Negative threshold", model.ScheduleWindow{ScheduledStart: "07:00", ScheduledEnd: "17:00", LateThresholdMinutes: -1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Reconcile(nil, nil, tc.window)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if _, ok := err.(*Error); !ok {
				t.Errorf("want *reconcile.Error, got %T", err)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	testCases := []struct {
		in      string
		wantSec int
		ok      bool
	}{
		{"07:00", 7 * 3600, true},
		{"16:45", 16*3600 + 45*60, true},
		{"07:20:30", 7*3600 + 20*60 + 30, true},
		{"3:04 PM", 15*3600 + 4*60, true},
		{"", 0, false},
		{"noon", 0, false},
	}
	for _, tc := range testCases {
		got, ok := parseClock(tc.in)
		if ok != tc.ok || (ok && got != tc.wantSec) {
			t.Errorf("parseClock(%q) = (%d, %t), want (%d, %t)", tc.in, got, ok, tc.wantSec, tc.ok)
		}
	}
}

type staticRates map[string]float64

func (s staticRates) Rate(key string) (float64, bool) {
	r, ok := s[key]
	return r, ok
}

func TestApplyBilling(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	entries := []model.ReconciledEntry{
		{Record: model.CanonicalRecord{NormalizedName: "a", Hours: f(8), Rate: f(50)}},
		{Record: model.CanonicalRecord{NormalizedName: "b", Hours: f(10), Rate: f(40)}},
		{Record: model.CanonicalRecord{NormalizedName: "c", Hours: f(8)}},
		{Record: model.CanonicalRecord{NormalizedName: "d", Hours: f(8)}},
		{Record: model.CanonicalRecord{NormalizedName: "e", Rate: f(50)}},
	}

	ApplyBilling(entries, staticRates{"c": 30}, 8.0, 1.5)

	if got := entries[0].BilledAmount; got == nil || *got != 400 {
		t.Errorf("plain billing = %v, want 400", got)
	}
	// 8h at 40 plus 2h overtime at 60.
	if got := entries[1].BilledAmount; got == nil || *got != 440 {
		t.Errorf("overtime billing = %v, want 440", got)
	}
	if got := entries[2].BilledAmount; got == nil || *got != 240 {
		t.Errorf("lookup-rate billing = %v, want 240", got)
	}
	if entries[3].BilledAmount != nil {
		t.Error("entry without any rate should stay unbilled")
	}
	if entries[4].BilledAmount != nil {
		t.Error("entry without hours should stay unbilled")
	}
}

func TestSortRecords(t *testing.T) {
	recs := []model.CanonicalRecord{
		{Source: "b.csv", Row: 1},
		{Source: "a.csv", Row: 2},
		{Source: "a.csv", Row: 1},
	}
	SortRecords(recs)
	want := []struct {
		src string
		row int
	}{{"a.csv", 1}, {"a.csv", 2}, {"b.csv", 1}}
	for i, w := range want {
		if recs[i].Source != w.src || recs[i].Row != w.row {
			t.Fatalf("order wrong at %d: %+v", i, recs[i])
		}
	}
}
