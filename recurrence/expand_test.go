package recurrence

import (
	"testing"
	"time"

	"github.com/redical/redical/value"
)

func ts(t *testing.T, s string) value.Timestamp {
	t.Helper()
	parsed, err := time.Parse("20060102T150405Z", s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return value.TimestampFromTime(parsed)
}

// TestExpandDailyCountThree checks DTSTART=19970902T090000Z,
// RRULE=FREQ=DAILY;COUNT=3 yields 09-02, 09-03, 09-04 at 09:00:00Z.
func TestExpandDailyCountThree(t *testing.T) {
	schedule := Schedule{
		DTStart: value.DateTime{UTC: ts(t, "19970902T090000Z")},
		RRule:   "FREQ=DAILY;COUNT=3",
	}

	from := ts(t, "19970101T000000Z")
	until := ts(t, "19980101T000000Z")

	it, err := Expand(schedule, from, until, value.DefaultTZLookup)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	want := []string{"19970902T090000Z", "19970903T090000Z", "19970904T090000Z"}
	for i, w := range want {
		occ, ok := it.Next()
		if !ok {
			t.Fatalf("occurrence %d: expected more occurrences", i)
		}
		if occ.Start != ts(t, w) {
			t.Errorf("occurrence %d = %v, want %v", i, occ.Start, ts(t, w))
		}
	}
	if _, ok := it.Next(); ok {
		t.Error("expected exactly 3 occurrences")
	}
}

// TestExpandDailyCountThreeWithExdate is the same schedule as above with
// EXDATE=19970903T090000Z added, yielding only 09-02 and 09-04.
func TestExpandDailyCountThreeWithExdate(t *testing.T) {
	schedule := Schedule{
		DTStart: value.DateTime{UTC: ts(t, "19970902T090000Z")},
		RRule:   "FREQ=DAILY;COUNT=3",
		ExDate:  []value.Timestamp{ts(t, "19970903T090000Z")},
	}

	from := ts(t, "19970101T000000Z")
	until := ts(t, "19980101T000000Z")

	it, err := Expand(schedule, from, until, value.DefaultTZLookup)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	want := []string{"19970902T090000Z", "19970904T090000Z"}
	for i, w := range want {
		occ, ok := it.Next()
		if !ok {
			t.Fatalf("occurrence %d: expected more occurrences", i)
		}
		if occ.Start != ts(t, w) {
			t.Errorf("occurrence %d = %v, want %v", i, occ.Start, ts(t, w))
		}
	}
	if _, ok := it.Next(); ok {
		t.Error("expected exactly 2 occurrences")
	}
}

func TestExpandRRuleCountZeroYieldsEmptySequence(t *testing.T) {
	schedule := Schedule{
		DTStart: value.DateTime{UTC: ts(t, "19970902T090000Z")},
		RRule:   "FREQ=DAILY;COUNT=0",
	}

	from := ts(t, "19970101T000000Z")
	until := ts(t, "19980101T000000Z")

	it, err := Expand(schedule, from, until, value.DefaultTZLookup)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	if _, ok := it.Next(); ok {
		t.Error("COUNT=0 should yield no occurrences, including DTSTART itself")
	}
}

func TestExpandWindowBoundsAreHalfOpen(t *testing.T) {
	schedule := Schedule{
		DTStart: value.DateTime{UTC: ts(t, "19970902T090000Z")},
		RRule:   "FREQ=DAILY;COUNT=3",
	}

	from := ts(t, "19970903T090000Z")
	until := ts(t, "19970904T090000Z")

	it, err := Expand(schedule, from, until, value.DefaultTZLookup)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	occ, ok := it.Next()
	if !ok || occ.Start != ts(t, "19970903T090000Z") {
		t.Fatalf("expected single occurrence at window start, got %v ok=%v", occ, ok)
	}
	if _, ok := it.Next(); ok {
		t.Error("window end should be exclusive")
	}
}

func TestExpandRDateOnlyYieldsDTStart(t *testing.T) {
	schedule := Schedule{
		DTStart: value.DateTime{UTC: ts(t, "19970902T090000Z")},
		RDate:   []value.Timestamp{ts(t, "19970910T090000Z")},
	}

	from := ts(t, "19970101T000000Z")
	until := ts(t, "19980101T000000Z")

	it, err := Expand(schedule, from, until, value.DefaultTZLookup)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	first, ok := it.Next()
	if !ok || first.Start != ts(t, "19970902T090000Z") {
		t.Fatalf("expected DTSTART first, got %v ok=%v", first, ok)
	}
	second, ok := it.Next()
	if !ok || second.Start != ts(t, "19970910T090000Z") {
		t.Fatalf("expected RDATE second, got %v ok=%v", second, ok)
	}
}
