package recurrence

import (
	"testing"

	"github.com/redical/redical/redicalerr"
	"github.com/redical/redical/value"
)

func mustTS(t *testing.T, s string) value.Timestamp {
	t.Helper()
	tm, err := parseUntil(s)
	if err != nil {
		t.Fatalf("parseUntil(%q): %v", s, err)
	}
	return value.TimestampFromTime(tm)
}

func TestScheduleValidateDTEndAndDurationExclusive(t *testing.T) {
	dur := value.Duration(3600)
	dtend := value.DateTime{UTC: 2000}
	s := Schedule{
		DTStart:  value.DateTime{UTC: 1000},
		DTEnd:    &dtend,
		Duration: &dur,
	}
	err := s.Validate()
	if err == nil || err.Kind != redicalerr.Schema {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestScheduleValidateRRuleMissingFreq(t *testing.T) {
	s := Schedule{DTStart: value.DateTime{UTC: 1000}, RRule: "COUNT=3"}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for missing FREQ")
	}
}

func TestScheduleValidateCountAndUntilExclusive(t *testing.T) {
	s := Schedule{DTStart: value.DateTime{UTC: 1000}, RRule: "FREQ=DAILY;COUNT=3;UNTIL=20970905T090000Z"}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for COUNT and UNTIL both set")
	}
}

func TestScheduleValidateIntervalZero(t *testing.T) {
	s := Schedule{DTStart: value.DateTime{UTC: 1000}, RRule: "FREQ=DAILY;INTERVAL=0"}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for INTERVAL=0")
	}
}

func TestScheduleValidateByDayOrdinalRequiresMonthlyOrYearly(t *testing.T) {
	s := Schedule{DTStart: value.DateTime{UTC: 1000}, RRule: "FREQ=WEEKLY;BYDAY=2MO"}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for BYDAY ordinal under WEEKLY")
	}

	ok := Schedule{DTStart: value.DateTime{UTC: 1000}, RRule: "FREQ=MONTHLY;BYDAY=2MO"}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error for BYDAY ordinal under MONTHLY: %v", err)
	}
}

func TestScheduleValidateUntilBeforeDTStart(t *testing.T) {
	dtstart := mustTS(t, "20970905T090000Z")
	s := Schedule{DTStart: value.DateTime{UTC: dtstart}, RRule: "FREQ=DAILY;UNTIL=19970905T090000Z"}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for UNTIL before DTSTART")
	}
}

func TestEffectiveDuration(t *testing.T) {
	dur := value.Duration(120)
	testCases := []struct {
		name string
		s    Schedule
		want value.Duration
	}{
		{"from dtend", Schedule{DTStart: value.DateTime{UTC: 1000}, DTEnd: &value.DateTime{UTC: 1100}}, 100},
		{"from duration", Schedule{DTStart: value.DateTime{UTC: 1000}, Duration: &dur}, 120},
		{"default zero", Schedule{DTStart: value.DateTime{UTC: 1000}}, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.s.EffectiveDuration(); got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}
