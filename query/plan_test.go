package query

import (
	"testing"

	"github.com/redical/redical/calendar"
	"github.com/redical/redical/instance"
	"github.com/redical/redical/override"
	"github.com/redical/redical/recurrence"
	"github.com/redical/redical/value"
)

func setEvent(t *testing.T, cal *calendar.Calendar, uid value.UID, categories ...string) {
	t.Helper()
	base := instance.Base{
		UID: uid,
		Schedule: recurrence.Schedule{
			DTStart: value.DateTime{UTC: 1000, Zone: "UTC"},
			RRule:   "FREQ=DAILY;COUNT=1",
		},
		Categories: value.NewTextSet(categories...),
	}
	if err := cal.SetEvent(uid, base, override.Store{}); err != nil {
		t.Fatalf("SetEvent(%s): %v", uid, err)
	}
}

func TestPlanNilWhereSelectsEverything(t *testing.T) {
	cal := calendar.NewCalendar("cal-1")
	setEvent(t, cal, "evt-1", "APPOINTMENT")
	setEvent(t, cal, "evt-2", "EDUCATION")

	set, err := Plan(cal, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(set))
	}
}

func TestPlanCategoriesAndIntersects(t *testing.T) {
	cal := calendar.NewCalendar("cal-1")
	setEvent(t, cal, "evt-1", "APPOINTMENT", "EDUCATION")
	setEvent(t, cal, "evt-2", "APPOINTMENT")

	where, err := ParseWhere("X-CATEGORIES;OP=AND:APPOINTMENT,EDUCATION\n")
	if err != nil {
		t.Fatalf("ParseWhere: %v", err)
	}
	set, perr := Plan(cal, where)
	if perr != nil {
		t.Fatalf("Plan: %v", perr)
	}
	if len(set) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %v", len(set), set)
	}
	if _, ok := set["evt-1"]; !ok {
		t.Fatalf("expected evt-1 in result, got %v", set)
	}
}

func TestPlanCategoriesOrUnions(t *testing.T) {
	cal := calendar.NewCalendar("cal-1")
	setEvent(t, cal, "evt-1", "APPOINTMENT")
	setEvent(t, cal, "evt-2", "EDUCATION")
	setEvent(t, cal, "evt-3", "MEETING")

	where, err := ParseWhere("X-CATEGORIES;OP=OR:APPOINTMENT,EDUCATION\n")
	if err != nil {
		t.Fatalf("ParseWhere: %v", err)
	}
	set, perr := Plan(cal, where)
	if perr != nil {
		t.Fatalf("Plan: %v", perr)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %v", len(set), set)
	}
}

func TestPlanUIDLeafIsLiteral(t *testing.T) {
	cal := calendar.NewCalendar("cal-1")
	setEvent(t, cal, "evt-1", "APPOINTMENT")

	where, err := ParseWhere("X-UID:evt-1,evt-missing\n")
	if err != nil {
		t.Fatalf("ParseWhere: %v", err)
	}
	set, perr := Plan(cal, where)
	if perr != nil {
		t.Fatalf("Plan: %v", perr)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 literal UIDs regardless of existence, got %d", len(set))
	}
}
