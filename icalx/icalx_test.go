package icalx

import (
	"strings"
	"testing"
	"time"

	"github.com/redical/redical/instance"
	"github.com/redical/redical/recurrence"
	"github.com/redical/redical/value"
)

func TestEncodeDecodeEventRoundTrip(t *testing.T) {
	geo := value.GeoPoint{Lat: 37.386013, Long: -122.082932}
	base := instance.Base{
		UID: "evt-1",
		Schedule: recurrence.Schedule{
			DTStart: value.DateTime{UTC: value.TimestampFromTime(mustParse(t, "2023-09-01T09:00:00Z")), Zone: "UTC"},
			RRule:   "FREQ=DAILY;COUNT=3",
		},
		Categories: value.NewTextSet("APPOINTMENT", "EDUCATION"),
		Class:      "PRIVATE",
		RelatedTo:  map[string][]string{"PARENT": {"parent-uid"}},
		Geo:        &geo,
		Passive:    map[string]string{"SUMMARY": "Team sync"},
	}

	content, err := EncodeEvent(base)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	if !strings.Contains(content, "BEGIN:VEVENT") {
		t.Fatalf("expected VEVENT component in output, got:\n%s", content)
	}

	decoded, derr := DecodeEvent(strings.NewReader(content))
	if derr != nil {
		t.Fatalf("DecodeEvent: %v", derr)
	}

	if decoded.UID != base.UID {
		t.Errorf("UID = %q, want %q", decoded.UID, base.UID)
	}
	if decoded.Schedule.RRule != base.Schedule.RRule {
		t.Errorf("RRule = %q, want %q", decoded.Schedule.RRule, base.Schedule.RRule)
	}
	if decoded.Schedule.DTStart.UTC != base.Schedule.DTStart.UTC {
		t.Errorf("DTStart = %v, want %v", decoded.Schedule.DTStart.UTC, base.Schedule.DTStart.UTC)
	}
	if !decoded.Categories.Contains("APPOINTMENT") || !decoded.Categories.Contains("EDUCATION") {
		t.Errorf("Categories = %v, want APPOINTMENT+EDUCATION", decoded.Categories.Terms())
	}
	if decoded.Class != base.Class {
		t.Errorf("Class = %q, want %q", decoded.Class, base.Class)
	}
	if decoded.Geo == nil || *decoded.Geo != *base.Geo {
		t.Errorf("Geo = %v, want %v", decoded.Geo, base.Geo)
	}
	if decoded.Passive["SUMMARY"] != "Team sync" {
		t.Errorf("Passive[SUMMARY] = %q, want %q", decoded.Passive["SUMMARY"], "Team sync")
	}
	if len(decoded.RelatedTo["PARENT"]) != 1 || decoded.RelatedTo["PARENT"][0] != "parent-uid" {
		t.Errorf("RelatedTo[PARENT] = %v, want [parent-uid]", decoded.RelatedTo["PARENT"])
	}
}

func TestEncodeDecodeOverrideRoundTrip(t *testing.T) {
	base := instance.Base{
		UID: "evt-1",
		Schedule: recurrence.Schedule{
			DTStart: value.DateTime{UTC: value.TimestampFromTime(mustParse(t, "2023-09-02T09:00:00Z")), Zone: "UTC"},
		},
		Class: "PRIVATE",
	}
	content, err := EncodeEvent(base)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}

	ovr, derr := DecodeOverride(strings.NewReader(content))
	if derr != nil {
		t.Fatalf("DecodeOverride: %v", derr)
	}
	if ovr.DTStart == nil || ovr.DTStart.UTC != base.Schedule.DTStart.UTC {
		t.Errorf("override DTStart = %v, want %v", ovr.DTStart, base.Schedule.DTStart.UTC)
	}
	if ovr.Class == nil || *ovr.Class != "PRIVATE" {
		t.Errorf("override Class = %v, want PRIVATE", ovr.Class)
	}
	if ovr.Categories != nil {
		t.Errorf("expected override Categories to stay nil (inherit) when absent, got %v", ovr.Categories)
	}
}

func TestDecodeEventMissingUIDFails(t *testing.T) {
	const content = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nBEGIN:VEVENT\r\nDTSTART:20230901T090000Z\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	if _, err := DecodeEvent(strings.NewReader(content)); err == nil {
		t.Fatal("expected an error decoding a VEVENT with no UID")
	}
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tm
}
