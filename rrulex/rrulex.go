// Package rrulex adapts github.com/teambition/rrule-go to the engine's own
// Schedule model, isolating recurrence from the third-party option struct
// and its string grammar the way icalx isolates the engine from go-ical.
package rrulex

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/redical/redical/redicalerr"
)

// ParseRule parses a bare RRULE (or EXRULE) value — e.g. "FREQ=DAILY;COUNT=3"
// — anchored at dtstart (already resolved to loc), following the content-line
// shape RFC 5545 defines and the same "DTSTART:...\nRRULE:..." framing
// github.com/teambition/rrule-go's own StrToRRule helper expects.
func ParseRule(ruleText string, dtstart time.Time, loc *time.Location) (*rrule.RRule, *redicalerr.Error) {
	dtstartLocal := dtstart.In(loc)

	var raw string
	if loc == time.UTC {
		raw = fmt.Sprintf("DTSTART:%s\nRRULE:%s", dtstartLocal.Format("20060102T150405Z"), ruleText)
	} else {
		raw = fmt.Sprintf("DTSTART;TZID=%s:%s\nRRULE:%s", loc.String(), dtstartLocal.Format("20060102T150405"), ruleText)
	}

	r, err := rrule.StrToRRule(raw)
	if err != nil {
		return nil, redicalerr.New(redicalerr.Schema, "invalid RRULE %q: %v", ruleText, err)
	}
	return r, nil
}

// BuildSet composes a rrule.Set the way RFC 5545 §3.8.5.1/3.8.5.2 define a
// recurrence set: one RRULE and any number of RDATEs, minus one EXRULE and
// any number of EXDATEs.
func BuildSet(dtstart time.Time, loc *time.Location, rruleText string, rdates []time.Time, exruleText string, exdates []time.Time) (*rrule.Set, *redicalerr.Error) {
	set := &rrule.Set{}
	set.DTStart(dtstart.In(loc))

	if rruleText != "" {
		r, rerr := ParseRule(rruleText, dtstart, loc)
		if rerr != nil {
			return nil, rerr
		}
		set.RRule(r)
	}
	for _, rd := range rdates {
		set.RDate(rd.In(loc))
	}

	if exruleText != "" {
		r, rerr := ParseRule(exruleText, dtstart, loc)
		if rerr != nil {
			return nil, rerr
		}
		set.ExRule(r)
	}
	for _, ed := range exdates {
		set.ExDate(ed.In(loc))
	}

	return set, nil
}
