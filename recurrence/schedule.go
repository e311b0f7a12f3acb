// Package recurrence expands an event's schedule properties into the
// ordered sequence of occurrence starts RFC 5545 §3.3.10 describes.
package recurrence

import (
	"strings"
	"time"

	"github.com/redical/redical/redicalerr"
	"github.com/redical/redical/value"
)

// Schedule holds the schedule properties of an event or override: DTSTART,
// one of DTEND/DURATION, and the RRULE/RDATE/EXRULE/EXDATE sets.
type Schedule struct {
	DTStart value.DateTime

	// Exactly one of DTEnd/Duration should be set on a well-formed event;
	// both nil is tolerated here (effective duration defaults to zero) since
	// overrides may only touch one side of the pair.
	DTEnd    *value.DateTime
	Duration *value.Duration

	RRule  string
	RDate  []value.Timestamp
	ExRule string
	ExDate []value.Timestamp
}

// EffectiveDuration derives the instance length from DTEnd when present,
// else Duration, else zero.
func (s Schedule) EffectiveDuration() value.Duration {
	switch {
	case s.DTEnd != nil:
		return value.DurationBetween(s.DTStart.UTC, s.DTEnd.UTC)
	case s.Duration != nil:
		return *s.Duration
	default:
		return 0
	}
}

// Validate checks the structural invariants required at write time, naming
// the offending property in the returned Schema error.
func (s Schedule) Validate() *redicalerr.Error {
	if s.DTEnd != nil && s.Duration != nil {
		return redicalerr.New(redicalerr.Schema, "DTEND and DURATION are mutually exclusive")
	}
	if s.DTEnd != nil && s.DTEnd.UTC < s.DTStart.UTC {
		return redicalerr.New(redicalerr.Schema, "DTEND must not be before DTSTART")
	}

	if s.RRule != "" {
		if err := validateRuleText(s.RRule, s.DTStart.UTC); err != nil {
			return err
		}
	}
	if s.ExRule != "" {
		if err := validateRuleText(s.ExRule, s.DTStart.UTC); err != nil {
			return err
		}
	}

	return nil
}

// validateRuleText checks RRULE-value-level invariants ahead of handing the
// text to rrulex/rrule-go: COUNT and UNTIL are mutually exclusive, INTERVAL
// must be >= 1, and a BYDAY ordinal (e.g. "2MO") is only legal under MONTHLY
// or YEARLY FREQ.
func validateRuleText(rule string, dtstart value.Timestamp) *redicalerr.Error {
	fields := make(map[string]string)
	for _, part := range strings.Split(rule, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		fields[strings.ToUpper(kv[0])] = kv[1]
	}

	freq, hasFreq := fields["FREQ"]
	if !hasFreq {
		return redicalerr.New(redicalerr.Schema, "RRULE missing required FREQ")
	}

	_, hasCount := fields["COUNT"]
	_, hasUntil := fields["UNTIL"]
	if hasCount && hasUntil {
		return redicalerr.New(redicalerr.Schema, "RRULE COUNT and UNTIL are mutually exclusive")
	}

	if interval, ok := fields["INTERVAL"]; ok {
		if strings.HasPrefix(interval, "-") || interval == "0" {
			return redicalerr.New(redicalerr.Schema, "RRULE INTERVAL must be >= 1, got %s", interval)
		}
	}

	if until, ok := fields["UNTIL"]; ok {
		if untilTime, perr := parseUntil(until); perr == nil {
			if value.TimestampFromTime(untilTime) < dtstart {
				return redicalerr.New(redicalerr.Schema, "RRULE UNTIL %s is before DTSTART", until)
			}
		}
	}

	if byday, ok := fields["BYDAY"]; ok && freq != "MONTHLY" && freq != "YEARLY" {
		for _, wd := range strings.Split(byday, ",") {
			if hasOrdinalPrefix(wd) {
				return redicalerr.New(redicalerr.Schema, "BYDAY ordinal %q is only valid for MONTHLY or YEARLY FREQ, got %s", wd, freq)
			}
		}
	}

	return nil
}

// parseUntil parses an RRULE UNTIL value in either the DATE or DATE-TIME
// form RFC 5545 §3.3.10 allows.
func parseUntil(s string) (time.Time, error) {
	if t, err := time.Parse("20060102T150405Z", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("20060102T150405", s); err == nil {
		return t, nil
	}
	return time.Parse("20060102", s)
}

func hasOrdinalPrefix(wd string) bool {
	i := 0
	if i < len(wd) && (wd[i] == '+' || wd[i] == '-') {
		i++
	}
	start := i
	for i < len(wd) && wd[i] >= '0' && wd[i] <= '9' {
		i++
	}
	return i > start
}
