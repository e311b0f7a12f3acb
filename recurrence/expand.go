package recurrence

import (
	"sort"
	"strings"
	"time"

	"github.com/redical/redical/redicalerr"
	"github.com/redical/redical/rrulex"
	"github.com/redical/redical/value"
)

// Occurrence is one element of the expanded sequence: a start timestamp
// paired with the effective duration derived from the schedule.
type Occurrence struct {
	Start    value.Timestamp
	Duration value.Duration
}

// Iterator yields Occurrences in strictly ascending, duplicate-free order
// over the window it was built for. It is stateful and disposable: build a
// fresh one per query candidate, never shared across goroutines.
type Iterator struct {
	occurrences []value.Timestamp
	pos         int
	duration    value.Duration
}

// Next returns the next occurrence and true, or the zero Occurrence and
// false once the window is exhausted.
func (it *Iterator) Next() (Occurrence, bool) {
	if it.pos >= len(it.occurrences) {
		return Occurrence{}, false
	}
	occ := Occurrence{Start: it.occurrences[it.pos], Duration: it.duration}
	it.pos++
	return occ, true
}

// Expand builds the iterator for schedule's instance sequence restricted to
// [from, until): ((RRULE ∪ RDATE) \ (EXRULE ∪ EXDATE)), including DTSTART
// itself when it falls in range and survives exclusion.
//
// Because from/until always bound a finite window by the time expansion
// runs — either an explicit X-FROM/X-UNTIL pair or query.DefaultHorizon —
// this computes the window's occurrences eagerly against rrule.Set.Between
// rather than driving rrule-go's lower-level per-RRULE iterator. The
// *unbounded* tail of an infinite schedule is still never materialised: it
// is simply never inside any window passed to Expand.
func Expand(schedule Schedule, from, until value.Timestamp, tz value.TZLookup) (*Iterator, *redicalerr.Error) {
	loc, err := tz(schedule.DTStart.Zone)
	if err != nil {
		return nil, redicalerr.Wrap(redicalerr.Schema, err, "resolving DTSTART timezone")
	}

	rdates := make([]time.Time, len(schedule.RDate))
	for i, rd := range schedule.RDate {
		rdates[i] = rd.Time()
	}
	exdates := make([]time.Time, len(schedule.ExDate))
	for i, ed := range schedule.ExDate {
		exdates[i] = ed.Time()
	}

	// rrule-go reads COUNT=0 as "no COUNT"; here a zero COUNT contributes no
	// RRULE occurrences at all.
	rruleText := schedule.RRule
	for _, part := range strings.Split(rruleText, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(kv[0], "COUNT") && kv[1] != "" && strings.TrimLeft(kv[1], "0") == "" {
			rruleText = ""
		}
	}

	set, rerr := rrulex.BuildSet(schedule.DTStart.UTC.Time(), loc, rruleText, rdates, schedule.ExRule, exdates)
	if rerr != nil {
		return nil, rerr
	}

	fromT, untilT := from.Time(), until.Time()
	times := set.Between(fromT, untilT, true)

	// A schedule with RDATEs but no RRULE still yields DTSTART itself; fold
	// it in explicitly rather than rely on rrule.Set's own handling of the
	// no-RRULE case, then apply EXDATE to it like any other candidate. Once
	// an RRULE is present, its own evaluation already decides whether
	// DTSTART recurs (e.g. COUNT=0 must yield nothing at all), so DTSTART
	// must not be forced in here.
	if schedule.RRule == "" {
		excluded := make(map[int64]struct{}, len(exdates))
		for _, ed := range exdates {
			excluded[int64(value.TimestampFromTime(ed))] = struct{}{}
		}
		if _, isExcluded := excluded[int64(schedule.DTStart.UTC)]; !isExcluded {
			times = append(times, schedule.DTStart.UTC.Time())
		}
	}

	// set.Between is half-open on "before" already inclusive-of-start per
	// its own inc flag; re-clip defensively to the documented [from,until)
	// contract.
	seen := make(map[int64]struct{}, len(times))
	occurrences := make([]value.Timestamp, 0, len(times))
	for _, t := range times {
		ts := value.TimestampFromTime(t)
		if ts < from || ts >= until {
			continue
		}
		if _, dup := seen[int64(ts)]; dup {
			continue
		}
		seen[int64(ts)] = struct{}{}
		occurrences = append(occurrences, ts)
	}

	sort.Slice(occurrences, func(i, j int) bool { return occurrences[i] < occurrences[j] })

	return &Iterator{occurrences: occurrences, duration: schedule.EffectiveDuration()}, nil
}
