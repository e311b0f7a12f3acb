// Package value holds the engine's primitive value types: timestamps,
// durations, tz-aware date-times, geodetic points, and text sets.
package value

import (
	"fmt"
	"time"
)

// Timestamp is a signed 64-bit UNIX second count in UTC.
type Timestamp int64

// Duration is a signed span of seconds.
type Duration int64

// TimestampFromTime truncates t to whole UTC seconds.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.UTC().Unix())
}

// Time returns the UTC time.Time this timestamp denotes.
func (ts Timestamp) Time() time.Time {
	return time.Unix(int64(ts), 0).UTC()
}

// Add returns ts shifted by d seconds.
func (ts Timestamp) Add(d Duration) Timestamp {
	return ts + Timestamp(d)
}

// Before reports whether ts is strictly before other.
func (ts Timestamp) Before(other Timestamp) bool { return ts < other }

// In renders ts in loc. A nil loc falls back to UTC; callers holding a zone
// name resolve it to a location via TZLookup first.
func (ts Timestamp) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return ts.Time().In(loc)
}

func (ts Timestamp) String() string {
	return ts.Time().Format(time.RFC3339)
}

// DurationBetween returns the whole-second duration from a to b.
func DurationBetween(a, b Timestamp) Duration {
	return Duration(b - a)
}

// DateTime pairs a UTC timestamp with the IANA zone it was originally
// expressed in, so rendering can recover the author's intended wall-clock
// time. The zero value is DTSTART-less and should never be constructed
// directly by callers outside this package.
type DateTime struct {
	UTC Timestamp
	Zone string // IANA zone name, "" means floating/UTC
}

// TZLookup resolves IANA zone names to *time.Location. The engine never
// bundles its own tzdata and always resolves through this indirection so a
// host can substitute its own database.
type TZLookup func(name string) (*time.Location, error)

// DefaultTZLookup resolves zones via the Go runtime's bundled/zoneinfo
// database through time.LoadLocation.
func DefaultTZLookup(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("value: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}
