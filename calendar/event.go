// Package calendar implements the in-memory aggregate: events keyed within
// a calendar, kept consistent with the categorical and geospatial indexes
// on every write, with one receiver backing many names under narrow
// per-call locking.
package calendar

import (
	"github.com/redical/redical/instance"
	"github.com/redical/redical/override"
	"github.com/redical/redical/value"
)

// Event is the durable record of one calendar entry: its base schedule and
// properties, plus the overrides layered on individual occurrences.
type Event struct {
	instance.Base
	Overrides override.Store

	// OccurrenceCache is the optional precomputed prefix of this event's
	// occurrence sequence: strictly ascending, a true prefix of the
	// infinite sequence. Nil until computed; invalidated (set back to nil)
	// on any schedule change.
	OccurrenceCache []value.Timestamp
}

// Clone returns a deep-enough copy of e for safe use outside the calendar's
// lock — the override store and the RELATED-TO/passive maps are copied, not
// aliased; the immutable TextSet is shared.
func (e *Event) Clone() *Event {
	clone := &Event{
		Base: instance.Base{
			UID:        e.UID,
			Schedule:   e.Schedule,
			Categories: e.Categories,
			Class:      e.Class,
			Geo:        e.Geo,
		},
	}
	e.Overrides.Iter(func(ts value.Timestamp, ovr override.Override) bool {
		clone.Overrides.Set(ts, ovr)
		return true
	})
	if e.RelatedTo != nil {
		clone.RelatedTo = make(map[string][]string, len(e.RelatedTo))
		for k, v := range e.RelatedTo {
			cp := make([]string, len(v))
			copy(cp, v)
			clone.RelatedTo[k] = cp
		}
	}
	if e.Passive != nil {
		clone.Passive = make(map[string]string, len(e.Passive))
		for k, v := range e.Passive {
			clone.Passive[k] = v
		}
	}
	if e.OccurrenceCache != nil {
		clone.OccurrenceCache = append([]value.Timestamp(nil), e.OccurrenceCache...)
	}
	return clone
}

// invalidateCache drops the precomputed occurrence prefix; called whenever
// the schedule changes.
func (e *Event) invalidateCache() {
	e.OccurrenceCache = nil
}
