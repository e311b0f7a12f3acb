// Package instance fuses recurrence occurrences with overrides into
// concrete EventInstance records.
package instance

import (
	"github.com/redical/redical/override"
	"github.com/redical/redical/recurrence"
	"github.com/redical/redical/redicalerr"
	"github.com/redical/redical/value"
)

// Base is the subset of an event the materialiser needs: its identity,
// schedule, and descriptive/indexed property bags. calendar.Event embeds
// Base so this package never imports calendar, avoiding a cycle.
type Base struct {
	UID        value.UID
	Schedule   recurrence.Schedule
	Categories value.TextSet
	Class      string
	RelatedTo  map[string][]string
	Geo        *value.GeoPoint
	Passive    map[string]string
}

// EventInstance is the unit a query returns: an occurrence (or detached
// override) with every field fully resolved.
type EventInstance struct {
	UID          value.UID
	RecurrenceID value.Timestamp // the base occurrence timestamp this instance is keyed by
	DTStart      value.Timestamp
	DTEnd        value.Timestamp
	Categories   value.TextSet
	Class        string
	RelatedTo    map[string][]string
	Geo          *value.GeoPoint
	Passive      map[string]string
}

// Materialize merges a base occurrence with its override, if any. ovr may
// be nil, meaning the occurrence is unmodified.
func Materialize(base Base, occ recurrence.Occurrence, ovr *override.Override) EventInstance {
	inst := EventInstance{
		UID:          base.UID,
		RecurrenceID: occ.Start,
		DTStart:      occ.Start,
		DTEnd:        occ.Start.Add(occ.Duration),
		Categories:   base.Categories,
		Class:        base.Class,
		RelatedTo:    base.RelatedTo,
		Geo:          base.Geo,
		Passive:      base.Passive,
	}
	if ovr == nil {
		return inst
	}
	applyOverride(&inst, ovr, occ.Duration)
	return inst
}

// MaterializeDetached surfaces an override keyed at a timestamp with no
// matching base occurrence as a complete, isolated instance. The override
// must be self-sufficient: it must supply its own DTSTART, else a
// diagnostic is returned (see DESIGN.md).
func MaterializeDetached(base Base, ts value.Timestamp, ovr override.Override) (EventInstance, *redicalerr.Error) {
	if ovr.DTStart == nil {
		return EventInstance{}, redicalerr.New(
			redicalerr.Internal,
			"detached override at %d for event %q has no DTSTART and cannot stand alone as an instance",
			ts, base.UID,
		)
	}

	baseDuration := base.Schedule.EffectiveDuration()
	inst := EventInstance{
		UID:          base.UID,
		RecurrenceID: ts,
		DTStart:      ovr.DTStart.UTC,
		DTEnd:        ovr.DTStart.UTC.Add(baseDuration),
		Categories:   base.Categories,
		Class:        base.Class,
		RelatedTo:    base.RelatedTo,
		Geo:          base.Geo,
		Passive:      base.Passive,
	}
	applyOverride(&inst, &ovr, baseDuration)
	return inst, nil
}

// applyOverride layers ovr onto inst, which has already been seeded with the
// base occurrence's start/end at baseDuration apart. Moving DTSTART alone
// keeps the instance's original duration (both ends shift together);
// setting DTEND/DURATION changes length only.
func applyOverride(inst *EventInstance, ovr *override.Override, baseDuration value.Duration) {
	if ovr.DTStart != nil {
		inst.DTStart = ovr.DTStart.UTC
		inst.DTEnd = inst.DTStart.Add(baseDuration)
	}
	switch {
	case ovr.DTEnd != nil:
		inst.DTEnd = ovr.DTEnd.UTC
	case ovr.Duration != nil:
		inst.DTEnd = inst.DTStart.Add(*ovr.Duration)
	}

	if ovr.Categories != nil {
		inst.Categories = *ovr.Categories
	}
	if ovr.Class != nil {
		inst.Class = *ovr.Class
	}
	if ovr.RelatedTo != nil {
		inst.RelatedTo = ovr.RelatedTo
	}
	if ovr.Geo != nil {
		inst.Geo = ovr.Geo
	}
	if len(ovr.Passive) > 0 {
		merged := make(map[string]string, len(inst.Passive)+len(ovr.Passive))
		for k, v := range inst.Passive {
			merged[k] = v
		}
		for k, v := range ovr.Passive {
			merged[k] = v
		}
		inst.Passive = merged
	}
}
