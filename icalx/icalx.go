// Package icalx is the sole collaborator that imports go-ical. It adapts
// between the wire iCalendar grammar and the engine's property model
// (instance.Base, override.Override), keeping on-wire shapes separate from
// the engine's own types.
package icalx

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	ical "github.com/emersion/go-ical"

	"github.com/redical/redical/instance"
	"github.com/redical/redical/override"
	"github.com/redical/redical/recurrence"
	"github.com/redical/redical/redicalerr"
	"github.com/redical/redical/value"
)

// EncodeInstance serialises a materialised instance to a single VEVENT
// carrying RECURRENCE-ID, the result unit EVI_LIST/EVI_QUERY return.
func EncodeInstance(inst instance.EventInstance) (string, *redicalerr.Error) {
	comp := ical.NewComponent(ical.CompEvent)
	comp.Props.SetText(ical.PropUID, string(inst.UID))

	ridProp := ical.NewProp(ical.PropRecurrenceID)
	setDateTimeProp(ridProp, value.DateTime{UTC: inst.RecurrenceID, Zone: "UTC"})
	comp.Props.Set(ridProp)

	startProp := ical.NewProp(ical.PropDateTimeStart)
	setDateTimeProp(startProp, value.DateTime{UTC: inst.DTStart, Zone: "UTC"})
	comp.Props.Set(startProp)

	endProp := ical.NewProp(ical.PropDateTimeEnd)
	setDateTimeProp(endProp, value.DateTime{UTC: inst.DTEnd, Zone: "UTC"})
	comp.Props.Set(endProp)

	if inst.Categories.Len() > 0 {
		terms := append([]string(nil), inst.Categories.Terms()...)
		sort.Strings(terms)
		prop := ical.NewProp(ical.PropCategories)
		prop.SetTextList(terms)
		comp.Props.Set(prop)
	}
	if inst.Class != "" {
		comp.Props.SetText(ical.PropClass, inst.Class)
	}
	if inst.Geo != nil {
		prop := ical.NewProp(ical.PropGeo)
		prop.Value = fmt.Sprintf("%v;%v", inst.Geo.Lat, inst.Geo.Long)
		comp.Props.Set(prop)
	}

	reltypes := make([]string, 0, len(inst.RelatedTo))
	for reltype := range inst.RelatedTo {
		reltypes = append(reltypes, reltype)
	}
	sort.Strings(reltypes)
	for _, reltype := range reltypes {
		values := append([]string(nil), inst.RelatedTo[reltype]...)
		sort.Strings(values)
		for _, v := range values {
			prop := ical.NewProp(ical.PropRelatedTo)
			prop.Params.Set(ical.ParamRelationshipType, reltype)
			prop.SetText(v)
			comp.Props.Add(prop)
		}
	}

	names := make([]string, 0, len(inst.Passive))
	for name := range inst.Passive {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		comp.Props.SetText(name, inst.Passive[name])
	}

	cal := &ical.Calendar{Component: ical.NewComponent(ical.CompCalendar)}
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//redical//redical//EN")
	cal.Children = append(cal.Children, comp)

	var sb strings.Builder
	if err := ical.NewEncoder(&sb).Encode(cal); err != nil {
		return "", redicalerr.Wrap(redicalerr.Internal, err, "failed to encode instance %q", inst.UID)
	}
	return sb.String(), nil
}

// EncodeOverride serialises an Override back to VEVENT content with only
// its set fields present, the inverse of DecodeOverride.
func EncodeOverride(ovr override.Override) (string, *redicalerr.Error) {
	comp := ical.NewComponent(ical.CompEvent)

	if ovr.DTStart != nil {
		prop := ical.NewProp(ical.PropDateTimeStart)
		setDateTimeProp(prop, *ovr.DTStart)
		comp.Props.Set(prop)
	}
	if ovr.DTEnd != nil {
		prop := ical.NewProp(ical.PropDateTimeEnd)
		setDateTimeProp(prop, *ovr.DTEnd)
		comp.Props.Set(prop)
	}
	if ovr.Duration != nil {
		prop := ical.NewProp(ical.PropDuration)
		prop.SetDuration(time.Duration(*ovr.Duration) * time.Second)
		comp.Props.Set(prop)
	}
	if ovr.Categories != nil {
		terms := append([]string(nil), ovr.Categories.Terms()...)
		sort.Strings(terms)
		prop := ical.NewProp(ical.PropCategories)
		prop.SetTextList(terms)
		comp.Props.Set(prop)
	}
	if ovr.Class != nil {
		comp.Props.SetText(ical.PropClass, *ovr.Class)
	}
	if ovr.Geo != nil {
		prop := ical.NewProp(ical.PropGeo)
		prop.Value = fmt.Sprintf("%v;%v", ovr.Geo.Lat, ovr.Geo.Long)
		comp.Props.Set(prop)
	}
	if ovr.RelatedTo != nil {
		reltypes := make([]string, 0, len(ovr.RelatedTo))
		for reltype := range ovr.RelatedTo {
			reltypes = append(reltypes, reltype)
		}
		sort.Strings(reltypes)
		for _, reltype := range reltypes {
			values := append([]string(nil), ovr.RelatedTo[reltype]...)
			sort.Strings(values)
			for _, v := range values {
				prop := ical.NewProp(ical.PropRelatedTo)
				prop.Params.Set(ical.ParamRelationshipType, reltype)
				prop.SetText(v)
				comp.Props.Add(prop)
			}
		}
	}
	if ovr.Passive != nil {
		names := make([]string, 0, len(ovr.Passive))
		for name := range ovr.Passive {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			comp.Props.SetText(name, ovr.Passive[name])
		}
	}

	cal := &ical.Calendar{Component: ical.NewComponent(ical.CompCalendar)}
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//redical//redical//EN")
	cal.Children = append(cal.Children, comp)

	var sb strings.Builder
	if err := ical.NewEncoder(&sb).Encode(cal); err != nil {
		return "", redicalerr.Wrap(redicalerr.Internal, err, "failed to encode override")
	}
	return sb.String(), nil
}

// scheduleProps are the property names consumed into Schedule rather than
// Categories/Class/RelatedTo/Geo/Passive.
var scheduleProps = map[string]bool{
	ical.PropDateTimeStart: true,
	ical.PropDateTimeEnd:   true,
	ical.PropDuration:      true,
	ical.PropRecurrenceRule: true,
	ical.PropRecurrenceDates: true,
	// go-ical names the exclusion-rule property EXRULE only via the
	// historical (deprecated in RFC 5545) component property; there's no
	// ical.Prop constant for it, so it's referenced by its literal name.
	"EXRULE":               true,
	ical.PropExceptionDates: true,
	ical.PropUID:            true,
}

// DecodeEvent reads a single VEVENT out of r's VCALENDAR content and returns
// it as a Base. Overrides are not read here; EVO_SET content is decoded
// separately via DecodeOverride.
func DecodeEvent(r io.Reader) (instance.Base, *redicalerr.Error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return instance.Base{}, redicalerr.Wrap(redicalerr.Parse, err, "malformed iCal content").AtOffset(0)
	}

	var comp *ical.Component
	for _, child := range cal.Children {
		if child.Name == ical.CompEvent {
			comp = child
			break
		}
	}
	if comp == nil {
		return instance.Base{}, redicalerr.New(redicalerr.Parse, "no VEVENT component found")
	}

	return decodeComponent(comp)
}

func decodeComponent(comp *ical.Component) (instance.Base, *redicalerr.Error) {
	base := instance.Base{}

	uidProp := comp.Props.Get(ical.PropUID)
	if uidProp == nil {
		return base, redicalerr.New(redicalerr.Parse, "VEVENT missing required UID")
	}
	uidText, _ := uidProp.Text()
	base.UID = value.UID(uidText)

	sched, serr := decodeSchedule(comp)
	if serr != nil {
		return base, serr
	}
	base.Schedule = sched

	if catProp := comp.Props.Get(ical.PropCategories); catProp != nil {
		terms, err := catProp.TextList()
		if err != nil {
			return base, redicalerr.Wrap(redicalerr.Parse, err, "invalid CATEGORIES")
		}
		base.Categories = value.NewTextSet(terms...)
	}

	if classProp := comp.Props.Get(ical.PropClass); classProp != nil {
		text, _ := classProp.Text()
		base.Class = text
	}

	if relProps := comp.Props[ical.PropRelatedTo]; len(relProps) > 0 {
		base.RelatedTo = make(map[string][]string)
		for _, prop := range relProps {
			reltype := prop.Params.Get(ical.ParamRelationshipType)
			if reltype == "" {
				reltype = "PARENT"
			}
			text, _ := prop.Text()
			base.RelatedTo[reltype] = append(base.RelatedTo[reltype], text)
		}
	}

	if geoProp := comp.Props.Get(ical.PropGeo); geoProp != nil {
		p, err := parseGeo(geoProp.Value)
		if err != nil {
			return base, redicalerr.Wrap(redicalerr.Parse, err, "invalid GEO")
		}
		base.Geo = &p
	}

	base.Passive = decodePassive(comp)
	return base, nil
}

func decodeSchedule(comp *ical.Component) (recurrence.Schedule, *redicalerr.Error) {
	var sched recurrence.Schedule

	dtStartProp := comp.Props.Get(ical.PropDateTimeStart)
	if dtStartProp == nil {
		return sched, redicalerr.New(redicalerr.Parse, "VEVENT missing required DTSTART")
	}
	dt, err := parseDateTimeProp(dtStartProp)
	if err != nil {
		return sched, redicalerr.Wrap(redicalerr.Parse, err, "invalid DTSTART")
	}
	sched.DTStart = dt

	if endProp := comp.Props.Get(ical.PropDateTimeEnd); endProp != nil {
		end, err := parseDateTimeProp(endProp)
		if err != nil {
			return sched, redicalerr.Wrap(redicalerr.Parse, err, "invalid DTEND")
		}
		sched.DTEnd = &end
	} else if durProp := comp.Props.Get(ical.PropDuration); durProp != nil {
		dur, err := durProp.Duration()
		if err != nil {
			return sched, redicalerr.Wrap(redicalerr.Parse, err, "invalid DURATION")
		}
		d := value.Duration(dur / time.Second)
		sched.Duration = &d
	}

	if rruleProp := comp.Props.Get(ical.PropRecurrenceRule); rruleProp != nil {
		sched.RRule = rruleProp.Value
	}
	if exruleProps := comp.Props["EXRULE"]; len(exruleProps) > 0 {
		sched.ExRule = exruleProps[0].Value
	}

	for _, prop := range comp.Props[ical.PropRecurrenceDates] {
		ts, err := parseDateTimeProp(&prop)
		if err != nil {
			return sched, redicalerr.Wrap(redicalerr.Parse, err, "invalid RDATE")
		}
		sched.RDate = append(sched.RDate, ts.UTC)
	}
	for _, prop := range comp.Props[ical.PropExceptionDates] {
		ts, err := parseDateTimeProp(&prop)
		if err != nil {
			return sched, redicalerr.Wrap(redicalerr.Parse, err, "invalid EXDATE")
		}
		sched.ExDate = append(sched.ExDate, ts.UTC)
	}

	return sched, nil
}

func parseDateTimeProp(prop *ical.Prop) (value.DateTime, error) {
	tzid := prop.Params.Get(ical.ParamTimezoneID)
	loc, lerr := value.DefaultTZLookup(tzid)
	if lerr != nil {
		return value.DateTime{}, fmt.Errorf("unknown TZID %q: %w", tzid, lerr)
	}
	t, err := prop.DateTime(loc)
	if err != nil {
		return value.DateTime{}, err
	}
	zone := tzid
	if zone == "" {
		zone = "UTC"
	}
	return value.DateTime{UTC: value.TimestampFromTime(t), Zone: zone}, nil
}

// decodePassive collects every property this adapter doesn't otherwise
// index, storing its first value verbatim. Passive properties are never
// indexed and never filter-able.
func decodePassive(comp *ical.Component) map[string]string {
	indexed := map[string]bool{
		ical.PropCategories:  true,
		ical.PropClass:       true,
		ical.PropRelatedTo:   true,
		ical.PropGeo:         true,
	}
	passive := make(map[string]string)
	for name, props := range comp.Props {
		if scheduleProps[name] || indexed[name] || len(props) == 0 {
			continue
		}
		passive[name] = props[0].Value
	}
	return passive
}

func parseGeo(raw string) (value.GeoPoint, error) {
	parts := strings.Split(raw, ";")
	if len(parts) != 2 {
		return value.GeoPoint{}, fmt.Errorf("expected lat;long, got %q", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return value.GeoPoint{}, fmt.Errorf("invalid latitude: %w", err)
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return value.GeoPoint{}, fmt.Errorf("invalid longitude: %w", err)
	}
	return value.GeoPoint{Lat: lat, Long: long}, nil
}

// EncodeEvent serialises base back to a single-VEVENT VCALENDAR, with
// parameters sorted by name and multi-valued properties sorted ascending
// for a deterministic wire format.
func EncodeEvent(base instance.Base) (string, *redicalerr.Error) {
	comp := ical.NewComponent(ical.CompEvent)
	comp.Props.SetText(ical.PropUID, string(base.UID))

	startProp := ical.NewProp(ical.PropDateTimeStart)
	setDateTimeProp(startProp, base.Schedule.DTStart)
	comp.Props.Set(startProp)

	switch {
	case base.Schedule.DTEnd != nil:
		endProp := ical.NewProp(ical.PropDateTimeEnd)
		setDateTimeProp(endProp, *base.Schedule.DTEnd)
		comp.Props.Set(endProp)
	case base.Schedule.Duration != nil:
		durProp := ical.NewProp(ical.PropDuration)
		durProp.SetDuration(time.Duration(*base.Schedule.Duration) * time.Second)
		comp.Props.Set(durProp)
	}

	if base.Schedule.RRule != "" {
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.SetValueType(ical.ValueRecurrence)
		prop.Value = base.Schedule.RRule
		comp.Props.Set(prop)
	}
	if base.Schedule.ExRule != "" {
		prop := ical.NewProp("EXRULE")
		prop.SetValueType(ical.ValueRecurrence)
		prop.Value = base.Schedule.ExRule
		comp.Props.Set(prop)
	}
	for _, ts := range sortedTimestamps(base.Schedule.RDate) {
		prop := ical.NewProp(ical.PropRecurrenceDates)
		setDateTimeProp(prop, value.DateTime{UTC: ts, Zone: "UTC"})
		comp.Props.Add(prop)
	}
	for _, ts := range sortedTimestamps(base.Schedule.ExDate) {
		prop := ical.NewProp(ical.PropExceptionDates)
		setDateTimeProp(prop, value.DateTime{UTC: ts, Zone: "UTC"})
		comp.Props.Add(prop)
	}

	if base.Categories.Len() > 0 {
		terms := append([]string(nil), base.Categories.Terms()...)
		sort.Strings(terms)
		prop := ical.NewProp(ical.PropCategories)
		prop.SetTextList(terms)
		comp.Props.Set(prop)
	}
	if base.Class != "" {
		comp.Props.SetText(ical.PropClass, base.Class)
	}
	if base.Geo != nil {
		prop := ical.NewProp(ical.PropGeo)
		prop.Value = fmt.Sprintf("%v;%v", base.Geo.Lat, base.Geo.Long)
		comp.Props.Set(prop)
	}

	reltypes := make([]string, 0, len(base.RelatedTo))
	for reltype := range base.RelatedTo {
		reltypes = append(reltypes, reltype)
	}
	sort.Strings(reltypes)
	for _, reltype := range reltypes {
		values := append([]string(nil), base.RelatedTo[reltype]...)
		sort.Strings(values)
		for _, v := range values {
			prop := ical.NewProp(ical.PropRelatedTo)
			prop.Params.Set(ical.ParamRelationshipType, reltype)
			prop.SetText(v)
			comp.Props.Add(prop)
		}
	}

	names := make([]string, 0, len(base.Passive))
	for name := range base.Passive {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		comp.Props.SetText(name, base.Passive[name])
	}

	cal := &ical.Calendar{Component: ical.NewComponent(ical.CompCalendar)}
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//redical//redical//EN")
	cal.Children = append(cal.Children, comp)

	var sb strings.Builder
	if err := ical.NewEncoder(&sb).Encode(cal); err != nil {
		return "", redicalerr.Wrap(redicalerr.Internal, err, "failed to encode event %q", base.UID)
	}
	return sb.String(), nil
}

func setDateTimeProp(prop *ical.Prop, dt value.DateTime) {
	t := dt.UTC.Time()
	if dt.Zone != "" && dt.Zone != "UTC" {
		if loc, err := value.DefaultTZLookup(dt.Zone); err == nil {
			t = t.In(loc)
			prop.Params.Set(ical.ParamTimezoneID, dt.Zone)
		}
	}
	prop.SetDateTime(t)
}

func sortedTimestamps(ts []value.Timestamp) []value.Timestamp {
	out := append([]value.Timestamp(nil), ts...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DecodeOverride parses EVO_SET content (the same VEVENT grammar, but any
// property may be absent to mean "inherit") into an Override.
func DecodeOverride(r io.Reader) (override.Override, *redicalerr.Error) {
	cal, err := ical.NewDecoder(r).Decode()
	if err != nil {
		return override.Override{}, redicalerr.Wrap(redicalerr.Parse, err, "malformed override content").AtOffset(0)
	}

	var comp *ical.Component
	for _, child := range cal.Children {
		if child.Name == ical.CompEvent {
			comp = child
			break
		}
	}
	if comp == nil {
		return override.Override{}, redicalerr.New(redicalerr.Parse, "no VEVENT component found in override content")
	}

	var ovr override.Override

	if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
		dt, err := parseDateTimeProp(prop)
		if err != nil {
			return ovr, redicalerr.Wrap(redicalerr.Parse, err, "invalid override DTSTART")
		}
		ovr.DTStart = &dt
	}
	if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
		dt, err := parseDateTimeProp(prop)
		if err != nil {
			return ovr, redicalerr.Wrap(redicalerr.Parse, err, "invalid override DTEND")
		}
		ovr.DTEnd = &dt
	}
	if prop := comp.Props.Get(ical.PropDuration); prop != nil {
		dur, err := prop.Duration()
		if err != nil {
			return ovr, redicalerr.Wrap(redicalerr.Parse, err, "invalid override DURATION")
		}
		d := value.Duration(dur / time.Second)
		ovr.Duration = &d
	}
	if prop := comp.Props.Get(ical.PropCategories); prop != nil {
		terms, err := prop.TextList()
		if err != nil {
			return ovr, redicalerr.Wrap(redicalerr.Parse, err, "invalid override CATEGORIES")
		}
		set := value.NewTextSet(terms...)
		ovr.Categories = &set
	}
	if prop := comp.Props.Get(ical.PropClass); prop != nil {
		text, _ := prop.Text()
		ovr.Class = &text
	}
	if prop := comp.Props.Get(ical.PropGeo); prop != nil {
		p, err := parseGeo(prop.Value)
		if err != nil {
			return ovr, redicalerr.Wrap(redicalerr.Parse, err, "invalid override GEO")
		}
		ovr.Geo = &p
	}
	if relProps := comp.Props[ical.PropRelatedTo]; len(relProps) > 0 {
		ovr.RelatedTo = make(map[string][]string)
		for _, prop := range relProps {
			reltype := prop.Params.Get(ical.ParamRelationshipType)
			if reltype == "" {
				reltype = "PARENT"
			}
			text, _ := prop.Text()
			ovr.RelatedTo[reltype] = append(ovr.RelatedTo[reltype], text)
		}
	}

	passive := decodePassive(comp)
	if len(passive) > 0 {
		ovr.Passive = passive
	}

	return ovr, nil
}
