package command

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redical/redical/calendar"
	"github.com/redical/redical/icalx"
	"github.com/redical/redical/instance"
	"github.com/redical/redical/override"
	"github.com/redical/redical/query"
	"github.com/redical/redical/recurrence"
	"github.com/redical/redical/redicalerr"
	"github.com/redical/redical/value"
)

func (d *Dispatcher) calSet(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 1); err != nil {
		return Reply{}, err
	}
	uid := value.UID(args[0])
	d.Store.Ensure(uid)
	d.publish("rdcl.CAL_SET", uid)
	return bulkReply("UID:" + string(uid)), nil
}

func (d *Dispatcher) calGet(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 1); err != nil {
		return Reply{}, err
	}
	uid := value.UID(args[0])
	if _, ok := d.Store.Get(uid); !ok {
		return nullReply(), nil
	}
	return bulkReply("UID:" + string(uid)), nil
}

func (d *Dispatcher) calIdxDisable(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 1); err != nil {
		return Reply{}, err
	}
	uid := value.UID(args[0])
	cal, ok := d.Store.Get(uid)
	if !ok {
		return Reply{}, redicalerr.New(redicalerr.Missing, "calendar %q not found", uid)
	}
	cal.DisableIndexes()
	d.publish("rdcl.CAL_IDX_DISABLE", uid)
	return boolReply(true), nil
}

func (d *Dispatcher) calIdxRebuild(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 1); err != nil {
		return Reply{}, err
	}
	uid := value.UID(args[0])
	cal, ok := d.Store.Get(uid)
	if !ok {
		return Reply{}, redicalerr.New(redicalerr.Missing, "calendar %q not found", uid)
	}
	cal.RebuildIndexes()
	d.publish("rdcl.CAL_IDX_REBUILD", uid)
	return boolReply(true), nil
}

func (d *Dispatcher) evtSet(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 3); err != nil {
		return Reply{}, err
	}
	calUID, eventUID, content := value.UID(args[0]), value.UID(args[1]), args[2]
	if eventUID == "" {
		eventUID = value.UID(uuid.New().String())
	}

	base, derr := icalx.DecodeEvent(strings.NewReader(content))
	if derr != nil {
		return Reply{}, derr
	}
	base.UID = eventUID

	cal := d.Store.Ensure(calUID)
	var overrides override.Store
	if existing, ok := cal.GetEvent(eventUID); ok {
		overrides = existing.Overrides
	}
	if err := cal.SetEvent(eventUID, base, overrides); err != nil {
		return Reply{}, err
	}

	encoded, eerr := icalx.EncodeEvent(base)
	if eerr != nil {
		return Reply{}, eerr
	}
	d.publish("rdcl.EVT_SET", calUID)
	return bulkReply(encoded), nil
}

func (d *Dispatcher) evtGet(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 2); err != nil {
		return Reply{}, err
	}
	calUID, eventUID := value.UID(args[0]), value.UID(args[1])
	cal, ok := d.Store.Get(calUID)
	if !ok {
		return nullReply(), nil
	}
	event, ok := cal.GetEvent(eventUID)
	if !ok {
		return nullReply(), nil
	}
	encoded, err := icalx.EncodeEvent(event.Base)
	if err != nil {
		return Reply{}, err
	}
	return bulkReply(encoded), nil
}

func (d *Dispatcher) evtDel(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 2); err != nil {
		return Reply{}, err
	}
	calUID, eventUID := value.UID(args[0]), value.UID(args[1])
	cal, ok := d.Store.Get(calUID)
	if !ok {
		return boolReply(false), nil
	}
	deleted := cal.DeleteEvent(eventUID)
	if deleted {
		d.publish("rdcl.EVT_DEL", calUID)
	}
	return boolReply(deleted), nil
}

func (d *Dispatcher) evtList(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 1); err != nil {
		return Reply{}, err
	}
	calUID := value.UID(args[0])
	cal, ok := d.Store.Get(calUID)
	if !ok {
		return arrayReply(nil), nil
	}

	offset, count, err := parseOffsetCount(args[1:])
	if err != nil {
		return Reply{}, err
	}

	uids := cal.ListEvents()
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	uids = paginateUIDs(uids, offset, count)

	out := make([]string, 0, len(uids))
	for _, uid := range uids {
		event, ok := cal.GetEvent(uid)
		if !ok {
			continue
		}
		encoded, eerr := icalx.EncodeEvent(event.Base)
		if eerr != nil {
			return Reply{}, eerr
		}
		out = append(out, encoded)
	}
	return arrayReply(out), nil
}

// evtPrune deletes events that can never produce another occurrence at or
// after upperBound: their recurrence has no occurrence in the engine-horizon
// window starting at upperBound, and no override keeps an instance alive
// past it. An unbounded RRULE (no COUNT/UNTIL) always has occurrences within
// that window and is therefore never pruned by this rule.
func (d *Dispatcher) evtPrune(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 2); err != nil {
		return Reply{}, err
	}
	calUID := value.UID(args[0])
	upperBound, perr := parseTimestamp(args[1])
	if perr != nil {
		return Reply{}, perr
	}

	cal, ok := d.Store.Get(calUID)
	if !ok {
		return intReply(0), nil
	}

	pruned := 0
	for _, uid := range cal.ListEvents() {
		event, ok := cal.GetEvent(uid)
		if !ok {
			continue
		}
		if d.isFullyPast(event, upperBound) {
			cal.DeleteEvent(uid)
			pruned++
		}
	}
	if pruned > 0 {
		d.publish("rdcl.EVT_PRUNE", calUID)
	}
	return intReply(pruned), nil
}

func (d *Dispatcher) isFullyPast(event *calendar.Event, upperBound value.Timestamp) bool {
	anchor := upperBound
	until := anchor.Add(value.Duration(query.DefaultHorizon / time.Second))

	iter, err := recurrence.Expand(event.Schedule, anchor, until, d.TZ)
	if err != nil {
		return false
	}
	for {
		occ, ok := iter.Next()
		if !ok {
			break
		}
		if occ.Start >= upperBound {
			return false
		}
	}

	stillAlive := false
	event.Overrides.Iter(func(ts value.Timestamp, ovr override.Override) bool {
		effective := ts
		if ovr.DTStart != nil {
			effective = ovr.DTStart.UTC
		}
		if effective >= upperBound {
			stillAlive = true
			return false
		}
		return true
	})
	return !stillAlive
}

func (d *Dispatcher) eviList(ctx context.Context, args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 2); err != nil {
		return Reply{}, err
	}
	calUID, eventUID := value.UID(args[0]), value.UID(args[1])
	cal, ok := d.Store.Get(calUID)
	if !ok {
		return arrayReply(nil), nil
	}

	offset, count, err := parseOffsetCount(args[2:])
	if err != nil {
		return Reply{}, err
	}
	if count < 0 {
		count = unboundedLimit
	}

	q := &query.Query{
		Limit:   count,
		Offset:  offset,
		OrderBy: query.OrderByDTStart,
		Where:   &query.Where{Kind: query.NodeUID, Op: query.OpOr, Terms: []string{string(eventUID)}},
	}
	ex := query.NewExecutor(d.TZ)
	res, qerr := ex.Run(ctx, cal, q)
	if qerr != nil {
		return Reply{}, qerr
	}
	return instancesToReply(res.Instances)
}

func (d *Dispatcher) eviQuery(ctx context.Context, args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 2); err != nil {
		return Reply{}, err
	}
	calUID, content := value.UID(args[0]), args[1]
	cal, ok := d.Store.Get(calUID)
	if !ok {
		return Reply{}, redicalerr.New(redicalerr.Missing, "calendar %q not found", calUID)
	}

	q, perr := query.Parse(content)
	if perr != nil {
		return Reply{}, perr
	}
	if !cal.IndexesEnabled() && q.Where != nil {
		return Reply{}, redicalerr.New(redicalerr.IndexDisabled, "indexes disabled on calendar %q", calUID)
	}

	ex := query.NewExecutor(d.TZ)
	res, qerr := ex.Run(ctx, cal, q)
	if qerr != nil {
		return Reply{}, qerr
	}
	if res.Truncated {
		return Reply{}, redicalerr.New(redicalerr.Timeout, "query on calendar %q exceeded its budget", calUID)
	}
	return instancesToReply(res.Instances)
}

func instancesToReply(instances []instance.EventInstance) (Reply, *redicalerr.Error) {
	out := make([]string, 0, len(instances))
	for _, inst := range instances {
		encoded, err := icalx.EncodeInstance(inst)
		if err != nil {
			return Reply{}, err
		}
		out = append(out, encoded)
	}
	return arrayReply(out), nil
}

func (d *Dispatcher) evoSet(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 4); err != nil {
		return Reply{}, err
	}
	calUID, eventUID := value.UID(args[0]), value.UID(args[1])
	ts, terr := parseTimestamp(args[2])
	if terr != nil {
		return Reply{}, terr
	}
	content := args[3]

	cal, ok := d.Store.Get(calUID)
	if !ok {
		return Reply{}, redicalerr.New(redicalerr.Missing, "calendar %q not found", calUID)
	}
	event, ok := cal.GetEvent(eventUID)
	if !ok {
		return Reply{}, redicalerr.New(redicalerr.Missing, "event %q not found", eventUID)
	}

	ovr, derr := icalx.DecodeOverride(strings.NewReader(content))
	if derr != nil {
		return Reply{}, derr
	}
	event.Overrides.Set(ts, ovr)
	if err := cal.SetEvent(eventUID, event.Base, event.Overrides); err != nil {
		return Reply{}, err
	}

	encoded, eerr := icalx.EncodeOverride(ovr)
	if eerr != nil {
		return Reply{}, eerr
	}
	d.publish("rdcl.EVO_SET", calUID)
	return bulkReply(encoded), nil
}

func (d *Dispatcher) evoGet(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 3); err != nil {
		return Reply{}, err
	}
	calUID, eventUID := value.UID(args[0]), value.UID(args[1])
	ts, terr := parseTimestamp(args[2])
	if terr != nil {
		return Reply{}, terr
	}

	cal, ok := d.Store.Get(calUID)
	if !ok {
		return nullReply(), nil
	}
	event, ok := cal.GetEvent(eventUID)
	if !ok {
		return nullReply(), nil
	}
	ovr, ok := event.Overrides.Get(ts)
	if !ok {
		return nullReply(), nil
	}
	encoded, err := icalx.EncodeOverride(ovr)
	if err != nil {
		return Reply{}, err
	}
	return bulkReply(encoded), nil
}

func (d *Dispatcher) evoDel(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 3); err != nil {
		return Reply{}, err
	}
	calUID, eventUID := value.UID(args[0]), value.UID(args[1])
	ts, terr := parseTimestamp(args[2])
	if terr != nil {
		return Reply{}, terr
	}

	cal, ok := d.Store.Get(calUID)
	if !ok {
		return boolReply(false), nil
	}
	event, ok := cal.GetEvent(eventUID)
	if !ok {
		return boolReply(false), nil
	}
	removed := event.Overrides.Remove(ts)
	if removed {
		if err := cal.SetEvent(eventUID, event.Base, event.Overrides); err != nil {
			return Reply{}, err
		}
		d.publish("rdcl.EVO_DEL", calUID)
	}
	return boolReply(removed), nil
}

func (d *Dispatcher) evoList(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 2); err != nil {
		return Reply{}, err
	}
	calUID, eventUID := value.UID(args[0]), value.UID(args[1])
	cal, ok := d.Store.Get(calUID)
	if !ok {
		return arrayReply(nil), nil
	}
	event, ok := cal.GetEvent(eventUID)
	if !ok {
		return arrayReply(nil), nil
	}

	offset, count, err := parseOffsetCount(args[2:])
	if err != nil {
		return Reply{}, err
	}

	type tsOvr struct {
		ts  value.Timestamp
		ovr override.Override
	}
	var all []tsOvr
	event.Overrides.Iter(func(ts value.Timestamp, ovr override.Override) bool {
		all = append(all, tsOvr{ts, ovr})
		return true
	})
	all = all[minInt(offset, len(all)):]
	if count >= 0 && count < len(all) {
		all = all[:count]
	}

	out := make([]string, 0, len(all))
	for _, e := range all {
		encoded, eerr := icalx.EncodeOverride(e.ovr)
		if eerr != nil {
			return Reply{}, eerr
		}
		out = append(out, encoded)
	}
	return arrayReply(out), nil
}

func (d *Dispatcher) evoPrune(args []string) (Reply, *redicalerr.Error) {
	if err := requireArgs(args, 3); err != nil {
		return Reply{}, err
	}
	calUID, eventUID := value.UID(args[0]), value.UID(args[1])
	upperBound, terr := parseTimestamp(args[2])
	if terr != nil {
		return Reply{}, terr
	}

	cal, ok := d.Store.Get(calUID)
	if !ok {
		return intReply(0), nil
	}
	event, ok := cal.GetEvent(eventUID)
	if !ok {
		return intReply(0), nil
	}
	n := event.Overrides.PruneBefore(upperBound)
	if n > 0 {
		if err := cal.SetEvent(eventUID, event.Base, event.Overrides); err != nil {
			return Reply{}, err
		}
		d.publish("rdcl.EVO_PRUNE", calUID)
	}
	return intReply(n), nil
}

// unboundedLimit stands in for "no count given" when bridging EVI_LIST's
// optional count onto query.Query.Limit, which has no off switch of its own.
const unboundedLimit = 1 << 30

func parseOffsetCount(args []string) (offset, count int, err *redicalerr.Error) {
	count = -1
	if len(args) >= 1 {
		n, cerr := strconv.Atoi(args[0])
		if cerr != nil || n < 0 {
			return 0, 0, redicalerr.New(redicalerr.Parse, "invalid offset %q", args[0])
		}
		offset = n
	}
	if len(args) >= 2 {
		n, cerr := strconv.Atoi(args[1])
		if cerr != nil || n < 0 {
			return 0, 0, redicalerr.New(redicalerr.Parse, "invalid count %q", args[1])
		}
		count = n
	}
	return offset, count, nil
}

func paginateUIDs(uids []value.UID, offset, count int) []value.UID {
	if offset > len(uids) {
		offset = len(uids)
	}
	uids = uids[offset:]
	if count >= 0 && count < len(uids) {
		uids = uids[:count]
	}
	return uids
}

func parseTimestamp(raw string) (value.Timestamp, *redicalerr.Error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, redicalerr.New(redicalerr.Parse, "invalid timestamp %q", raw)
	}
	return value.Timestamp(n), nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
