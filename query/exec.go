package query

import (
	"container/heap"
	"context"
	"time"

	"github.com/redical/redical/calendar"
	"github.com/redical/redical/instance"
	"github.com/redical/redical/override"
	"github.com/redical/redical/recurrence"
	"github.com/redical/redical/redicalerr"
	"github.com/redical/redical/value"
)

// DefaultHorizon bounds expansion of an otherwise-unbounded recurrence when
// a query supplies no DTSTART-relative X-UNTIL, anchored at X-FROM (or the
// event's own DTSTART when X-FROM is absent).
const DefaultHorizon = 10 * 365 * 24 * time.Hour

// Result is what Executor.Run returns: the ordered, paginated instances plus
// whether the wall-clock budget cut the scan short.
type Result struct {
	Instances []instance.EventInstance
	Truncated bool
}

// Executor runs the planned candidate set through per-candidate recurrence
// expansion, a k-way merge by X-ORDER-BY, X-DISTINCT dedup, and pagination.
type Executor struct {
	tz value.TZLookup
}

// NewExecutor constructs an Executor resolving timezones via tz (nil uses
// value.DefaultTZLookup).
func NewExecutor(tz value.TZLookup) *Executor {
	if tz == nil {
		tz = value.DefaultTZLookup
	}
	return &Executor{tz: tz}
}

// Run executes q against cal. The wall-clock budget in ctx, if any, is
// sampled between candidates only (never between instances within one
// candidate).
func (ex *Executor) Run(ctx context.Context, cal *calendar.Calendar, q *Query) (*Result, *redicalerr.Error) {
	candidates, err := Plan(cal, q.Where)
	if err != nil {
		return nil, err
	}

	h := &instanceHeap{orderBy: q.OrderBy, centre: q.GeoCentre}
	heap.Init(h)

	truncated := false
candidateLoop:
	for uid := range candidates {
		select {
		case <-ctx.Done():
			truncated = true
			break candidateLoop
		default:
		}

		event, ok := cal.GetEvent(uid)
		if !ok {
			continue
		}
		insts, cerr := ex.buildCandidateInstances(event, q)
		if cerr != nil {
			redicalerr.LogInternal(cerr)
			continue
		}
		for _, inst := range insts {
			heap.Push(h, inst)
		}
	}

	return &Result{Instances: collect(h, q), Truncated: truncated}, nil
}

// buildCandidateInstances expands event's base occurrences within the
// anchor-to-horizon window, layers overrides onto matching occurrences,
// surfaces detached overrides as isolated instances, and filters the
// combined set against q.From/q.Until exactly (the Expand window above is a
// DTSTART-based superset; DTEND-relative bounds are only checked here,
// per-instance).
func (ex *Executor) buildCandidateInstances(event *calendar.Event, q *Query) ([]instance.EventInstance, *redicalerr.Error) {
	anchor := event.Schedule.DTStart.UTC
	if q.From != nil && q.From.Prop == PropDTStart && q.From.TS > anchor {
		anchor = q.From.TS
	}
	until := anchor.Add(value.Duration(DefaultHorizon / time.Second))
	if q.Until != nil && q.Until.Prop == PropDTStart {
		// Expand's window is half-open; one second more keeps an LTE bound's
		// own timestamp inside it. matchesBounds applies the exact op below.
		until = q.Until.TS.Add(1)
	}

	iter, err := recurrence.Expand(event.Schedule, anchor, until, ex.tz)
	if err != nil {
		return nil, err
	}

	occByTS := make(map[value.Timestamp]recurrence.Occurrence)
	for {
		occ, ok := iter.Next()
		if !ok {
			break
		}
		occByTS[occ.Start] = occ
	}

	var overrides []struct {
		ts  value.Timestamp
		ovr override.Override
	}
	event.Overrides.Iter(func(ts value.Timestamp, ovr override.Override) bool {
		if ts >= anchor && ts < until {
			overrides = append(overrides, struct {
				ts  value.Timestamp
				ovr override.Override
			}{ts, ovr})
		}
		return true
	})

	overrideByTS := make(map[value.Timestamp]override.Override, len(overrides))
	for _, o := range overrides {
		overrideByTS[o.ts] = o.ovr
	}

	out := make([]instance.EventInstance, 0, len(occByTS)+len(overrides))
	for ts, occ := range occByTS {
		var ovrPtr *override.Override
		if ovr, ok := overrideByTS[ts]; ok {
			ovrPtr = &ovr
		}
		inst := instance.Materialize(event.Base, occ, ovrPtr)
		if matchesBounds(inst, q) {
			out = append(out, inst)
		}
	}
	for _, o := range overrides {
		if _, isBase := occByTS[o.ts]; isBase {
			continue
		}
		inst, derr := instance.MaterializeDetached(event.Base, o.ts, o.ovr)
		if derr != nil {
			redicalerr.LogInternal(derr)
			continue
		}
		if matchesBounds(inst, q) {
			out = append(out, inst)
		}
	}

	sortInstances(out)
	return out, nil
}

func matchesBounds(inst instance.EventInstance, q *Query) bool {
	if q.From != nil && !boundSatisfied(inst, q.From) {
		return false
	}
	if q.Until != nil && !boundSatisfied(inst, q.Until) {
		return false
	}
	return true
}

func boundSatisfied(inst instance.EventInstance, b *Bound) bool {
	ts := inst.DTStart
	if b.Prop == PropDTEnd {
		ts = inst.DTEnd
	}
	switch b.Op {
	case OpGT:
		return ts > b.TS
	case OpGTE:
		return ts >= b.TS
	case OpLT:
		return ts < b.TS
	case OpLTE:
		return ts <= b.TS
	default:
		return true
	}
}

func sortInstances(insts []instance.EventInstance) {
	// Insertion sort: candidate result sets are small (bounded by a single
	// event's occurrences within the window), and this keeps the dependency
	// to container/heap, already imported for the cross-candidate merge,
	// rather than pulling in sort for a handful of elements twice.
	for i := 1; i < len(insts); i++ {
		for j := i; j > 0 && insts[j].DTStart < insts[j-1].DTStart; j-- {
			insts[j], insts[j-1] = insts[j-1], insts[j]
		}
	}
}

// collect pops h in order, applying X-DISTINCT, X-OFFSET and X-LIMIT.
func collect(h *instanceHeap, q *Query) []instance.EventInstance {
	seen := make(map[value.UID]bool)
	skip := q.Offset
	out := make([]instance.EventInstance, 0, q.Limit)

	for h.Len() > 0 && len(out) < q.Limit {
		inst := heap.Pop(h).(instance.EventInstance)
		if q.Distinct {
			if seen[inst.UID] {
				continue
			}
			seen[inst.UID] = true
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, inst)
	}
	return out
}

// instanceHeap is a min-heap over instances ordered by X-ORDER-BY.
type instanceHeap struct {
	items   []instance.EventInstance
	orderBy OrderBy
	centre  value.GeoPoint
}

func (h *instanceHeap) Len() int { return len(h.items) }

func (h *instanceHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.DTStart != b.DTStart {
		return a.DTStart < b.DTStart
	}
	if h.orderBy == OrderByDTStartThenGeoDist {
		return h.distance(a) < h.distance(b)
	}
	return a.UID < b.UID
}

func (h *instanceHeap) distance(inst instance.EventInstance) float64 {
	if inst.Geo == nil {
		return float64(1<<63 - 1)
	}
	return h.centre.HaversineMeters(*inst.Geo)
}

func (h *instanceHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *instanceHeap) Push(x interface{}) {
	h.items = append(h.items, x.(instance.EventInstance))
}

func (h *instanceHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

var _ heap.Interface = (*instanceHeap)(nil)
