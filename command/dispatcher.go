// Package command implements the engine's external command surface: one
// method per verb, dispatched by name, each operating against a
// calendar.Store. It's a thin routing layer in front of the aggregate that
// does the real work, with named commands over calendar keys standing in
// for HTTP verbs and paths.
package command

import (
	"context"

	"github.com/redical/redical/calendar"
	"github.com/redical/redical/redicalerr"
	"github.com/redical/redical/value"
)

// ReplyKind tags what a Reply carries: a status value, a bulk string, a
// content-line array, a count, a boolean, or null.
type ReplyKind int

const (
	ReplyStatus ReplyKind = iota
	ReplyBulk
	ReplyArray
	ReplyInt
	ReplyBool
	ReplyNull
)

// Reply is a command's successful result.
type Reply struct {
	Kind   ReplyKind
	Status string
	Bulk   string
	Array  []string
	Int    int
	Bool   bool
}

func statusReply(s string) Reply   { return Reply{Kind: ReplyStatus, Status: s} }
func bulkReply(s string) Reply     { return Reply{Kind: ReplyBulk, Bulk: s} }
func arrayReply(a []string) Reply  { return Reply{Kind: ReplyArray, Array: a} }
func intReply(n int) Reply         { return Reply{Kind: ReplyInt, Int: n} }
func boolReply(b bool) Reply       { return Reply{Kind: ReplyBool, Bool: b} }
func nullReply() Reply             { return Reply{Kind: ReplyNull} }

// Notification is one keyspace-style event published after a write, naming
// the verb and the calendar key it touched. Nothing in this engine actually
// replicates or notifies a keyspace; the channel is the hook a host would
// wire to its own pub/sub.
type Notification struct {
	Verb        string
	CalendarUID value.UID
}

// Dispatcher routes named commands to calendar.Store operations. It holds
// no per-request state; callers may share one Dispatcher across goroutines.
type Dispatcher struct {
	Store *calendar.Store
	TZ    value.TZLookup

	notify chan Notification
}

// NewDispatcher builds a Dispatcher over store. tz resolves timezones for
// iCal decode/encode and query execution; nil uses value.DefaultTZLookup.
func NewDispatcher(store *calendar.Store, tz value.TZLookup) *Dispatcher {
	if tz == nil {
		tz = value.DefaultTZLookup
	}
	return &Dispatcher{Store: store, TZ: tz, notify: make(chan Notification, 64)}
}

// Notifications returns the channel commands publish to after each write.
// A host with no interest in keyspace events may simply never read it; the
// buffered channel absorbs a burst without blocking writers, and once the
// buffer is full a new notification is dropped rather than stall a command.
func (d *Dispatcher) Notifications() <-chan Notification {
	return d.notify
}

func (d *Dispatcher) publish(verb string, calUID value.UID) {
	select {
	case d.notify <- Notification{Verb: verb, CalendarUID: calUID}:
	default:
	}
}

// Dispatch routes verb to its handler. args are positional, already split
// on the transport's own delimiter (cmd/redical-server's line reader splits
// every field on whitespace). Internal-kind errors are logged before they
// are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, verb string, args []string) (Reply, *redicalerr.Error) {
	reply, err := d.route(ctx, verb, args)
	if err != nil && err.Kind == redicalerr.Internal {
		redicalerr.LogInternal(err)
	}
	return reply, err
}

func (d *Dispatcher) route(ctx context.Context, verb string, args []string) (Reply, *redicalerr.Error) {
	switch verb {
	case "CAL_SET":
		return d.calSet(args)
	case "CAL_GET":
		return d.calGet(args)
	case "CAL_IDX_DISABLE":
		return d.calIdxDisable(args)
	case "CAL_IDX_REBUILD":
		return d.calIdxRebuild(args)

	case "EVT_SET":
		return d.evtSet(args)
	case "EVT_GET":
		return d.evtGet(args)
	case "EVT_DEL":
		return d.evtDel(args)
	case "EVT_LIST":
		return d.evtList(args)
	case "EVT_PRUNE":
		return d.evtPrune(args)

	case "EVI_LIST":
		return d.eviList(ctx, args)
	case "EVI_QUERY", "EVT_QUERY":
		return d.eviQuery(ctx, args)

	case "EVO_SET":
		return d.evoSet(args)
	case "EVO_GET":
		return d.evoGet(args)
	case "EVO_DEL":
		return d.evoDel(args)
	case "EVO_LIST":
		return d.evoList(args)
	case "EVO_PRUNE":
		return d.evoPrune(args)

	default:
		return Reply{}, redicalerr.New(redicalerr.Parse, "unknown command %q", verb)
	}
}

func requireArgs(args []string, n int) *redicalerr.Error {
	if len(args) < n {
		return redicalerr.New(redicalerr.Parse, "expected at least %d arguments, got %d", n, len(args))
	}
	return nil
}
