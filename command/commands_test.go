package command

import (
	"context"
	"strings"
	"testing"

	"github.com/redical/redical/calendar"
	"github.com/redical/redical/redicalerr"
)

const sampleEvent = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//test//EN\r\nBEGIN:VEVENT\r\nUID:evt-1\r\nDTSTART:19970902T090000Z\r\nRRULE:FREQ=DAILY;COUNT=3\r\nCATEGORIES:APPOINTMENT\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(calendar.NewStore(), nil)
}

func TestCalSetThenGet(t *testing.T) {
	d := newTestDispatcher()
	if _, err := d.Dispatch(context.Background(), "CAL_SET", []string{"cal-1"}); err != nil {
		t.Fatalf("CAL_SET: %v", err)
	}
	reply, err := d.Dispatch(context.Background(), "CAL_GET", []string{"cal-1"})
	if err != nil {
		t.Fatalf("CAL_GET: %v", err)
	}
	if reply.Kind != ReplyBulk || !strings.Contains(reply.Bulk, "cal-1") {
		t.Fatalf("unexpected CAL_GET reply: %+v", reply)
	}
}

func TestCalGetMissingReturnsNull(t *testing.T) {
	d := newTestDispatcher()
	reply, err := d.Dispatch(context.Background(), "CAL_GET", []string{"nope"})
	if err != nil {
		t.Fatalf("CAL_GET: %v", err)
	}
	if reply.Kind != ReplyNull {
		t.Fatalf("expected null reply, got %+v", reply)
	}
}

func TestEvtSetGetRoundTrip(t *testing.T) {
	d := newTestDispatcher()
	if _, err := d.Dispatch(context.Background(), "EVT_SET", []string{"cal-1", "evt-1", sampleEvent}); err != nil {
		t.Fatalf("EVT_SET: %v", err)
	}
	reply, err := d.Dispatch(context.Background(), "EVT_GET", []string{"cal-1", "evt-1"})
	if err != nil {
		t.Fatalf("EVT_GET: %v", err)
	}
	if reply.Kind != ReplyBulk || !strings.Contains(reply.Bulk, "APPOINTMENT") {
		t.Fatalf("expected round-tripped CATEGORIES, got %+v", reply)
	}
}

func TestEvtDelRemovesEvent(t *testing.T) {
	d := newTestDispatcher()
	if _, err := d.Dispatch(context.Background(), "EVT_SET", []string{"cal-1", "evt-1", sampleEvent}); err != nil {
		t.Fatalf("EVT_SET: %v", err)
	}
	reply, err := d.Dispatch(context.Background(), "EVT_DEL", []string{"cal-1", "evt-1"})
	if err != nil {
		t.Fatalf("EVT_DEL: %v", err)
	}
	if !reply.Bool {
		t.Fatalf("expected EVT_DEL to report true, got %+v", reply)
	}
	get, err := d.Dispatch(context.Background(), "EVT_GET", []string{"cal-1", "evt-1"})
	if err != nil {
		t.Fatalf("EVT_GET: %v", err)
	}
	if get.Kind != ReplyNull {
		t.Fatalf("expected null after delete, got %+v", get)
	}
}

func TestEviQueryByCategories(t *testing.T) {
	d := newTestDispatcher()
	if _, err := d.Dispatch(context.Background(), "EVT_SET", []string{"cal-1", "evt-1", sampleEvent}); err != nil {
		t.Fatalf("EVT_SET: %v", err)
	}

	queryContent := "X-LIMIT:10\nX-WHERE:X-CATEGORIES;OP=AND:APPOINTMENT\n"
	reply, err := d.Dispatch(context.Background(), "EVI_QUERY", []string{"cal-1", queryContent})
	if err != nil {
		t.Fatalf("EVI_QUERY: %v", err)
	}
	if reply.Kind != ReplyArray || len(reply.Array) != 3 {
		t.Fatalf("expected 3 instances, got %+v", reply)
	}
}

func TestEviQueryIndexDisabledErrorsOnWhere(t *testing.T) {
	d := newTestDispatcher()
	if _, err := d.Dispatch(context.Background(), "EVT_SET", []string{"cal-1", "evt-1", sampleEvent}); err != nil {
		t.Fatalf("EVT_SET: %v", err)
	}
	if _, err := d.Dispatch(context.Background(), "CAL_IDX_DISABLE", []string{"cal-1"}); err != nil {
		t.Fatalf("CAL_IDX_DISABLE: %v", err)
	}

	queryContent := "X-WHERE:X-CATEGORIES;OP=AND:APPOINTMENT\n"
	_, err := d.Dispatch(context.Background(), "EVI_QUERY", []string{"cal-1", queryContent})
	if err == nil || !redicalerr.Is(err, redicalerr.IndexDisabled) {
		t.Fatalf("expected IndexDisabled error, got %v", err)
	}

	if _, err := d.Dispatch(context.Background(), "CAL_IDX_REBUILD", []string{"cal-1"}); err != nil {
		t.Fatalf("CAL_IDX_REBUILD: %v", err)
	}
	reply, err := d.Dispatch(context.Background(), "EVI_QUERY", []string{"cal-1", queryContent})
	if err != nil {
		t.Fatalf("EVI_QUERY after rebuild: %v", err)
	}
	if len(reply.Array) != 3 {
		t.Fatalf("expected 3 instances after rebuild, got %d", len(reply.Array))
	}
}

func TestEvoSetGetDel(t *testing.T) {
	d := newTestDispatcher()
	if _, err := d.Dispatch(context.Background(), "EVT_SET", []string{"cal-1", "evt-1", sampleEvent}); err != nil {
		t.Fatalf("EVT_SET: %v", err)
	}

	ts := "873190800" // 1997-09-02T09:00:00Z
	overrideContent := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//test//EN\r\nBEGIN:VEVENT\r\nCATEGORIES:MEETING\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

	if _, err := d.Dispatch(context.Background(), "EVO_SET", []string{"cal-1", "evt-1", ts, overrideContent}); err != nil {
		t.Fatalf("EVO_SET: %v", err)
	}

	reply, err := d.Dispatch(context.Background(), "EVO_GET", []string{"cal-1", "evt-1", ts})
	if err != nil {
		t.Fatalf("EVO_GET: %v", err)
	}
	if reply.Kind != ReplyBulk || !strings.Contains(reply.Bulk, "MEETING") {
		t.Fatalf("unexpected EVO_GET reply: %+v", reply)
	}

	del, err := d.Dispatch(context.Background(), "EVO_DEL", []string{"cal-1", "evt-1", ts})
	if err != nil {
		t.Fatalf("EVO_DEL: %v", err)
	}
	if !del.Bool {
		t.Fatalf("expected EVO_DEL true, got %+v", del)
	}
}

func TestEvtPruneDropsFullyPastEvent(t *testing.T) {
	d := newTestDispatcher()
	if _, err := d.Dispatch(context.Background(), "EVT_SET", []string{"cal-1", "evt-1", sampleEvent}); err != nil {
		t.Fatalf("EVT_SET: %v", err)
	}
	// Event ends 19970904T090000Z; prune everything before a far-future ts.
	reply, err := d.Dispatch(context.Background(), "EVT_PRUNE", []string{"cal-1", "2000000000"})
	if err != nil {
		t.Fatalf("EVT_PRUNE: %v", err)
	}
	if reply.Int != 1 {
		t.Fatalf("expected 1 pruned event, got %d", reply.Int)
	}
}

func TestUnknownCommandFails(t *testing.T) {
	d := newTestDispatcher()
	_, err := d.Dispatch(context.Background(), "NOT_A_COMMAND", nil)
	if err == nil || !redicalerr.Is(err, redicalerr.Parse) {
		t.Fatalf("expected Parse error, got %v", err)
	}
}
