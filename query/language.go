// Package query implements the query language and its planner/executor:
// parsing X-LIMIT/X-OFFSET/X-TZID/X-DISTINCT/X-FROM/X-UNTIL/X-ORDER-BY/
// X-WHERE content into a Query, then walking indexes to build candidate UID
// sets and streaming materialised instances out in order.
package query

import (
	"strconv"
	"strings"

	"github.com/redical/redical/redicalerr"
	"github.com/redical/redical/value"
)

// RangeOp is the comparison a X-FROM/X-UNTIL bound applies.
type RangeOp int

const (
	OpGT RangeOp = iota
	OpGTE
	OpLT
	OpLTE
)

// RangeProp selects which instance timestamp a bound compares against.
type RangeProp int

const (
	PropDTStart RangeProp = iota
	PropDTEnd
)

// Bound is one X-FROM or X-UNTIL clause.
type Bound struct {
	Op   RangeOp
	TS   value.Timestamp
	Prop RangeProp
}

// OrderBy selects the executor's k-way merge key.
type OrderBy int

const (
	// OrderByDTStart sorts ascending by instance start only.
	OrderByDTStart OrderBy = iota
	// OrderByDTStartThenGeoDist sorts by start ascending, then by distance
	// to GeoCentre, per X-ORDER-BY:DTSTART-GEO-DIST(lat,long).
	OrderByDTStartThenGeoDist
)

// Query is the fully parsed request: every property is optional and
// defaults as documented on the constants below.
type Query struct {
	Limit    int
	Offset   int
	TZID     string
	Distinct bool
	From     *Bound
	Until    *Bound
	OrderBy  OrderBy
	GeoCentre value.GeoPoint
	Where    *Where
}

const (
	defaultLimit = 50
	defaultTZID  = "UTC"
)

// Parse reads query content into a Query. X-WHERE, if present, must be the
// final property: everything following its "X-WHERE:" marker line is
// handed to ParseWhere as the boolean tree body.
func Parse(raw string) (*Query, *redicalerr.Error) {
	q := &Query{Limit: defaultLimit, TZID: defaultTZID, OrderBy: OrderByDTStart}

	whereIdx := strings.Index(strings.ToUpper(raw), "X-WHERE:")
	head := raw
	if whereIdx >= 0 {
		head = raw[:whereIdx]
		body := raw[whereIdx+len("X-WHERE:"):]
		where, err := ParseWhere(body)
		if err != nil {
			return nil, err
		}
		q.Where = where
	}

	lines, err := parseLines(head)
	if err != nil {
		return nil, err
	}

	for i, l := range lines {
		if perr := applyProperty(q, l); perr != nil {
			return nil, perr.AtOffset(i)
		}
	}
	return q, nil
}

func applyProperty(q *Query, l line) *redicalerr.Error {
	switch l.name {
	case "X-LIMIT":
		n, err := parseNonNegativeInt(l.value)
		if err != nil {
			return err
		}
		q.Limit = n

	case "X-OFFSET":
		n, err := parseNonNegativeInt(l.value)
		if err != nil {
			return err
		}
		q.Offset = n

	case "X-TZID":
		if _, err := value.DefaultTZLookup(l.value); err != nil {
			return redicalerr.Wrap(redicalerr.Schema, err, "invalid X-TZID %q", l.value)
		}
		q.TZID = l.value

	case "X-DISTINCT":
		if strings.ToUpper(l.value) != "UID" {
			return redicalerr.New(redicalerr.Schema, "unsupported X-DISTINCT value %q", l.value)
		}
		q.Distinct = true

	case "X-FROM":
		b, err := parseBound(l.value, map[string]RangeOp{"GT": OpGT, "GTE": OpGTE})
		if err != nil {
			return err
		}
		q.From = b

	case "X-UNTIL":
		b, err := parseBound(l.value, map[string]RangeOp{"LT": OpLT, "LTE": OpLTE})
		if err != nil {
			return err
		}
		q.Until = b

	case "X-ORDER-BY":
		return applyOrderBy(q, l.value)

	default:
		return redicalerr.New(redicalerr.Parse, "unknown query property %q", l.name)
	}
	return nil
}

func applyOrderBy(q *Query, valueText string) *redicalerr.Error {
	upper := strings.ToUpper(valueText)
	switch {
	case upper == "DTSTART":
		q.OrderBy = OrderByDTStart
		return nil
	case strings.HasPrefix(upper, "DTSTART-GEO-DIST(") && strings.HasSuffix(upper, ")"):
		inner := valueText[len("DTSTART-GEO-DIST(") : len(valueText)-1]
		lat, long, err := parseLatLong(strings.ReplaceAll(inner, ",", ";"))
		if err != nil {
			return err
		}
		q.OrderBy = OrderByDTStartThenGeoDist
		q.GeoCentre = value.GeoPoint{Lat: lat, Long: long}
		return nil
	default:
		return redicalerr.New(redicalerr.Parse, "unknown X-ORDER-BY value %q", valueText)
	}
}

func parseBound(raw string, allowed map[string]RangeOp) (*Bound, *redicalerr.Error) {
	parts := splitCSV(raw)
	if len(parts) < 2 {
		return nil, redicalerr.New(redicalerr.Parse, "malformed bound %q: expected op,ts[,prop]", raw)
	}

	op, ok := allowed[strings.ToUpper(parts[0])]
	if !ok {
		return nil, redicalerr.New(redicalerr.Parse, "unknown range op %q for this bound", parts[0])
	}

	tsInt, cerr := strconv.ParseInt(parts[1], 10, 64)
	if cerr != nil {
		return nil, redicalerr.New(redicalerr.Parse, "invalid timestamp %q", parts[1])
	}

	prop := PropDTStart
	if len(parts) >= 3 {
		switch strings.ToUpper(parts[2]) {
		case "DTSTART":
			prop = PropDTStart
		case "DTEND":
			prop = PropDTEnd
		default:
			return nil, redicalerr.New(redicalerr.Parse, "unknown range property %q", parts[2])
		}
	}

	return &Bound{Op: op, TS: value.Timestamp(tsInt), Prop: prop}, nil
}

func parseNonNegativeInt(raw string) (int, *redicalerr.Error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, redicalerr.New(redicalerr.Parse, "expected a non-negative integer, got %q", raw)
	}
	return n, nil
}
