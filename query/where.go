package query

import (
	"strconv"
	"strings"

	"github.com/redical/redical/redicalerr"
	"github.com/redical/redical/value"
)

// Op combines sibling predicates or multiple values within one leaf.
type Op int

const (
	OpAnd Op = iota
	OpOr
)

func parseOp(s string) (Op, *redicalerr.Error) {
	switch strings.ToUpper(s) {
	case "", "AND":
		return OpAnd, nil
	case "OR":
		return OpOr, nil
	default:
		return OpAnd, redicalerr.New(redicalerr.Parse, "unknown OP %q", s)
	}
}

// NodeKind identifies what a Where tree node tests.
type NodeKind int

const (
	NodeGroup NodeKind = iota
	NodeCategories
	NodeRelatedTo
	NodeClass
	NodeGeo
	NodeUID
)

// Where is one node of the WHERE boolean tree: either a Group with an Op
// joining its Children, or a leaf predicate.
type Where struct {
	Kind     NodeKind
	Op       Op
	Children []*Where

	Terms   []string // NodeCategories, NodeUID
	RelType string   // NodeRelatedTo
	Class   string   // NodeClass
	Centre  value.GeoPoint
	Radius  float64
}

// ParseWhere parses X-WHERE content into a boolean tree: GROUP;OP=AND|OR
// opens a nested group, terminated by END-GROUP; anything else between is a
// leaf predicate. The top level is an implicit AND group.
func ParseWhere(raw string) (*Where, *redicalerr.Error) {
	lines, err := parseLines(raw)
	if err != nil {
		return nil, err
	}
	root := &Where{Kind: NodeGroup, Op: OpAnd}
	pos := 0
	if _, err := parseGroupBody(lines, &pos, root); err != nil {
		return nil, err
	}
	if pos != len(lines) {
		return nil, redicalerr.New(redicalerr.Parse, "unexpected END-GROUP at line %d", pos)
	}
	return root, nil
}

// parseGroupBody reports whether the body was closed by an END-GROUP line.
func parseGroupBody(lines []line, pos *int, group *Where) (bool, *redicalerr.Error) {
	for *pos < len(lines) {
		l := lines[*pos]
		if l.name == "END-GROUP" {
			*pos++
			return true, nil
		}
		if l.name == "GROUP" {
			op, err := parseOp(l.params["OP"])
			if err != nil {
				return false, err.AtOffset(*pos)
			}
			child := &Where{Kind: NodeGroup, Op: op}
			*pos++
			closed, err := parseGroupBody(lines, pos, child)
			if err != nil {
				return false, err
			}
			if !closed {
				return false, redicalerr.New(redicalerr.Parse, "GROUP without matching END-GROUP")
			}
			group.Children = append(group.Children, child)
			continue
		}

		leaf, err := parseLeaf(l)
		if err != nil {
			return false, err.AtOffset(*pos)
		}
		group.Children = append(group.Children, leaf)
		*pos++
	}
	return false, nil
}

func parseLeaf(l line) (*Where, *redicalerr.Error) {
	switch l.name {
	case "X-CATEGORIES":
		op, err := parseOp(l.params["OP"])
		if err != nil {
			return nil, err
		}
		return &Where{Kind: NodeCategories, Op: op, Terms: splitCSV(l.value)}, nil

	case "X-RELATED-TO":
		op, err := parseOp(l.params["OP"])
		if err != nil {
			return nil, err
		}
		return &Where{Kind: NodeRelatedTo, Op: op, RelType: l.params["RELTYPE"], Terms: splitCSV(l.value)}, nil

	case "X-LOCATION-TYPE":
		return &Where{Kind: NodeClass, Class: l.value}, nil

	case "X-GEO":
		distStr := l.params["DIST"]
		dist, derr := strconv.ParseFloat(distStr, 64)
		if derr != nil {
			return nil, redicalerr.New(redicalerr.Parse, "invalid X-GEO DIST %q", distStr)
		}
		lat, long, gerr := parseLatLong(l.value)
		if gerr != nil {
			return nil, gerr
		}
		return &Where{Kind: NodeGeo, Centre: value.GeoPoint{Lat: lat, Long: long}, Radius: dist}, nil

	case "X-UID":
		return &Where{Kind: NodeUID, Op: OpOr, Terms: splitCSV(l.value)}, nil

	default:
		return nil, redicalerr.New(redicalerr.Parse, "unknown WHERE predicate %q", l.name)
	}
}

func parseLatLong(raw string) (lat, long float64, err *redicalerr.Error) {
	parts := strings.Split(raw, ";")
	if len(parts) != 2 {
		return 0, 0, redicalerr.New(redicalerr.Parse, "expected lat;long, got %q", raw)
	}
	latF, lerr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if lerr != nil {
		return 0, 0, redicalerr.New(redicalerr.Parse, "invalid latitude %q", parts[0])
	}
	longF, lerr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if lerr != nil {
		return 0, 0, redicalerr.New(redicalerr.Parse, "invalid longitude %q", parts[1])
	}
	return latF, longF, nil
}
