package query

import (
	"github.com/redical/redical/calendar"
	"github.com/redical/redical/redicalerr"
	"github.com/redical/redical/value"
)

// Plan walks the WHERE tree bottom-up building candidate UID sets from the
// calendar's indexes: AND intersects, OR unions. A nil where (empty WHERE)
// selects every event UID in the calendar.
func Plan(cal *calendar.Calendar, where *Where) (map[value.UID]struct{}, *redicalerr.Error) {
	if where == nil {
		return allUIDs(cal), nil
	}
	return evalNode(cal, where)
}

func allUIDs(cal *calendar.Calendar) map[value.UID]struct{} {
	uids := cal.ListEvents()
	set := make(map[value.UID]struct{}, len(uids))
	for _, uid := range uids {
		set[uid] = struct{}{}
	}
	return set
}

func evalNode(cal *calendar.Calendar, node *Where) (map[value.UID]struct{}, *redicalerr.Error) {
	switch node.Kind {
	case NodeGroup:
		return evalGroup(cal, node)
	case NodeCategories:
		return evalTermLeaf(node.Op, node.Terms, func(term string) (map[value.UID]struct{}, *redicalerr.Error) {
			return cal.LookupCategory(term)
		})
	case NodeRelatedTo:
		return evalTermLeaf(node.Op, node.Terms, func(uid string) (map[value.UID]struct{}, *redicalerr.Error) {
			return cal.LookupRelatedTo(node.RelType, uid)
		})
	case NodeClass:
		return cal.LookupClass(node.Class)
	case NodeGeo:
		return cal.LookupRadius(node.Centre, node.Radius)
	case NodeUID:
		set := make(map[value.UID]struct{}, len(node.Terms))
		for _, t := range node.Terms {
			set[value.UID(t)] = struct{}{}
		}
		return set, nil
	default:
		return nil, redicalerr.New(redicalerr.Internal, "unhandled WHERE node kind %d", node.Kind)
	}
}

func evalGroup(cal *calendar.Calendar, group *Where) (map[value.UID]struct{}, *redicalerr.Error) {
	if len(group.Children) == 0 {
		return allUIDs(cal), nil
	}
	var acc map[value.UID]struct{}
	for i, child := range group.Children {
		set, err := evalNode(cal, child)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			acc = set
			continue
		}
		if group.Op == OpOr {
			acc = union(acc, set)
		} else {
			acc = intersect(acc, set)
		}
	}
	return acc, nil
}

// evalTermLeaf applies op across lookup(term) for every term in terms,
// AND-intersecting or OR-unioning the per-term posting sets.
func evalTermLeaf(op Op, terms []string, lookup func(string) (map[value.UID]struct{}, *redicalerr.Error)) (map[value.UID]struct{}, *redicalerr.Error) {
	var acc map[value.UID]struct{}
	for i, term := range terms {
		set, err := lookup(term)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			acc = set
			continue
		}
		if op == OpOr {
			acc = union(acc, set)
		} else {
			acc = intersect(acc, set)
		}
	}
	if acc == nil {
		acc = make(map[value.UID]struct{})
	}
	return acc, nil
}

func union(a, b map[value.UID]struct{}) map[value.UID]struct{} {
	out := make(map[value.UID]struct{}, len(a)+len(b))
	for uid := range a {
		out[uid] = struct{}{}
	}
	for uid := range b {
		out[uid] = struct{}{}
	}
	return out
}

func intersect(a, b map[value.UID]struct{}) map[value.UID]struct{} {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	out := make(map[value.UID]struct{}, len(small))
	for uid := range small {
		if _, ok := large[uid]; ok {
			out[uid] = struct{}{}
		}
	}
	return out
}
