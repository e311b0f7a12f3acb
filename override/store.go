// Package override implements the per-event override store: a sorted
// mapping from base occurrence timestamp to an Override property bag, plus
// the merge algebra against a base event snapshot.
package override

import (
	"sort"

	"github.com/redical/redical/value"
)

// Override redefines a subset of an event's schedule and/or indexed/passive
// properties for one occurrence. Unset fields inherit from the base event;
// set-valued indexed properties replace rather than union the base's set.
type Override struct {
	DTStart  *value.DateTime
	DTEnd    *value.DateTime
	Duration *value.Duration

	Categories *value.TextSet      // nil = inherit, non-nil = replace
	Class      *string             // nil = inherit
	RelatedTo  map[string][]string // nil = inherit, else replaces the whole RELATED-TO map
	Geo        *value.GeoPoint     // nil = inherit, non-nil = replace

	Passive map[string]string // nil = inherit; non-nil keys override individual passive props
}

// entry pairs a timestamp with its override, kept in a slice sorted by
// timestamp so iteration and insertion are simple binary-search operations,
// favoring a small ordered slice over a tree-shaped map.
type entry struct {
	ts  value.Timestamp
	ovr Override
}

// Store is an ordered, upsertable map of occurrence timestamp to Override.
type Store struct {
	entries []entry
}

func (s *Store) search(ts value.Timestamp) int {
	return sort.Search(len(s.entries), func(i int) bool { return s.entries[i].ts >= ts })
}

// Get returns the override at ts, if any.
func (s *Store) Get(ts value.Timestamp) (Override, bool) {
	i := s.search(ts)
	if i < len(s.entries) && s.entries[i].ts == ts {
		return s.entries[i].ovr, true
	}
	return Override{}, false
}

// Set upserts the override at ts.
func (s *Store) Set(ts value.Timestamp, ovr Override) {
	i := s.search(ts)
	if i < len(s.entries) && s.entries[i].ts == ts {
		s.entries[i].ovr = ovr
		return
	}
	s.entries = append(s.entries, entry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = entry{ts: ts, ovr: ovr}
}

// Remove deletes the override at ts, if any. Reports whether an entry was
// removed.
func (s *Store) Remove(ts value.Timestamp) bool {
	i := s.search(ts)
	if i >= len(s.entries) || s.entries[i].ts != ts {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return true
}

// Len returns the number of overrides held.
func (s *Store) Len() int { return len(s.entries) }

// Iter calls fn for every override in ascending timestamp order, stopping
// early if fn returns false.
func (s *Store) Iter(fn func(ts value.Timestamp, ovr Override) bool) {
	for _, e := range s.entries {
		if !fn(e.ts, e.ovr) {
			return
		}
	}
}

// PruneBefore removes every override keyed at or before upperBound and
// reports how many were removed, backing the EVO_PRUNE command.
func (s *Store) PruneBefore(upperBound value.Timestamp) int {
	i := s.search(upperBound + 1)
	removed := i
	s.entries = s.entries[i:]
	return removed
}
