// Package index implements the per-calendar indexing substrate: inverted
// indexes over categorical properties and a geohash-based geospatial index
// over LOCATION points. Both share the tiny Index interface below, one
// interface several storage strategies satisfy uniformly.
package index

import "github.com/redical/redical/value"

// Index is the shape every index family in this package implements, so the
// calendar aggregate can maintain them uniformly without a type switch per
// family.
type Index interface {
	// Remove drops every posting for uid. Idempotent.
	Remove(uid value.UID)
	// Rebuild clears all state; callers reinsert every surviving event.
	Rebuild()
}
