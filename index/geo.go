package index

import "github.com/redical/redical/value"

// Geo is the geospatial index: a geohash encoding of each event's GEO point
// at MaxPrecision, indexed simultaneously at every coarser prefix length so
// a radius query can pick whichever precision its radius needs without
// re-deriving a trie at query time.
type Geo struct {
	// byPrecision[p][prefix] is the posting set for that precision's cell.
	byPrecision [MaxPrecision + 1]map[string]map[value.UID]struct{}
	points      map[value.UID]value.GeoPoint
	hashes      map[value.UID]string // full MaxPrecision geohash, for cheap removal
}

// NewGeo constructs an empty geospatial index.
func NewGeo() *Geo {
	g := &Geo{
		points: make(map[value.UID]value.GeoPoint),
		hashes: make(map[value.UID]string),
	}
	for p := 1; p <= MaxPrecision; p++ {
		g.byPrecision[p] = make(map[string]map[value.UID]struct{})
	}
	return g
}

// Insert posts uid at point, replacing any prior point for uid.
func (g *Geo) Insert(uid value.UID, point value.GeoPoint) {
	g.Remove(uid)

	hash := Encode(point, MaxPrecision)
	g.hashes[uid] = hash
	g.points[uid] = point

	for p := 1; p <= MaxPrecision; p++ {
		prefix := hash[:p]
		postings, ok := g.byPrecision[p][prefix]
		if !ok {
			postings = make(map[value.UID]struct{})
			g.byPrecision[p][prefix] = postings
		}
		postings[uid] = struct{}{}
	}
}

// Remove drops uid's posting from every precision level.
func (g *Geo) Remove(uid value.UID) {
	hash, ok := g.hashes[uid]
	if !ok {
		return
	}
	for p := 1; p <= MaxPrecision; p++ {
		prefix := hash[:p]
		if postings, ok := g.byPrecision[p][prefix]; ok {
			delete(postings, uid)
			if len(postings) == 0 {
				delete(g.byPrecision[p], prefix)
			}
		}
	}
	delete(g.hashes, uid)
	delete(g.points, uid)
}

// Rebuild clears all state; callers reinsert per surviving event.
func (g *Geo) Rebuild() {
	for p := 1; p <= MaxPrecision; p++ {
		g.byPrecision[p] = make(map[string]map[value.UID]struct{})
	}
	g.points = make(map[value.UID]value.GeoPoint)
	g.hashes = make(map[value.UID]string)
}

// RadiusQuery returns the UIDs within radiusMeters of centre: pick the
// finest precision whose cell still bounds the query circle, union the
// target cell and its 8 neighbours' postings, then refine with an exact
// haversine check.
func (g *Geo) RadiusQuery(centre value.GeoPoint, radiusMeters float64) map[value.UID]struct{} {
	precision := SelectPrecision(radiusMeters)
	targetHash := Encode(centre, precision)

	cells := map[string]struct{}{targetHash: {}}
	for _, n := range Neighbors(targetHash) {
		cells[n] = struct{}{}
	}

	candidates := make(map[value.UID]struct{})
	for cell := range cells {
		for uid := range g.byPrecision[precision][cell] {
			candidates[uid] = struct{}{}
		}
	}

	out := make(map[value.UID]struct{}, len(candidates))
	for uid := range candidates {
		point, ok := g.points[uid]
		if !ok {
			continue
		}
		if centre.HaversineMeters(point) <= radiusMeters {
			out[uid] = struct{}{}
		}
	}
	return out
}

var _ Index = (*Geo)(nil)
