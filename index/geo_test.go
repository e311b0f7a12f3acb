package index

import (
	"testing"

	"github.com/redical/redical/value"
)

func TestGeoRadiusQueryNarrowsWithDistance(t *testing.T) {
	g := NewGeo()
	a := value.GeoPoint{Lat: 37.386013, Long: -122.082932}
	b := value.GeoPoint{Lat: 37.3861, Long: -122.0830}
	g.Insert("evt-a", a)
	g.Insert("evt-b", b)

	wide := uids(g.RadiusQuery(a, 50))
	if !wide["evt-a"] || !wide["evt-b"] {
		t.Fatalf("DIST=50 should return both points, got %v", wide)
	}

	narrow := uids(g.RadiusQuery(a, 1))
	if !narrow["evt-a"] {
		t.Fatalf("DIST=1 should include the exact-coordinate point")
	}
	if narrow["evt-b"] {
		t.Fatalf("DIST=1 should exclude the farther point, got %v", narrow)
	}
}

func TestGeoRadiusZeroMatchesOnlyExactCoordinates(t *testing.T) {
	g := NewGeo()
	a := value.GeoPoint{Lat: 37.386013, Long: -122.082932}
	b := value.GeoPoint{Lat: 37.3861, Long: -122.0830}
	g.Insert("evt-a", a)
	g.Insert("evt-b", b)

	exact := uids(g.RadiusQuery(a, 0))
	if !exact["evt-a"] {
		t.Fatalf("DIST=0 should still match the point at the exact coordinates")
	}
	if exact["evt-b"] {
		t.Fatalf("DIST=0 should not match a distinct coordinate, got %v", exact)
	}
}

func TestGeoRemoveDropsAllPrecisionLevels(t *testing.T) {
	g := NewGeo()
	p := value.GeoPoint{Lat: 10, Long: 10}
	g.Insert("evt-1", p)
	g.Remove("evt-1")

	for prec := 1; prec <= MaxPrecision; prec++ {
		for _, postings := range g.byPrecision[prec] {
			if _, ok := postings["evt-1"]; ok {
				t.Fatalf("evt-1 still posted at precision %d after Remove", prec)
			}
		}
	}
	if len(g.RadiusQuery(p, 1000)) != 0 {
		t.Fatalf("expected no matches after Remove")
	}
}

func TestGeoInsertReplacesPriorPoint(t *testing.T) {
	g := NewGeo()
	g.Insert("evt-1", value.GeoPoint{Lat: 0, Long: 0})
	g.Insert("evt-1", value.GeoPoint{Lat: 50, Long: 50})

	if len(g.RadiusQuery(value.GeoPoint{Lat: 0, Long: 0}, 1000)) != 0 {
		t.Fatalf("expected evt-1 no longer near (0,0) after re-insert")
	}
	got := uids(g.RadiusQuery(value.GeoPoint{Lat: 50, Long: 50}, 1000))
	if !got["evt-1"] {
		t.Fatalf("expected evt-1 near (50,50) after re-insert")
	}
}

func TestGeoRebuildClearsState(t *testing.T) {
	g := NewGeo()
	p := value.GeoPoint{Lat: 1, Long: 1}
	g.Insert("evt-1", p)
	g.Rebuild()

	if len(g.RadiusQuery(p, 1000)) != 0 {
		t.Fatalf("expected empty index after Rebuild")
	}
	g.Insert("evt-1", p)
	if len(g.RadiusQuery(p, 1000)) != 1 {
		t.Fatalf("expected index usable again after Rebuild")
	}
}
