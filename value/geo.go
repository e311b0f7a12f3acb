package value

import "math"

// earthRadiusMeters is the mean radius used for haversine distance, matching
// the value most geospatial libraries in the wild settle on (WGS-84 mean).
const earthRadiusMeters = 6371000.0

// GeoPoint is a geodetic coordinate. Lat must be in [-90,90] and Long in
// [-180,180]; GeoPoint itself does not enforce this, callers validate at the
// event-write boundary (see calendar.Calendar.SetEvent).
type GeoPoint struct {
	Lat  float64
	Long float64
}

// Valid reports whether the point is within the legal lat/long ranges.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Long >= -180 && p.Long <= 180
}

// Equal reports exact float equality, as specified for stored GEO values.
func (p GeoPoint) Equal(other GeoPoint) bool {
	return p.Lat == other.Lat && p.Long == other.Long
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }

// HaversineMeters returns the great-circle distance between p and other in
// metres.
func (p GeoPoint) HaversineMeters(other GeoPoint) float64 {
	lat1, lat2 := degToRad(p.Lat), degToRad(other.Lat)
	dLat := degToRad(other.Lat - p.Lat)
	dLong := degToRad(other.Long - p.Long)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLong/2)*math.Sin(dLong/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
