package index

import (
	"strings"

	"github.com/redical/redical/value"
)

// base32 is the geohash alphabet (note: omits "a", "i", "l", "o" to avoid
// visual ambiguity), per the public geohash.org convention.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// MaxPrecision is the full 12-character geohash precision (~3.7cm cells).
const MaxPrecision = 12

var base32Index = func() map[byte]int {
	m := make(map[byte]int, len(base32))
	for i := 0; i < len(base32); i++ {
		m[base32[i]] = i
	}
	return m
}()

// cellWidthMeters and cellHeightMeters give the approximate geohash cell
// dimensions at the equator for precisions 1..12, the standard reference
// table geohash implementations publish.
var cellWidthMeters = [MaxPrecision + 1]float64{
	0,
	5009400, 1252300, 156500, 39100, 4890, 1220, 152.9, 38.2, 4.77, 1.19, 0.149, 0.0372,
}
var cellHeightMeters = [MaxPrecision + 1]float64{
	0,
	4992600, 624100, 156000, 19500, 4890, 610, 152.4, 19.1, 4.77, 0.595, 0.149, 0.0186,
}

// Encode computes the base32 geohash of (lat, long) at the given precision
// (1..MaxPrecision).
func Encode(p value.GeoPoint, precision int) string {
	if precision <= 0 {
		precision = MaxPrecision
	}
	if precision > MaxPrecision {
		precision = MaxPrecision
	}

	latRange := [2]float64{-90, 90}
	longRange := [2]float64{-180, 180}

	var sb strings.Builder
	bit, ch := 0, 0
	isEvenBit := true

	for sb.Len() < precision {
		if isEvenBit {
			mid := (longRange[0] + longRange[1]) / 2
			if p.Long >= mid {
				ch |= 1 << (4 - bit)
				longRange[0] = mid
			} else {
				longRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if p.Lat >= mid {
				ch |= 1 << (4 - bit)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}
		isEvenBit = !isEvenBit

		if bit < 4 {
			bit++
		} else {
			sb.WriteByte(base32[ch])
			bit, ch = 0, 0
		}
	}
	return sb.String()
}

// BoundingBox returns the lat/long box a geohash string denotes.
func BoundingBox(hash string) (latMin, latMax, longMin, longMax float64) {
	latRange := [2]float64{-90, 90}
	longRange := [2]float64{-180, 180}
	isEvenBit := true

	for i := 0; i < len(hash); i++ {
		idx, ok := base32Index[hash[i]]
		if !ok {
			continue
		}
		for bit := 4; bit >= 0; bit-- {
			bitVal := (idx >> bit) & 1
			if isEvenBit {
				mid := (longRange[0] + longRange[1]) / 2
				if bitVal == 1 {
					longRange[0] = mid
				} else {
					longRange[1] = mid
				}
			} else {
				mid := (latRange[0] + latRange[1]) / 2
				if bitVal == 1 {
					latRange[0] = mid
				} else {
					latRange[1] = mid
				}
			}
			isEvenBit = !isEvenBit
		}
	}

	return latRange[0], latRange[1], longRange[0], longRange[1]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wrapLongitude(v float64) float64 {
	for v < -180 {
		v += 360
	}
	for v >= 180 {
		v -= 360
	}
	return v
}

// Neighbors returns the 8 geohashes (at hash's own precision) adjacent to
// hash, computed by re-encoding the centre of each adjacent bounding box
// rather than via a border/adjacency lookup table. Duplicates can occur near
// the poles or the antimeridian; callers union postings into a set so that's
// harmless.
func Neighbors(hash string) []string {
	precision := len(hash)
	latMin, latMax, longMin, longMax := BoundingBox(hash)
	latCenter := (latMin + latMax) / 2
	longCenter := (longMin + longMax) / 2
	latHeight := latMax - latMin
	longWidth := longMax - longMin

	offsets := [8][2]float64{
		{1, 0}, {1, 1}, {0, 1}, {-1, 1},
		{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	}

	neighbors := make([]string, 0, 8)
	for _, off := range offsets {
		nLat := clamp(latCenter+off[0]*latHeight, -90, 90)
		nLong := wrapLongitude(longCenter + off[1]*longWidth)
		neighbors = append(neighbors, Encode(value.GeoPoint{Lat: nLat, Long: nLong}, precision))
	}
	return neighbors
}

// SelectPrecision returns the largest geohash precision (1..MaxPrecision)
// whose cell is still no smaller than a 2r square: this keeps candidate
// sets small while guaranteeing no false negatives.
func SelectPrecision(radiusMeters float64) int {
	target := 2 * radiusMeters
	for p := MaxPrecision; p >= 1; p-- {
		w, h := cellWidthMeters[p], cellHeightMeters[p]
		cellSide := w
		if h < cellSide {
			cellSide = h
		}
		if cellSide >= target {
			return p
		}
	}
	return 1
}
