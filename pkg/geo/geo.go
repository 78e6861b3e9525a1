// Package geo provides great-circle distance helpers for coordinate pairs.
// This is pure domain logic - no I/O, no side effects.
package geo

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371

// Coordinate is a (latitude, longitude) pair in degrees. Callers are
// responsible for range validation; out-of-range values produce undefined
// but finite output.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceKm returns the haversine great-circle distance between a and b in
// kilometers. The result is symmetric and zero for identical coordinates.
func DistanceKm(a, b Coordinate) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*sinLng*sinLng
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// WithinRadius reports whether a and b are at most radiusKm apart.
func WithinRadius(a, b Coordinate, radiusKm float64) bool {
	return DistanceKm(a, b) <= radiusKm
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
