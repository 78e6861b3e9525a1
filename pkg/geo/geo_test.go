package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm_ZeroForIdenticalCoordinates(t *testing.T) {
	coords := []Coordinate{
		{Lat: 0, Lng: 0},
		{Lat: 12.9716, Lng: 77.5946},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 90, Lng: 0},
	}
	for _, c := range coords {
		assert.Zero(t, DistanceKm(c, c))
	}
}

func TestDistanceKm_Symmetric(t *testing.T) {
	a := Coordinate{Lat: 12.9716, Lng: 77.5946} // Bengaluru
	b := Coordinate{Lat: 13.0827, Lng: 80.2707} // Chennai
	assert.Equal(t, DistanceKm(a, b), DistanceKm(b, a))
}

func TestDistanceKm_KnownDistance(t *testing.T) {
	// Bengaluru to Chennai is roughly 290 km great-circle.
	a := Coordinate{Lat: 12.9716, Lng: 77.5946}
	b := Coordinate{Lat: 13.0827, Lng: 80.2707}
	d := DistanceKm(a, b)
	assert.InDelta(t, 290, d, 10)
}

func TestDistanceKm_MonotonicWithSeparation(t *testing.T) {
	origin := Coordinate{Lat: 0, Lng: 0}
	near := Coordinate{Lat: 0, Lng: 0.1}
	far := Coordinate{Lat: 0, Lng: 0.5}
	assert.Less(t, DistanceKm(origin, near), DistanceKm(origin, far))
}

func TestWithinRadius(t *testing.T) {
	a := Coordinate{Lat: 12.9716, Lng: 77.5946}
	b := Coordinate{Lat: 12.9352, Lng: 77.6245} // a few km away

	assert.True(t, WithinRadius(a, b, 50))
	assert.False(t, WithinRadius(a, b, 1))
}
