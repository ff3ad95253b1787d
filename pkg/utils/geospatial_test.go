package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineDistanceZero(t *testing.T) {
	assert.Equal(t, 0.0, HaversineDistance(6.5244, 3.3792, 6.5244, 3.3792))
}

func TestHaversineDistanceKnownPairs(t *testing.T) {
	// Paris to London, about 343.5 km.
	d := HaversineDistance(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, 343500, d, 1500)

	// One hundredth of a degree of latitude at the equator, about 1.11 km.
	d = HaversineDistance(0, 0, 0.01, 0)
	assert.InDelta(t, 1112, d, 2)
}

func TestIsWithinRadius(t *testing.T) {
	assert.True(t, IsWithinRadius(0, 0, 0.002, 0, 300))
	assert.False(t, IsWithinRadius(0, 0, 0.01, 0, 300))
}

func TestBoundingBoxContainsCircle(t *testing.T) {
	center := Point{Lat: 6.5244, Lng: 3.3792}
	box := GetBoundingBox(center.Lat, center.Lng, 10000)

	assert.True(t, IsPointInBoundingBox(center, box))

	// Points just inside the radius in each cardinal direction stay in the box.
	for _, p := range []Point{
		{Lat: center.Lat + 0.08, Lng: center.Lng},
		{Lat: center.Lat - 0.08, Lng: center.Lng},
		{Lat: center.Lat, Lng: center.Lng + 0.08},
		{Lat: center.Lat, Lng: center.Lng - 0.08},
	} {
		assert.True(t, IsPointInBoundingBox(p, box), "point %+v should be in box", p)
	}

	// Well outside.
	assert.False(t, IsPointInBoundingBox(Point{Lat: center.Lat + 1, Lng: center.Lng}, box))
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(0, 0))
	assert.True(t, ValidCoordinates(-90, 180))
	assert.False(t, ValidCoordinates(90.1, 0))
	assert.False(t, ValidCoordinates(0, -180.5))
}
