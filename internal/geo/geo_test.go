package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	// Manhattan point to itself.
	assert.InDelta(t, 0, Distance(-73.935242, 40.730610, -73.935242, 40.730610), 1e-6)

	// The query point used for nearby reports is about 20m away.
	d := Distance(-73.935, 40.7306, -73.935242, 40.730610)
	assert.InDelta(t, 20.4, d, 1.0)

	// One degree of latitude is roughly 111km.
	assert.InDelta(t, 111_300, Distance(0, 0, 0, 1), 500)
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	lng, lat := -73.935, 40.7306
	box := BoundingBox(lng, lat, 1000)
	assert.True(t, box.Contains(-73.935242, 40.730610))
	assert.False(t, box.Contains(-73.8, 40.7306))

	// Every point on the circle lies inside the box.
	for _, p := range [][2]float64{{0.0089, 0}, {-0.0089, 0}, {0, 0.0118}, {0, -0.0118}} {
		plat, plng := lat+p[0], lng+p[1]
		if Distance(lng, lat, plng, plat) <= 1000 {
			assert.True(t, box.Contains(plng, plat))
		}
	}
}

func TestBoundingBoxWidensNearEdges(t *testing.T) {
	polar := BoundingBox(10, 89.99, 5000)
	assert.Equal(t, -180.0, polar.MinLng)
	assert.Equal(t, 180.0, polar.MaxLng)

	dateline := BoundingBox(179.999, 0, 5000)
	assert.Equal(t, -180.0, dateline.MinLng)
	assert.Equal(t, 180.0, dateline.MaxLng)
}
