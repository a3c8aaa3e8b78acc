// Package geo holds the distance math behind radius queries.
package geo

import "math"

// EarthRadiusMeters is the mean radius used by MongoDB's 2dsphere index.
const EarthRadiusMeters = 6378100.0

// Distance returns the great-circle distance in meters between two
// lng/lat points.
func Distance(lng1, lat1, lng2, lat2 float64) float64 {
	φ1 := radians(lat1)
	φ2 := radians(lat2)
	dφ := radians(lat2 - lat1)
	dλ := radians(lng2 - lng1)

	a := math.Sin(dφ/2)*math.Sin(dφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Box is a lng/lat bounding rectangle.
type Box struct {
	MinLng, MinLat, MaxLng, MaxLat float64
}

// Contains reports whether the point lies inside the box, edges included.
func (b Box) Contains(lng, lat float64) bool {
	return lng >= b.MinLng && lng <= b.MaxLng && lat >= b.MinLat && lat <= b.MaxLat
}

// BoundingBox returns a box enclosing every point within radius meters
// of (lng, lat). Near the poles or across the antimeridian the box widens
// to the full longitude range.
func BoundingBox(lng, lat, radius float64) Box {
	dLat := degrees(radius / EarthRadiusMeters)
	b := Box{
		MinLat: math.Max(-90, lat-dLat),
		MaxLat: math.Min(90, lat+dLat),
		MinLng: -180,
		MaxLng: 180,
	}
	if b.MinLat <= -90 || b.MaxLat >= 90 {
		return b
	}

	dLng := degrees(math.Asin(math.Min(1, math.Sin(radius/EarthRadiusMeters)/math.Cos(radians(lat)))))
	if lng-dLng < -180 || lng+dLng > 180 {
		return b
	}
	b.MinLng = lng - dLng
	b.MaxLng = lng + dLng
	return b
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }
