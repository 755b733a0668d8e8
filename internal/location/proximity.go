package location

import "math"

const (
	// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
	EarthRadiusMeters = 6371000.0

	// DefaultRadiusMeters is the proximity radius used when none is configured.
	DefaultRadiusMeters = 200.0
)

// Proximity is the result of evaluating a fix against an anchor.
type Proximity struct {
	WithinRange    bool
	DistanceMeters float64
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := degToRad(a.Lat)
	lat2 := degToRad(b.Lat)
	dLat := degToRad(b.Lat - a.Lat)
	dLng := degToRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Clamp against rounding so Asin stays in its domain.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Evaluate checks whether fix lies within radiusMeters of anchor.
// A nil anchor is infinitely far away, so missing configuration never allows.
// A non-positive radius falls back to DefaultRadiusMeters.
func Evaluate(fix Fix, anchor *Coordinate, radiusMeters float64) Proximity {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	if anchor == nil {
		return Proximity{WithinRange: false, DistanceMeters: math.Inf(1)}
	}
	d := Distance(fix.Coordinate(), *anchor)
	return Proximity{
		WithinRange:    d <= radiusMeters,
		DistanceMeters: d,
	}
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}
