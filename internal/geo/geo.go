// Package geo holds the distance math used for task geofences.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by DistanceMeters.
const EarthRadiusMeters = 6371000.0

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point lies within the usual degree ranges.
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// DistanceMeters returns the great-circle distance between a and b (Haversine).
func DistanceMeters(a, b Point) float64 {
	if a == b {
		return 0
	}
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dPhi := (b.Latitude - a.Latitude) * math.Pi / 180
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can push h just outside [0, 1] near the antipode.
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// WithinRadius reports whether target is at most radiusMeters from user. The boundary is inclusive.
func WithinRadius(user, target Point, radiusMeters float64) bool {
	return DistanceMeters(user, target) <= radiusMeters
}
