package spatial

import (
	"github.com/golang/geo/s2"
)

// HaversineDistance calculates the great-circle distance between two points in meters
// using the Haversine formula
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return haversineAngle(lat1, lon1, lat2, lon2) * EarthRadiusMeters
}

// HaversineKm is HaversineDistance in kilometers. Route profiles and checkpoint
// distances are all expressed in km.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return haversineAngle(lat1, lon1, lat2, lon2) * EarthRadiusKm
}

// haversineAngle returns the central angle in radians. s2's LatLng.Distance
// is the Haversine formula, so the result is symmetric and zero for equal points.
func haversineAngle(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians()
}

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
	EarthRadiusKm     = 6371.0    // Earth's mean radius in kilometers
)
