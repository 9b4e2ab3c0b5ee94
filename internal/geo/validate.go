// Package geo provides coordinate validation predicates.
package geo

import "math"

const (
	minLat = -90.0
	maxLat = 90.0
	minLng = -180.0
	maxLng = 180.0

	// originThreshold is the distance in degrees from (0,0) under which
	// a coordinate pair is treated as a failed geocode placeholder
	// rather than a real location. Addresses within ~1km of null
	// island are unrepresentable under this heuristic.
	originThreshold = 0.01
)

// IsValid reports whether lat and lng form a valid WGS84 pair.
func IsValid(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= minLat && lat <= maxLat && lng >= minLng && lng <= maxLng
}

// IsSuspicious reports whether the pair sits within originThreshold of
// (0,0). Geocoding providers fall back to the origin when they cannot
// resolve an address, so such pairs are discarded, never written back.
func IsSuspicious(lat, lng float64) bool {
	return math.Abs(lat) < originThreshold && math.Abs(lng) < originThreshold
}

// IsMissing reports whether a stored pair should be treated as unset.
// Shares the near-origin heuristic with IsSuspicious.
func IsMissing(lat, lng float64) bool {
	return IsSuspicious(lat, lng)
}
