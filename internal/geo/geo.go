// Package geo provides great-circle distance math and the accept/reject
// decision for incremental GPS fixes.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

const (
	// minStepKm is the GPS jitter floor: steps of 2 m or less are noise.
	minStepKm = 0.002
	// maxStepKm is the teleport cutoff: steps of 100 m or more between
	// consecutive fixes are multipath or provider glitches.
	maxStepKm = 0.1
)

// Haversine returns the great-circle distance in kilometers between two
// points given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// AcceptStep reports whether a point-to-point distance is a plausible
// running step. Rejects at <=2 m (jitter) and >=100 m (teleport); accepts
// strictly between. The first point of a path is exempt and never passes
// through here.
func AcceptStep(distanceKm float64) bool {
	return distanceKm > minStepKm && distanceKm < maxStepKm
}

// Step computes the distance from the previous accepted point to a candidate
// fix and decides acceptance. Pure decision: the caller performs the append
// and accumulation.
func Step(prevLat, prevLon, lat, lon float64) (distanceKm float64, ok bool) {
	d := Haversine(prevLat, prevLon, lat, lon)
	return d, AcceptStep(d)
}
