// Package pace converts instantaneous speed into pace and classifies pace
// into configured effort zones.
package pace

import (
	"fmt"

	"github.com/claude/stride/internal/models"
)

// MinSpeed is the motion threshold in meters per second. Below it the
// runner is effectively stationary and pace is unknown, not infinite.
const MinSpeed = 0.1

const metersPerKm = 1000.0

// Unknown is the sentinel pace value meaning "no reading". It must never be
// interpreted as infinitely fast.
const Unknown = 0.0

// FromSpeed derives pace in seconds per kilometer from a speed reading in
// meters per second. ok is false when the reading is absent or below the
// motion threshold; callers hold the previous displayed pace in that case.
func FromSpeed(speed *float64) (secPerKm float64, ok bool) {
	if speed == nil || *speed <= MinSpeed {
		return Unknown, false
	}
	return metersPerKm / *speed, true
}

// Classify returns the first zone whose inclusive [MinPace, MaxPace] range
// contains the pace, or nil. Overlapping zones are allowed; the earlier zone
// in list order wins. A zero (unknown) pace matches no zone.
func Classify(secPerKm float64, zones []models.PaceZone) *models.PaceZone {
	if secPerKm <= 0 {
		return nil
	}
	for i := range zones {
		if secPerKm >= zones[i].MinPace && secPerKm <= zones[i].MaxPace {
			return &zones[i]
		}
	}
	return nil
}

// Format renders a pace as M:SS per distance unit, or "--:--" when unknown.
func Format(secPerUnit float64) string {
	if secPerUnit <= 0 {
		return "--:--"
	}
	total := int(secPerUnit + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
