package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/claude/stride/internal/models"
	"github.com/claude/stride/internal/speech"
)

// paceTolerance is the dead band around the target pace, in seconds per km.
// Pace is seconds per distance unit: a numerically lower pace means the
// runner is faster than target and must be told to ease off.
const paceTolerance = 15.0

// cueState is the scheduler's dedup memory. Pace cues are deduplicated per
// elapsed-seconds value; milestones via a high-water-mark kilometer counter.
type cueState struct {
	lastPaceCueAt int
	milestoneKm   int
}

// evaluate decides which cues fire for the current state. It is safe to call
// more than once for the same elapsed second: each qualifying event fires at
// most once. Pace and milestone cues are independent and may both fire in
// one call.
func (c *cueState) evaluate(elapsed int, currentPace, targetPace, distance float64, cfg Config, now time.Time) []speech.Cue {
	if !cfg.Cues.Enabled {
		return nil
	}

	var out []speech.Cue

	freq := cfg.Cues.AlertFrequencySeconds
	if freq <= 0 {
		freq = 60
	}
	if cfg.Cues.PaceAlerts && targetPace > 0 && elapsed > 0 && elapsed%freq == 0 && c.lastPaceCueAt != elapsed {
		// Mark the second consumed even when pace is unknown, so a signal
		// blip does not cause a late duplicate within the same window.
		c.lastPaceCueAt = elapsed
		if currentPace > 0 {
			diff := currentPace - targetPace
			cue := speech.Cue{ElapsedSeconds: elapsed, Distance: distance, At: now}
			switch {
			case diff < -paceTolerance:
				cue.Category = speech.CategorySlowDown
				cue.Text = "Slow down"
			case diff > paceTolerance:
				cue.Category = speech.CategorySpeedUp
				cue.Text = "Speed up"
			default:
				cue.Category = speech.CategoryOnTarget
				cue.Text = "On target"
			}
			out = append(out, cue)
		}
	}

	if cfg.Cues.DistanceMilestones {
		km := int(math.Floor(distance))
		if km > c.milestoneKm {
			// Only the latest crossed unit is announced; skipped
			// intermediate units are not backfilled.
			c.milestoneKm = km
			out = append(out, speech.Cue{
				Category:       speech.CategoryMilestone,
				Text:           milestoneText(km, cfg.UnitSystem),
				ElapsedSeconds: elapsed,
				Distance:       distance,
				At:             now,
			})
		}
	}

	return out
}

func milestoneText(km int, units models.UnitSystem) string {
	if units == models.UnitImperial {
		return fmt.Sprintf("%.2f miles completed", float64(km)*models.KmToMiles)
	}
	if km == 1 {
		return "1 kilometer completed"
	}
	return fmt.Sprintf("%d kilometers completed", km)
}
