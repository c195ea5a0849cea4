package engine

import (
	"testing"
	"time"

	"github.com/claude/stride/internal/models"
	"github.com/claude/stride/internal/speech"
)

func cueConfig() Config {
	cfg := testConfig()
	return cfg
}

// TestPaceCueClassification verifies the direction of the advice: pace is
// seconds per kilometer, so a numerically lower pace means too fast.
func TestPaceCueClassification(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		want    speech.Category
	}{
		{"much faster than target", 280, speech.CategorySlowDown}, // 300-280 > 15 under
		{"much slower than target", 320, speech.CategorySpeedUp},
		{"inside tolerance fast side", 290, speech.CategoryOnTarget},
		{"inside tolerance slow side", 310, speech.CategoryOnTarget},
		{"exactly on tolerance edge", 315, speech.CategoryOnTarget}, // diff == +15, not > 15
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &cueState{}
			cues := c.evaluate(60, tt.current, 300, 0.2, cueConfig(), time.Now())
			if len(cues) != 1 {
				t.Fatalf("cue count = %d, want 1", len(cues))
			}
			if cues[0].Category != tt.want {
				t.Errorf("category = %v, want %v", cues[0].Category, tt.want)
			}
		})
	}
}

// TestPaceCueDedup verifies a pace cue never fires twice for the same
// elapsed second, even when the evaluation runs multiple times per tick, and
// fires again at the next frequency multiple.
func TestPaceCueDedup(t *testing.T) {
	c := &cueState{}
	cfg := cueConfig()
	now := time.Now()

	total := 0
	for elapsed := 1; elapsed <= 120; elapsed++ {
		// Evaluate twice per second to simulate re-entrant evaluation.
		total += len(c.evaluate(elapsed, 300, 300, 0, cfg, now))
		total += len(c.evaluate(elapsed, 300, 300, 0, cfg, now))
	}
	if total != 2 {
		t.Errorf("pace cues over 120s = %d, want 2 (t=60 and t=120)", total)
	}
}

// TestPaceCueRequiresTargetAndPace verifies no cue fires without a
// configured target or with an unknown current pace.
func TestPaceCueRequiresTargetAndPace(t *testing.T) {
	cfg := cueConfig()
	now := time.Now()

	c := &cueState{}
	if cues := c.evaluate(60, 300, 0, 0, cfg, now); len(cues) != 0 {
		t.Errorf("cue fired without target: %+v", cues)
	}

	c = &cueState{}
	if cues := c.evaluate(60, 0, 300, 0, cfg, now); len(cues) != 0 {
		t.Errorf("cue fired with unknown pace: %+v", cues)
	}
	// The second is still consumed: a late pace reading within the same
	// window must not produce a delayed duplicate.
	if cues := c.evaluate(60, 300, 300, 0, cfg, now); len(cues) != 0 {
		t.Errorf("late duplicate fired: %+v", cues)
	}
}

// TestMilestoneHighWaterMark verifies a distance jump from 0.5 to 2.3 fires
// exactly one cue, for the latest crossed kilometer, with no backfill.
func TestMilestoneHighWaterMark(t *testing.T) {
	c := &cueState{}
	cfg := cueConfig()
	now := time.Now()

	if cues := c.evaluate(10, 0, 0, 0.5, cfg, now); len(cues) != 0 {
		t.Fatalf("milestone before first km: %+v", cues)
	}

	cues := c.evaluate(11, 0, 0, 2.3, cfg, now)
	if len(cues) != 1 {
		t.Fatalf("cue count = %d, want exactly 1", len(cues))
	}
	if cues[0].Category != speech.CategoryMilestone || cues[0].Text != "2 kilometers completed" {
		t.Errorf("cue = %+v, want milestone for km 2", cues[0])
	}

	// No repeat while distance stays under the next whole unit.
	if cues := c.evaluate(12, 0, 0, 2.9, cfg, now); len(cues) != 0 {
		t.Errorf("milestone repeated: %+v", cues)
	}
	if cues := c.evaluate(13, 0, 0, 3.0, cfg, now); len(cues) != 1 {
		t.Errorf("km 3 milestone missing: %+v", cues)
	}
}

// TestMilestoneTextSingularAndImperial checks cue wording for the first
// kilometer and for imperial display.
func TestMilestoneTextSingularAndImperial(t *testing.T) {
	if got := milestoneText(1, models.UnitMetric); got != "1 kilometer completed" {
		t.Errorf("metric singular = %q", got)
	}
	if got := milestoneText(3, models.UnitMetric); got != "3 kilometers completed" {
		t.Errorf("metric plural = %q", got)
	}
	if got := milestoneText(2, models.UnitImperial); got != "1.24 miles completed" {
		t.Errorf("imperial = %q", got)
	}
}

// TestBothCuesSameTick verifies pace and milestone cues are independent and
// can fire together in one evaluation.
func TestBothCuesSameTick(t *testing.T) {
	c := &cueState{}
	cues := c.evaluate(60, 320, 300, 1.1, cueConfig(), time.Now())
	if len(cues) != 2 {
		t.Fatalf("cue count = %d, want 2", len(cues))
	}
	if cues[0].Category != speech.CategorySpeedUp || cues[1].Category != speech.CategoryMilestone {
		t.Errorf("cues = %+v", cues)
	}
}

// TestCuesRespectSettings verifies the enabled/paceAlerts/milestones flags
// and the default frequency fallback.
func TestCuesRespectSettings(t *testing.T) {
	now := time.Now()

	cfg := cueConfig()
	cfg.Cues.Enabled = false
	c := &cueState{}
	if cues := c.evaluate(60, 320, 300, 2.0, cfg, now); len(cues) != 0 {
		t.Errorf("cues fired while disabled: %+v", cues)
	}

	cfg = cueConfig()
	cfg.Cues.PaceAlerts = false
	c = &cueState{}
	cues := c.evaluate(60, 320, 300, 2.0, cfg, now)
	if len(cues) != 1 || cues[0].Category != speech.CategoryMilestone {
		t.Errorf("cues = %+v, want milestone only", cues)
	}

	cfg = cueConfig()
	cfg.Cues.DistanceMilestones = false
	c = &cueState{}
	cues = c.evaluate(60, 320, 300, 2.0, cfg, now)
	if len(cues) != 1 || cues[0].Category != speech.CategorySpeedUp {
		t.Errorf("cues = %+v, want pace cue only", cues)
	}

	// Zero frequency falls back to 60 s.
	cfg = cueConfig()
	cfg.Cues.AlertFrequencySeconds = 0
	cfg.Cues.DistanceMilestones = false
	c = &cueState{}
	if cues := c.evaluate(59, 320, 300, 0, cfg, now); len(cues) != 0 {
		t.Errorf("cue fired off-frequency: %+v", cues)
	}
	if cues := c.evaluate(60, 320, 300, 0, cfg, now); len(cues) != 1 {
		t.Errorf("cue missing at default frequency: %+v", cues)
	}
}
