// Package speech carries audio cues from the engine to whatever renders
// them. The engine only decides when a cue fires and what category it is;
// playback is a collaborator concern.
package speech

import (
	"log/slog"
	"sync"
	"time"
)

// Category identifies the kind of cue.
type Category string

const (
	CategorySpeedUp   Category = "speed_up"
	CategorySlowDown  Category = "slow_down"
	CategoryOnTarget  Category = "on_target"
	CategoryMilestone Category = "milestone"
)

// Cue is one announcement event.
type Cue struct {
	Category       Category  `json:"category"`
	Text           string    `json:"text"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Distance       float64   `json:"distance"` // km at the time of the cue
	At             time.Time `json:"at"`
}

// Announcer receives cues. Implementations must not block; the engine does
// not wait on delivery.
type Announcer interface {
	Announce(Cue)
}

// LogAnnouncer writes cues to the structured log.
type LogAnnouncer struct {
	Log *slog.Logger
}

func (a LogAnnouncer) Announce(c Cue) {
	a.Log.Info("audio cue",
		"category", string(c.Category),
		"text", c.Text,
		"elapsed", c.ElapsedSeconds,
		"distance", c.Distance,
	)
}

// Feed keeps the most recent cues in memory so clients can poll them.
type Feed struct {
	mu   sync.Mutex
	cues []Cue
	max  int
}

// NewFeed creates a Feed retaining at most max cues.
func NewFeed(max int) *Feed {
	if max <= 0 {
		max = 50
	}
	return &Feed{max: max}
}

func (f *Feed) Announce(c Cue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cues = append(f.cues, c)
	if len(f.cues) > f.max {
		f.cues = f.cues[len(f.cues)-f.max:]
	}
}

// Recent returns the retained cues, oldest first.
func (f *Feed) Recent() []Cue {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Cue, len(f.cues))
	copy(out, f.cues)
	return out
}

// Multi fans one cue out to several announcers.
func Multi(as ...Announcer) Announcer {
	return multi(as)
}

type multi []Announcer

func (m multi) Announce(c Cue) {
	for _, a := range m {
		a.Announce(c)
	}
}
