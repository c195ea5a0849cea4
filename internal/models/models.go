// Package models holds the shared data types for run tracking: recorded
// location points, pace zones, finished runs, and the in-progress snapshot.
package models

import "fmt"

// UnitSystem selects the distance unit used for display and cue text.
// The engine itself always accumulates kilometers.
type UnitSystem string

const (
	UnitMetric   UnitSystem = "metric"
	UnitImperial UnitSystem = "imperial"
)

// KmToMiles converts kilometers to miles for display purposes.
const KmToMiles = 0.621371

// GeoPoint is one accepted location sample on a run path. Immutable once
// appended; the path owns its points.
type GeoPoint struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Altitude   *float64 `json:"altitude,omitempty"`
	Timestamp  int64    `json:"timestamp"` // epoch milliseconds
	PaceZoneID string   `json:"pace_zone_id,omitempty"`
}

// PaceZone is a user-defined effort band. Zones may overlap in configuration;
// classification is first-match by list order.
type PaceZone struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	MinPace float64 `json:"min_pace"` // seconds per km, inclusive
	MaxPace float64 `json:"max_pace"` // seconds per km, inclusive
	Color   string  `json:"color"`    // display passthrough only
}

// AudioCueSettings controls the cue scheduler.
type AudioCueSettings struct {
	Enabled               bool `json:"enabled" yaml:"enabled"`
	PaceAlerts            bool `json:"pace_alerts" yaml:"pace_alerts"`
	DistanceMilestones    bool `json:"distance_milestones" yaml:"distance_milestones"`
	AlertFrequencySeconds int  `json:"alert_frequency_seconds" yaml:"alert_frequency_seconds"`
}

// WorkoutPreset is a named run configuration with an optional target pace.
type WorkoutPreset struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	TargetPace float64 `json:"target_pace,omitempty"` // seconds per km, 0 = none
}

// RunSession is a finished, historical run. Immutable after creation.
type RunSession struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	StartTime int64      `json:"start_time"` // epoch ms, finish time minus duration
	Duration  int        `json:"duration"`   // seconds
	Distance  float64    `json:"distance"`   // kilometers
	Path      []GeoPoint `json:"path"`
	Calories  int        `json:"calories"`
	Steps     int        `json:"steps"`
	AvgPace   string     `json:"avg_pace"`
}

// SnapshotVersion is the current persisted snapshot schema version.
const SnapshotVersion = 1

// Snapshot is the persisted representation of an in-progress run. There is at
// most one active snapshot at a time; restoring one always resumes paused.
type Snapshot struct {
	Version        int        `json:"version"`
	Type           string     `json:"type"`
	PresetName     string     `json:"preset_name,omitempty"`
	ElapsedSeconds int        `json:"elapsed_seconds"`
	Distance       float64    `json:"distance"`
	Path           []GeoPoint `json:"path"`
	TargetPace     float64    `json:"target_pace,omitempty"`
	IsPaused       bool       `json:"is_paused"`
	SavedAt        int64      `json:"saved_at"` // epoch ms
}

// Validate reports whether the snapshot can be trusted for restore. A
// snapshot that fails validation is treated as absent, never partially used.
func (s *Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if s.Type == "" {
		return fmt.Errorf("snapshot missing run type")
	}
	if s.ElapsedSeconds < 0 {
		return fmt.Errorf("negative elapsed time %d", s.ElapsedSeconds)
	}
	if s.Distance < 0 {
		return fmt.Errorf("negative distance %f", s.Distance)
	}
	for i, p := range s.Path {
		if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
			return fmt.Errorf("path point %d out of range: %f,%f", i, p.Latitude, p.Longitude)
		}
	}
	return nil
}
