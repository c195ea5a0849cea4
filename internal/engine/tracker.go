// Package engine implements the live run-tracking state machine: it
// consumes location fixes and clock ticks, maintains a consistent run state
// (distance, pace, path, timer), schedules audio cues, and snapshots
// in-progress state for crash recovery.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/claude/stride/internal/geo"
	"github.com/claude/stride/internal/location"
	"github.com/claude/stride/internal/models"
	"github.com/claude/stride/internal/pace"
	"github.com/claude/stride/internal/speech"
	"github.com/google/uuid"
)

// Status is the run lifecycle state.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

// StalenessWindow is how long after the last fix the displayed pace stays
// trustworthy. Beyond it the pace is forced to the unknown sentinel; the
// timer keeps running and distance simply stops advancing.
const StalenessWindow = 3500 * time.Millisecond

// caloriesPerKm and stepsPerKm are fixed display constants, not a
// physiological model.
const (
	caloriesPerKm = 60
	stepsPerKm    = 1250
)

var (
	// ErrNoRunType rejects starting a run before a type/preset is selected.
	ErrNoRunType = errors.New("no run type selected")
	// ErrNoActiveRun rejects lifecycle operations with no run in progress.
	ErrNoActiveRun = errors.New("no run in progress")
	// ErrNotPaused rejects resuming a run that is not paused.
	ErrNotPaused = errors.New("run is not paused")
	// ErrAlreadyPaused rejects pausing twice.
	ErrAlreadyPaused = errors.New("run is already paused")
)

// Config is the tracking configuration read at session start and again at
// each cue evaluation, so mid-run settings changes take effect on the next
// evaluation rather than retroactively.
type Config struct {
	Zones      []models.PaceZone
	Cues       models.AudioCueSettings
	UnitSystem models.UnitSystem
}

// ConfigFunc supplies the current configuration. It must be cheap.
type ConfigFunc func() Config

// SnapshotStore is the narrow persistence view the tracker needs.
type SnapshotStore interface {
	SaveActiveSnapshot(ctx context.Context, snap *models.Snapshot) error
	AppendHistory(ctx context.Context, run models.RunSession) error
}

// StartOptions selects what kind of run to begin.
type StartOptions struct {
	Type       string
	PresetName string
	TargetPace float64 // seconds per km, 0 = no target
}

// State is a read-only view of the tracker for display and APIs.
type State struct {
	Status         Status            `json:"status"`
	Type           string            `json:"type,omitempty"`
	PresetName     string            `json:"preset_name,omitempty"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	Distance       float64           `json:"distance"` // km
	Pace           float64           `json:"pace"`     // s/km, 0 = unknown
	PaceDisplay    string            `json:"pace_display"`
	TargetPace     float64           `json:"target_pace,omitempty"`
	Calories       int               `json:"calories"`
	Path           []models.GeoPoint `json:"path"`
	Current        *models.GeoPoint  `json:"current,omitempty"`
	Accuracy       float64           `json:"accuracy"`
	Altitude       *float64          `json:"altitude,omitempty"`
	Zone           *models.PaceZone  `json:"zone,omitempty"`
}

// Tracker is the run session state machine. All entry points are serialized
// by a single mutex: the clock tick and the fix stream may interleave in any
// order, but their mutations never overlap.
type Tracker struct {
	mu        sync.Mutex
	store     SnapshotStore
	announcer speech.Announcer
	config    ConfigFunc
	log       *slog.Logger
	now       func() time.Time

	status     Status
	runType    string
	presetName string
	targetPace float64

	elapsed  int
	distance float64
	path     []models.GeoPoint

	pace      float64 // 0 = unknown
	current   *models.GeoPoint
	accuracy  float64
	altitude  *float64
	lastFixAt time.Time

	cues cueState
}

// New creates an idle tracker.
func New(store SnapshotStore, announcer speech.Announcer, config ConfigFunc, log *slog.Logger) *Tracker {
	return &Tracker{
		store:     store,
		announcer: announcer,
		config:    config,
		log:       log,
		now:       time.Now,
		status:    StatusIdle,
	}
}

// Start begins a new run. Any previous in-progress state is implicitly
// discarded: there is at most one active session at a time.
func (t *Tracker) Start(opts StartOptions) error {
	if opts.Type == "" {
		return ErrNoRunType
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.runType = opts.Type
	t.presetName = opts.PresetName
	t.targetPace = opts.TargetPace
	t.elapsed = 0
	t.distance = 0
	t.path = nil
	t.pace = pace.Unknown
	t.cues = cueState{}
	t.lastFixAt = t.now()
	t.status = StatusActive

	t.log.Info("run started", "type", t.runType, "preset", t.presetName, "target_pace", t.targetPace)
	t.persist()
	return nil
}

// Pause freezes the timer. Fixes are still observed for position display but
// no longer appended to the path.
func (t *Tracker) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.status {
	case StatusIdle:
		return ErrNoActiveRun
	case StatusPaused:
		return ErrAlreadyPaused
	}
	t.status = StatusPaused
	t.log.Info("run paused", "elapsed", t.elapsed, "distance", t.distance)
	t.persist()
	return nil
}

// Resume continues a paused run.
func (t *Tracker) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.status {
	case StatusIdle:
		return ErrNoActiveRun
	case StatusActive:
		return ErrNotPaused
	}
	t.status = StatusActive
	t.lastFixAt = t.now()
	t.log.Info("run resumed", "elapsed", t.elapsed)
	t.persist()
	return nil
}

// Finish finalizes the run into an immutable RunSession, prepends it to
// history, clears the snapshot slot, and returns to idle. A zero-distance
// finish produces a degenerate but valid session.
func (t *Tracker) Finish() (*models.RunSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == StatusIdle {
		return nil, ErrNoActiveRun
	}

	now := t.now()
	avgPace := 0.0
	if t.distance > 0 {
		avgPace = float64(t.elapsed) / t.distance
	}
	sessionType := t.runType
	if t.presetName != "" {
		sessionType = t.presetName
	}
	run := models.RunSession{
		ID:        uuid.NewString(),
		Type:      sessionType,
		StartTime: now.UnixMilli() - int64(t.elapsed)*1000,
		Duration:  t.elapsed,
		Distance:  t.distance,
		Path:      t.path,
		Calories:  int(t.distance * caloriesPerKm),
		Steps:     int(t.distance * stepsPerKm),
		AvgPace:   pace.Format(avgPace),
	}

	// History append is the one persistence step that must succeed for the
	// transition to count; on failure the run stays in progress so the
	// caller can retry without losing data.
	if err := t.store.AppendHistory(context.Background(), run); err != nil {
		t.log.Error("history append failed", "error", err)
		return nil, err
	}

	t.resetLocked()
	t.log.Info("run finished", "id", run.ID, "duration", run.Duration, "distance", run.Distance)
	return &run, nil
}

// Discard abandons the run without producing history and clears the
// snapshot slot.
func (t *Tracker) Discard() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status == StatusIdle {
		return ErrNoActiveRun
	}
	t.resetLocked()
	t.log.Info("run discarded")
	return nil
}

// resetLocked returns the tracker to idle and clears the snapshot slot.
func (t *Tracker) resetLocked() {
	t.status = StatusIdle
	t.elapsed = 0
	t.distance = 0
	t.path = nil
	t.pace = pace.Unknown
	t.targetPace = 0
	t.runType = ""
	t.presetName = ""
	t.cues = cueState{}
	t.persist()
}

// Tick advances the timer by one second. It is the sole time driver: elapsed
// time moves only here, and only while active. Stale pace and cue evaluation
// also happen on the tick.
func (t *Tracker) Tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusActive {
		return
	}

	t.elapsed++
	if now.Sub(t.lastFixAt) > StalenessWindow {
		t.pace = pace.Unknown
	}

	cfg := t.config()
	for _, cue := range t.cues.evaluate(t.elapsed, t.pace, t.targetPace, t.distance, cfg, now) {
		t.announcer.Announce(cue)
	}
	t.persist()
}

// HandleFix processes one raw location fix. Display state (position,
// accuracy, altitude, pace) updates regardless of run status; path and
// distance only advance while active, gated by the step filter. Rejected
// fixes are dropped silently.
func (t *Tracker) HandleFix(f location.Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cfg := t.config()
	p, known := pace.FromSpeed(f.Speed)

	var zoneID string
	if known {
		if z := pace.Classify(p, cfg.Zones); z != nil {
			zoneID = z.ID
		}
	}
	point := models.GeoPoint{
		Latitude:   f.Latitude,
		Longitude:  f.Longitude,
		Altitude:   f.Altitude,
		Timestamp:  f.Timestamp,
		PaceZoneID: zoneID,
	}

	t.current = &point
	t.accuracy = f.Accuracy
	t.altitude = f.Altitude
	t.lastFixAt = t.now()
	if known {
		// Absent or sub-threshold speed holds the previous value; only the
		// staleness window zeroes displayed pace.
		t.pace = p
	}

	if t.status != StatusActive {
		return
	}

	if len(t.path) == 0 {
		// First point of a path is always accepted.
		t.path = append(t.path, point)
		t.persist()
		return
	}

	last := t.path[len(t.path)-1]
	delta, ok := geo.Step(last.Latitude, last.Longitude, point.Latitude, point.Longitude)
	if !ok {
		t.log.Debug("fix rejected", "delta_km", delta)
		return
	}
	t.path = append(t.path, point)
	t.distance += delta
	t.persist()
}

// Restore loads a persisted snapshot. The restored run always lands in
// paused, regardless of the stored pause flag: a reload never silently
// resumes active tracking. Invalid snapshots are ignored.
func (t *Tracker) Restore(snap *models.Snapshot) {
	if snap == nil {
		return
	}
	if err := snap.Validate(); err != nil {
		t.log.Warn("ignoring invalid snapshot", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = StatusPaused
	t.runType = snap.Type
	t.presetName = snap.PresetName
	t.targetPace = snap.TargetPace
	t.elapsed = snap.ElapsedSeconds
	t.distance = snap.Distance
	t.path = snap.Path
	t.pace = pace.Unknown
	// Seed dedup state so a restored run does not replay old cues.
	t.cues = cueState{
		lastPaceCueAt: snap.ElapsedSeconds,
		milestoneKm:   int(math.Floor(snap.Distance)),
	}
	t.log.Info("run restored from snapshot", "type", snap.Type, "elapsed", snap.ElapsedSeconds, "distance", snap.Distance)
}

// State returns a copy of the current run state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	path := make([]models.GeoPoint, len(t.path))
	copy(path, t.path)

	s := State{
		Status:         t.status,
		Type:           t.runType,
		PresetName:     t.presetName,
		ElapsedSeconds: t.elapsed,
		Distance:       t.distance,
		Pace:           t.pace,
		PaceDisplay:    pace.Format(t.pace),
		TargetPace:     t.targetPace,
		Calories:       int(t.distance * caloriesPerKm),
		Path:           path,
		Current:        t.current,
		Accuracy:       t.accuracy,
		Altitude:       t.altitude,
	}
	if z := pace.Classify(t.pace, t.config().Zones); z != nil {
		zone := *z
		s.Zone = &zone
	}
	return s
}

// persist snapshots the in-progress state, or clears the slot when there is
// nothing to resume (no phantom resumable runs). Failures are logged and
// absorbed; the in-memory state stays authoritative and the next mutation
// retries.
func (t *Tracker) persist() {
	var snap *models.Snapshot
	if t.elapsed > 0 || t.status == StatusActive {
		snap = &models.Snapshot{
			Version:        models.SnapshotVersion,
			Type:           t.runType,
			PresetName:     t.presetName,
			ElapsedSeconds: t.elapsed,
			Distance:       t.distance,
			Path:           t.path,
			TargetPace:     t.targetPace,
			IsPaused:       t.status == StatusPaused,
			SavedAt:        t.now().UnixMilli(),
		}
	}
	if err := t.store.SaveActiveSnapshot(context.Background(), snap); err != nil {
		t.log.Warn("snapshot save failed", "error", err)
	}
}
