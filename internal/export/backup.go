// Package export builds and restores JSON backups of run history.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/claude/stride/internal/models"
	"github.com/claude/stride/internal/storage"
)

// BackupVersion is bumped when the backup layout changes.
const BackupVersion = 1

// Backup is the portable export format: the full run history plus the
// settings needed to interpret it on another install.
type Backup struct {
	Version    int                     `json:"version"`
	ExportedAt int64                   `json:"exported_at"` // epoch ms
	UnitSystem models.UnitSystem       `json:"unit_system"`
	PaceZones  []models.PaceZone       `json:"pace_zones"`
	AudioCues  models.AudioCueSettings `json:"audio_cues"`
	Runs       []models.RunSession     `json:"runs"`
}

// Settings captures the display configuration embedded in a backup.
type Settings struct {
	UnitSystem models.UnitSystem
	PaceZones  []models.PaceZone
	AudioCues  models.AudioCueSettings
}

// Build assembles a backup from the store and the current settings.
func Build(ctx context.Context, store storage.Store, settings Settings) (*Backup, error) {
	runs, err := store.LoadHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return &Backup{
		Version:    BackupVersion,
		ExportedAt: time.Now().UnixMilli(),
		UnitSystem: settings.UnitSystem,
		PaceZones:  settings.PaceZones,
		AudioCues:  settings.AudioCues,
		Runs:       runs,
	}, nil
}

// Write streams a backup as indented JSON.
func Write(w io.Writer, b *Backup) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// Read parses and validates a backup document.
func Read(r io.Reader) (*Backup, error) {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("parsing backup: %w", err)
	}
	if b.Version != BackupVersion {
		return nil, fmt.Errorf("unsupported backup version %d", b.Version)
	}
	for i, run := range b.Runs {
		if run.ID == "" {
			return nil, fmt.Errorf("run %d has no id", i)
		}
		if run.Duration < 0 || run.Distance < 0 {
			return nil, fmt.Errorf("run %q has negative duration or distance", run.ID)
		}
	}
	return &b, nil
}

// Import writes the backup's runs into the store. Runs already present
// (by ID) are skipped. Returns the number of runs actually added.
func Import(ctx context.Context, store storage.Store, b *Backup) (int, error) {
	added := 0
	for _, run := range b.Runs {
		_, err := store.GetRun(ctx, run.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return added, fmt.Errorf("checking run %q: %w", run.ID, err)
		}
		if err := store.AppendHistory(ctx, run); err != nil {
			return added, fmt.Errorf("importing run %q: %w", run.ID, err)
		}
		added++
	}
	return added, nil
}
