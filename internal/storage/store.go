// Package storage persists the single in-progress snapshot slot and the run
// history. The engine treats both records as opaque; the storage technology
// behind them is interchangeable.
package storage

import (
	"context"
	"errors"

	"github.com/claude/stride/internal/models"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("run not found")

// Store is the persistence collaborator contract. History ordering is
// most-recent-first.
type Store interface {
	// SaveActiveSnapshot writes the single in-progress slot; nil clears it.
	SaveActiveSnapshot(ctx context.Context, snap *models.Snapshot) error
	// LoadActiveSnapshot returns the stored snapshot, or nil if the slot is
	// empty or its contents cannot be trusted (fail-open).
	LoadActiveSnapshot(ctx context.Context) (*models.Snapshot, error)
	// AppendHistory records a finished run. Duplicate IDs are ignored.
	AppendHistory(ctx context.Context, run models.RunSession) error
	// GetRun returns one run by ID, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*models.RunSession, error)
	// DeleteHistory removes one run by ID. Removing an absent run is not an
	// error.
	DeleteHistory(ctx context.Context, id string) error
	// LoadHistory returns all runs, most recent first.
	LoadHistory(ctx context.Context) ([]models.RunSession, error)
	Close() error
}
