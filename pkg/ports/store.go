package ports

import (
	"context"

	"github.com/Young-Hyun-Ham/hamsfam-sub000/pkg/domain"
)

// RunStore defines the interface for persisting run snapshots.
// Values are partitioned by run id; no cross-run locking is implied.
type RunStore interface {
	// Save persists the snapshot for a given run ID.
	Save(ctx context.Context, runID string, state *domain.RunState) error

	// Load retrieves the snapshot for a given run ID.
	// Returns domain.ErrRunNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.RunState, error)

	// Delete removes the snapshot for a given run ID.
	// Deleting a missing run is not an error.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of all persisted runs.
	List(ctx context.Context) ([]string, error)
}
