package ports

import (
	"context"
	"vllmd/pkg/models"
)

// FleetRepository is the port definition for persisting fleet status
// snapshots between supervisor transitions.
type FleetRepository interface {
	// Save will save the supplied fleet status snapshot.
	Save(ctx context.Context, status *models.FleetStatus) error
	// Get will get the most recently saved fleet status snapshot.
	Get(ctx context.Context) (*models.FleetStatus, error)
	// Exists checks whether a fleet status snapshot has been saved.
	Exists(ctx context.Context) (bool, error)
	// Delete will delete the saved fleet status snapshot.
	Delete(ctx context.Context) error
}
