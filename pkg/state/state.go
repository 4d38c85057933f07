package state

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/spf13/afero"

	"vllmd/pkg/defaults"
	"vllmd/pkg/models"
	"vllmd/pkg/ports"
)

const (
	fleetFileName = "fleet.json"

	osFsName = "OsFs"
)

// FleetRepo persists fleet status snapshots underneath the state root.
type FleetRepo struct {
	stateRoot string
	fs        afero.Fs
}

// New creates a fleet repository rooted at the supplied directory.
func New(stateRoot string, fs afero.Fs) ports.FleetRepository {
	return &FleetRepo{
		stateRoot: stateRoot,
		fs:        fs,
	}
}

// Save will save the supplied fleet status snapshot.
func (r *FleetRepo) Save(_ context.Context, status *models.FleetStatus) error {
	if err := r.fs.MkdirAll(r.stateRoot, defaults.DataDirPerm); err != nil {
		return fmt.Errorf("creating state root %s: %w", r.stateRoot, err)
	}

	buf, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling fleet status: %w", err)
	}

	// Snapshots are replaced with an atomic rename so a reader never sees a
	// torn file. In-memory filesystems used by tests have no rename support.
	if r.fs.Name() == osFsName {
		if err := renameio.WriteFile(r.path(), buf, defaults.DataFilePerm); err != nil {
			return fmt.Errorf("writing fleet status to %s: %w", r.path(), err)
		}

		return nil
	}

	if err := afero.WriteFile(r.fs, r.path(), buf, defaults.DataFilePerm); err != nil {
		return fmt.Errorf("writing fleet status to %s: %w", r.path(), err)
	}

	return nil
}

// Get will get the most recently saved fleet status snapshot.
func (r *FleetRepo) Get(_ context.Context) (*models.FleetStatus, error) {
	buf, err := afero.ReadFile(r.fs, r.path())
	if err != nil {
		return nil, fmt.Errorf("reading fleet status from %s: %w", r.path(), err)
	}

	status := &models.FleetStatus{}
	if err := json.Unmarshal(buf, status); err != nil {
		return nil, fmt.Errorf("unmarshalling fleet status: %w", err)
	}

	return status, nil
}

// Exists checks whether a fleet status snapshot has been saved.
func (r *FleetRepo) Exists(_ context.Context) (bool, error) {
	exists, err := afero.Exists(r.fs, r.path())
	if err != nil {
		return false, fmt.Errorf("checking for fleet status %s: %w", r.path(), err)
	}

	return exists, nil
}

// Delete will delete the saved fleet status snapshot.
func (r *FleetRepo) Delete(_ context.Context) error {
	if err := r.fs.Remove(r.path()); err != nil {
		return fmt.Errorf("removing fleet status %s: %w", r.path(), err)
	}

	return nil
}

func (r *FleetRepo) path() string {
	return filepath.Join(r.stateRoot, fleetFileName)
}
