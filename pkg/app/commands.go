package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"vllmd/pkg/log"
	"vllmd/pkg/models"
	"vllmd/pkg/planner"
)

// Plan assigns every configured device its port and log file.
func (a *App) Plan(_ context.Context) ([]*models.DeviceSlot, error) {
	return planner.Plan(a.cfg.Launch, a.cfg.Devices, a.ports.FileSystem)
}

// Run plans the fleet and supervises it until ctx is cancelled or every slot
// has reached a terminal state. It returns an error when at least one slot
// failed permanently.
func (a *App) Run(ctx context.Context) error {
	logger := log.GetLogger(ctx).WithField("app", "vllmd")

	slots, err := a.Plan(ctx)
	if err != nil {
		return fmt.Errorf("planning fleet: %w", err)
	}

	status := models.FleetStatus{
		RunID:     uuid.NewString(),
		Provider:  a.cfg.DefaultProvider,
		Model:     a.cfg.Launch.Model,
		StartedAt: a.clock().Unix(),
	}

	logger.Infof("run %s: serving %s on %d device(s) via %s",
		status.RunID, a.cfg.Launch.Model, len(slots), a.cfg.DefaultProvider)

	return a.sup.Run(log.WithLogger(ctx, logger), status, slots)
}
