package app

import (
	"time"

	"vllmd/pkg/errors"
	"vllmd/pkg/models"
	"vllmd/pkg/ports"
	"vllmd/pkg/supervisor"
)

// Config represents the application configuration.
type Config struct {
	// DefaultProvider is the name of the server runtime to launch the
	// fleet with.
	DefaultProvider string
	// Launch is the immutable launch record shared by every slot.
	Launch *models.LaunchConfig
	// Devices are the GPU indexes to serve on.
	Devices []int
	// Supervisor is the restart and shutdown policy for the fleet.
	Supervisor supervisor.Config
}

// App ties the launch planner, server runtimes, readiness prober and the
// supervisor together behind the fleet-level operations the commands and the
// admin API use.
type App struct {
	cfg   *Config
	ports *ports.Collection

	sup *supervisor.Supervisor
}

func New(cfg *Config, ports *ports.Collection) (*App, error) {
	provider, ok := ports.RuntimeProviders[cfg.DefaultProvider]
	if !ok {
		return nil, errors.NewUnknownProvider(cfg.DefaultProvider)
	}

	return &App{
		cfg:   cfg,
		ports: ports,
		sup: supervisor.New(
			&cfg.Supervisor,
			provider,
			ports.Prober,
			ports.FleetRepo,
			ports.Metrics,
		),
	}, nil
}

// Status returns a snapshot of every slot in the fleet.
func (a *App) Status() models.FleetStatus {
	return a.sup.Status()
}

// Ready returns true once every slot in the fleet is ready.
func (a *App) Ready() bool {
	return a.sup.Ready()
}

func (a *App) clock() time.Time {
	if a.ports.Clock != nil {
		return a.ports.Clock()
	}

	return time.Now()
}
