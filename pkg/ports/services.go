package ports

import (
	"context"
	"vllmd/pkg/models"
)

// ServerRuntime is the port definition for a per-slot inference server
// backend. Implementations own the process handles they create.
type ServerRuntime interface {
	// Start launches the server process for the slot with its log sink
	// attached. The slot pid is recorded before Start returns.
	Start(ctx context.Context, slot *models.DeviceSlot) error
	// WaitExit blocks until the slot's server process exits and returns its
	// exit code. It returns early with the context error when ctx is done.
	WaitExit(ctx context.Context, slot *models.DeviceSlot) (int, error)
	// Stop terminates the slot's server process, escalating to a kill after
	// the configured grace period.
	Stop(ctx context.Context, slot *models.DeviceSlot) error
	// Pid returns the pid of the slot's server process.
	Pid(ctx context.Context, slot *models.DeviceSlot) (int, error)
}

// ReadinessProber is the port definition for deciding when a slot's server
// is serving traffic.
type ReadinessProber interface {
	// WaitReady blocks until the slot's port accepts connections or the
	// probe deadline passes. A nil return means the slot is ready.
	WaitReady(ctx context.Context, slot *models.DeviceSlot) error
}

// DeviceDiscoverer is the port definition for enumerating the GPUs on this
// host.
type DeviceDiscoverer interface {
	// Devices returns the ids of the usable devices on this host.
	Devices(ctx context.Context) ([]int, error)
}
