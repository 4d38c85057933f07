package config

import (
	"fmt"
	"time"

	"github.com/docker/go-units"

	"vllmd/pkg/log"
	"vllmd/pkg/models"
)

// Config represents the vllmd configuration, assembled from flags, the
// environment and an optional fleet manifest.
type Config struct {
	// Logging contains the logging related config.
	Logging log.Config

	// FleetFile is the path to the fleet manifest. When set the manifest
	// defines the fleet and overrides the matching flags.
	FleetFile string

	// Model is the model identifier every server in the fleet serves.
	Model string
	// ServedModelName is the name the servers advertise, defaults to Model.
	ServedModelName string
	// Host is the address the server processes bind to.
	Host string
	// BasePort is the port for device 0. Device n serves on BasePort+n.
	BasePort int
	// MaxModelLen is the model context length in tokens.
	MaxModelLen int
	// MaxNumSeqs caps concurrent sequences per server, 0 to leave it to the server.
	MaxNumSeqs int
	// GPUMemoryUtilization is the fraction of GPU memory each server claims.
	GPUMemoryUtilization float64
	// SwapSpace is the CPU swap space per server as a human readable size,
	// e.g. "4GiB". Empty to leave it to the server.
	SwapSpace string
	// LogDir is the directory holding the per-device server logs.
	LogDir string
	// ExtraArgs are appended verbatim to every server command line.
	ExtraArgs []string
	// ExtraEnv are KEY=VALUE pairs added to every server environment.
	ExtraEnv []string

	// DeviceList is the comma-separated GPU indexes to serve on. Empty
	// means discover the GPUs on this host.
	DeviceList string

	// DefaultProvider is the name of the server runtime to use.
	DefaultProvider string
	// ServeBin is the vLLM launcher binary used by the exec runtime.
	ServeBin string
	// DockerImage is the server image used by the docker runtime.
	DockerImage string
	// ModelCacheDir is a host directory bind-mounted as the model cache by
	// the docker runtime.
	ModelCacheDir string
	// Detach indicates that server processes should survive a supervisor exit.
	Detach bool
	// GraceTimeout is how long shutdown waits for a server before killing it.
	GraceTimeout time.Duration
	// StateRootDir is the directory to use as the root for runtime state.
	StateRootDir string

	// MaximumRetry is the number of times to restart a crashed server.
	MaximumRetry int
	// RestartBackoff is the delay before the first restart of a slot.
	RestartBackoff time.Duration
	// RestartBackoffMax caps the delay between restarts of the same slot.
	RestartBackoffMax time.Duration

	// Prober selects the readiness probe, tcp or http.
	Prober string
	// ProbeInterval is how often the readiness prober attempts a connection.
	ProbeInterval time.Duration
	// ProbeTimeout bounds how long a slot may take to become ready.
	ProbeTimeout time.Duration

	// HTTPAPIEndpoint is the bind address for the admin HTTP API.
	HTTPAPIEndpoint string
	// DisableAPI disables the admin HTTP API.
	DisableAPI bool
}

// LaunchConfig converts the configuration into the immutable launch record
// the planner and runtimes consume.
func (c *Config) LaunchConfig() (*models.LaunchConfig, error) {
	launch := &models.LaunchConfig{
		Model:                c.Model,
		ServedModelName:      c.ServedModelName,
		Host:                 c.Host,
		BasePort:             c.BasePort,
		MaxModelLen:          c.MaxModelLen,
		MaxNumSeqs:           c.MaxNumSeqs,
		GPUMemoryUtilization: c.GPUMemoryUtilization,
		LogDir:               c.LogDir,
		ExtraArgs:            c.ExtraArgs,
		ExtraEnv:             c.ExtraEnv,
	}

	if c.SwapSpace != "" {
		bytes, err := units.RAMInBytes(c.SwapSpace)
		if err != nil {
			return nil, fmt.Errorf("parsing swap space %q: %w", c.SwapSpace, err)
		}

		launch.SwapSpaceBytes = bytes
	}

	if launch.GPUMemoryUtilization <= 0 || launch.GPUMemoryUtilization > 1 {
		return nil, fmt.Errorf("gpu memory utilization %v is not in (0, 1]", launch.GPUMemoryUtilization)
	}

	return launch, nil
}
