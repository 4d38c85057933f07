package fleet

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"vllmd/internal/config"
	"vllmd/pkg/errors"
	"vllmd/pkg/gpu"
	"vllmd/pkg/log"
	"vllmd/pkg/manifest"
	"vllmd/pkg/models"
	"vllmd/pkg/planner"
	"vllmd/pkg/ports"
)

// Resolve applies the fleet manifest when one is configured and returns the
// launch record and device set the fleet is defined by. Devices come from
// the manifest or the device list flag, falling back to GPU discovery.
func Resolve(ctx context.Context, cfg *config.Config, fs afero.Fs) (*models.LaunchConfig, []int, error) {
	if cfg.FleetFile != "" {
		m, err := manifest.Load(cfg.FleetFile, fs)
		if err != nil {
			return nil, nil, err
		}

		if err := m.Apply(cfg); err != nil {
			return nil, nil, errors.NewConfigError(fmt.Errorf("applying manifest %s: %w", cfg.FleetFile, err))
		}

		log.GetLogger(ctx).Infof("fleet defined by manifest %s", cfg.FleetFile)
	}

	launch, err := cfg.LaunchConfig()
	if err != nil {
		return nil, nil, errors.NewConfigError(err)
	}

	devices, err := resolveDevices(ctx, cfg, gpu.NewDiscoverer())
	if err != nil {
		return nil, nil, err
	}

	return launch, devices, nil
}

func resolveDevices(ctx context.Context, cfg *config.Config, discoverer ports.DeviceDiscoverer) ([]int, error) {
	if cfg.DeviceList != "" {
		devices, err := planner.ParseDeviceList(cfg.DeviceList)
		if err != nil {
			return nil, errors.NewConfigError(err)
		}

		return devices, nil
	}

	devices, err := discoverer.Devices(ctx)
	if err != nil {
		return nil, errors.NewConfigError(fmt.Errorf("discovering gpus: %w", err))
	}

	if len(devices) == 0 {
		return nil, errors.NewConfigError(errors.ErrDeviceListRequired)
	}

	return devices, nil
}
