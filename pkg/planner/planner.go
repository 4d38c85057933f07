package planner

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"vllmd/pkg/defaults"
	"vllmd/pkg/errors"
	"vllmd/pkg/models"
)

const maxPort = 65535

// Plan assigns every device its port and log file and prepares the log
// directory. Device n gets port BasePort+n, so a fleet never has two servers
// behind the same port. The returned slots are in the order the devices were
// supplied.
func Plan(launch *models.LaunchConfig, devices []int, fs afero.Fs) ([]*models.DeviceSlot, error) {
	if launch == nil {
		return nil, errors.NewConfigError(errors.ErrLaunchConfigRequired)
	}

	if launch.Model == "" {
		return nil, errors.NewConfigError(errors.ErrModelRequired)
	}

	if launch.LogDir == "" {
		return nil, errors.NewConfigError(errors.ErrLogDirRequired)
	}

	if len(devices) == 0 {
		return nil, errors.NewConfigError(errors.ErrDeviceListRequired)
	}

	if launch.BasePort < 1 || launch.BasePort > maxPort {
		return nil, errors.NewConfigError(fmt.Errorf("base port %d is outside the valid port range", launch.BasePort))
	}

	seen := map[int]struct{}{}
	slots := make([]*models.DeviceSlot, 0, len(devices))

	for _, device := range devices {
		if device < 0 {
			return nil, errors.NewNegativeDevice(device)
		}

		if _, ok := seen[device]; ok {
			return nil, errors.NewDuplicateDevice(device)
		}
		seen[device] = struct{}{}

		port := launch.BasePort + device
		if port > maxPort {
			return nil, errors.NewPortOutOfRange(device, port)
		}

		slots = append(slots, &models.DeviceSlot{
			Device:  device,
			Port:    port,
			LogPath: LogPath(launch.LogDir, device),
			Status: models.SlotStatus{
				State: models.StatePending,
			},
		})
	}

	// MkdirAll succeeds when the directory already exists, so planning the
	// same fleet twice is safe.
	if err := fs.MkdirAll(launch.LogDir, defaults.DataDirPerm); err != nil {
		return nil, errors.NewConfigError(fmt.Errorf("creating log directory %s: %w", launch.LogDir, err))
	}

	return slots, nil
}

// LogPath returns the log file for a device inside the log directory.
func LogPath(logDir string, device int) string {
	return filepath.Join(logDir, fmt.Sprintf("vllm_gpu%d.log", device))
}

// ParseDeviceList parses a comma-separated device list such as "0,1,3".
func ParseDeviceList(list string) ([]int, error) {
	devices := []int{}

	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		device, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("parsing device id %q: %w", part, err)
		}

		devices = append(devices, device)
	}

	return devices, nil
}

// Sequential returns the device ids 0 through count-1.
func Sequential(count int) []int {
	devices := make([]int, count)
	for i := range devices {
		devices[i] = i
	}

	return devices
}
