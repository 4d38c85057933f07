//go:build linux

package gpu

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// Discover enumerates every GPU on this host via NVML.
func Discover() ([]Device, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("initializing nvml: %s", nvml.ErrorString(ret))
	}
	defer func() { _ = nvml.Shutdown() }()

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("getting device count: %s", nvml.ErrorString(ret))
	}

	devices := make([]Device, 0, count)

	for i := 0; i < count; i++ {
		handle, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("getting handle for device %d: %s", i, nvml.ErrorString(ret))
		}

		device := Device{Index: i}

		if uuid, ret := handle.GetUUID(); ret == nvml.SUCCESS {
			device.UUID = uuid
		}

		if name, ret := handle.GetName(); ret == nvml.SUCCESS {
			device.Name = name
		}

		if memory, ret := handle.GetMemoryInfo(); ret == nvml.SUCCESS {
			device.MemoryBytes = memory.Total
		}

		devices = append(devices, device)
	}

	return devices, nil
}
