package gpu

import (
	"context"
	"sort"

	"vllmd/pkg/log"
	"vllmd/pkg/ports"
)

// Device describes one GPU on this host.
type Device struct {
	// Index is the GPU index as seen by the driver.
	Index int
	// UUID is the driver-assigned unique id of the GPU.
	UUID string
	// Name is the product name of the GPU.
	Name string
	// MemoryBytes is the total memory of the GPU.
	MemoryBytes uint64
}

// Discoverer enumerates the GPUs on this host through the NVIDIA management
// library. It is used when no explicit device list is configured.
type Discoverer struct{}

func NewDiscoverer() ports.DeviceDiscoverer {
	return &Discoverer{}
}

// Devices returns the indexes of every GPU on this host, in index order.
func (d *Discoverer) Devices(ctx context.Context) ([]int, error) {
	discovered, err := Discover()
	if err != nil {
		return nil, err
	}

	logger := log.GetLogger(ctx)
	devices := make([]int, 0, len(discovered))

	for _, device := range discovered {
		logger.Infof("discovered gpu%d: %s (%d MiB)", device.Index, device.Name, device.MemoryBytes/(1<<20))
		devices = append(devices, device.Index)
	}

	sort.Ints(devices)

	return devices, nil
}
