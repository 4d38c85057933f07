package models

// FleetStatus is a point-in-time snapshot of every slot in the fleet.
type FleetStatus struct {
	// RunID uniquely identifies this supervisor run.
	RunID string `json:"run_id"`
	// Provider is the server runtime the fleet was launched with.
	Provider string `json:"provider"`
	// Model is the model identifier the fleet serves.
	Model string `json:"model"`
	// StartedAt is when the supervisor started, as a unix timestamp.
	StartedAt int64 `json:"started_at"`
	// Slots holds a copy of every device slot.
	Slots []DeviceSlot `json:"slots"`
}

// AllReady returns true when every slot in the fleet is ready.
func (s *FleetStatus) AllReady() bool {
	if len(s.Slots) == 0 {
		return false
	}

	for _, slot := range s.Slots {
		if slot.Status.State != StateReady {
			return false
		}
	}

	return true
}

// FailedDevices returns the devices whose slots are in the failed state.
func (s *FleetStatus) FailedDevices() []int {
	devices := []int{}

	for _, slot := range s.Slots {
		if slot.Status.State == StateFailed {
			devices = append(devices, slot.Device)
		}
	}

	return devices
}

// Slot returns the slot for the given device, or nil if the device is not
// part of the fleet.
func (s *FleetStatus) Slot(device int) *DeviceSlot {
	for i := range s.Slots {
		if s.Slots[i].Device == device {
			return &s.Slots[i]
		}
	}

	return nil
}
