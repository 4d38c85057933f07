package models

// SlotState is the lifecycle state of a device slot.
type SlotState string

const (
	// StatePending indicates the slot is planned but its server has not started.
	StatePending SlotState = "pending"
	// StateStarting indicates the server process is running but not yet serving.
	StateStarting SlotState = "starting"
	// StateReady indicates the server process accepted a readiness probe.
	StateReady SlotState = "ready"
	// StateFailed indicates the server process exited and is waiting for a
	// restart, or exhausted its restarts.
	StateFailed SlotState = "failed"
	// StateStopped indicates the server process exited cleanly or was stopped
	// during shutdown.
	StateStopped SlotState = "stopped"
)

// AllSlotStates lists every slot state, in lifecycle order.
var AllSlotStates = []SlotState{
	StatePending,
	StateStarting,
	StateReady,
	StateFailed,
	StateStopped,
}

// DeviceSlot binds one GPU to the port and log file of the server process
// that owns it. Device, Port and LogPath are fixed by the launch plan; Status
// is mutated by the supervisor as the server runs.
type DeviceSlot struct {
	// Device is the GPU index the server is pinned to.
	Device int `json:"device"`
	// Port is the host port the server listens on.
	Port int `json:"port"`
	// LogPath is the append-only log file receiving the server's output.
	LogPath string `json:"log_path"`
	// Status is the runtime status of the slot.
	Status SlotStatus `json:"status"`
}

// SlotStatus contains the runtime status of a slot's server process.
type SlotStatus struct {
	// State is the current lifecycle state.
	State SlotState `json:"state"`
	// Pid is the process id of the running server, 0 when not running.
	Pid int `json:"pid,omitempty"`
	// Restarts is how many times the server has been restarted after a crash.
	Restarts int `json:"restarts"`
	// LastExitCode is the exit code of the most recent server exit.
	LastExitCode int `json:"last_exit_code,omitempty"`
	// LastError describes the most recent failure, empty when healthy.
	LastError string `json:"last_error,omitempty"`
	// StartedAt is when the current server process was started, as a unix timestamp.
	StartedAt int64 `json:"started_at,omitempty"`
	// ReadyAt is when the readiness probe first succeeded for the current
	// process, as a unix timestamp.
	ReadyAt int64 `json:"ready_at,omitempty"`
}
