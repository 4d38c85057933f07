package defaults

import "time"

const (
	// ServeBin is the name of the vLLM launcher binary, resolved from PATH.
	ServeBin = "vllm"

	// Model is the model identifier served when none is configured.
	Model = "Qwen/Qwen2.5-32B-Instruct"

	// Host is the address the server processes bind to.
	Host = "0.0.0.0"

	// BasePort is the port assigned to device 0. Device n serves on BasePort+n.
	BasePort = 8000

	// GPUMemoryUtilization is the fraction of GPU memory handed to each server.
	GPUMemoryUtilization = 0.90

	// MaxModelLen is the default model context length in tokens.
	MaxModelLen = 16384

	// StateRootDir is the default directory to use for state information.
	StateRootDir = "/run/vllmd"

	// LogDir is the default directory for per-device server logs.
	LogDir = "/var/log/vllmd"

	// HTTPAPIEndpoint is the endpoint for the admin HTTP API.
	HTTPAPIEndpoint = "localhost:8090"

	// DockerImage is the image used by the docker runtime provider.
	DockerImage = "vllm/vllm-openai:v0.10.1"

	// ContainerPort is the port a containerised server listens on inside
	// its container before it is mapped to the slot port.
	ContainerPort = 8000

	// MaximumRetry is how many times a crashed server is restarted before
	// its slot is marked failed.
	MaximumRetry = 3

	// RestartBackoff is the delay before the first restart of a slot.
	RestartBackoff = 2 * time.Second

	// RestartBackoffMax caps the delay between restarts of the same slot.
	RestartBackoffMax = 1 * time.Minute

	// GraceTimeout is how long shutdown waits for a server to exit after
	// SIGTERM before it is killed.
	GraceTimeout = 30 * time.Second

	// ProbeInterval is how often the readiness prober attempts a connection.
	ProbeInterval = 2 * time.Second

	// ProbeTimeout bounds how long a slot may take to become ready. Large
	// models spend minutes loading weights before they bind their port.
	ProbeTimeout = 10 * time.Minute

	// DataDirPerm is the permissions to use for data folders.
	DataDirPerm = 0o755

	// DataFilePerm is the permissions to use for data files.
	DataFilePerm = 0o644
)
