package models

// LaunchConfig is the fleet-wide launch record. It is supplied once at
// startup and never mutated afterwards; every slot derives its command line
// from the same config.
type LaunchConfig struct {
	// Model is the model identifier passed to the server, usually a
	// HuggingFace repo id or a local path.
	Model string `json:"model"`
	// ServedModelName is the name the server advertises on its OpenAI
	// surface. Defaults to Model when empty.
	ServedModelName string `json:"served_model_name,omitempty"`
	// Host is the address every server binds to.
	Host string `json:"host"`
	// BasePort is the port for device 0. Device n serves on BasePort+n.
	BasePort int `json:"base_port"`
	// MaxModelLen is the model context length in tokens.
	MaxModelLen int `json:"max_model_len"`
	// MaxNumSeqs caps concurrent sequences per server, omitted when 0.
	MaxNumSeqs int `json:"max_num_seqs,omitempty"`
	// GPUMemoryUtilization is the fraction of GPU memory each server claims.
	GPUMemoryUtilization float64 `json:"gpu_memory_utilization"`
	// SwapSpaceBytes is CPU swap space per server in bytes, omitted when 0.
	SwapSpaceBytes int64 `json:"swap_space_bytes,omitempty"`
	// LogDir is the directory holding the per-device server logs.
	LogDir string `json:"log_dir"`
	// ExtraArgs are appended verbatim to every server command line.
	ExtraArgs []string `json:"extra_args,omitempty"`
	// ExtraEnv are KEY=VALUE pairs added to every server environment.
	ExtraEnv []string `json:"extra_env,omitempty"`
}

// ServedName returns the advertised model name, falling back to the model
// identifier when none is configured.
func (c *LaunchConfig) ServedName() string {
	if c.ServedModelName != "" {
		return c.ServedModelName
	}

	return c.Model
}
