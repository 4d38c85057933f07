package flags

import (
	"vllmd/internal/config"
	"vllmd/pkg/defaults"
	"vllmd/pkg/probe"
	"vllmd/pkg/runtime/exec"

	"github.com/spf13/cobra"
)

const (
	fleetFileFlag       = "fleet-file"
	modelFlag           = "model"
	servedModelNameFlag = "served-model-name"
	hostFlag            = "host"
	basePortFlag        = "base-port"
	maxModelLenFlag     = "max-model-len"
	maxNumSeqsFlag      = "max-num-seqs"
	gpuMemoryUtilFlag   = "gpu-memory-utilization"
	swapSpaceFlag       = "swap-space"
	logDirFlag          = "log-dir"
	devicesFlag         = "devices"
	extraArgFlag        = "extra-arg"
	extraEnvFlag        = "extra-env"

	defaultProviderFlag = "default-provider"
	vllmBinFlag         = "vllm-bin"
	dockerImageFlag     = "docker-image"
	modelCacheDirFlag   = "model-cache-dir"
	detachFlag          = "detach"
	graceTimeoutFlag    = "grace-timeout"
	stateDirFlag        = "state-dir"

	maximumRetryFlag      = "maximum-retry"
	restartBackoffFlag    = "restart-backoff"
	restartBackoffMaxFlag = "restart-backoff-max"

	probeFlag         = "probe"
	probeIntervalFlag = "probe-interval"
	probeTimeoutFlag  = "probe-timeout"

	httpEndpointFlag = "http-endpoint"
	disableAPIFlag   = "disable-api"
)

// AddFleetFlagsToCommand will add the fleet definition flags to the supplied command.
func AddFleetFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.FleetFile,
		fleetFileFlag,
		"",
		"Path to a vllmd.toml fleet manifest. Fields set in the manifest override the matching flags.")

	cmd.Flags().StringVar(&cfg.Model,
		modelFlag,
		defaults.Model,
		"The model identifier to serve, a HuggingFace repo id or a local path.")

	cmd.Flags().StringVar(&cfg.ServedModelName,
		servedModelNameFlag,
		"",
		"The name the servers advertise on their OpenAI surface. Defaults to the model identifier.")

	cmd.Flags().StringVar(&cfg.Host,
		hostFlag,
		defaults.Host,
		"The address every server binds to.")

	cmd.Flags().IntVar(&cfg.BasePort,
		basePortFlag,
		defaults.BasePort,
		"The port for device 0. Device n serves on this port plus n.")

	cmd.Flags().IntVar(&cfg.MaxModelLen,
		maxModelLenFlag,
		defaults.MaxModelLen,
		"The model context length in tokens.")

	cmd.Flags().IntVar(&cfg.MaxNumSeqs,
		maxNumSeqsFlag,
		0,
		"The maximum number of concurrent sequences per server. 0 leaves it to the server.")

	cmd.Flags().Float64Var(&cfg.GPUMemoryUtilization,
		gpuMemoryUtilFlag,
		defaults.GPUMemoryUtilization,
		"The fraction of GPU memory each server claims.")

	cmd.Flags().StringVar(&cfg.SwapSpace,
		swapSpaceFlag,
		"",
		"The CPU swap space per server as a size, e.g. '4GiB'. Empty leaves it to the server.")

	cmd.Flags().StringVar(&cfg.LogDir,
		logDirFlag,
		defaults.LogDir,
		"The directory holding the per-device server logs.")

	cmd.Flags().StringVar(&cfg.DeviceList,
		devicesFlag,
		"",
		"Comma-separated GPU indexes to serve on, e.g. '0,1,2'. Empty discovers the GPUs on this host.")

	cmd.Flags().StringArrayVar(&cfg.ExtraArgs,
		extraArgFlag,
		nil,
		"An extra argument appended to every server command line. May be repeated.")

	cmd.Flags().StringArrayVar(&cfg.ExtraEnv,
		extraEnvFlag,
		nil,
		"An extra KEY=VALUE added to every server environment. May be repeated.")
}

// AddServerRuntimeFlagsToCommand will add the server runtime flags to the supplied command.
func AddServerRuntimeFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.DefaultProvider,
		defaultProviderFlag,
		exec.RuntimeName,
		"The name of the server runtime to use, 'exec' or 'docker'.")

	cmd.Flags().StringVar(&cfg.ServeBin,
		vllmBinFlag,
		defaults.ServeBin,
		"The vLLM launcher binary used by the exec runtime, resolved from PATH when not absolute.")

	cmd.Flags().StringVar(&cfg.DockerImage,
		dockerImageFlag,
		defaults.DockerImage,
		"The server image used by the docker runtime.")

	cmd.Flags().StringVar(&cfg.ModelCacheDir,
		modelCacheDirFlag,
		"",
		"A host directory bind-mounted as the model cache by the docker runtime.")

	cmd.Flags().BoolVar(&cfg.Detach,
		detachFlag,
		false,
		"If true the server processes are left running when the supervisor exits.")

	cmd.Flags().DurationVar(&cfg.GraceTimeout,
		graceTimeoutFlag,
		defaults.GraceTimeout,
		"How long shutdown waits for a server to exit after SIGTERM before it is killed.")

	cmd.Flags().StringVar(&cfg.StateRootDir,
		stateDirFlag,
		defaults.StateRootDir,
		"The directory to use as the root for runtime state.")
}

// AddRestartPolicyFlagsToCommand will add the restart policy flags to the supplied command.
func AddRestartPolicyFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().IntVar(&cfg.MaximumRetry,
		maximumRetryFlag,
		defaults.MaximumRetry,
		"Number of times to restart a crashed server before its slot is marked failed.")

	cmd.Flags().DurationVar(&cfg.RestartBackoff,
		restartBackoffFlag,
		defaults.RestartBackoff,
		"The delay before the first restart of a slot. Doubles with every restart.")

	cmd.Flags().DurationVar(&cfg.RestartBackoffMax,
		restartBackoffMaxFlag,
		defaults.RestartBackoffMax,
		"The cap on the delay between restarts of the same slot.")
}

// AddProbeFlagsToCommand will add the readiness probe flags to the supplied command.
func AddProbeFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.Prober,
		probeFlag,
		probe.ProberHTTP,
		"The readiness probe to use. 'tcp' waits for the port, 'http' waits for the model list.")

	cmd.Flags().DurationVar(&cfg.ProbeInterval,
		probeIntervalFlag,
		defaults.ProbeInterval,
		"How often the readiness probe attempts a connection.")

	cmd.Flags().DurationVar(&cfg.ProbeTimeout,
		probeTimeoutFlag,
		defaults.ProbeTimeout,
		"How long a slot may take to become ready before the probe gives up.")
}

// AddStatusFlagsToCommand will add the flags the status query needs to reach
// a running supervisor or its state snapshot.
func AddStatusFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.HTTPAPIEndpoint,
		httpEndpointFlag,
		defaults.HTTPAPIEndpoint,
		"The endpoint of the running supervisor's admin HTTP API.")

	cmd.Flags().StringVar(&cfg.StateRootDir,
		stateDirFlag,
		defaults.StateRootDir,
		"The runtime state directory to fall back to when the admin API is unreachable.")
}

// AddHTTPAPIFlagsToCommand will add the admin API flags to the supplied command.
func AddHTTPAPIFlagsToCommand(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVar(&cfg.HTTPAPIEndpoint,
		httpEndpointFlag,
		defaults.HTTPAPIEndpoint,
		"The endpoint for the admin HTTP API to listen on.")

	cmd.Flags().BoolVar(&cfg.DisableAPI,
		disableAPIFlag,
		false,
		"Set to true to stop the admin HTTP API running.")
}
