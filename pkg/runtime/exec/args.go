package exec

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"vllmd/pkg/models"
)

const deviceVisibilityEnv = "CUDA_VISIBLE_DEVICES"

// forwardedEnv lists the variables a server inherits from the supervisor's
// environment when they are set. Cache and token variables let the server
// reach model weights, the rest tune the runtime.
var forwardedEnv = []string{
	"HOME",
	"PATH",
	"HF_HOME",
	"HF_TOKEN",
	"HUGGING_FACE_HUB_TOKEN",
	"HF_HUB_OFFLINE",
	"OMP_NUM_THREADS",
	"TOKENIZERS_PARALLELISM",
	"CUDA_DEVICE_ORDER",
	"VLLM_LOGGING_LEVEL",
	"HTTP_PROXY",
	"HTTPS_PROXY",
	"NO_PROXY",
}

// serveArgs builds the serve argument vector for one slot. Every server is a
// single-GPU instance, parallelism sizes are always 1.
func serveArgs(launch *models.LaunchConfig, slot *models.DeviceSlot) []string {
	args := []string{
		"serve", launch.Model,
		"--host", launch.Host,
		"--port", strconv.Itoa(slot.Port),
		"--tensor-parallel-size", "1",
		"--pipeline-parallel-size", "1",
		"--gpu-memory-utilization", strconv.FormatFloat(launch.GPUMemoryUtilization, 'f', -1, 64),
		"--max-model-len", strconv.Itoa(launch.MaxModelLen),
	}

	if launch.MaxNumSeqs > 0 {
		args = append(args, "--max-num-seqs", strconv.Itoa(launch.MaxNumSeqs))
	}

	if launch.SwapSpaceBytes > 0 {
		args = append(args, "--swap-space", strconv.FormatInt(launch.SwapSpaceBytes/(1<<30), 10))
	}

	args = append(args, "--served-model-name", launch.ServedName())
	args = append(args, launch.ExtraArgs...)

	return args
}

// serveEnv builds the environment for one slot. The device visibility
// variable is always pinned to the slot's device and cannot be overridden,
// so a server only ever sees its own GPU.
func serveEnv(launch *models.LaunchConfig, slot *models.DeviceSlot) []string {
	env := make([]string, 0, len(forwardedEnv)+len(launch.ExtraEnv)+3)

	for _, key := range forwardedEnv {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}

	for _, entry := range launch.ExtraEnv {
		if strings.HasPrefix(entry, deviceVisibilityEnv+"=") {
			continue
		}

		env = append(env, entry)
	}

	if !envContains(env, "TOKENIZERS_PARALLELISM") {
		env = append(env, "TOKENIZERS_PARALLELISM=false")
	}

	// Unbuffered output keeps the log file current while the server loads.
	if !envContains(env, "PYTHONUNBUFFERED") {
		env = append(env, "PYTHONUNBUFFERED=1")
	}

	env = append(env, fmt.Sprintf("%s=%d", deviceVisibilityEnv, slot.Device))

	return env
}

func envContains(env []string, key string) bool {
	for _, entry := range env {
		if strings.HasPrefix(entry, key+"=") {
			return true
		}
	}

	return false
}
