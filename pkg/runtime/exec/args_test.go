package exec

import (
	"testing"

	g "github.com/onsi/gomega"

	"vllmd/pkg/models"
)

func testLaunch() *models.LaunchConfig {
	return &models.LaunchConfig{
		Model:                "Qwen/Qwen2.5-32B-Instruct",
		Host:                 "0.0.0.0",
		BasePort:             8000,
		MaxModelLen:          16384,
		GPUMemoryUtilization: 0.9,
		LogDir:               "/var/log/vllmd",
	}
}

func TestServeArgs(t *testing.T) {
	g.RegisterTestingT(t)

	slot := &models.DeviceSlot{Device: 2, Port: 8002}

	args := serveArgs(testLaunch(), slot)

	g.Expect(args).To(g.Equal([]string{
		"serve", "Qwen/Qwen2.5-32B-Instruct",
		"--host", "0.0.0.0",
		"--port", "8002",
		"--tensor-parallel-size", "1",
		"--pipeline-parallel-size", "1",
		"--gpu-memory-utilization", "0.9",
		"--max-model-len", "16384",
		"--served-model-name", "Qwen/Qwen2.5-32B-Instruct",
	}))
}

func TestServeArgs_optionalFlags(t *testing.T) {
	g.RegisterTestingT(t)

	launch := testLaunch()
	launch.ServedModelName = "qwen-32b"
	launch.MaxNumSeqs = 64
	launch.SwapSpaceBytes = 4 * (1 << 30)
	launch.ExtraArgs = []string{"--enable-prefix-caching"}

	args := serveArgs(launch, &models.DeviceSlot{Device: 0, Port: 8000})

	g.Expect(args).To(g.ContainElements("--max-num-seqs", "64"))
	g.Expect(args).To(g.ContainElements("--swap-space", "4"))
	g.Expect(args).To(g.ContainElements("--served-model-name", "qwen-32b"))
	g.Expect(args[len(args)-1]).To(g.Equal("--enable-prefix-caching"))
}

func TestServeArgs_noMaxNumSeqsWhenUnset(t *testing.T) {
	g.RegisterTestingT(t)

	args := serveArgs(testLaunch(), &models.DeviceSlot{Device: 0, Port: 8000})

	g.Expect(args).NotTo(g.ContainElement("--max-num-seqs"))
	g.Expect(args).NotTo(g.ContainElement("--swap-space"))
}

func TestServeEnv_pinsDeviceVisibility(t *testing.T) {
	g.RegisterTestingT(t)

	env := serveEnv(testLaunch(), &models.DeviceSlot{Device: 3, Port: 8003})

	g.Expect(env).To(g.ContainElement("CUDA_VISIBLE_DEVICES=3"))
	g.Expect(env[len(env)-1]).To(g.Equal("CUDA_VISIBLE_DEVICES=3"))
}

func TestServeEnv_visibilityCannotBeOverridden(t *testing.T) {
	g.RegisterTestingT(t)

	launch := testLaunch()
	launch.ExtraEnv = []string{"CUDA_VISIBLE_DEVICES=0,1,2,3", "VLLM_USE_V1=1"}

	env := serveEnv(launch, &models.DeviceSlot{Device: 1, Port: 8001})

	count := 0
	for _, entry := range env {
		if entry == "CUDA_VISIBLE_DEVICES=1" {
			count++
		}
		g.Expect(entry).NotTo(g.Equal("CUDA_VISIBLE_DEVICES=0,1,2,3"))
	}
	g.Expect(count).To(g.Equal(1))
	g.Expect(env).To(g.ContainElement("VLLM_USE_V1=1"))
}

func TestServeEnv_forwardsFromParent(t *testing.T) {
	g.RegisterTestingT(t)

	t.Setenv("HF_TOKEN", "hf_testtoken")
	t.Setenv("TOKENIZERS_PARALLELISM", "true")

	env := serveEnv(testLaunch(), &models.DeviceSlot{Device: 0, Port: 8000})

	g.Expect(env).To(g.ContainElement("HF_TOKEN=hf_testtoken"))
	g.Expect(env).To(g.ContainElement("TOKENIZERS_PARALLELISM=true"))
	g.Expect(env).NotTo(g.ContainElement("TOKENIZERS_PARALLELISM=false"))
}

func TestServeEnv_defaults(t *testing.T) {
	g.RegisterTestingT(t)

	env := serveEnv(testLaunch(), &models.DeviceSlot{Device: 0, Port: 8000})

	g.Expect(env).To(g.ContainElement("PYTHONUNBUFFERED=1"))
}
