package exec_test

import (
	"testing"

	g "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"vllmd/pkg/runtime/exec"
)

func TestState_paths(t *testing.T) {
	g.RegisterTestingT(t)

	state := exec.NewState(1, "/run/vllmd", afero.NewMemMapFs())

	g.Expect(state.Root()).To(g.Equal("/run/vllmd/slots/gpu1"))
	g.Expect(state.PIDPath()).To(g.Equal("/run/vllmd/slots/gpu1/vllm.pid"))
}

func TestState_pidRoundTrip(t *testing.T) {
	g.RegisterTestingT(t)

	fs := afero.NewMemMapFs()
	state := exec.NewState(0, "/run/vllmd", fs)

	g.Expect(fs.MkdirAll(state.Root(), 0o755)).To(g.Succeed())
	g.Expect(state.SetPid(4242)).To(g.Succeed())

	pid, err := state.PID()
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(pid).To(g.Equal(4242))
}

func TestState_pidMissing(t *testing.T) {
	g.RegisterTestingT(t)

	state := exec.NewState(0, "/run/vllmd", afero.NewMemMapFs())

	_, err := state.PID()
	g.Expect(err).To(g.HaveOccurred())
}

func TestState_runtimeStateRoundTrip(t *testing.T) {
	g.RegisterTestingT(t)

	fs := afero.NewMemMapFs()
	state := exec.NewState(2, "/run/vllmd", fs)

	g.Expect(fs.MkdirAll(state.Root(), 0o755)).To(g.Succeed())
	g.Expect(state.SetRuntimeState(exec.RuntimeState{
		Port:      8002,
		LogPath:   "/var/log/vllmd/vllm_gpu2.log",
		StartedAt: 1700000000,
	})).To(g.Succeed())

	runtimeState, err := state.RuntimeState()
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(runtimeState.Port).To(g.Equal(8002))
	g.Expect(runtimeState.LogPath).To(g.Equal("/var/log/vllmd/vllm_gpu2.log"))
	g.Expect(runtimeState.StartedAt).To(g.Equal(int64(1700000000)))
}
