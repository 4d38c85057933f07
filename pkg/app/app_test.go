package app_test

import (
	"context"
	"testing"
	"time"

	g "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"vllmd/pkg/app"
	"vllmd/pkg/errors"
	"vllmd/pkg/models"
	"vllmd/pkg/ports"
	"vllmd/pkg/state"
	"vllmd/pkg/supervisor"
)

// cleanExitRuntime starts instantly and exits cleanly as soon as it is
// waited on.
type cleanExitRuntime struct{}

func (r *cleanExitRuntime) Start(_ context.Context, slot *models.DeviceSlot) error {
	slot.Status.Pid = 4000 + slot.Device

	return nil
}

func (r *cleanExitRuntime) WaitExit(_ context.Context, _ *models.DeviceSlot) (int, error) {
	return 0, nil
}

func (r *cleanExitRuntime) Stop(_ context.Context, _ *models.DeviceSlot) error {
	return nil
}

func (r *cleanExitRuntime) Pid(_ context.Context, slot *models.DeviceSlot) (int, error) {
	return slot.Status.Pid, nil
}

func testApp(t *testing.T, provider string) (*app.App, error) {
	t.Helper()

	fs := afero.NewMemMapFs()

	return app.New(&app.Config{
		DefaultProvider: provider,
		Launch: &models.LaunchConfig{
			Model:                "Qwen/Qwen2.5-32B-Instruct",
			Host:                 "0.0.0.0",
			BasePort:             8000,
			MaxModelLen:          16384,
			GPUMemoryUtilization: 0.9,
			LogDir:               "/var/log/vllmd",
		},
		Devices: []int{0, 1},
		Supervisor: supervisor.Config{
			MaximumRetry:   1,
			RestartBackoff: time.Millisecond,
			GraceTimeout:   time.Second,
		},
	}, &ports.Collection{
		RuntimeProviders: map[string]ports.ServerRuntime{
			"fake": &cleanExitRuntime{},
		},
		FleetRepo:  state.New("/run/vllmd", fs),
		FileSystem: fs,
		Clock:      time.Now,
	})
}

func TestNew_unknownProvider(t *testing.T) {
	g.RegisterTestingT(t)

	_, err := testApp(t, "exec")

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.IsConfigError(err)).To(g.BeTrue())
}

func TestPlan(t *testing.T) {
	g.RegisterTestingT(t)

	a, err := testApp(t, "fake")
	g.Expect(err).NotTo(g.HaveOccurred())

	slots, err := a.Plan(context.Background())

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(slots).To(g.HaveLen(2))
	g.Expect(slots[0].Port).To(g.Equal(8000))
	g.Expect(slots[1].Port).To(g.Equal(8001))
}

func TestRun_cleanFleetExit(t *testing.T) {
	g.RegisterTestingT(t)

	a, err := testApp(t, "fake")
	g.Expect(err).NotTo(g.HaveOccurred())

	g.Expect(a.Run(context.Background())).To(g.Succeed())

	status := a.Status()
	g.Expect(status.RunID).NotTo(g.BeEmpty())
	g.Expect(status.Model).To(g.Equal("Qwen/Qwen2.5-32B-Instruct"))
	g.Expect(status.Slots).To(g.HaveLen(2))

	for _, slot := range status.Slots {
		g.Expect(slot.Status.State).To(g.Equal(models.StateStopped))
	}
}
