package state_test

import (
	"context"
	"testing"

	g "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"vllmd/pkg/models"
	"vllmd/pkg/state"
)

func testStatus() *models.FleetStatus {
	return &models.FleetStatus{
		RunID:     "test-run",
		Provider:  "exec",
		Model:     "Qwen/Qwen2.5-32B-Instruct",
		StartedAt: 1700000000,
		Slots: []models.DeviceSlot{
			{
				Device:  0,
				Port:    8000,
				LogPath: "/var/log/vllmd/vllm_gpu0.log",
				Status:  models.SlotStatus{State: models.StateReady, Pid: 4242},
			},
		},
	}
}

func TestSaveAndGet(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	repo := state.New("/run/vllmd", afero.NewMemMapFs())

	g.Expect(repo.Save(ctx, testStatus())).To(g.Succeed())

	loaded, err := repo.Get(ctx)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(loaded).To(g.Equal(testStatus()))
}

func TestSave_overwritesPreviousSnapshot(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	repo := state.New("/run/vllmd", afero.NewMemMapFs())

	g.Expect(repo.Save(ctx, testStatus())).To(g.Succeed())

	updated := testStatus()
	updated.Slots[0].Status.State = models.StateFailed
	g.Expect(repo.Save(ctx, updated)).To(g.Succeed())

	loaded, err := repo.Get(ctx)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(loaded.Slots[0].Status.State).To(g.Equal(models.StateFailed))
}

func TestExistsAndDelete(t *testing.T) {
	g.RegisterTestingT(t)

	ctx := context.Background()
	repo := state.New("/run/vllmd", afero.NewMemMapFs())

	exists, err := repo.Exists(ctx)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(exists).To(g.BeFalse())

	g.Expect(repo.Save(ctx, testStatus())).To(g.Succeed())

	exists, err = repo.Exists(ctx)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(exists).To(g.BeTrue())

	g.Expect(repo.Delete(ctx)).To(g.Succeed())

	exists, err = repo.Exists(ctx)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(exists).To(g.BeFalse())
}

func TestGet_missingSnapshot(t *testing.T) {
	g.RegisterTestingT(t)

	repo := state.New("/run/vllmd", afero.NewMemMapFs())

	_, err := repo.Get(context.Background())

	g.Expect(err).To(g.HaveOccurred())
}
