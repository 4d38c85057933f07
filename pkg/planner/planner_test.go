package planner_test

import (
	"testing"

	g "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"vllmd/pkg/errors"
	"vllmd/pkg/models"
	"vllmd/pkg/planner"
)

func testLaunchConfig() *models.LaunchConfig {
	return &models.LaunchConfig{
		Model:                "Qwen/Qwen2.5-32B-Instruct",
		Host:                 "0.0.0.0",
		BasePort:             8000,
		MaxModelLen:          16384,
		GPUMemoryUtilization: 0.9,
		LogDir:               "/var/log/vllmd",
	}
}

func TestPlan_portsFollowDeviceIds(t *testing.T) {
	g.RegisterTestingT(t)

	slots, err := planner.Plan(testLaunchConfig(), []int{0, 1, 2}, afero.NewMemMapFs())

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(slots).To(g.HaveLen(3))

	ports := []int{}
	for _, slot := range slots {
		ports = append(ports, slot.Port)
		g.Expect(slot.Status.State).To(g.Equal(models.StatePending))
	}
	g.Expect(ports).To(g.Equal([]int{8000, 8001, 8002}))
}

func TestPlan_portsAreUnique(t *testing.T) {
	g.RegisterTestingT(t)

	slots, err := planner.Plan(testLaunchConfig(), []int{3, 0, 7, 1}, afero.NewMemMapFs())

	g.Expect(err).NotTo(g.HaveOccurred())

	seen := map[int]bool{}
	for _, slot := range slots {
		g.Expect(seen[slot.Port]).To(g.BeFalse(), "port %d assigned twice", slot.Port)
		seen[slot.Port] = true
		g.Expect(slot.Port).To(g.Equal(8000 + slot.Device))
	}
}

func TestPlan_keepsDeviceOrder(t *testing.T) {
	g.RegisterTestingT(t)

	slots, err := planner.Plan(testLaunchConfig(), []int{2, 0, 1}, afero.NewMemMapFs())

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(slots[0].Device).To(g.Equal(2))
	g.Expect(slots[1].Device).To(g.Equal(0))
	g.Expect(slots[2].Device).To(g.Equal(1))
}

func TestPlan_logPathsPerDevice(t *testing.T) {
	g.RegisterTestingT(t)

	slots, err := planner.Plan(testLaunchConfig(), []int{0, 3}, afero.NewMemMapFs())

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(slots[0].LogPath).To(g.Equal("/var/log/vllmd/vllm_gpu0.log"))
	g.Expect(slots[1].LogPath).To(g.Equal("/var/log/vllmd/vllm_gpu3.log"))
}

func TestPlan_createsLogDir(t *testing.T) {
	g.RegisterTestingT(t)

	fs := afero.NewMemMapFs()

	_, err := planner.Plan(testLaunchConfig(), []int{0}, fs)
	g.Expect(err).NotTo(g.HaveOccurred())

	exists, err := afero.DirExists(fs, "/var/log/vllmd")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(exists).To(g.BeTrue())

	// Planning again against the existing directory must not fail.
	_, err = planner.Plan(testLaunchConfig(), []int{0}, fs)
	g.Expect(err).NotTo(g.HaveOccurred())
}

func TestPlan_unwritableLogDir(t *testing.T) {
	g.RegisterTestingT(t)

	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())

	_, err := planner.Plan(testLaunchConfig(), []int{0}, fs)

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.IsConfigError(err)).To(g.BeTrue())
}

func TestPlan_duplicateDevice(t *testing.T) {
	g.RegisterTestingT(t)

	_, err := planner.Plan(testLaunchConfig(), []int{0, 1, 0}, afero.NewMemMapFs())

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.IsConfigError(err)).To(g.BeTrue())
}

func TestPlan_negativeDevice(t *testing.T) {
	g.RegisterTestingT(t)

	_, err := planner.Plan(testLaunchConfig(), []int{-1}, afero.NewMemMapFs())

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.IsConfigError(err)).To(g.BeTrue())
}

func TestPlan_portOutOfRange(t *testing.T) {
	g.RegisterTestingT(t)

	launch := testLaunchConfig()
	launch.BasePort = 65500

	_, err := planner.Plan(launch, []int{0, 40}, afero.NewMemMapFs())

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.IsConfigError(err)).To(g.BeTrue())
}

func TestPlan_emptyDevices(t *testing.T) {
	g.RegisterTestingT(t)

	_, err := planner.Plan(testLaunchConfig(), []int{}, afero.NewMemMapFs())

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(errors.IsConfigError(err)).To(g.BeTrue())
}

func TestParseDeviceList(t *testing.T) {
	g.RegisterTestingT(t)

	testCases := []struct {
		list      string
		expected  []int
		expectErr bool
	}{
		{list: "0,1,2", expected: []int{0, 1, 2}},
		{list: "0", expected: []int{0}},
		{list: " 0, 3 ,5", expected: []int{0, 3, 5}},
		{list: "0,,1", expected: []int{0, 1}},
		{list: "", expected: []int{}},
		{list: "0,x", expectErr: true},
	}

	for _, testCase := range testCases {
		devices, err := planner.ParseDeviceList(testCase.list)

		if testCase.expectErr {
			g.Expect(err).To(g.HaveOccurred(), "list %q", testCase.list)

			continue
		}

		g.Expect(err).NotTo(g.HaveOccurred(), "list %q", testCase.list)
		g.Expect(devices).To(g.Equal(testCase.expected), "list %q", testCase.list)
	}
}

func TestSequential(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(planner.Sequential(3)).To(g.Equal([]int{0, 1, 2}))
	g.Expect(planner.Sequential(0)).To(g.BeEmpty())
}
