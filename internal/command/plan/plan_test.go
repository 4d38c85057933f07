package plan_test

import (
	"bytes"
	"encoding/json"
	"testing"

	g "github.com/onsi/gomega"

	"vllmd/internal/command/plan"
	"vllmd/pkg/models"
)

func testSlots() []*models.DeviceSlot {
	return []*models.DeviceSlot{
		{Device: 0, Port: 8000, LogPath: "/var/log/vllmd/vllm_gpu0.log"},
		{Device: 1, Port: 8001, LogPath: "/var/log/vllmd/vllm_gpu1.log"},
	}
}

func TestWrite_table(t *testing.T) {
	g.RegisterTestingT(t)

	out := &bytes.Buffer{}

	g.Expect(plan.Write(out, testSlots(), "table")).To(g.Succeed())

	g.Expect(out.String()).To(g.ContainSubstring("DEVICE"))
	g.Expect(out.String()).To(g.ContainSubstring("gpu0"))
	g.Expect(out.String()).To(g.ContainSubstring("8001"))
	g.Expect(out.String()).To(g.ContainSubstring("/var/log/vllmd/vllm_gpu1.log"))
}

func TestWrite_json(t *testing.T) {
	g.RegisterTestingT(t)

	out := &bytes.Buffer{}

	g.Expect(plan.Write(out, testSlots(), "json")).To(g.Succeed())

	decoded := []*models.DeviceSlot{}
	g.Expect(json.Unmarshal(out.Bytes(), &decoded)).To(g.Succeed())
	g.Expect(decoded).To(g.Equal(testSlots()))
}

func TestWrite_yaml(t *testing.T) {
	g.RegisterTestingT(t)

	out := &bytes.Buffer{}

	g.Expect(plan.Write(out, testSlots(), "yaml")).To(g.Succeed())
	g.Expect(out.String()).To(g.ContainSubstring("port: 8000"))
}

func TestWrite_unknownFormat(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(plan.Write(&bytes.Buffer{}, testSlots(), "xml")).NotTo(g.Succeed())
}
