package docker

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"vllmd/pkg/defaults"
)

// State provides access to the on-disk state of one slot's server container,
// so a later supervisor run can find and stop containers it did not start.
type State struct {
	stateRoot string
	fs        afero.Fs
}

func NewState(device int, stateDir string, fs afero.Fs) *State {
	return &State{
		stateRoot: fmt.Sprintf("%s/slots/gpu%d", stateDir, device),
		fs:        fs,
	}
}

func (s *State) Delete() error {
	return s.fs.RemoveAll(s.stateRoot)
}

func (s *State) Root() string {
	return s.stateRoot
}

func (s *State) ContainerIDPath() string {
	return fmt.Sprintf("%s/container.id", s.stateRoot)
}

func (s *State) ContainerID() (string, error) {
	buf, err := afero.ReadFile(s.fs, s.ContainerIDPath())
	if err != nil {
		return "", fmt.Errorf("reading container id file %s: %w", s.ContainerIDPath(), err)
	}

	containerID := strings.TrimSpace(string(buf))
	if containerID == "" {
		return "", fmt.Errorf("container id file %s is empty", s.ContainerIDPath())
	}

	return containerID, nil
}

func (s *State) SetContainerID(containerID string) error {
	if err := s.fs.MkdirAll(s.stateRoot, defaults.DataDirPerm); err != nil {
		return fmt.Errorf("creating state directory %s: %w", s.stateRoot, err)
	}

	if err := afero.WriteFile(s.fs, s.ContainerIDPath(), []byte(containerID), defaults.DataFilePerm); err != nil {
		return fmt.Errorf("writing container id to file %s: %w", s.ContainerIDPath(), err)
	}

	return nil
}
