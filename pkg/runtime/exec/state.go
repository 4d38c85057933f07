package exec

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"vllmd/pkg/defaults"
	"vllmd/pkg/runtime/shared"
)

// RuntimeState is the part of a slot's runtime that has to survive the
// supervisor process, so a later run can find and stop leftover servers.
type RuntimeState struct {
	Port      int    `json:"port"`
	LogPath   string `json:"logPath"`
	StartedAt int64  `json:"startedAt"`
}

// State provides access to the on-disk state of one slot's server process.
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

func (s *State) PIDPath() string {
	return fmt.Sprintf("%s/vllm.pid", s.stateRoot)
}

func (s *State) PID() (int, error) {
	return shared.PIDReadFromFile(s.PIDPath(), s.fs)
}

func (s *State) SetPid(pid int) error {
	return shared.PIDWriteToFile(pid, s.PIDPath(), s.fs)
}

func (s *State) runtimeStatePath() string {
	return fmt.Sprintf("%s/runtime-state.json", s.stateRoot)
}

func (s *State) RuntimeState() (RuntimeState, error) {
	runtimeState := RuntimeState{}

	file, err := s.fs.OpenFile(s.runtimeStatePath(), os.O_RDONLY, defaults.DataFilePerm)
	if err != nil {
		return runtimeState, fmt.Errorf("failed to open state file: %w", err)
	}

	defer file.Close()

	buf, err := io.ReadAll(file)
	if err != nil {
		return runtimeState, fmt.Errorf("failed to read state file: %w", err)
	}

	if err = json.Unmarshal(buf, &runtimeState); err != nil {
		return runtimeState, fmt.Errorf("failed to unmarshal state json: %w", err)
	}

	return runtimeState, nil
}

func (s *State) SetRuntimeState(runtimeState RuntimeState) error {
	stateBytes, err := json.Marshal(&runtimeState)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	file, err := s.fs.OpenFile(s.runtimeStatePath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, defaults.DataFilePerm)
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}

	defer file.Close()

	if _, err = file.Write(stateBytes); err != nil {
		return fmt.Errorf("failed to write to state file: %w", err)
	}

	return nil
}
