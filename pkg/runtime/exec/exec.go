package exec

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"vllmd/pkg/defaults"
	"vllmd/pkg/errors"
	"vllmd/pkg/log"
	"vllmd/pkg/models"
	"vllmd/pkg/ports"
)

const (
	RuntimeName = "exec"
)

// Config represents the configuration options for the exec server runtime.
type Config struct {
	// ServeBin is the vLLM launcher binary to use, resolved from PATH when
	// not absolute.
	ServeBin string
	// StateRoot is the folder to store per-slot runtime state (pid files, runtime state).
	StateRoot string
	// RunDetached indicates that server processes should be run detached (a.k.a daemon) from the parent process.
	RunDetached bool
	// GraceTimeout is how long Stop waits after SIGTERM before sending SIGKILL.
	GraceTimeout time.Duration
}

// Service launches one vLLM server process per slot directly on the host.
type Service struct {
	config *Config
	launch *models.LaunchConfig
	fs     afero.Fs

	procsMu sync.Mutex
	procs   map[int]*procHandle
}

// procHandle tracks a running server process. The reaper goroutine records
// the exit code and closes done exactly once.
type procHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	code    int
	waitErr error
}

func New(cfg *Config, launch *models.LaunchConfig, fs afero.Fs) ports.ServerRuntime {
	return &Service{
		config: cfg,
		launch: launch,
		fs:     fs,
		procs:  map[int]*procHandle{},
	}
}

// Start launches the server process for the slot with its output appended to
// the slot's log file.
func (s *Service) Start(ctx context.Context, slot *models.DeviceSlot) error {
	logger := log.GetLogger(ctx).WithFields(logrus.Fields{
		"service": "exec_runtime",
		"device":  slot.Device,
	})
	logger.Debugf("starting server process on port %d", slot.Port)

	binPath, err := exec.LookPath(s.config.ServeBin)
	if err != nil {
		return errors.NewBinaryNotFound(s.config.ServeBin, err)
	}

	slotState := NewState(slot.Device, s.config.StateRoot, s.fs)

	if err := s.ensureState(slotState, slot); err != nil {
		return fmt.Errorf("ensuring state dir: %w", err)
	}

	logFile, err := s.fs.OpenFile(slot.LogPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, defaults.DataFilePerm)
	if err != nil {
		return errors.NewConfigError(fmt.Errorf("opening log file %s: %w", slot.LogPath, err))
	}

	cmd := exec.Command(binPath, serveArgs(s.launch, slot)...)
	cmd.Env = serveEnv(s.launch, slot)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = &bytes.Buffer{}

	// The launcher forks engine workers. Giving it a process group (or a
	// session when detached) lets Stop signal the whole tree.
	sysProcAttr := &syscall.SysProcAttr{}
	if s.config.RunDetached {
		sysProcAttr.Setsid = true
	} else {
		sysProcAttr.Setpgid = true
	}
	cmd.SysProcAttr = sysProcAttr

	if err := cmd.Start(); err != nil {
		logFile.Close()

		return fmt.Errorf("starting server process: %w", err)
	}

	handle := &procHandle{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	s.procsMu.Lock()
	s.procs[slot.Device] = handle
	s.procsMu.Unlock()

	// Reap the process
	go func() {
		waitErr := cmd.Wait()
		logFile.Close()

		handle.code = -1
		if cmd.ProcessState != nil {
			handle.code = cmd.ProcessState.ExitCode()
		}

		exitErr := &exec.ExitError{}
		if waitErr != nil && !stderrors.As(waitErr, &exitErr) {
			handle.waitErr = waitErr
		}

		close(handle.done)
	}()

	if err := slotState.SetPid(cmd.Process.Pid); err != nil {
		s.reapFailedStart(handle)

		return fmt.Errorf("saving pid %d to file: %w", cmd.Process.Pid, err)
	}

	if err := slotState.SetRuntimeState(RuntimeState{
		Port:      slot.Port,
		LogPath:   slot.LogPath,
		StartedAt: time.Now().Unix(),
	}); err != nil {
		s.reapFailedStart(handle)

		return fmt.Errorf("saving runtime state: %w", err)
	}

	slot.Status.Pid = cmd.Process.Pid
	logger.Infof("server process %d started", cmd.Process.Pid)

	return nil
}

// WaitExit blocks until the slot's server process exits and returns its exit
// code. A process killed by a signal reports exit code -1.
func (s *Service) WaitExit(ctx context.Context, slot *models.DeviceSlot) (int, error) {
	handle, ok := s.handle(slot.Device)
	if !ok {
		return -1, errors.ErrNotStarted
	}

	select {
	case <-handle.done:
		return handle.code, handle.waitErr
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Stop terminates the slot's server process group, sending SIGTERM first and
// escalating to SIGKILL once the grace period passes.
func (s *Service) Stop(ctx context.Context, slot *models.DeviceSlot) error {
	logger := log.GetLogger(ctx).WithFields(logrus.Fields{
		"service": "exec_runtime",
		"device":  slot.Device,
	})

	handle, ok := s.handle(slot.Device)
	if !ok {
		// No handle from this run, fall back to the pid file left by an
		// earlier (detached) run.
		return s.stopFromPidFile(slot)
	}

	pid := handle.cmd.Process.Pid

	if err := unix.Kill(-pid, unix.SIGTERM); err != nil {
		if stderrors.Is(err, unix.ESRCH) {
			return nil
		}

		return fmt.Errorf("sending SIGTERM to process group %d: %w", pid, err)
	}

	grace := time.NewTimer(s.config.GraceTimeout)
	defer grace.Stop()

	select {
	case <-handle.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-grace.C:
	}

	logger.Warnf("server process %d still running after %s, sending SIGKILL", pid, s.config.GraceTimeout)

	if err := unix.Kill(-pid, unix.SIGKILL); err != nil && !stderrors.Is(err, unix.ESRCH) {
		return fmt.Errorf("sending SIGKILL to process group %d: %w", pid, err)
	}

	select {
	case <-handle.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pid returns the pid of the slot's server process.
func (s *Service) Pid(_ context.Context, slot *models.DeviceSlot) (int, error) {
	if handle, ok := s.handle(slot.Device); ok {
		return handle.cmd.Process.Pid, nil
	}

	return NewState(slot.Device, s.config.StateRoot, s.fs).PID()
}

// reapFailedStart kills a server whose Start could not complete, so a retry
// never races it for the port and GPU.
func (s *Service) reapFailedStart(handle *procHandle) {
	_ = unix.Kill(-handle.cmd.Process.Pid, unix.SIGKILL)
	<-handle.done
}

func (s *Service) handle(device int) (*procHandle, bool) {
	s.procsMu.Lock()
	defer s.procsMu.Unlock()

	handle, ok := s.procs[device]

	return handle, ok
}

func (s *Service) stopFromPidFile(slot *models.DeviceSlot) error {
	pid, err := NewState(slot.Device, s.config.StateRoot, s.fs).PID()
	if err != nil {
		return errors.ErrNotStarted
	}

	if err := unix.Kill(-pid, unix.SIGTERM); err != nil && !stderrors.Is(err, unix.ESRCH) {
		return fmt.Errorf("sending SIGTERM to process group %d: %w", pid, err)
	}

	return nil
}

func (s *Service) ensureState(slotState *State, slot *models.DeviceSlot) error {
	if err := s.fs.MkdirAll(slotState.Root(), defaults.DataDirPerm); err != nil {
		return fmt.Errorf("creating state directory %s: %w", slotState.Root(), err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(slot.LogPath), defaults.DataDirPerm); err != nil {
		return fmt.Errorf("creating log directory %s: %w", filepath.Dir(slot.LogPath), err)
	}

	return nil
}
