package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"vllmd/pkg/defaults"
	"vllmd/pkg/errors"
	"vllmd/pkg/log"
	"vllmd/pkg/models"
	"vllmd/pkg/ports"
)

const (
	RuntimeName = "docker"

	// cacheMount is where the HuggingFace cache lives inside the container.
	cacheMount = "/root/.cache/huggingface"
)

// containerForwardedEnv lists the variables passed into server containers
// from the supervisor's environment when they are set.
var containerForwardedEnv = []string{
	"HF_TOKEN",
	"HUGGING_FACE_HUB_TOKEN",
	"HF_HUB_OFFLINE",
	"VLLM_LOGGING_LEVEL",
}

// Config represents the configuration options for the docker server runtime.
type Config struct {
	// Image is the server image to run.
	Image string
	// StateRoot is the folder to store per-slot runtime state (container ids).
	StateRoot string
	// ModelCacheDir is a host directory bind-mounted as the model cache.
	ModelCacheDir string
	// GraceTimeout is how long a container gets to stop before it is killed.
	GraceTimeout time.Duration
}

// Service runs one vLLM server container per slot. The slot's host port maps
// to the fixed server port inside the container.
type Service struct {
	config *Config
	launch *models.LaunchConfig
	docker *client.Client
	fs     afero.Fs

	containersMu sync.Mutex
	containers   map[int]string
}

func New(cfg *Config, launch *models.LaunchConfig, fs afero.Fs) (ports.ServerRuntime, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Service{
		config:     cfg,
		launch:     launch,
		docker:     dockerClient,
		fs:         fs,
		containers: map[int]string{},
	}, nil
}

// Start creates and starts the server container for the slot, with the
// container's output following into the slot's log file.
func (s *Service) Start(ctx context.Context, slot *models.DeviceSlot) error {
	logger := log.GetLogger(ctx).WithFields(logrus.Fields{
		"service": "docker_runtime",
		"device":  slot.Device,
	})
	logger.Debugf("starting server container on port %d", slot.Port)

	if err := s.ensureImage(ctx); err != nil {
		return err
	}

	// A container from an earlier attempt may still hold the name.
	if err := s.removeStale(ctx, slot); err != nil {
		return err
	}

	if err := s.fs.MkdirAll(filepath.Dir(slot.LogPath), defaults.DataDirPerm); err != nil {
		return fmt.Errorf("creating log directory %s: %w", filepath.Dir(slot.LogPath), err)
	}

	logFile, err := s.fs.OpenFile(slot.LogPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, defaults.DataFilePerm)
	if err != nil {
		return errors.NewConfigError(fmt.Errorf("opening log file %s: %w", slot.LogPath, err))
	}

	containerPort := nat.Port(fmt.Sprintf("%d/tcp", defaults.ContainerPort))

	containerConfig := &container.Config{
		Image: s.config.Image,
		Cmd:   containerArgs(s.launch),
		Env:   containerEnv(s.launch),
		ExposedPorts: nat.PortSet{
			containerPort: struct{}{},
		},
		Labels: map[string]string{
			"vllmd.runtime": RuntimeName,
			"vllmd.device":  strconv.Itoa(slot.Device),
			"vllmd.model":   s.launch.Model,
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			containerPort: []nat.PortBinding{
				{
					HostIP:   s.launch.Host,
					HostPort: strconv.Itoa(slot.Port),
				},
			},
		},
		Resources: container.Resources{
			DeviceRequests: []container.DeviceRequest{
				{
					Driver:       "nvidia",
					DeviceIDs:    []string{strconv.Itoa(slot.Device)},
					Capabilities: [][]string{{"gpu"}},
				},
			},
		},
		// The engine shares tensors with its workers over shared memory.
		IpcMode: container.IpcMode("host"),
		Init:    boolPtr(true),
	}

	if s.config.ModelCacheDir != "" {
		hostConfig.Mounts = []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: s.config.ModelCacheDir,
				Target: cacheMount,
			},
		}
	}

	containerResp, err := s.docker.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName(slot.Device))
	if err != nil {
		logFile.Close()

		return fmt.Errorf("failed to create container: %w", err)
	}

	// Follow the logs before the container runs so no output is lost.
	logReader, err := s.docker.ContainerLogs(ctx, containerResp.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		logFile.Close()

		return fmt.Errorf("failed to attach to container logs: %w", err)
	}

	go func() {
		defer logFile.Close()
		defer logReader.Close()

		// The log stream multiplexes stdout and stderr, both land in the
		// same file.
		_, _ = stdcopy.StdCopy(logFile, logFile, logReader)
	}()

	if err := s.docker.ContainerStart(ctx, containerResp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	s.containersMu.Lock()
	s.containers[slot.Device] = containerResp.ID
	s.containersMu.Unlock()

	// Persisting the id lets a later supervisor run stop a container this
	// process did not start.
	if err := NewState(slot.Device, s.config.StateRoot, s.fs).SetContainerID(containerResp.ID); err != nil {
		return fmt.Errorf("saving container id: %w", err)
	}

	if inspect, err := s.docker.ContainerInspect(ctx, containerResp.ID); err == nil && inspect.State != nil {
		slot.Status.Pid = inspect.State.Pid
	}

	logger.Infof("server container %s started", containerResp.ID[:12])

	return nil
}

// WaitExit blocks until the slot's server container stops and returns its
// exit code.
func (s *Service) WaitExit(ctx context.Context, slot *models.DeviceSlot) (int, error) {
	containerID, ok := s.containerID(slot.Device)
	if !ok {
		return -1, errors.ErrNotStarted
	}

	waitCh, errCh := s.docker.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	select {
	case resp := <-waitCh:
		if resp.Error != nil {
			return -1, fmt.Errorf("waiting for container %s: %s", containerID, resp.Error.Message)
		}

		return int(resp.StatusCode), nil
	case err := <-errCh:
		return -1, fmt.Errorf("waiting for container %s: %w", containerID, err)
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Stop stops the slot's server container. The docker daemon escalates to a
// kill once the grace period passes.
func (s *Service) Stop(ctx context.Context, slot *models.DeviceSlot) error {
	containerID, ok := s.containerID(slot.Device)
	if !ok {
		// No handle from this run, fall back to the container id left by
		// an earlier run.
		stored, err := NewState(slot.Device, s.config.StateRoot, s.fs).ContainerID()
		if err != nil {
			return errors.ErrNotStarted
		}

		containerID = stored
	}

	timeout := int(s.config.GraceTimeout.Seconds())

	if err := s.docker.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}

		return fmt.Errorf("failed to stop container %s: %w", containerID, err)
	}

	return nil
}

// Pid returns the host pid of the slot's server container.
func (s *Service) Pid(ctx context.Context, slot *models.DeviceSlot) (int, error) {
	containerID, ok := s.containerID(slot.Device)
	if !ok {
		stored, err := NewState(slot.Device, s.config.StateRoot, s.fs).ContainerID()
		if err != nil {
			return -1, errors.ErrNotStarted
		}

		containerID = stored
	}

	inspect, err := s.docker.ContainerInspect(ctx, containerID)
	if err != nil {
		return -1, fmt.Errorf("inspecting container %s: %w", containerID, err)
	}

	if inspect.State == nil {
		return -1, errors.ErrMissingStatusInfo
	}

	return inspect.State.Pid, nil
}

func (s *Service) containerID(device int) (string, bool) {
	s.containersMu.Lock()
	defer s.containersMu.Unlock()

	containerID, ok := s.containers[device]

	return containerID, ok
}

func (s *Service) ensureImage(ctx context.Context) error {
	if _, _, err := s.docker.ImageInspectWithRaw(ctx, s.config.Image); err == nil {
		return nil
	}

	readCloser, err := s.docker.ImagePull(ctx, s.config.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", s.config.Image, err)
	}

	defer readCloser.Close()

	if _, err := io.Copy(io.Discard, readCloser); err != nil {
		return fmt.Errorf("pulling image %s: %w", s.config.Image, err)
	}

	return nil
}

func (s *Service) removeStale(ctx context.Context, slot *models.DeviceSlot) error {
	err := s.docker.ContainerRemove(ctx, containerName(slot.Device), container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("removing stale container %s: %w", containerName(slot.Device), err)
	}

	return nil
}

func containerName(device int) string {
	return fmt.Sprintf("vllmd-gpu%d", device)
}

// containerArgs builds the serve command for a containerised server. Inside
// the container every server listens on the same fixed port, the per-slot
// port only exists on the host side of the mapping.
func containerArgs(launch *models.LaunchConfig) []string {
	args := []string{
		"vllm", "serve", launch.Model,
		"--host", "0.0.0.0",
		"--port", strconv.Itoa(defaults.ContainerPort),
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

func containerEnv(launch *models.LaunchConfig) []string {
	env := []string{}

	for _, key := range containerForwardedEnv {
		if val, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+val)
		}
	}

	return append(env, launch.ExtraEnv...)
}

func boolPtr(val bool) *bool {
	return &val
}
