package runtime

import (
	"fmt"

	"github.com/spf13/afero"

	"vllmd/internal/config"
	"vllmd/pkg/errors"
	"vllmd/pkg/models"
	"vllmd/pkg/ports"
	"vllmd/pkg/runtime/docker"
	"vllmd/pkg/runtime/exec"
)

// NewFromConfig will create instances of the server runtimes based on the config.
func NewFromConfig(cfg *config.Config, launch *models.LaunchConfig, fs afero.Fs) (map[string]ports.ServerRuntime, error) {
	providers := map[string]ports.ServerRuntime{}

	if cfg.ServeBin != "" {
		providers[exec.RuntimeName] = exec.New(&exec.Config{
			ServeBin:     cfg.ServeBin,
			RunDetached:  cfg.Detach,
			GraceTimeout: cfg.GraceTimeout,
			StateRoot:    cfg.StateRootDir,
		}, launch, fs)
	}

	if cfg.DockerImage != "" {
		dockerService, err := docker.New(&docker.Config{
			Image:         cfg.DockerImage,
			StateRoot:     cfg.StateRootDir,
			ModelCacheDir: cfg.ModelCacheDir,
			GraceTimeout:  cfg.GraceTimeout,
		}, launch, fs)
		if err != nil {
			return nil, fmt.Errorf("creating docker runtime: %w", err)
		}

		providers[docker.RuntimeName] = dockerService
	}

	if len(providers) == 0 {
		return nil, errors.ErrNoRuntime
	}

	return providers, nil
}
