package manifest

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"vllmd/internal/config"
)

// Manifest mirrors the vllmd.toml fleet manifest. Zero-valued fields leave
// the matching configuration untouched.
type Manifest struct {
	Model struct {
		ID                   string  `toml:"id"`
		ServedName           string  `toml:"served_name"`
		MaxModelLen          int     `toml:"max_model_len"`
		MaxNumSeqs           int     `toml:"max_num_seqs"`
		GPUMemoryUtilization float64 `toml:"gpu_memory_utilization"`
		SwapSpace            string  `toml:"swap_space"`
	} `toml:"model"`
	Fleet struct {
		Host     string `toml:"host"`
		BasePort int    `toml:"base_port"`
		Devices  []int  `toml:"devices"`
		LogDir   string `toml:"log_dir"`
	} `toml:"fleet"`
	Restart struct {
		MaxRestarts int    `toml:"max_restarts"`
		Backoff     string `toml:"backoff"`
		BackoffMax  string `toml:"backoff_max"`
	} `toml:"restart"`
	Runtime struct {
		Provider string   `toml:"provider"`
		VLLMBin  string   `toml:"vllm_bin"`
		Image    string   `toml:"image"`
		CacheDir string   `toml:"cache_dir"`
		Args     []string `toml:"args"`
		Env      []string `toml:"env"`
	} `toml:"runtime"`
}

// Load reads and parses the manifest at the supplied path.
func Load(path string, fs afero.Fs) (*Manifest, error) {
	manifestPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest path %s: %w", path, err)
	}

	contents, err := afero.ReadFile(fs, manifestPath)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", manifestPath, err)
	}

	m := &Manifest{}
	if err := toml.Unmarshal(contents, m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", manifestPath, err)
	}

	return m, nil
}

// Apply copies every field set in the manifest onto the configuration. The
// manifest wins over flag values for the fields it sets.
func (m *Manifest) Apply(cfg *config.Config) error {
	applyString(&cfg.Model, m.Model.ID)
	applyString(&cfg.ServedModelName, m.Model.ServedName)
	applyInt(&cfg.MaxModelLen, m.Model.MaxModelLen)
	applyInt(&cfg.MaxNumSeqs, m.Model.MaxNumSeqs)
	applyString(&cfg.SwapSpace, m.Model.SwapSpace)

	if m.Model.GPUMemoryUtilization != 0 {
		cfg.GPUMemoryUtilization = m.Model.GPUMemoryUtilization
	}

	applyString(&cfg.Host, m.Fleet.Host)
	applyInt(&cfg.BasePort, m.Fleet.BasePort)
	applyString(&cfg.LogDir, m.Fleet.LogDir)

	if len(m.Fleet.Devices) > 0 {
		cfg.DeviceList = joinDevices(m.Fleet.Devices)
	}

	applyInt(&cfg.MaximumRetry, m.Restart.MaxRestarts)

	if err := applyDuration(&cfg.RestartBackoff, m.Restart.Backoff); err != nil {
		return fmt.Errorf("parsing restart backoff: %w", err)
	}

	if err := applyDuration(&cfg.RestartBackoffMax, m.Restart.BackoffMax); err != nil {
		return fmt.Errorf("parsing restart backoff cap: %w", err)
	}

	applyString(&cfg.DefaultProvider, m.Runtime.Provider)
	applyString(&cfg.ServeBin, m.Runtime.VLLMBin)
	applyString(&cfg.DockerImage, m.Runtime.Image)
	applyString(&cfg.ModelCacheDir, m.Runtime.CacheDir)

	if len(m.Runtime.Args) > 0 {
		cfg.ExtraArgs = append(cfg.ExtraArgs, m.Runtime.Args...)
	}

	if len(m.Runtime.Env) > 0 {
		cfg.ExtraEnv = append(cfg.ExtraEnv, m.Runtime.Env...)
	}

	return nil
}

func applyString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func applyInt(dst *int, val int) {
	if val != 0 {
		*dst = val
	}
}

func applyDuration(dst *time.Duration, val string) error {
	if val == "" {
		return nil
	}

	parsed, err := time.ParseDuration(val)
	if err != nil {
		return err
	}

	*dst = parsed

	return nil
}

func joinDevices(devices []int) string {
	parts := make([]string, 0, len(devices))
	for _, device := range devices {
		parts = append(parts, strconv.Itoa(device))
	}

	return strings.Join(parts, ",")
}
