package ports

import (
	"time"

	"github.com/spf13/afero"

	"vllmd/pkg/metrics"
)

type Collection struct {
	RuntimeProviders map[string]ServerRuntime
	Prober           ReadinessProber
	FleetRepo        FleetRepository
	Metrics          *metrics.FleetMetrics
	FileSystem       afero.Fs
	Clock            func() time.Time
}
