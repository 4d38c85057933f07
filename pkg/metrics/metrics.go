package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vllmd/pkg/models"
)

const namespace = "vllmd"

// FleetMetrics exposes per-slot lifecycle metrics.
type FleetMetrics struct {
	slotState    *prometheus.GaugeVec
	restarts     *prometheus.CounterVec
	lastExitCode *prometheus.GaugeVec
	timeToReady  prometheus.Histogram
}

// New registers the fleet metrics with the supplied registerer.
func New(reg prometheus.Registerer) *FleetMetrics {
	factory := promauto.With(reg)

	return &FleetMetrics{
		slotState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "slot",
			Name:      "state",
			Help:      "State of the slot, 1 for the current state and 0 for the others.",
		}, []string{"device", "state"}),
		restarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "slot",
			Name:      "restarts_total",
			Help:      "Number of times the slot's server has been restarted after a crash.",
		}, []string{"device"}),
		lastExitCode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "slot",
			Name:      "last_exit_code",
			Help:      "Exit code of the slot's most recent server exit.",
		}, []string{"device"}),
		timeToReady: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "slot",
			Name:      "time_to_ready_seconds",
			Help:      "Seconds from server start until the readiness probe passed.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// SetState records the slot's current state.
func (m *FleetMetrics) SetState(device int, state models.SlotState) {
	if m == nil {
		return
	}

	for _, candidate := range models.AllSlotStates {
		val := 0.0
		if candidate == state {
			val = 1.0
		}

		m.slotState.WithLabelValues(strconv.Itoa(device), string(candidate)).Set(val)
	}
}

// IncRestarts counts one restart of the slot's server.
func (m *FleetMetrics) IncRestarts(device int) {
	if m == nil {
		return
	}

	m.restarts.WithLabelValues(strconv.Itoa(device)).Inc()
}

// SetLastExitCode records the exit code of the slot's most recent exit.
func (m *FleetMetrics) SetLastExitCode(device, code int) {
	if m == nil {
		return
	}

	m.lastExitCode.WithLabelValues(strconv.Itoa(device)).Set(float64(code))
}

// ObserveTimeToReady records how long a server took to become ready.
func (m *FleetMetrics) ObserveTimeToReady(elapsed time.Duration) {
	if m == nil {
		return
	}

	m.timeToReady.Observe(elapsed.Seconds())
}
