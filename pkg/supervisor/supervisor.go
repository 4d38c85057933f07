package supervisor

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"vllmd/pkg/errors"
	"vllmd/pkg/log"
	"vllmd/pkg/metrics"
	"vllmd/pkg/models"
	"vllmd/pkg/ports"
)

// Config represents the restart and shutdown policy for a fleet.
type Config struct {
	// MaximumRetry is how many times a crashed server is restarted before
	// its slot is marked permanently failed.
	MaximumRetry int
	// RestartBackoff is the delay before the first restart of a slot.
	RestartBackoff time.Duration
	// RestartBackoffMax caps the delay between restarts of the same slot.
	RestartBackoffMax time.Duration
	// GraceTimeout bounds how long shutdown waits for a server to exit.
	GraceTimeout time.Duration
	// Detach leaves server processes running when the supervisor exits.
	Detach bool
}

// Supervisor owns every server process handle in the fleet. It starts one
// server per slot, restarts crashed servers with backoff and stops all of
// them on shutdown. A slot failing permanently never takes the rest of the
// fleet down with it.
type Supervisor struct {
	cfg     *Config
	runtime ports.ServerRuntime
	prober  ports.ReadinessProber
	repo    ports.FleetRepository
	metrics *metrics.FleetMetrics

	statusMu sync.RWMutex
	status   models.FleetStatus
}

func New(cfg *Config, runtime ports.ServerRuntime, prober ports.ReadinessProber, repo ports.FleetRepository, fleetMetrics *metrics.FleetMetrics) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		runtime: runtime,
		prober:  prober,
		repo:    repo,
		metrics: fleetMetrics,
	}
}

// Run supervises one server per slot until ctx is cancelled or every slot
// has reached a terminal state. The supplied status carries the fleet
// identity; Run fills in the slots. It returns an error when at least one
// slot failed permanently.
func (s *Supervisor) Run(ctx context.Context, status models.FleetStatus, slots []*models.DeviceSlot) error {
	logger := log.GetLogger(ctx).WithField("component", "supervisor")
	ctx = log.WithLogger(ctx, logger)

	if len(slots) == 0 {
		return errors.NewConfigError(errors.ErrDeviceListRequired)
	}

	s.statusMu.Lock()
	s.status = status
	s.status.Slots = make([]models.DeviceSlot, 0, len(slots))
	for _, slot := range slots {
		s.status.Slots = append(s.status.Slots, *slot)
	}
	s.statusMu.Unlock()
	s.saveStatus()

	logger.Infof("supervising %d slot(s)", len(slots))

	wg := &sync.WaitGroup{}
	failedMu := sync.Mutex{}
	failed := []int{}

	for _, slot := range slots {
		wg.Add(1)

		go func(slot *models.DeviceSlot) {
			defer wg.Done()

			if err := s.superviseSlot(ctx, slot); err != nil {
				logger.Errorf("slot for gpu%d failed permanently: %s", slot.Device, err)

				failedMu.Lock()
				failed = append(failed, slot.Device)
				failedMu.Unlock()
			}
		}(slot)
	}

	wg.Wait()
	s.saveStatus()

	if len(failed) > 0 {
		sort.Ints(failed)

		return errors.NewFleetFailed(failed)
	}

	return nil
}

// Status returns a copy of the current fleet status.
func (s *Supervisor) Status() models.FleetStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	status := s.status
	status.Slots = make([]models.DeviceSlot, len(s.status.Slots))
	copy(status.Slots, s.status.Slots)

	return status
}

// Ready returns true once every slot in the fleet is ready.
func (s *Supervisor) Ready() bool {
	status := s.Status()

	return status.AllReady()
}

// superviseSlot runs the start/wait/restart loop for one slot. Only this
// goroutine mutates the slot, the shared fleet status is updated through
// transitions.
func (s *Supervisor) superviseSlot(ctx context.Context, slot *models.DeviceSlot) error {
	for {
		if ctx.Err() != nil {
			s.transition(slot, models.StateStopped, nil)

			return nil
		}

		startedAt := time.Now()
		s.transition(slot, models.StateStarting, func(status *models.SlotStatus) {
			status.StartedAt = startedAt.Unix()
			status.ReadyAt = 0
			status.LastError = ""
		})

		if err := s.runtime.Start(ctx, slot); err != nil {
			if errors.IsConfigError(err) {
				s.failSlot(ctx, slot, err)

				return err
			}

			if err := s.maybeRetry(ctx, slot, -1, err); err != nil {
				return err
			}

			continue
		}

		// Record the pid the runtime assigned.
		s.transition(slot, models.StateStarting, nil)

		probeCtx, cancelProbe := context.WithCancel(ctx)
		if s.prober != nil {
			go s.probeSlot(probeCtx, slot, startedAt)
		}

		code, waitErr := s.runtime.WaitExit(ctx, slot)
		cancelProbe()

		if ctx.Err() != nil {
			s.stopSlot(ctx, slot)
			s.transition(slot, models.StateStopped, func(status *models.SlotStatus) {
				if !s.cfg.Detach {
					status.Pid = 0
				}
			})

			return nil
		}

		if waitErr != nil {
			if err := s.maybeRetry(ctx, slot, -1, waitErr); err != nil {
				return err
			}

			continue
		}

		if code == 0 {
			log.GetLogger(ctx).Infof("server for gpu%d exited cleanly", slot.Device)
			s.transition(slot, models.StateStopped, func(status *models.SlotStatus) {
				status.Pid = 0
				status.LastExitCode = 0
			})

			return nil
		}

		if err := s.maybeRetry(ctx, slot, code, fmt.Errorf("server exited with code %d", code)); err != nil {
			return err
		}
	}
}

// maybeRetry marks the slot failed and waits out the restart backoff. It
// returns an error once the restart budget is spent, leaving the slot in the
// failed state for good.
func (s *Supervisor) maybeRetry(ctx context.Context, slot *models.DeviceSlot, code int, cause error) error {
	logger := log.GetLogger(ctx)

	s.transition(slot, models.StateFailed, func(status *models.SlotStatus) {
		status.Pid = 0
		status.LastExitCode = code
		status.LastError = cause.Error()
	})
	s.metrics.SetLastExitCode(slot.Device, code)

	restarts := slot.Status.Restarts
	if restarts >= s.cfg.MaximumRetry {
		return errors.NewRestartsExceeded(slot.Device, s.cfg.MaximumRetry)
	}

	delay := backoffFor(s.cfg.RestartBackoff, s.cfg.RestartBackoffMax, restarts)
	logger.Warnf("server for gpu%d exited (%s), restarting in %s (attempt %d of %d)",
		slot.Device, cause, delay, restarts+1, s.cfg.MaximumRetry)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		// Shutdown during the backoff, the loop stops the slot.
		return nil
	case <-timer.C:
	}

	s.transition(slot, models.StateFailed, func(status *models.SlotStatus) {
		status.Restarts++
	})
	s.metrics.IncRestarts(slot.Device)

	return nil
}

// probeSlot waits for the slot's server to become ready. A crash during the
// wait wins over a late probe success. startedAt is when the server process
// was launched, the time-to-ready metric counts from there.
func (s *Supervisor) probeSlot(ctx context.Context, slot *models.DeviceSlot, startedAt time.Time) {
	logger := log.GetLogger(ctx)

	if err := s.prober.WaitReady(ctx, slot); err != nil {
		if ctx.Err() == nil {
			logger.Errorf("readiness probe for gpu%d gave up: %s", slot.Device, err)
		}

		return
	}

	if s.transitionFrom(slot, models.StateStarting, models.StateReady, func(status *models.SlotStatus) {
		status.ReadyAt = time.Now().Unix()
	}) {
		s.metrics.ObserveTimeToReady(time.Since(startedAt))
		logger.Infof("server for gpu%d is ready on port %d", slot.Device, slot.Port)
	}
}

func (s *Supervisor) failSlot(ctx context.Context, slot *models.DeviceSlot, cause error) {
	log.GetLogger(ctx).Errorf("server for gpu%d cannot start: %s", slot.Device, cause)

	s.transition(slot, models.StateFailed, func(status *models.SlotStatus) {
		status.Pid = 0
		status.LastError = cause.Error()
	})
}

// stopSlot terminates the slot's running server during shutdown. The run
// context is already cancelled at this point, so the stop gets its own
// deadline derived from the grace timeout.
func (s *Supervisor) stopSlot(ctx context.Context, slot *models.DeviceSlot) {
	logger := log.GetLogger(ctx)

	if s.cfg.Detach {
		logger.Infof("leaving server for gpu%d running detached", slot.Device)

		return
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GraceTimeout+5*time.Second)
	defer cancel()

	if err := s.runtime.Stop(log.WithLogger(stopCtx, logger), slot); err != nil && !stderrors.Is(err, errors.ErrNotStarted) {
		logger.Errorf("stopping server for gpu%d: %s", slot.Device, err)
	}
}

// transition applies the mutation, moves the slot to the given state and
// publishes the new status.
func (s *Supervisor) transition(slot *models.DeviceSlot, state models.SlotState, mutate func(*models.SlotStatus)) {
	s.statusMu.Lock()

	if mutate != nil {
		mutate(&slot.Status)
	}
	slot.Status.State = state
	s.publishSlot(slot)

	s.statusMu.Unlock()

	s.metrics.SetState(slot.Device, state)
	s.saveStatus()
}

// transitionFrom is transition guarded on the slot's current state. It
// returns false, applying nothing, when the slot has moved on.
func (s *Supervisor) transitionFrom(slot *models.DeviceSlot, from, to models.SlotState, mutate func(*models.SlotStatus)) bool {
	s.statusMu.Lock()

	if slot.Status.State != from {
		s.statusMu.Unlock()

		return false
	}

	if mutate != nil {
		mutate(&slot.Status)
	}
	slot.Status.State = to
	s.publishSlot(slot)

	s.statusMu.Unlock()

	s.metrics.SetState(slot.Device, to)
	s.saveStatus()

	return true
}

// publishSlot copies the slot into the shared fleet status. Callers hold
// statusMu.
func (s *Supervisor) publishSlot(slot *models.DeviceSlot) {
	for i := range s.status.Slots {
		if s.status.Slots[i].Device == slot.Device {
			s.status.Slots[i] = *slot
		}
	}
}

func (s *Supervisor) saveStatus() {
	if s.repo == nil {
		return
	}

	status := s.Status()

	if err := s.repo.Save(context.Background(), &status); err != nil {
		log.GetLogger(context.Background()).Warnf("saving fleet status: %s", err)
	}
}
