package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vllmd/pkg/log"
	"vllmd/pkg/models"
)

const shutdownTimeout = 5 * time.Second

// FleetService is the view of the fleet the admin API serves.
type FleetService interface {
	// Status returns a snapshot of every slot in the fleet.
	Status() models.FleetStatus
	// Ready returns true once every slot in the fleet is ready.
	Ready() bool
}

// Server is the admin HTTP API of the supervisor. It reports fleet and slot
// status, aggregate readiness and prometheus metrics.
type Server struct {
	bindAddr string
	fleet    FleetService
}

func NewServer(bindAddr string, fleet FleetService) *Server {
	return &Server{
		bindAddr: bindAddr,
		fleet:    fleet,
	}
}

// Start serves the admin API until ctx is cancelled, then shuts the server
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	logger := log.GetLogger(ctx)

	server := &http.Server{
		Addr:              s.bindAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down admin API server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutting down admin API server: %s", err)
		}
	}()

	logger.Infof("starting admin API server on %s", s.bindAddr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving admin API on %s: %w", s.bindAddr, err)
	}

	return nil
}

// Handler returns the admin API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /v1/fleet", s.handleFleet)
	mux.HandleFunc("GET /v1/slots/{device}", s.handleSlot)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// handleHealthz reports supervisor liveness. Serving the request is the
// health check.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports aggregate readiness, 503 until every slot is ready.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.fleet.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleFleet(w http.ResponseWriter, _ *http.Request) {
	status := s.fleet.Status()

	writeJSON(w, http.StatusOK, &status)
}

func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	device, err := strconv.Atoi(r.PathValue("device"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid device id %q", r.PathValue("device")), http.StatusBadRequest)

		return
	}

	status := s.fleet.Status()

	slot := status.Slot(device)
	if slot == nil {
		http.Error(w, fmt.Sprintf("device %d is not part of the fleet", device), http.StatusNotFound)

		return
	}

	writeJSON(w, http.StatusOK, slot)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(body)
}
