package probe

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"vllmd/pkg/log"
	"vllmd/pkg/models"
	"vllmd/pkg/ports"
)

const (
	ProberTCP  = "tcp"
	ProberHTTP = "http"
)

// Config represents the configuration options for readiness probing.
type Config struct {
	// Host is the address probes connect to.
	Host string
	// Interval is how long to wait between attempts.
	Interval time.Duration
	// Timeout bounds the whole wait. A slot that is not ready by then never
	// will be.
	Timeout time.Duration
}

// NewFromConfig creates the prober with the supplied name.
func NewFromConfig(name string, cfg *Config) (ports.ReadinessProber, error) {
	switch name {
	case ProberTCP:
		return NewTCP(cfg), nil
	case ProberHTTP:
		return NewHTTP(cfg), nil
	default:
		return nil, fmt.Errorf("unknown prober %s", name)
	}
}

// DialHost maps a bind address to an address probes can connect to.
func DialHost(bindHost string) string {
	if bindHost == "" || bindHost == "0.0.0.0" || bindHost == "::" {
		return "127.0.0.1"
	}

	return bindHost
}

// TCPProber reports a slot ready once its port accepts a TCP connection.
type TCPProber struct {
	config *Config
}

func NewTCP(cfg *Config) ports.ReadinessProber {
	return &TCPProber{config: cfg}
}

// WaitReady blocks until the slot's port accepts a connection or the probe
// deadline passes.
func (p *TCPProber) WaitReady(ctx context.Context, slot *models.DeviceSlot) error {
	addr := net.JoinHostPort(p.config.Host, strconv.Itoa(slot.Port))

	return waitReady(ctx, p.config, func(checkCtx context.Context) bool {
		dialer := net.Dialer{}

		conn, err := dialer.DialContext(checkCtx, "tcp", addr)
		if err != nil {
			return false
		}

		conn.Close()

		return true
	})
}

// HTTPProber reports a slot ready once the server's model list answers,
// meaning the weights are loaded and the OpenAI surface is up. A port that
// merely accepts connections can still be minutes away from serving.
type HTTPProber struct {
	config *Config
	client *http.Client
}

func NewHTTP(cfg *Config) ports.ReadinessProber {
	return &HTTPProber{
		config: cfg,
		client: &http.Client{},
	}
}

// WaitReady blocks until the slot's server answers its model list or the
// probe deadline passes.
func (p *HTTPProber) WaitReady(ctx context.Context, slot *models.DeviceSlot) error {
	url := fmt.Sprintf("http://%s/v1/models", net.JoinHostPort(p.config.Host, strconv.Itoa(slot.Port)))

	return waitReady(ctx, p.config, func(checkCtx context.Context) bool {
		req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return false
		}

		defer resp.Body.Close()

		return resp.StatusCode < http.StatusBadRequest
	})
}

// waitReady runs check on the probe interval until it passes or the probe
// deadline passes. It never blocks past the deadline.
func waitReady(ctx context.Context, cfg *Config, check func(context.Context) bool) error {
	probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if check(probeCtx) {
			return nil
		}

		log.GetLogger(ctx).Tracef("readiness attempt %d failed", attempt)

		select {
		case <-probeCtx.Done():
			if stderrors.Is(probeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return fmt.Errorf("server not ready within %s: %w", cfg.Timeout, probeCtx.Err())
			}

			return probeCtx.Err()
		case <-ticker.C:
		}
	}
}
