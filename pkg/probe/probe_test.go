package probe_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	g "github.com/onsi/gomega"

	"vllmd/pkg/models"
	"vllmd/pkg/probe"
)

func listenerSlot(t *testing.T) (net.Listener, *models.DeviceSlot) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })

	port := listener.Addr().(*net.TCPAddr).Port

	return listener, &models.DeviceSlot{Device: 0, Port: port}
}

func freeSlot(t *testing.T) *models.DeviceSlot {
	t.Helper()

	listener, slot := listenerSlot(t)
	listener.Close()

	return slot
}

func TestTCPProber_ready(t *testing.T) {
	g.RegisterTestingT(t)

	_, slot := listenerSlot(t)

	prober := probe.NewTCP(&probe.Config{
		Host:     "127.0.0.1",
		Interval: 10 * time.Millisecond,
		Timeout:  2 * time.Second,
	})

	g.Expect(prober.WaitReady(context.Background(), slot)).To(g.Succeed())
}

func TestTCPProber_neverBlocksPastTimeout(t *testing.T) {
	g.RegisterTestingT(t)

	slot := freeSlot(t)

	prober := probe.NewTCP(&probe.Config{
		Host:     "127.0.0.1",
		Interval: 20 * time.Millisecond,
		Timeout:  150 * time.Millisecond,
	})

	start := time.Now()
	err := prober.WaitReady(context.Background(), slot)

	g.Expect(err).To(g.HaveOccurred())
	g.Expect(time.Since(start)).To(g.BeNumerically("<", 2*time.Second))
}

func TestTCPProber_becomesReadyLate(t *testing.T) {
	g.RegisterTestingT(t)

	listener, slot := listenerSlot(t)
	addr := listener.Addr().String()
	listener.Close()

	// Rebind the port after the first few attempts fail.
	go func() {
		time.Sleep(100 * time.Millisecond)

		late, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}

		time.Sleep(2 * time.Second)
		late.Close()
	}()

	prober := probe.NewTCP(&probe.Config{
		Host:     "127.0.0.1",
		Interval: 20 * time.Millisecond,
		Timeout:  5 * time.Second,
	})

	g.Expect(prober.WaitReady(context.Background(), slot)).To(g.Succeed())
}

func TestTCPProber_cancelledContext(t *testing.T) {
	g.RegisterTestingT(t)

	slot := freeSlot(t)

	prober := probe.NewTCP(&probe.Config{
		Host:     "127.0.0.1",
		Interval: 10 * time.Millisecond,
		Timeout:  time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := prober.WaitReady(ctx, slot)

	g.Expect(err).To(g.MatchError(context.Canceled))
	g.Expect(time.Since(start)).To(g.BeNumerically("<", 2*time.Second))
}

func serverPort(t *testing.T, server *httptest.Server) int {
	t.Helper()

	_, portStr, err := net.SplitHostPort(strings.TrimPrefix(server.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}

	return port
}

func TestHTTPProber_readyOnceModelsServed(t *testing.T) {
	g.RegisterTestingT(t)

	var healthy atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" || !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer server.Close()

	slot := &models.DeviceSlot{Device: 0, Port: serverPort(t, server)}

	// The port accepts connections but the server is not serving yet, so an
	// HTTP probe must not report ready.
	notYet := probe.NewHTTP(&probe.Config{
		Host:     "127.0.0.1",
		Interval: 10 * time.Millisecond,
		Timeout:  100 * time.Millisecond,
	})
	g.Expect(notYet.WaitReady(context.Background(), slot)).NotTo(g.Succeed())

	healthy.Store(true)

	prober := probe.NewHTTP(&probe.Config{
		Host:     "127.0.0.1",
		Interval: 10 * time.Millisecond,
		Timeout:  2 * time.Second,
	})
	g.Expect(prober.WaitReady(context.Background(), slot)).To(g.Succeed())
}

func TestHTTPProber_notReadyWhileFailing(t *testing.T) {
	g.RegisterTestingT(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	prober := probe.NewHTTP(&probe.Config{
		Host:     "127.0.0.1",
		Interval: 10 * time.Millisecond,
		Timeout:  100 * time.Millisecond,
	})

	err := prober.WaitReady(context.Background(), &models.DeviceSlot{Device: 0, Port: serverPort(t, server)})
	g.Expect(err).To(g.HaveOccurred())
}

func TestNewFromConfig(t *testing.T) {
	g.RegisterTestingT(t)

	cfg := &probe.Config{Host: "127.0.0.1", Interval: time.Second, Timeout: time.Minute}

	prober, err := probe.NewFromConfig(probe.ProberTCP, cfg)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(prober).NotTo(g.BeNil())

	prober, err = probe.NewFromConfig(probe.ProberHTTP, cfg)
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(prober).NotTo(g.BeNil())

	_, err = probe.NewFromConfig("carrier-pigeon", cfg)
	g.Expect(err).To(g.HaveOccurred())
}

func TestDialHost(t *testing.T) {
	g.RegisterTestingT(t)

	g.Expect(probe.DialHost("0.0.0.0")).To(g.Equal("127.0.0.1"))
	g.Expect(probe.DialHost("::")).To(g.Equal("127.0.0.1"))
	g.Expect(probe.DialHost("")).To(g.Equal("127.0.0.1"))
	g.Expect(probe.DialHost("10.0.0.5")).To(g.Equal("10.0.0.5"))
}
