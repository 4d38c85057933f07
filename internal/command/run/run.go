package run

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	cmdflags "vllmd/internal/command/flags"
	"vllmd/internal/command/fleet"
	"vllmd/internal/config"

	"vllmd/pkg/api"
	"vllmd/pkg/app"
	"vllmd/pkg/flags"
	"vllmd/pkg/log"
	"vllmd/pkg/metrics"
	"vllmd/pkg/models"
	"vllmd/pkg/ports"
	"vllmd/pkg/probe"
	"vllmd/pkg/runtime"
	"vllmd/pkg/state"
	"vllmd/pkg/supervisor"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func NewCommand(cfg *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Supervise one vLLM server per GPU",
		PreRunE: func(c *cobra.Command, _ []string) error {
			flags.BindCommandToViper(c)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	cmdflags.AddFleetFlagsToCommand(cmd, cfg)
	cmdflags.AddServerRuntimeFlagsToCommand(cmd, cfg)
	cmdflags.AddRestartPolicyFlagsToCommand(cmd, cfg)
	cmdflags.AddProbeFlagsToCommand(cmd, cfg)
	cmdflags.AddHTTPAPIFlagsToCommand(cmd, cfg)

	return cmd, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := log.GetLogger(ctx)
	logger.Info("starting vllmd supervisor")

	// Tokens and cache settings from a .env land in the supervisor's
	// environment and are forwarded to the servers from there.
	_ = godotenv.Load()

	fs := afero.NewOsFs()

	launch, devices, err := fleet.Resolve(ctx, cfg, fs)
	if err != nil {
		return err
	}

	fleetApp, err := initializeApp(cfg, launch, devices, fs)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(log.WithLogger(ctx, logger))
	defer cancel()

	wg := &sync.WaitGroup{}

	if !cfg.DisableAPI {
		apiServer := api.NewServer(cfg.HTTPAPIEndpoint, fleetApp)

		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := apiServer.Start(ctx); err != nil {
				logger.Errorf("admin API server failed: %s", err)
				cancel()
			}
		}()
	}

	go func() {
		<-sigChan
		logger.Debug("shutdown signal received, stopping the fleet")
		cancel()
	}()

	fleetErr := fleetApp.Run(ctx)
	cancel()
	wg.Wait()

	if fleetErr != nil {
		return fleetErr
	}

	logger.Info("fleet finished, exiting")

	return nil
}

func initializeApp(cfg *config.Config, launch *models.LaunchConfig, devices []int, fs afero.Fs) (*app.App, error) {
	providers, err := runtime.NewFromConfig(cfg, launch, fs)
	if err != nil {
		return nil, err
	}

	prober, err := probe.NewFromConfig(cfg.Prober, &probe.Config{
		Host:     probe.DialHost(launch.Host),
		Interval: cfg.ProbeInterval,
		Timeout:  cfg.ProbeTimeout,
	})
	if err != nil {
		return nil, err
	}

	return app.New(&app.Config{
		DefaultProvider: cfg.DefaultProvider,
		Launch:          launch,
		Devices:         devices,
		Supervisor: supervisor.Config{
			MaximumRetry:      cfg.MaximumRetry,
			RestartBackoff:    cfg.RestartBackoff,
			RestartBackoffMax: cfg.RestartBackoffMax,
			GraceTimeout:      cfg.GraceTimeout,
			Detach:            cfg.Detach,
		},
	}, &ports.Collection{
		RuntimeProviders: providers,
		Prober:           prober,
		FleetRepo:        state.New(cfg.StateRootDir, fs),
		Metrics:          metrics.New(prometheus.DefaultRegisterer),
		FileSystem:       fs,
		Clock:            time.Now,
	})
}
