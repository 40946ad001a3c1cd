package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/pflag"

	"github.com/c360/semstreams-fix/bridge"
	"github.com/c360/semstreams-fix/config"
	"github.com/c360/semstreams-fix/control"
	"github.com/c360/semstreams-fix/engine"
	"github.com/c360/semstreams-fix/errors"
	"github.com/c360/semstreams-fix/event"
	"github.com/c360/semstreams-fix/health"
	"github.com/c360/semstreams-fix/ledger"
	"github.com/c360/semstreams-fix/lifecycle"
	"github.com/c360/semstreams-fix/metric"
	"github.com/c360/semstreams-fix/natsclient"
	"github.com/c360/semstreams-fix/pkg/retry"
	"github.com/c360/semstreams-fix/pkg/tlsutil"
)

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI(os.Args[1:])
	if shouldExit || err != nil {
		return err
	}

	cfg, err := config.NewLoader().LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return errors.WrapInvalid(err, "main", "run", "load config")
	}

	if cliCfg.Validate {
		return validateOnly(cfg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsRegistry := metric.NewMetricsRegistry()
	metrics := metricsRegistry.CoreMetrics()

	resources := ledger.New(
		ledger.WithLogger(logger),
		ledger.WithFailureHook(func(string, error) { metrics.RecordTeardownFailure() }),
	)
	defer func() { _ = resources.Teardown() }()

	if err := startBridge(ctx, cfg, cliCfg, logger, metricsRegistry, resources); err != nil {
		return err
	}

	logger.Info("semstreams-fix started")
	<-ctx.Done()
	logger.Info("Received shutdown signal, releasing resources", "resources", resources.Len())
	return nil
}

// initializeCLI parses flags and sets up logging
func initializeCLI(args []string) (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg, fs, err := parseFlags(args, os.Getenv)
	if err != nil {
		if stderrors.Is(err, pflag.ErrHelp) {
			printHelp(os.Stdout, fs)
			return nil, nil, true, nil
		}
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}
	if cliCfg.ShowHelp {
		printHelp(os.Stdout, fs)
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("Starting semstreams-fix",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)
	return cliCfg, logger, false, nil
}

// validateOnly assembles the configuration into a throwaway ledger, which
// checks sessions and parses every dictionary, then removes the files.
func validateOnly(cfg *config.Config, logger *slog.Logger) error {
	scratch := ledger.New(ledger.WithLogger(logger))
	defer func() { _ = scratch.Teardown() }()

	asm, err := config.Assemble(cfg.Settings, config.AssembleOptions{
		DictionaryArchive: cfg.Dictionary,
		TempDir:           cfg.TempDir,
		Registrar:         scratch,
	})
	if err != nil {
		return errors.WrapInvalid(err, "main", "validateOnly", "assemble sessions")
	}
	logger.Info("Configuration is valid",
		"sessions", asm.Registry.Len(), "dictionaries", len(asm.Dictionaries))
	return nil
}

// startBridge acquires every resource in dependency order. Each one is
// registered with resources as soon as it exists, so a failure part way
// through releases what was already acquired.
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	cliCfg *CLIConfig,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
	resources *ledger.Ledger,
) error {
	metrics := registry.CoreMetrics()
	monitor := health.NewMonitor()

	nc, err := connectToNATS(ctx, cfg.NATS, logger, registry, monitor)
	if err != nil {
		return err
	}
	resources.Register("nats", func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		defer cancel()
		return nc.Close(closeCtx)
	})

	asm, err := config.Assemble(cfg.Settings, config.AssembleOptions{
		DictionaryArchive: cfg.Dictionary,
		TempDir:           cfg.TempDir,
		Registrar:         resources,
	})
	if err != nil {
		return errors.WrapInvalid(err, "main", "startBridge", "assemble sessions")
	}

	reporter := event.NewReporter(nc, cfg.Events.Subject, logger)
	root, err := reporter.StoreRoot(ctx, asm.Registry.Aliases())
	if err != nil {
		return errors.WrapFatal(err, "main", "startBridge", "store root event")
	}
	logger.Info("Root event stored", "event_id", root.ID, "name", root.Name)

	appOpts := []engine.ApplicationOption{
		engine.WithHealth(monitor),
		engine.WithMetrics(metrics),
		engine.WithReporter(reporter),
	}
	if cfg.Output.Enabled {
		echoer := engine.NewEchoer(nc, engine.EchoConfig{
			Subject:     cfg.Output.Subject,
			ContentType: cfg.Output.ContentType,
			Workers:     cfg.Output.Workers,
			Capacity:    asm.Settings.QueueCapacity,
		}, registry, metrics, logger)
		if err := echoer.Start(ctx); err != nil {
			return errors.WrapFatal(err, "main", "startBridge", "start echo pool")
		}
		resources.Register("echo-pool", func() error { return echoer.Stop(cliCfg.ShutdownTimeout) })
		appOpts = append(appOpts, engine.WithEchoer(echoer))
	}

	app := engine.NewApplication(asm.Registry, logger, appOpts...)
	eng := engine.NewQuickFIX(asm, app, logger)

	ctl := lifecycle.New(eng,
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(metrics),
		lifecycle.WithHealth(monitor),
	)
	resources.Register("client", ctl.Close)

	br := bridge.New(bridge.Config{
		StartOnTraffic: asm.Settings.StartOnTraffic,
		AutoStopAfter:  asm.Settings.AutoStopAfter,
	}, asm.Registry, eng, ctl, reporter, metrics, logger)

	sub, err := subscribeInput(ctx, nc, cfg.Input, br)
	if err != nil {
		return err
	}
	resources.Register("raw-monitor", sub.Unsubscribe)

	if asm.Settings.AutoStart {
		if err := ctl.Start(ctx, asm.Settings.AutoStopAfter); err != nil {
			return errors.WrapFatal(err, "main", "startBridge", "start sessions")
		}
	}

	if asm.Settings.StartControl {
		svc := control.NewService(control.Config{
			Name:    cfg.Control.Name,
			Version: Version,
			Prefix:  cfg.Control.Subject,
			Timeout: cliCfg.ShutdownTimeout,
		}, ctl, metrics, logger)
		if err := svc.Run(nc.Conn()); err != nil {
			return err
		}
		resources.Register("control", svc.Stop)
	}

	if cfg.Metrics.Enabled {
		srv := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, appName, registry, monitor)
		if err := srv.Start(); err != nil {
			return errors.WrapFatal(err, "main", "startBridge", "start metrics server")
		}
		resources.Register("metrics-server", func() error {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(stopCtx)
		})
	}
	return nil
}

// connectToNATS creates the client and connects with retry
func connectToNATS(
	ctx context.Context,
	cfg config.NATSConfig,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(registry),
		natsclient.WithMaxReconnects(cfg.MaxReconnects),
		natsclient.WithTimeout(cfg.ConnectTimeout.Std()),
		natsclient.WithPingInterval(cfg.PingInterval.Std()),
		natsclient.WithDrainTimeout(cfg.DrainTimeout.Std()),
		natsclient.WithHandlerTimeout(cfg.HandlerTimeout.Std()),
		natsclient.WithDisconnectCallback(func(err error) {
			logger.Warn("NATS connection lost, inbound batches pause until reconnect", "error", err)
		}),
		natsclient.WithReconnectCallback(func() {
			logger.Info("NATS connection restored")
		}),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				monitor.UpdateHealthy("nats", "connected")
			} else {
				monitor.UpdateUnhealthy("nats", "disconnected")
			}
		}),
	}
	if cfg.Name != "" {
		opts = append(opts, natsclient.WithName(cfg.Name))
	}
	if cfg.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.ReconnectWait.Std()))
	}
	if cfg.MaxBackoff > 0 {
		opts = append(opts, natsclient.WithMaxBackoff(cfg.MaxBackoff.Std()))
	}
	if cfg.CircuitThreshold > 0 {
		opts = append(opts, natsclient.WithCircuitBreakerThreshold(cfg.CircuitThreshold))
	}
	if cfg.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.Token))
	}

	tlsConfig, err := tlsutil.LoadClientConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		opts = append(opts, natsclient.WithTLS(tlsConfig))
	}

	client, err := natsclient.NewClient(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "main", "connectToNATS", "create NATS client")
	}

	policy := retry.Persistent()
	if cfg.ConnectRetry > 0 {
		policy.MaxAttempts = cfg.ConnectRetry
	}
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn("NATS connect failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}

	if err := retry.Do(ctx, policy, func() error { return client.Connect(ctx) }); err != nil {
		return nil, errors.WrapFatal(err, "main", "connectToNATS", "connect to NATS")
	}
	return client, nil
}

// subscribeInput attaches the bridge to the inbound subject, through a
// durable JetStream consumer when a stream is configured.
func subscribeInput(ctx context.Context, nc *natsclient.Client, in config.InputConfig, br *bridge.Bridge) (*natsclient.Subscription, error) {
	if in.Stream == "" {
		sub, err := nc.Subscribe(ctx, in.Subject, in.QueueGroup, br.Receive)
		if err != nil {
			return nil, errors.WrapFatal(err, "main", "subscribeInput", "subscribe "+in.Subject)
		}
		return sub, nil
	}

	if _, err := nc.EnsureStream(ctx, jetstream.StreamConfig{
		Name:     in.Stream,
		Subjects: []string{in.Subject},
	}); err != nil {
		return nil, errors.WrapFatal(err, "main", "subscribeInput", "ensure stream "+in.Stream)
	}
	sub, err := nc.ConsumeStream(ctx, in.Stream, in.Subject, in.Durable, br.Receive)
	if err != nil {
		return nil, errors.WrapFatal(err, "main", "subscribeInput", "consume "+in.Stream)
	}
	return sub, nil
}
