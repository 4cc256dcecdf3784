// Package main provides the go-socks-proxy server executable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/go-socks-proxy/internal/config"
	"github.com/opd-ai/go-socks-proxy/internal/health"
	"github.com/opd-ai/go-socks-proxy/internal/httpmetrics"
	"github.com/opd-ai/go-socks-proxy/internal/logger"
	"github.com/opd-ai/go-socks-proxy/internal/metrics"
	"github.com/opd-ai/go-socks-proxy/internal/trace"
	"github.com/opd-ai/go-socks-proxy/pkg/socksproxy"
)

var (
	version   = "0.1.0-dev"
	buildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file (torrc-style format)")
	listenAddr := flag.String("listen", "", "SOCKS listen address (default: 127.0.0.1:1080)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP metrics/health bind address (empty disables it)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	traceStdout := flag.Bool("trace", false, "Print session spans to stdout as JSON")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("go-socks-proxy version %s (built %s)\n", version, buildTime)
		fmt.Println("Pure Go SOCKS4/SOCKS5 proxy server")
		os.Exit(0)
	}

	cfg := config.DefaultConfig()
	if *configFile != "" {
		if err := config.LoadFromFile(*configFile, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config file: %v\n", err)
			os.Exit(1)
		}
	}

	if *listenAddr != "" {
		cfg.ListenAddress = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddress = *metricsAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(level, os.Stdout)

	log.Info("Starting go-socks-proxy", "version", version, "build_time", buildTime)
	log.Info("Configuration loaded",
		"listen_address", cfg.ListenAddress,
		"connect_timeout", cfg.ConnectTimeout,
		"metrics_address", cfg.MetricsAddress,
		"log_level", cfg.LogLevel,
		"tracing_enabled", cfg.EnableTracing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if err := run(ctx, cfg, log, *traceStdout); err != nil {
		log.Error("Application error", "error", err)
		os.Exit(1)
	}

	log.Info("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, traceStdout bool) error {
	serverCfg := socksproxy.ServerConfig{
		BindAddress:   cfg.ListenAddress,
		Dialer:        socksproxy.DialerConfig{ConnectTimeout: cfg.ConnectTimeout},
		ShutdownGrace: cfg.ShutdownGrace,
	}

	sampler := trace.AlwaysSample()
	if !cfg.EnableTracing {
		sampler = trace.NeverSample()
	}
	var exporter trace.Exporter = trace.NewNoopExporter()
	if traceStdout {
		exporter = trace.NewStdoutExporter(false)
	}
	inst := &socksproxy.Instrumentation{
		Log:     log,
		Tracer:  trace.NewTracer("go-socks-proxy", exporter, sampler),
		Metrics: metrics.New(),
	}

	srv := socksproxy.NewServer(serverCfg, nil, inst)

	var metricsServer *httpmetrics.Server
	if cfg.MetricsAddress != "" {
		monitor := health.NewMonitor()
		monitor.RegisterChecker(health.NewListenerHealthChecker(func() health.ListenerStats {
			return health.ListenerStats{Bound: srv.Addr() != nil, ActiveSessions: srv.ActiveSessions()}
		}))
		monitor.RegisterChecker(health.NewRelayHealthChecker(func() health.RelayStats {
			snap := srv.Metrics().Snapshot()
			return health.RelayStats{SessionsAccepted: snap.SessionsAccepted, SessionsFailed: snap.SessionsFailed}
		}))

		metricsServer = httpmetrics.NewServer(cfg.MetricsAddress, srv.Metrics(), monitor, log)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		log.Info("Metrics server listening", "address", metricsServer.GetAddress())
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(ctx)
	}()

	log.Info("SOCKS proxy available", "address", cfg.ListenAddress)
	fmt.Println()
	fmt.Println("Example: test with curl")
	fmt.Printf("  curl --socks5 %s http://example.com\n", cfg.ListenAddress)
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	log.Info("Press Ctrl+C to exit")

	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("accept loop exited: %w", err)
		}
	case <-ctx.Done():
		log.Info("Context cancelled", "reason", ctx.Err())
	}

	log.Info("Initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace+5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error during shutdown", "error", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			log.Warn("Error stopping metrics server", "error", err)
		}
	}

	return nil
}
