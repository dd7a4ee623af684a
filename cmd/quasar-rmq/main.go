// Quasar RabbitMQ Agent - queue and broker memory statistics for Gravito
//
// Runs rabbitmqctl, pidof and pmap on every tick and publishes the results
// as gauges to Redis, Prometheus or the log.
//
// Usage:
//
//	QUASAR_SERVICE=billing-rabbit QUASAR_REDIS_URL=redis://localhost:6379 quasar-rmq
//
// Or a single cycle printed to stdout:
//
//	quasar-rmq --once
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gravito-framework/quasar-rmq/pkg/agent"
	"github.com/gravito-framework/quasar-rmq/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup structured logging. The agent raises or lowers the level on reload.
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	once := false
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--help", "-h":
			printHelp()
			os.Exit(0)
		case "--version", "-v":
			fmt.Printf("quasar-rmq %s (commit: %s, built: %s)\n", version, commit, date)
			os.Exit(0)
		case "--once":
			once = true
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q\n\nRun 'quasar-rmq --help' for usage information.\n", os.Args[1])
			os.Exit(2)
		}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opts []agent.Option
	opts = append(opts, agent.WithLogger(logger), agent.WithLevel(level))
	if once {
		// the gauges are printed below
		opts = append(opts, agent.WithGaugeOutput(io.Discard))
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && !once {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, agent.WithRegisterer(reg))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	// Create agent
	a, err := agent.New(cfg, opts...)
	if err != nil {
		logger.Error("Failed to create agent", "error", err)
		fmt.Println("\nRun 'quasar-rmq --help' for usage information.")
		os.Exit(1)
	}

	if once {
		snap, err := a.Collect(ctx)
		if err != nil {
			os.Exit(1)
		}
		for _, key := range snap.Keys() {
			v, _ := snap.Get(key)
			fmt.Printf("%s %d\n", key, v)
		}
		return
	}

	if metricsServer != nil {
		go func() {
			logger.Info("Serving metrics", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Start agent
	if err := a.Start(ctx); err != nil {
		logger.Error("Failed to start agent", "error", err)
		os.Exit(1)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			// Re-read tool paths and verbosity between cycles
			if err := a.Reconfigure(config.Load()); err != nil {
				logger.Error("Reload failed", "error", err)
			}
			continue
		}
		logger.Warn("Received shutdown signal", "signal", sig, "node", a.NodeID())
		break
	}

	// Graceful shutdown
	cancel()
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error", "error", err)
		}
		shutdownCancel()
	}
	if err := a.Stop(context.Background()); err != nil {
		logger.Error("Shutdown error", "error", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`Usage: quasar-rmq [options]

Quasar RabbitMQ collects per-queue message, memory and consumer counts from
rabbitmqctl plus the broker's pmap summary, and publishes them as gauges.

Environment Variables:
  QUASAR_SERVICE              Service name identifier (default: rabbitmq)
  QUASAR_NAME                 Custom node name (default: hostname)
  QUASAR_RMQCTL_BIN           rabbitmqctl path (default: /usr/sbin/rabbitmqctl)
  QUASAR_PMAP_BIN             pmap path (default: /usr/bin/pmap)
  QUASAR_PIDOF_BIN            pidof path (default: /bin/pidof)
  QUASAR_BROKER_PROCESS       Broker process name (default: beam.smp)
  QUASAR_VERBOSE              Log every step and gauge (default: false)
  QUASAR_REDIS_URL            Redis URL for gauges and heartbeats (optional)
  QUASAR_TRANSPORT_REDIS_URL  Same as QUASAR_REDIS_URL
  QUASAR_METRICS_ADDR         Serve Prometheus metrics on this address (optional)
  QUASAR_INTERVAL             Collection interval in seconds (default: 10)
  QUASAR_COMMAND_TIMEOUT      Timeout per external command in seconds (default: 5)
  QUASAR_OPTIONS              Plugin options: RmqcBin=...,PmapBin=...,PidofBin=...,Verbose=...

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --once          Run a single cycle, print the gauges and exit

Signals:
  SIGHUP          Reload tool paths and verbosity from the environment

Examples:
  # Log gauges only
  QUASAR_VERBOSE=true quasar-rmq

  # Publish to Zenith and expose Prometheus metrics
  QUASAR_SERVICE=billing-rabbit \
  QUASAR_REDIS_URL=redis://zenith-redis:6379 \
  QUASAR_METRICS_ADDR=:9419 \
  quasar-rmq
` + "\n")
}
