// Package agent schedules collection cycles and ships their results.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	quasarredis "github.com/gravito-framework/quasar-rmq/internal/redis"
	"github.com/gravito-framework/quasar-rmq/pkg/collector"
	"github.com/gravito-framework/quasar-rmq/pkg/commands"
	"github.com/gravito-framework/quasar-rmq/pkg/config"
	"github.com/gravito-framework/quasar-rmq/pkg/dispatch"
	"github.com/gravito-framework/quasar-rmq/pkg/probes"
	"github.com/gravito-framework/quasar-rmq/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "gravito:quasar:node:"
	minKeyTTL  = 30 * time.Second
	statusOK   = "online"
	statusFail = "error"
)

// Agent is the Quasar RabbitMQ monitoring agent
type Agent struct {
	config *config.Config
	logger *slog.Logger

	// level follows cfg.Verbose when set, so a reload can raise it
	level *slog.LevelVar

	// gaugeOutput receives gauges when no other sink is configured
	gaugeOutput io.Writer

	// Transport Redis for gauges and heartbeats (optional)
	transportRedis *redis.Client
	redisSink      *dispatch.RedisSink

	hostProbe  probes.HostProbe
	runner     commands.Runner
	registerer prometheus.Registerer
	extraSinks []dispatch.Sink

	dispatcher dispatch.Dispatcher
	collector  *collector.Collector

	// cycleMu serializes collection cycles against Reconfigure
	cycleMu sync.Mutex

	// State
	nodeID    string
	hostInfo  types.HostInfo
	startTime time.Time
	running   bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
}

// Option is a functional option for configuring the Agent
type Option func(*Agent)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithLevel lets the agent drive the logger's level: info when verbose,
// warn otherwise. The same LevelVar must back the logger's handler.
func WithLevel(level *slog.LevelVar) Option {
	return func(a *Agent) {
		a.level = level
	}
}

// WithGaugeOutput sets where gauges are written when no transport is
// configured. Defaults to stdout.
func WithGaugeOutput(w io.Writer) Option {
	return func(a *Agent) {
		a.gaugeOutput = w
	}
}

// WithHostProbe sets a custom host probe
func WithHostProbe(probe probes.HostProbe) Option {
	return func(a *Agent) {
		a.hostProbe = probe
	}
}

// WithRunner replaces the os/exec command runner
func WithRunner(runner commands.Runner) Option {
	return func(a *Agent) {
		a.runner = runner
	}
}

// WithRegisterer exposes gauges through a Prometheus registry
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *Agent) {
		a.registerer = reg
	}
}

// WithSinks adds extra gauge sinks
func WithSinks(sinks ...dispatch.Sink) Option {
	return func(a *Agent) {
		a.extraSinks = append(a.extraSinks, sinks...)
	}
}

// New creates a new agent. Plugin options in cfg.Options are applied here;
// unknown keys are logged as warnings.
func New(cfg *config.Config, opts ...Option) (*Agent, error) {
	a := &Agent{
		logger:      slog.Default(),
		gaugeOutput: os.Stdout,
		startTime:   time.Now(),
		stopChan:    make(chan struct{}),
	}

	// Apply options
	for _, opt := range opts {
		opt(a)
	}

	resolved, err := a.resolveConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.config = resolved
	a.setLevel(resolved.Verbose)

	a.logger.Warn("Initialising "+types.PluginName, "plugin", types.PluginName)

	if a.hostProbe == nil {
		a.hostProbe = probes.NewGoHostProbe()
	}
	if info, err := a.hostProbe.HostInfo(); err == nil {
		a.hostInfo = *info
	} else {
		a.logger.Warn("Failed to read host info", "error", err)
	}

	a.nodeID = resolved.Name
	if a.nodeID == "" {
		a.nodeID = a.hostInfo.Hostname
	}
	if a.nodeID == "" {
		a.nodeID = "unknown"
	}

	sinks, err := a.buildSinks()
	if err != nil {
		return nil, err
	}
	a.dispatcher = dispatch.NewGaugeDispatcher(types.PluginName, sinks...)
	a.collector = a.newCollector(resolved)

	return a, nil
}

// resolveConfig copies cfg, applies its plugin options and validates the result
func (a *Agent) resolveConfig(cfg *config.Config) (*config.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	resolved := *cfg
	for _, warning := range resolved.Apply(resolved.Options) {
		a.logger.Warn(warning, "plugin", types.PluginName)
	}
	resolved.Options = nil

	if err := resolved.Validate(); err != nil {
		return nil, err
	}
	return &resolved, nil
}

func (a *Agent) buildSinks() ([]dispatch.Sink, error) {
	var sinks []dispatch.Sink

	if a.config.TransportRedisURL != "" {
		client, err := quasarredis.NewClientLazy(a.config.TransportRedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid transport redis URL: %w", err)
		}
		a.transportRedis = client
		a.redisSink = dispatch.NewRedisSink(client, a.config.Service, a.nodeID, a.keyTTL())
		sinks = append(sinks, a.redisSink)
	}

	if a.registerer != nil {
		sink, err := dispatch.NewPrometheusSink(a.registerer, types.PluginName)
		if err != nil {
			return nil, fmt.Errorf("failed to register prometheus gauges: %w", err)
		}
		sinks = append(sinks, sink)
	}

	sinks = append(sinks, a.extraSinks...)

	if len(sinks) == 0 {
		sinks = append(sinks, dispatch.NewLogSink(a.gaugeOutput))
	}

	return sinks, nil
}

func (a *Agent) newCollector(cfg *config.Config) *collector.Collector {
	opts := []collector.Option{collector.WithLogger(a.logger)}
	if a.runner != nil {
		opts = append(opts, collector.WithRunner(a.runner))
	}
	return collector.New(*cfg, opts...)
}

func (a *Agent) setLevel(verbose bool) {
	if a.level == nil {
		return
	}
	if verbose {
		a.level.Set(slog.LevelInfo)
	} else {
		a.level.Set(slog.LevelWarn)
	}
}

// keyTTL keeps published keys alive for a few missed cycles
func (a *Agent) keyTTL() time.Duration {
	ttl := 3 * a.config.Interval
	if ttl < minKeyTTL {
		ttl = minKeyTTL
	}
	return ttl
}

// Start runs a first cycle and begins the collection loop
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("agent already running")
	}
	a.running = true
	interval := a.config.Interval
	a.mu.Unlock()

	// Test transport connection (non-fatal)
	if a.transportRedis != nil {
		if err := a.transportRedis.Ping(ctx).Err(); err != nil {
			a.logger.Warn("Failed to connect to transport Redis, will retry every cycle", "error", err)
		}
	}

	attrs := []any{
		"service", a.config.Service,
		"node", a.nodeID,
		"interval", interval,
	}
	if a.redisSink != nil {
		attrs = append(attrs, "gauges_key", a.redisSink.Key())
	}
	a.logger.Info("Quasar RabbitMQ agent started", attrs...)

	a.Collect(ctx)

	a.wg.Add(1)
	go a.collectLoop(ctx, interval)

	return nil
}

// Stop gracefully stops the agent
func (a *Agent) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	close(a.stopChan)

	// Wait for goroutines
	a.wg.Wait()

	// Close Redis connection
	if a.transportRedis != nil {
		if err := a.transportRedis.Close(); err != nil {
			a.logger.Error("Failed to close transport Redis", "error", err)
		}
	}

	a.logger.Info("Quasar RabbitMQ agent stopped")
	return nil
}

// NodeID returns the node identifier used in published keys
func (a *Agent) NodeID() string {
	return a.nodeID
}

// Config returns the configuration of the next cycle
func (a *Agent) Config() config.Config {
	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()
	return a.collector.Config()
}

// Reconfigure swaps the tool paths and verbosity used by later cycles.
// It waits for an in-flight cycle to finish. Transport settings and the
// interval are fixed at New.
func (a *Agent) Reconfigure(cfg *config.Config) error {
	resolved, err := a.resolveConfig(cfg)
	if err != nil {
		return err
	}

	c := a.newCollector(resolved)

	a.cycleMu.Lock()
	a.collector = c
	a.setLevel(resolved.Verbose)
	a.cycleMu.Unlock()

	a.logger.Info("Configuration reloaded", "verbose", resolved.Verbose)
	return nil
}

// Collect runs one full cycle. A failed cycle logs a single error and
// dispatches nothing; the next cycle starts from scratch.
func (a *Agent) Collect(ctx context.Context) (*types.Snapshot, error) {
	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()

	snap, err := a.collector.Run(ctx, a.dispatcher)
	switch {
	case err != nil && snap == nil:
		a.logger.Error("No information received - very bad.", "plugin", types.PluginName, "error", err)
	case err != nil:
		a.logger.Error("Dispatch failed", "plugin", types.PluginName, "error", err)
	}

	a.publishHeartbeat(ctx, snap, err)
	return snap, err
}

func (a *Agent) collectLoop(ctx context.Context, interval time.Duration) {
	defer a.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Collect(ctx)
		}
	}
}

// publishHeartbeat writes the node summary to the transport Redis, if any.
// Failures here never fail the cycle.
func (a *Agent) publishHeartbeat(ctx context.Context, snap *types.Snapshot, cycleErr error) {
	if a.transportRedis == nil {
		return
	}

	payload := types.HeartbeatPayload{
		ID:       a.nodeID,
		Service:  a.config.Service,
		Plugin:   types.PluginName,
		Hostname: a.hostInfo.Hostname,
		Platform: a.hostInfo.Platform,
		Runtime: types.RuntimeInfo{
			Uptime:    time.Since(a.startTime).Seconds(),
			Framework: "Quasar",
			Status:    statusOK,
		},
		Timestamp: time.Now().UnixMilli(),
	}

	if cycleErr != nil {
		payload.Runtime.Status = statusFail
		payload.Runtime.Errors = []string{cycleErr.Error()}
	}

	if snap != nil {
		payload.Stats = snap.Values()
		payload.BrokerPID = snap.BrokerPID()

		if name, err := a.hostProbe.ProcessName(snap.BrokerPID()); err == nil {
			payload.Meta = map[string]interface{}{"brokerProcess": name}
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		a.logger.Warn("Failed to marshal heartbeat", "error", err)
		return
	}

	key := keyPrefix + a.config.Service + ":" + a.nodeID
	if err := a.transportRedis.Set(ctx, key, data, a.keyTTL()).Err(); err != nil {
		a.logger.Warn("Failed to send heartbeat", "error", err)
		return
	}

	a.logger.Debug("Heartbeat sent", "key", key, "status", payload.Runtime.Status)
}
