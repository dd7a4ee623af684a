// Package collector runs one RabbitMQ statistics cycle:
// rabbitmqctl, then pidof, then pmap, merged into a single snapshot.
package collector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gravito-framework/quasar-rmq/pkg/commands"
	"github.com/gravito-framework/quasar-rmq/pkg/config"
	"github.com/gravito-framework/quasar-rmq/pkg/dispatch"
	"github.com/gravito-framework/quasar-rmq/pkg/probes"
	"github.com/gravito-framework/quasar-rmq/pkg/types"
)

// Collector gathers a Snapshot by running the external tools in sequence.
// Its configuration is a private copy and never changes after New.
type Collector struct {
	cfg    config.Config
	runner commands.Runner
	logger *slog.Logger
}

// Option is a functional option for configuring the Collector
type Option func(*Collector)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// WithRunner replaces the os/exec runner
func WithRunner(runner commands.Runner) Option {
	return func(c *Collector) {
		c.runner = runner
	}
}

// New creates a Collector for cfg
func New(cfg config.Config, opts ...Option) *Collector {
	cfg.Options = append([]config.Option(nil), cfg.Options...)

	c := &Collector{
		cfg:    cfg,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.runner == nil {
		c.runner = commands.NewExecRunner(cfg.Timeout)
	}

	return c
}

// Config returns the configuration this collector was built with
func (c *Collector) Config() config.Config {
	return c.cfg
}

// Collect runs one cycle and returns a complete snapshot, or a *StepError
// and no snapshot. Warnings are logged; errors are left to the caller.
func (c *Collector) Collect(ctx context.Context) (snap *types.Snapshot, err error) {
	state := StateIdle

	defer func() {
		if r := recover(); r != nil {
			snap = nil
			err = &StepError{Step: state, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	state = c.transition(state, StateQueryingQueues)
	queues, err := c.queryQueues(ctx)
	if err != nil {
		return nil, &StepError{Step: state, Err: err}
	}

	state = c.transition(state, StateQueryingPID)
	pid, err := c.queryPID(ctx)
	if err != nil {
		return nil, &StepError{Step: state, Err: err}
	}

	state = c.transition(state, StateQueryingMemory)
	mem, err := c.queryMemory(ctx, pid)
	if err != nil {
		return nil, &StepError{Step: state, Err: err}
	}

	state = c.transition(state, StateMerged)
	snap = types.NewSnapshot(queues, mem)

	c.verbose(fmt.Sprintf("[rmqctl] Messages: %d, Memory: %d, Consumers: %d",
		queues.Totals.Messages, queues.Totals.Memory, queues.Totals.Consumers))
	c.verbose(fmt.Sprintf("[pmap] Mapped: %d, Used: %d, Shared: %d",
		mem.MappedKB, mem.UsedKB, mem.SharedKB))

	return snap, nil
}

// Run collects a snapshot and hands it to d. Nothing is dispatched when
// collection fails.
func (c *Collector) Run(ctx context.Context, d dispatch.Dispatcher) (*types.Snapshot, error) {
	snap, err := c.Collect(ctx)
	if err != nil {
		c.verbose("Cycle aborted", "state", StateAborted.String())
		return nil, err
	}

	c.verbose("About to trigger the dispatch..", "gauges", snap.Len())

	if err := d.Dispatch(ctx, snap, c.dispatchLogger()); err != nil {
		return snap, fmt.Errorf("dispatch failed: %w", err)
	}

	c.verbose("Cycle complete", "state", StateDispatched.String())
	return snap, nil
}

func (c *Collector) queryQueues(ctx context.Context) (types.QueueStats, error) {
	out, err := c.runner.Run(ctx, c.cfg.RmqctlBin, probes.QueueListArgs...)
	if err != nil {
		return types.QueueStats{}, err
	}

	// rabbitmqctl prints an error text on failure, which would parse as zero queues
	if out.ExitCode != 0 {
		return types.QueueStats{}, &probes.MalformedOutputError{
			Tool:   c.cfg.RmqctlBin,
			Reason: fmt.Sprintf("exit status %d", out.ExitCode),
			Output: out.Text(),
		}
	}

	stats, rejected := probes.ParseQueueList(out.Lines)
	for _, lineErr := range rejected {
		c.logger.Warn("Skipping queue line", "plugin", types.PluginName, "error", lineErr)
	}

	// total_* keys belong to the aggregates
	for _, q := range stats.Queues {
		if q.Name == "total" {
			c.logger.Warn("Queue named total is shadowed by the aggregate gauges", "plugin", types.PluginName)
		}
	}

	if stats.Totals.Memory <= 0 {
		c.logger.Warn(fmt.Sprintf("%s reports 0 memory usage. This is probably incorrect.", c.cfg.RmqctlBin),
			"plugin", types.PluginName)
	}

	return stats, nil
}

func (c *Collector) queryPID(ctx context.Context) (int32, error) {
	out, err := c.runner.Run(ctx, c.cfg.PidofBin, c.cfg.BrokerProcess)
	if err != nil {
		return 0, err
	}

	// pidof exits 1 when nothing matches; the empty output says the same
	pid, err := probes.ParsePID(out.Lines)
	if err != nil {
		return 0, err
	}

	c.verbose("Found broker process", "process", c.cfg.BrokerProcess, "pid", pid)
	return pid, nil
}

func (c *Collector) queryMemory(ctx context.Context, pid int32) (types.ProcessMemoryStats, error) {
	out, err := c.runner.Run(ctx, c.cfg.PmapBin, probes.PmapArgs(pid)...)
	if err != nil {
		return types.ProcessMemoryStats{}, err
	}

	mem, err := probes.ParseMemoryMap(out.Lines)
	if err != nil {
		return types.ProcessMemoryStats{}, err
	}
	mem.PID = pid
	return mem, nil
}

func (c *Collector) transition(from, to State) State {
	c.verbose("Collection step", "from", from.String(), "to", to.String())
	return to
}

// verbose logs at info level only when Verbose is enabled
func (c *Collector) verbose(msg string, args ...any) {
	if !c.cfg.Verbose {
		return
	}
	c.logger.Info(msg, append([]any{"plugin", types.PluginName}, args...)...)
}

// dispatchLogger is the logger handed to the dispatcher. Per-gauge lines are
// info level, so a quiet collector gets a logger that drops them.
func (c *Collector) dispatchLogger() *slog.Logger {
	if c.cfg.Verbose {
		return c.logger.With("plugin", types.PluginName)
	}
	return slog.New(levelFilter{Handler: c.logger.Handler(), min: slog.LevelWarn})
}

// levelFilter drops records below min
type levelFilter struct {
	slog.Handler
	min slog.Level
}

func (h levelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.Handler.Enabled(ctx, level)
}

func (h levelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelFilter{Handler: h.Handler.WithAttrs(attrs), min: h.min}
}

func (h levelFilter) WithGroup(name string) slog.Handler {
	return levelFilter{Handler: h.Handler.WithGroup(name), min: h.min}
}
