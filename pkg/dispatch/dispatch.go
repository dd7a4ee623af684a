// Package dispatch ships finished snapshots to metric sinks, one gauge per key.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gravito-framework/quasar-rmq/pkg/types"
)

// GaugeType is the value type of every emitted metric
const GaugeType = "gauge"

// Dispatcher receives a finished snapshot
type Dispatcher interface {
	Dispatch(ctx context.Context, snap *types.Snapshot, logger *slog.Logger) error
}

// Gauge is a single point-in-time integer metric
type Gauge struct {
	Plugin       string
	Type         string
	TypeInstance string
	Value        int64
}

// Sink accepts gauges one at a time
type Sink interface {
	Gauge(ctx context.Context, g Gauge) error
}

// Batcher is implemented by sinks that buffer a snapshot and commit it at once
type Batcher interface {
	Begin(ctx context.Context) error
	Flush(ctx context.Context) error
}

// GaugeDispatcher fans every snapshot key out to its sinks as a gauge
type GaugeDispatcher struct {
	plugin string
	sinks  []Sink
}

// NewGaugeDispatcher creates a dispatcher tagging gauges with plugin
func NewGaugeDispatcher(plugin string, sinks ...Sink) *GaugeDispatcher {
	return &GaugeDispatcher{
		plugin: plugin,
		sinks:  sinks,
	}
}

// Dispatch emits one gauge per key to every sink. A failing sink does not
// stop the others; all errors are returned joined.
func (d *GaugeDispatcher) Dispatch(ctx context.Context, snap *types.Snapshot, logger *slog.Logger) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	failed := make([]bool, len(d.sinks))

	for i, sink := range d.sinks {
		if b, ok := sink.(Batcher); ok {
			if err := b.Begin(ctx); err != nil {
				failed[i] = true
				errs = append(errs, fmt.Errorf("sink %d: begin: %w", i, err))
			}
		}
	}

	for _, key := range snap.Keys() {
		value, _ := snap.Get(key)
		logger.Info(fmt.Sprintf("Dispatching %s : %d", key, value))

		g := Gauge{
			Plugin:       d.plugin,
			Type:         GaugeType,
			TypeInstance: key,
			Value:        value,
		}

		for i, sink := range d.sinks {
			if failed[i] {
				continue
			}
			if err := sink.Gauge(ctx, g); err != nil {
				failed[i] = true
				errs = append(errs, fmt.Errorf("sink %d: gauge %s: %w", i, key, err))
			}
		}
	}

	for i, sink := range d.sinks {
		if failed[i] {
			continue
		}
		if b, ok := sink.(Batcher); ok {
			if err := b.Flush(ctx); err != nil {
				errs = append(errs, fmt.Errorf("sink %d: flush: %w", i, err))
			}
		}
	}

	return errors.Join(errs...)
}

// Ensure GaugeDispatcher implements Dispatcher
var _ Dispatcher = (*GaugeDispatcher)(nil)
