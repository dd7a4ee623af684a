package dispatch

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/gravito-framework/quasar-rmq/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg, types.PluginName)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	d := NewGaugeDispatcher(types.PluginName, sink)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := d.Dispatch(context.Background(), testSnapshot(), logger); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got := testutil.ToFloat64(sink.vec.WithLabelValues("orders_memory")); got != 2048 {
		t.Errorf("Expected orders_memory 2048, got %v", got)
	}
	if n := testutil.CollectAndCount(sink.vec); n != 9 {
		t.Errorf("Expected 9 series, got %d", n)
	}

	// Queue disappears on the next cycle
	empty := types.NewSnapshot(types.QueueStats{}, types.ProcessMemoryStats{})
	if err := d.Dispatch(context.Background(), empty, logger); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if n := testutil.CollectAndCount(sink.vec); n != 6 {
		t.Errorf("Expected 6 series after queue removal, got %d", n)
	}
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusSink(reg, types.PluginName); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := NewPrometheusSink(reg, types.PluginName); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestPrometheusSinkUpdatesSeriesInPlace(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg, types.PluginName)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	d := NewGaugeDispatcher(types.PluginName, sink)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if err := d.Dispatch(context.Background(), testSnapshot(), logger); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// A series that survives the next snapshot must keep its identity. A vector
	// reset would detach this child and leave it holding the old value.
	total := sink.vec.WithLabelValues(types.KeyTotalMemory)

	next := types.NewSnapshot(
		types.QueueStats{
			Queues: []types.QueueRecord{{Name: "invoices", Messages: 1, Memory: 4096, Consumers: 2}},
			Totals: types.AggregateTotals{Messages: 1, Memory: 4096, Consumers: 2},
		},
		types.ProcessMemoryStats{MappedKB: 600, UsedKB: 400, SharedKB: 200},
	)
	if err := d.Dispatch(context.Background(), next, logger); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got := testutil.ToFloat64(total); got != 4096 {
		t.Errorf("Expected total_memory 4096 on the existing series, got %v", got)
	}
	if n := testutil.CollectAndCount(sink.vec); n != 9 {
		t.Errorf("Expected 9 series, got %d", n)
	}
	if sink.vec.DeleteLabelValues("orders_memory") {
		t.Error("Expected orders_memory to be removed by the flush")
	}
	if got := testutil.ToFloat64(sink.vec.WithLabelValues("invoices_consumers")); got != 2 {
		t.Errorf("Expected invoices_consumers 2, got %v", got)
	}
}
