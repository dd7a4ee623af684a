package dispatch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/gravito-framework/quasar-rmq/pkg/types"
)

type recordingSink struct {
	gauges  []Gauge
	begun   int
	flushed int
	failOn  string
}

func (s *recordingSink) Gauge(ctx context.Context, g Gauge) error {
	if g.TypeInstance == s.failOn {
		return errors.New("boom")
	}
	s.gauges = append(s.gauges, g)
	return nil
}

func (s *recordingSink) Begin(ctx context.Context) error {
	s.begun++
	return nil
}

func (s *recordingSink) Flush(ctx context.Context) error {
	s.flushed++
	return nil
}

func testSnapshot() *types.Snapshot {
	return types.NewSnapshot(
		types.QueueStats{
			Queues: []types.QueueRecord{{Name: "orders", Messages: 10, Memory: 2048, Consumers: 1}},
			Totals: types.AggregateTotals{Messages: 10, Memory: 2048, Consumers: 1},
		},
		types.ProcessMemoryStats{MappedKB: 500, UsedKB: 300, SharedKB: 100},
	)
}

func TestGaugeDispatcherEmitsEveryKey(t *testing.T) {
	sink := &recordingSink{}
	d := NewGaugeDispatcher(types.PluginName, sink)
	snap := testSnapshot()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	if err := d.Dispatch(context.Background(), snap, logger); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(sink.gauges) != snap.Len() {
		t.Fatalf("Expected %d gauges, got %d", snap.Len(), len(sink.gauges))
	}

	for _, g := range sink.gauges {
		if g.Plugin != types.PluginName {
			t.Errorf("Expected plugin %s, got %s", types.PluginName, g.Plugin)
		}
		if g.Type != GaugeType {
			t.Errorf("Expected type gauge, got %s", g.Type)
		}
		want, _ := snap.Get(g.TypeInstance)
		if g.Value != want {
			t.Errorf("Gauge %s: expected %d, got %d", g.TypeInstance, want, g.Value)
		}
	}

	if sink.begun != 1 || sink.flushed != 1 {
		t.Errorf("Expected one Begin and one Flush, got %d/%d", sink.begun, sink.flushed)
	}

	if !strings.Contains(buf.String(), "Dispatching orders_messages : 10") {
		t.Errorf("Expected per-gauge log line, got %s", buf.String())
	}
}

func TestGaugeDispatcherIsolatesFailingSink(t *testing.T) {
	bad := &recordingSink{failOn: "orders_memory"}
	good := &recordingSink{}
	d := NewGaugeDispatcher(types.PluginName, bad, good)
	snap := testSnapshot()

	err := d.Dispatch(context.Background(), snap, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err == nil {
		t.Fatal("Expected an error from the failing sink")
	}

	if len(good.gauges) != snap.Len() {
		t.Errorf("Expected healthy sink to get %d gauges, got %d", snap.Len(), len(good.gauges))
	}
	if good.flushed != 1 {
		t.Errorf("Expected healthy sink to be flushed")
	}
	if bad.flushed != 0 {
		t.Errorf("Expected failing sink not to be flushed")
	}
}

func TestGaugeDispatcherNilSnapshot(t *testing.T) {
	d := NewGaugeDispatcher(types.PluginName)
	if err := d.Dispatch(context.Background(), nil, nil); err == nil {
		t.Error("Expected error for nil snapshot")
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(&buf)

	err := sink.Gauge(context.Background(), Gauge{Plugin: "rabbitmq_info", Type: GaugeType, TypeInstance: "total_memory", Value: 42})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "type_instance=total_memory") || !strings.Contains(out, "value=42") {
		t.Errorf("Unexpected log output %s", out)
	}
}
