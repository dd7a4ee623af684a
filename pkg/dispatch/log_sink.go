package dispatch

import (
	"context"
	"io"
	"log/slog"
)

// LogSink writes gauges as text records to w. Used when no transport is
// configured, so it logs at info level whatever the agent's verbosity.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to w
func NewLogSink(w io.Writer) *LogSink {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &LogSink{logger: slog.New(handler)}
}

// Gauge logs g at info level
func (s *LogSink) Gauge(ctx context.Context, g Gauge) error {
	s.logger.InfoContext(ctx, "gauge",
		"plugin", g.Plugin,
		"type", g.Type,
		"type_instance", g.TypeInstance,
		"value", g.Value,
	)
	return nil
}

var _ Sink = (*LogSink)(nil)
