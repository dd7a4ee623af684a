package dispatch

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exposes the latest snapshot as a gauge vector labelled by key.
// Series for queues that disappeared are dropped on the next snapshot.
type PrometheusSink struct {
	vec *prometheus.GaugeVec

	mu      sync.Mutex
	pending map[string]int64
	exposed map[string]struct{}
}

// NewPrometheusSink creates the quasar_<plugin> gauge vector and registers it
func NewPrometheusSink(reg prometheus.Registerer, plugin string) (*PrometheusSink, error) {
	vec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   "quasar",
			Name:        plugin,
			Help:        "RabbitMQ queue and broker process statistics",
			ConstLabels: prometheus.Labels{"plugin": plugin},
		},
		[]string{"type_instance"},
	)

	if err := reg.Register(vec); err != nil {
		return nil, err
	}

	return &PrometheusSink{vec: vec, exposed: make(map[string]struct{})}, nil
}

// Begin starts staging a new snapshot
func (s *PrometheusSink) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = make(map[string]int64)
	return nil
}

// Gauge stages one value
func (s *PrometheusSink) Gauge(ctx context.Context, g Gauge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		s.pending = make(map[string]int64)
	}
	s.pending[g.TypeInstance] = g.Value
	return nil
}

// Flush publishes the staged snapshot. New values are set before stale
// series are deleted, so a scrape never sees an empty vector.
func (s *PrometheusSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range s.pending {
		s.vec.WithLabelValues(key).Set(float64(value))
	}

	for key := range s.exposed {
		if _, ok := s.pending[key]; !ok {
			s.vec.DeleteLabelValues(key)
			delete(s.exposed, key)
		}
	}
	for key := range s.pending {
		s.exposed[key] = struct{}{}
	}

	s.pending = nil
	return nil
}

var (
	_ Sink    = (*PrometheusSink)(nil)
	_ Batcher = (*PrometheusSink)(nil)
)
