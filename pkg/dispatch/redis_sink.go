package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gravito:quasar:rabbitmq:"

// RedisSink stores the latest snapshot as a hash, one field per gauge.
// Each snapshot replaces the previous one in a single MULTI/EXEC.
type RedisSink struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu   sync.Mutex
	pipe redis.Pipeliner
}

// NewRedisSink creates a sink writing to gravito:quasar:rabbitmq:<service>:<node>
func NewRedisSink(client *redis.Client, service, nodeID string, ttl time.Duration) *RedisSink {
	return &RedisSink{
		client: client,
		key:    RedisKey(service, nodeID),
		ttl:    ttl,
	}
}

// RedisKey returns the hash key used for a node's gauges
func RedisKey(service, nodeID string) string {
	return redisKeyPrefix + service + ":" + nodeID
}

// Key returns the hash key this sink writes to
func (s *RedisSink) Key() string {
	return s.key
}

// Begin starts a new snapshot transaction
func (s *RedisSink) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pipe = s.client.TxPipeline()
	s.pipe.Del(ctx, s.key)
	return nil
}

// Gauge queues one hash field; Flush commits it
func (s *RedisSink) Gauge(ctx context.Context, g Gauge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipe == nil {
		return fmt.Errorf("redis sink: Gauge called before Begin")
	}
	s.pipe.HSet(ctx, s.key, g.TypeInstance, g.Value)
	return nil
}

// Flush commits the queued gauges and refreshes the key TTL
func (s *RedisSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipe == nil {
		return nil
	}
	pipe := s.pipe
	s.pipe = nil

	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write gauges: %w", err)
	}
	return nil
}

var (
	_ Sink    = (*RedisSink)(nil)
	_ Batcher = (*RedisSink)(nil)
)
