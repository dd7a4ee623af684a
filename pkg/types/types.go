// Package types defines shared types for the Quasar RabbitMQ agent.
package types

import (
	"sort"
	"strconv"
)

// PluginName identifies every gauge emitted by this agent
const PluginName = "rabbitmq_info"

// Snapshot keys that are always present
const (
	KeyTotalMessages  = "total_messages"
	KeyTotalMemory    = "total_memory"
	KeyTotalConsumers = "total_consumers"
	KeyPmapMapped     = "pmap_mapped"
	KeyPmapUsed       = "pmap_used"
	KeyPmapShared     = "pmap_shared"
)

// QueueRecord is one row of the rabbitmqctl queue listing
type QueueRecord struct {
	Name      string `json:"name"`
	Messages  int64  `json:"messages"`
	Memory    int64  `json:"memory"` // bytes
	Consumers int64  `json:"consumers"`
}

// AggregateTotals sums every QueueRecord of one cycle
type AggregateTotals struct {
	Messages  int64 `json:"messages"`
	Memory    int64 `json:"memory"`
	Consumers int64 `json:"consumers"`
}

// Add folds a queue record into the totals
func (t *AggregateTotals) Add(q QueueRecord) {
	t.Messages += q.Messages
	t.Memory += q.Memory
	t.Consumers += q.Consumers
}

// QueueStats is the parsed queue listing
type QueueStats struct {
	Queues []QueueRecord   `json:"queues"`
	Totals AggregateTotals `json:"totals"`
}

// ProcessMemoryStats is the pmap summary of the broker process, in kB
type ProcessMemoryStats struct {
	PID      int32 `json:"pid,omitempty"`
	MappedKB int64 `json:"mapped"`
	UsedKB   int64 `json:"used"`
	SharedKB int64 `json:"shared"`
}

// Snapshot is the flat result of one collection cycle.
// It is immutable once built; use NewSnapshot to construct one.
type Snapshot struct {
	values    map[string]int64
	brokerPID int32
}

// NewSnapshot merges queue and memory statistics into a snapshot
func NewSnapshot(qs QueueStats, mem ProcessMemoryStats) *Snapshot {
	values := make(map[string]int64, len(qs.Queues)*3+6)

	for _, q := range qs.Queues {
		values[q.Name+"_messages"] = q.Messages
		values[q.Name+"_memory"] = q.Memory
		values[q.Name+"_consumers"] = q.Consumers
	}

	values[KeyTotalMessages] = qs.Totals.Messages
	values[KeyTotalMemory] = qs.Totals.Memory
	values[KeyTotalConsumers] = qs.Totals.Consumers
	values[KeyPmapMapped] = mem.MappedKB
	values[KeyPmapUsed] = mem.UsedKB
	values[KeyPmapShared] = mem.SharedKB

	return &Snapshot{values: values, brokerPID: mem.PID}
}

// BrokerPID returns the process the memory figures were taken from.
// It is metadata and never part of the gauges.
func (s *Snapshot) BrokerPID() int32 {
	return s.brokerPID
}

// Get returns the value stored under key
func (s *Snapshot) Get(key string) (int64, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Len returns the number of gauges in the snapshot
func (s *Snapshot) Len() int {
	return len(s.values)
}

// Keys returns all keys in lexical order
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns a copy of the underlying map
func (s *Snapshot) Values() map[string]int64 {
	out := make(map[string]int64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// String renders the snapshot as sorted key=value pairs
func (s *Snapshot) String() string {
	buf := make([]byte, 0, 32*len(s.values))
	for i, k := range s.Keys() {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, k...)
		buf = append(buf, '=')
		buf = strconv.AppendInt(buf, s.values[k], 10)
	}
	return string(buf)
}

// HostInfo identifies the machine the agent runs on
type HostInfo struct {
	Hostname string  `json:"hostname"`
	Platform string  `json:"platform"`
	Uptime   float64 `json:"uptime"` // seconds
}

// RuntimeInfo contains runtime metadata
type RuntimeInfo struct {
	Uptime    float64  `json:"uptime"`
	Framework string   `json:"framework"`
	Status    string   `json:"status"`           // "online", "degraded", "error"
	Errors    []string `json:"errors,omitempty"` // Failed collection steps
}

// HeartbeatPayload is the node summary published after every cycle
type HeartbeatPayload struct {
	ID        string                 `json:"id"`
	Service   string                 `json:"service"`
	Plugin    string                 `json:"plugin"`
	Hostname  string                 `json:"hostname"`
	Platform  string                 `json:"platform"`
	BrokerPID int32                  `json:"brokerPid,omitempty"`
	Stats     map[string]int64       `json:"stats,omitempty"`
	Runtime   RuntimeInfo            `json:"runtime"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}
