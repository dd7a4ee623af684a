package probes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gravito-framework/quasar-rmq/pkg/types"
)

// QueueListArgs selects the columns ParseQueueList expects, in order
var QueueListArgs = []string{"-q", "list_queues", "name", "messages", "memory", "consumers"}

// QueueLineError is a single rejected queue listing line.
// It never aborts the parse.
type QueueLineError struct {
	Line   int // 1-based
	Text   string
	Reason string
}

func (e *QueueLineError) Error() string {
	return fmt.Sprintf("queue line %d skipped: %s (%q)", e.Line, e.Reason, e.Text)
}

// ParseQueueList parses "name messages memory consumers" rows.
// Rows that cannot be parsed are returned as errors and left out of both the
// per-queue records and the totals.
func ParseQueueList(lines []string) (types.QueueStats, []*QueueLineError) {
	stats := types.QueueStats{Queues: []types.QueueRecord{}}
	var rejected []*QueueLineError

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		record, reason := parseQueueLine(line)
		if reason != "" {
			rejected = append(rejected, &QueueLineError{Line: i + 1, Text: line, Reason: reason})
			continue
		}

		stats.Queues = append(stats.Queues, record)
		stats.Totals.Add(record)
	}

	return stats, rejected
}

func parseQueueLine(line string) (types.QueueRecord, string) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return types.QueueRecord{}, fmt.Sprintf("expected 4 fields, got %d", len(fields))
	}

	// Names with embedded spaces keep everything before the three counters
	n := len(fields)
	name := strings.Join(fields[:n-3], " ")

	var counters [3]int64
	for i, field := range fields[n-3:] {
		v, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return types.QueueRecord{}, fmt.Sprintf("field %q is not an integer", field)
		}
		if v < 0 {
			return types.QueueRecord{}, fmt.Sprintf("field %q is negative", field)
		}
		counters[i] = v
	}

	return types.QueueRecord{
		Name:      name,
		Messages:  counters[0],
		Memory:    counters[1],
		Consumers: counters[2],
	}, ""
}
