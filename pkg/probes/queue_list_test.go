package probes

import (
	"testing"
)

func TestParseQueueList(t *testing.T) {
	lines := []string{
		"orders\t10\t2048\t1",
		"returns 0 512 0",
		"",
		"audit 7 1000 3",
	}

	stats, rejected := ParseQueueList(lines)

	if len(rejected) != 0 {
		t.Fatalf("Expected no rejected lines, got %v", rejected)
	}
	if len(stats.Queues) != 3 {
		t.Fatalf("Expected 3 queues, got %d", len(stats.Queues))
	}

	first := stats.Queues[0]
	if first.Name != "orders" || first.Messages != 10 || first.Memory != 2048 || first.Consumers != 1 {
		t.Errorf("Unexpected first record %+v", first)
	}

	if stats.Totals.Messages != 17 {
		t.Errorf("Expected total messages 17, got %d", stats.Totals.Messages)
	}
	if stats.Totals.Memory != 3560 {
		t.Errorf("Expected total memory 3560, got %d", stats.Totals.Memory)
	}
	if stats.Totals.Consumers != 4 {
		t.Errorf("Expected total consumers 4, got %d", stats.Totals.Consumers)
	}
}

func TestParseQueueListSkipsMalformedLines(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "orders 10 2048"},
		{"non-numeric messages", "orders ten 2048 1"},
		{"non-numeric memory", "orders 10 2k 1"},
		{"non-numeric consumers", "orders 10 2048 one"},
		{"fractional", "orders 10 2048.5 1"},
		{"negative", "orders -1 2048 1"},
		{"header row", "name messages memory consumers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := []string{"good 1 100 1", tt.line, "after 2 200 2"}

			stats, rejected := ParseQueueList(lines)

			if len(rejected) != 1 {
				t.Fatalf("Expected 1 rejected line, got %d", len(rejected))
			}
			if rejected[0].Line != 2 {
				t.Errorf("Expected rejected line 2, got %d", rejected[0].Line)
			}
			if rejected[0].Text != tt.line {
				t.Errorf("Expected rejected text %q, got %q", tt.line, rejected[0].Text)
			}

			if len(stats.Queues) != 2 {
				t.Fatalf("Expected 2 queues, got %d", len(stats.Queues))
			}
			if stats.Queues[1].Name != "after" {
				t.Errorf("Expected parsing to continue after bad line, got %s", stats.Queues[1].Name)
			}
			if stats.Totals.Messages != 3 || stats.Totals.Memory != 300 || stats.Totals.Consumers != 3 {
				t.Errorf("Bad line leaked into totals: %+v", stats.Totals)
			}
		})
	}
}

func TestParseQueueListEmpty(t *testing.T) {
	stats, rejected := ParseQueueList(nil)

	if len(rejected) != 0 {
		t.Errorf("Expected no rejected lines, got %d", len(rejected))
	}
	if len(stats.Queues) != 0 {
		t.Errorf("Expected no queues, got %d", len(stats.Queues))
	}
	if stats.Totals.Memory != 0 {
		t.Errorf("Expected zero memory, got %d", stats.Totals.Memory)
	}
}

func TestParseQueueListNameWithSpaces(t *testing.T) {
	stats, rejected := ParseQueueList([]string{"my queue 4 64 2"})

	if len(rejected) != 0 {
		t.Fatalf("Expected no rejected lines, got %v", rejected)
	}
	if stats.Queues[0].Name != "my queue" {
		t.Errorf("Expected name %q, got %q", "my queue", stats.Queues[0].Name)
	}
}

func TestParseQueueListTotalsMatchSum(t *testing.T) {
	lines := []string{
		"a 1 10 0",
		"b 2 20 1",
		"bad",
		"c 3 30 2",
		"d x 40 3",
		"e 5 50 4",
	}

	stats, _ := ParseQueueList(lines)

	var messages, memory, consumers int64
	for _, q := range stats.Queues {
		messages += q.Messages
		memory += q.Memory
		consumers += q.Consumers
	}

	if stats.Totals.Messages != messages || stats.Totals.Memory != memory || stats.Totals.Consumers != consumers {
		t.Errorf("Totals %+v do not match per-queue sums %d/%d/%d", stats.Totals, messages, memory, consumers)
	}
}
