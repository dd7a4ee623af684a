package commands

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func lookPath(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func TestExecRunnerMergesOutput(t *testing.T) {
	sh := lookPath(t, "sh")
	r := NewExecRunner(5 * time.Second)

	out, err := r.Run(context.Background(), sh, "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(out.Lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %q", len(out.Lines), out.Lines)
	}
	if out.Lines[0] != "out" || out.Lines[1] != "err" {
		t.Errorf("Unexpected lines %q", out.Lines)
	}
	if out.ExitCode != 0 {
		t.Errorf("Expected exit code 0, got %d", out.ExitCode)
	}
}

func TestExecRunnerNoShellInterpretation(t *testing.T) {
	echo := lookPath(t, "echo")
	r := NewExecRunner(5 * time.Second)

	arg := "a; echo injected $HOME"
	out, err := r.Run(context.Background(), echo, arg)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(out.Lines) != 1 || out.Lines[0] != arg {
		t.Errorf("Expected argument echoed verbatim, got %q", out.Lines)
	}
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	sh := lookPath(t, "sh")
	r := NewExecRunner(5 * time.Second)

	out, err := r.Run(context.Background(), sh, "-c", "echo oops; exit 3")
	if err != nil {
		t.Fatalf("Expected non-zero exit to be reported in Output, got %v", err)
	}
	if out.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", out.ExitCode)
	}
	if out.Text() != "oops" {
		t.Errorf("Expected output oops, got %q", out.Text())
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := NewExecRunner(time.Second)

	_, err := r.Run(context.Background(), "/nonexistent/quasar-test-binary")
	if !errors.Is(err, ErrSpawnFailure) {
		t.Fatalf("Expected ErrSpawnFailure, got %v", err)
	}

	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("Expected *SpawnError, got %T", err)
	}
	if spawnErr.Path != "/nonexistent/quasar-test-binary" {
		t.Errorf("Expected path in error, got %s", spawnErr.Path)
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	sleep := lookPath(t, "sleep")
	r := NewExecRunner(100 * time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), sleep, "10")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrSpawnFailure) {
		t.Fatalf("Expected ErrSpawnFailure, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("Run did not honour the timeout, took %v", elapsed)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"only newline", "\n", nil},
		{"single line", "1234\n", []string{"1234"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SplitLines(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("Expected %d lines, got %d: %q", len(tt.expected), len(result), result)
			}
			for i := range tt.expected {
				if result[i] != tt.expected[i] {
					t.Errorf("Line %d: expected %q, got %q", i, tt.expected[i], result[i])
				}
			}
		})
	}
}
