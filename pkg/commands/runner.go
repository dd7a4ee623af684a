// Package commands runs the external diagnostic tools the agent depends on.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrSpawnFailure marks a command that could not be started or did not finish in time
var ErrSpawnFailure = errors.New("spawn failure")

// waitDelay bounds how long Run waits for output pipes after the process is killed
const waitDelay = time.Second

// Output is the merged stdout/stderr of a finished command
type Output struct {
	Lines    []string
	ExitCode int
}

// Text returns the output joined back into one string
func (o *Output) Text() string {
	return strings.Join(o.Lines, "\n")
}

// Runner executes an external program with a discrete argument vector.
// A non-zero exit status is not an error; callers decide what it means.
type Runner interface {
	Run(ctx context.Context, path string, args ...string) (*Output, error)
}

// ExecRunner implements Runner using os/exec
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner creates a runner that kills commands running longer than timeout
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

// Run starts path without a shell and waits for it to exit
func (r *ExecRunner) Run(ctx context.Context, path string, args ...string) (*Output, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = waitDelay

	raw, err := cmd.CombinedOutput()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &SpawnError{Path: path, Err: ctxErr}
	}

	out := &Output{Lines: SplitLines(string(raw))}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return nil, &SpawnError{Path: path, Err: err}
	}

	return out, nil
}

// SplitLines splits command output into lines, dropping the trailing newline
// and any carriage returns.
func SplitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// SpawnError is returned when a command cannot be run to completion
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to run %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Is reports SpawnError as ErrSpawnFailure
func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawnFailure
}

// Ensure ExecRunner implements Runner
var _ Runner = (*ExecRunner)(nil)
