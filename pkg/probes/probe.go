// Package probes turns raw diagnostic tool output into typed statistics.
//
// Every parser takes the lines printed by one tool and knows nothing about how
// the tool was run. Format assumptions about rabbitmqctl, pidof and pmap live
// here and nowhere else.
package probes

import (
	"errors"
	"fmt"

	"github.com/gravito-framework/quasar-rmq/pkg/types"
)

// ErrMalformedOutput marks tool output that does not have the expected shape
var ErrMalformedOutput = errors.New("malformed output")

// MalformedOutputError describes output a parser had to reject
type MalformedOutputError struct {
	Tool   string
	Reason string
	Output string
}

func (e *MalformedOutputError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s returned something strange: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("%s returned something strange: %s (output %q)", e.Tool, e.Reason, e.Output)
}

// Is reports MalformedOutputError as ErrMalformedOutput
func (e *MalformedOutputError) Is(target error) bool {
	return target == ErrMalformedOutput
}

// HostProbe describes the machine and processes around the broker
type HostProbe interface {
	HostInfo() (*types.HostInfo, error)
	ProcessName(pid int32) (string, error)
}
