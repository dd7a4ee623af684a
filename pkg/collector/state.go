package collector

import "fmt"

// State is a step of one collection cycle
type State int

const (
	StateIdle State = iota
	StateQueryingQueues
	StateQueryingPID
	StateQueryingMemory
	StateMerged
	StateDispatched
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQueryingQueues:
		return "querying_queues"
	case StateQueryingPID:
		return "querying_pid"
	case StateQueryingMemory:
		return "querying_memory"
	case StateMerged:
		return "merged"
	case StateDispatched:
		return "dispatched"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StepError aborts a cycle. Step is the state the cycle was in when it failed.
type StepError struct {
	Step State
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
