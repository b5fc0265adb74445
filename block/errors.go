package block

import "fmt"

// LateSetupError is returned when a port is declared after activation.
type LateSetupError struct {
	Block string
	Port  string
	State State
}

func (e *LateSetupError) Error() string {
	return fmt.Sprintf("block %s: setup of port %q in state %s", e.Block, e.Port, e.State)
}

// UnknownSignalError is returned when emitting a signal that was never
// registered.
type UnknownSignalError struct {
	Block  string
	Signal string
}

func (e *UnknownSignalError) Error() string {
	return fmt.Sprintf("block %s: unknown signal %q", e.Block, e.Signal)
}

// StateError is returned when the engine drives a lifecycle step out of
// order.
type StateError struct {
	Block string
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("block %s: %s in state %s", e.Block, e.Op, e.State)
}

// StaleReferenceError is returned when a back-reference no longer names a
// live block. Callers must treat it as fatal.
type StaleReferenceError struct {
	ID uint64
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("block: stale back-reference %d", e.ID)
}
