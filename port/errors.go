package port

import (
	"fmt"

	"github.com/chazu/blockbridge/label"
)

// UnderflowError is returned when a block consumes more elements than the
// input port holds.
type UnderflowError struct {
	Port      string
	Requested int
	Available int
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("port %s: consume %d elements, %d available", e.Port, e.Requested, e.Available)
}

// OverflowError is returned when a block produces more elements than the
// output buffer can hold.
type OverflowError struct {
	Port      string
	Requested int
	Available int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("port %s: produce %d elements, room for %d", e.Port, e.Requested, e.Available)
}

// InvalidLabelSourceError is returned by RemoveLabel for a label that was
// not read from a native port.
type InvalidLabelSourceError struct {
	Port   string
	Label  label.Label
	Reason string
}

func (e *InvalidLabelSourceError) Error() string {
	return fmt.Sprintf("port %s: cannot remove %s: %s", e.Port, e.Label, e.Reason)
}

// NotImplementedError marks a boundary operation the native side does not
// provide.
type NotImplementedError struct {
	Port string
	Op   string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("port %s: %s is not implemented by the native port", e.Port, e.Op)
}
