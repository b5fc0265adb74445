package proxy

import (
	"errors"
	"fmt"
)

// NullProxyError is returned by every Proxy operation other than IsNull
// when the receiver is the null Proxy.
type NullProxyError struct {
	Op string
}

func (e *NullProxyError) Error() string {
	return fmt.Sprintf("proxy: %s on null proxy", e.Op)
}

// DispatchError reports a method the native object does not support, or a
// native method that failed. Err is the native failure, if any.
type DispatchError struct {
	Class  string
	Method string
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("proxy: unknown method: %s %s", e.Class, e.Method)
	}
	return fmt.Sprintf("proxy: %s %s: %v", e.Class, e.Method, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// NullConversionAmbiguity is returned when a backend produces no handle for a
// value. Backends are required to wrap nil as a non-null "none" proxy, so
// seeing this error means the backend broke that contract.
type NullConversionAmbiguity struct {
	Env   string
	Value any
}

func (e *NullConversionAmbiguity) Error() string {
	return fmt.Sprintf("proxy: environment %q produced a null proxy for %T", e.Env, e.Value)
}

// ErrUnknownEnvironment is returned by Registry.Find for a name with no
// registered factory.
var ErrUnknownEnvironment = errors.New("proxy: unknown environment")

// ErrNoField is wrapped by backends when a "get:" or "set:" accessor names
// a field the native object does not have.
var ErrNoField = errors.New("no such field")

// IsUnknownMethod reports whether err is a DispatchError for a method the
// native object does not have at all (as opposed to one that failed).
func IsUnknownMethod(err error) bool {
	var de *DispatchError
	return errors.As(err, &de) && de.Err == nil
}
