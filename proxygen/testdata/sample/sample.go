package sample

import (
	"time"

	"github.com/chazu/blockbridge/proxy"
)

// Counter is the call surface of a native counter.
type Counter interface {
	Add(n int) (int, error)
	Reset() error
	Snapshot() (proxy.Proxy, error)
	Touch(at time.Time, _ string) error
	Log(format string, args ...any) error
}

type greeter interface {
	Greet(name string) (string, error)
}

type pair interface {
	Both() (int, int)
}

type notAnInterface struct{}
