package port

import "github.com/chazu/blockbridge/proxy"

//go:generate go run ../cmd/proxygen -types nativeInput,nativeOutput,nativeBuffer -output native_gen.go

// nativeInput is the call surface of a native input port.
type nativeInput interface {
	Name() (string, error)
	Index() (int, error)
	Alias() (string, error)
	DType() (string, error)
	Domain() (string, error)
	Elements() (int, error)
	TotalElements() (uint64, error)
	TotalBuffers() (uint64, error)
	TotalLabels() (uint64, error)
	TotalMessages() (uint64, error)
	HasMessage() (bool, error)
	PopMessage() (proxy.Proxy, error)
	Labels() (proxy.Proxy, error)
	RemoveLabel(l proxy.Proxy) error
	Buffer() (proxy.Proxy, error)
	Consume(n int) error
	SetReserve(n int) error
}

// nativeOutput is the call surface of a native output port.
type nativeOutput interface {
	Name() (string, error)
	Index() (int, error)
	Alias() (string, error)
	DType() (string, error)
	Domain() (string, error)
	Elements() (int, error)
	TotalElements() (uint64, error)
	TotalMessages() (uint64, error)
	Buffer() (proxy.Proxy, error)
	Produce(n int) error
	PostLabel(l proxy.Proxy) error
	PostMessage(msg any) error
	PostBuffer(address uintptr, length int) error
}

// nativeBuffer describes the memory window a port exposes for one work
// call. Length is in bytes.
type nativeBuffer interface {
	Address() (uintptr, error)
	Length() (int, error)
}
