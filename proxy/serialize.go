package proxy

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("proxy: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// envelope is the serialized form of a proxied value.
type envelope struct {
	Env   string `cbor:"1,keyasint"`
	Class string `cbor:"2,keyasint"`
	Value any    `cbor:"3,keyasint"`
}

// Serialize encodes the Go value of p together with its environment and
// class name. Only values with a CBOR representation can be serialized;
// references to live native objects cannot.
func (e *Environment) Serialize(p Proxy) ([]byte, error) {
	v, err := e.ToGo(p)
	if err != nil {
		return nil, err
	}
	data, err := cborEncMode.Marshal(envelope{Env: e.name, Class: p.ClassName(), Value: v})
	if err != nil {
		return nil, fmt.Errorf("proxy: serialize %s: %w", p.ClassName(), err)
	}
	return data, nil
}

// Deserialize decodes data produced by Serialize, in this or any other
// environment, and converts the value into e.
func (e *Environment) Deserialize(data []byte) (Proxy, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return Proxy{}, fmt.Errorf("proxy: deserialize: %w", err)
	}
	return e.Convert(env.Value)
}
