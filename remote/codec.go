package remote

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// CodecName is the content subtype the service is served under.
const CodecName = "cbor"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("remote: failed to create CBOR enc mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("remote: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm
}

// Codec carries the service messages as CBOR. Free-form values decode
// with string-keyed maps, unsigned integers as uint64 and negative ones
// as int64.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
