package remote

// ServiceName is the fully qualified name of the environment service.
const ServiceName = "blockbridge.remote.v1.EnvironmentService"

const (
	FindProcedure     = "/" + ServiceName + "/Find"
	MakeProcedure     = "/" + ServiceName + "/Make"
	CallProcedure     = "/" + ServiceName + "/Call"
	CompareProcedure  = "/" + ServiceName + "/Compare"
	DescribeProcedure = "/" + ServiceName + "/Describe"
	ValueProcedure    = "/" + ServiceName + "/Value"
	ReleaseProcedure  = "/" + ServiceName + "/Release"
)

// Arg is one call argument: a reference to an object the server already
// holds, or a plain value for the server to convert.
type Arg struct {
	Handle string `cbor:"1,keyasint,omitempty"`
	Value  any    `cbor:"2,keyasint"`
}

// Object describes a server-side object held under Handle. Two handles
// name the same native object exactly when their ids are equal.
type Object struct {
	Handle  string `cbor:"1,keyasint"`
	Class   string `cbor:"2,keyasint"`
	Display string `cbor:"3,keyasint"`
	Hash    uint64 `cbor:"4,keyasint"`
}

type FindRequest struct {
	Session string `cbor:"1,keyasint"`
	Name    string `cbor:"2,keyasint"`
}

type MakeRequest struct {
	Session string `cbor:"1,keyasint"`
	Value   any    `cbor:"2,keyasint"`
}

type CallRequest struct {
	Session string `cbor:"1,keyasint"`
	Handle  string `cbor:"2,keyasint"`
	Method  string `cbor:"3,keyasint"`
	Args    []Arg  `cbor:"4,keyasint,omitempty"`
}

// CallResponse carries the result object, or Unknown when the receiver
// has no such method, or Error when the method failed.
type CallResponse struct {
	Result  *Object `cbor:"1,keyasint,omitempty"`
	Unknown bool    `cbor:"2,keyasint,omitempty"`
	Error   string  `cbor:"3,keyasint,omitempty"`
}

type CompareRequest struct {
	Session string `cbor:"1,keyasint"`
	Handle  string `cbor:"2,keyasint"`
	Other   Arg    `cbor:"3,keyasint"`
}

type CompareResponse struct {
	Result int `cbor:"1,keyasint"`
}

type DescribeRequest struct {
	Handle string `cbor:"1,keyasint"`
}

type ValueRequest struct {
	Handle string `cbor:"1,keyasint"`
}

type ValueResponse struct {
	Value any `cbor:"1,keyasint"`
}

// ReleaseRequest drops the listed handles, or every handle of the
// session when Handles is empty.
type ReleaseRequest struct {
	Session string   `cbor:"1,keyasint"`
	Handles []string `cbor:"2,keyasint,omitempty"`
}

type ReleaseResponse struct {
	Released int `cbor:"1,keyasint"`
}
