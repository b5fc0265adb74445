package remote

import (
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"net/http"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/chazu/blockbridge/proxy"
)

// DefaultTimeout bounds every request the backend makes.
const DefaultTimeout = 30 * time.Second

// Register records a remote environment named name, served at url, in reg.
func Register(reg *proxy.Registry, name, url string) {
	reg.RegisterFactory(name, func() (proxy.Backend, error) {
		return NewBackend(url, http.DefaultClient), nil
	})
}

// Backend is the client side of a remote environment. Objects made from
// local Go values stay local until they are used as a receiver, so plain
// arguments travel by value and only server-held objects travel as
// handle references.
type Backend struct {
	session string
	timeout time.Duration
	seed    maphash.Seed

	find     *connect.Client[FindRequest, Object]
	make     *connect.Client[MakeRequest, Object]
	call     *connect.Client[CallRequest, CallResponse]
	compare  *connect.Client[CompareRequest, CompareResponse]
	describe *connect.Client[DescribeRequest, Object]
	value    *connect.Client[ValueRequest, ValueResponse]
	release  *connect.Client[ReleaseRequest, ReleaseResponse]
}

// NewBackend creates a backend for the server at baseURL. Every backend
// opens its own session on the server.
func NewBackend(baseURL string, httpClient connect.HTTPClient) *Backend {
	baseURL = strings.TrimRight(baseURL, "/")
	codec := connect.WithCodec(Codec{})
	return &Backend{
		session:  uuid.NewString(),
		timeout:  DefaultTimeout,
		seed:     maphash.MakeSeed(),
		find:     connect.NewClient[FindRequest, Object](httpClient, baseURL+FindProcedure, codec),
		make:     connect.NewClient[MakeRequest, Object](httpClient, baseURL+MakeProcedure, codec),
		call:     connect.NewClient[CallRequest, CallResponse](httpClient, baseURL+CallProcedure, codec),
		compare:  connect.NewClient[CompareRequest, CompareResponse](httpClient, baseURL+CompareProcedure, codec),
		describe: connect.NewClient[DescribeRequest, Object](httpClient, baseURL+DescribeProcedure, codec),
		value:    connect.NewClient[ValueRequest, ValueResponse](httpClient, baseURL+ValueProcedure, codec),
		release:  connect.NewClient[ReleaseRequest, ReleaseResponse](httpClient, baseURL+ReleaseProcedure, codec),
	}
}

// Session returns the id the server files this backend's handles under.
func (b *Backend) Session() string { return b.session }

// Close releases every handle of the session.
func (b *Backend) Close() error {
	ctx, cancel := b.ctx()
	defer cancel()
	_, err := b.release.CallUnary(ctx, connect.NewRequest(&ReleaseRequest{Session: b.session}))
	return err
}

func (b *Backend) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.timeout)
}

// MakeHandle keeps v on the client side.
func (b *Backend) MakeHandle(env *proxy.Environment, v any) (proxy.Handle, error) {
	return &object{b: b, env: env, local: true, v: v}, nil
}

// FindHandle resolves name on the server.
func (b *Backend) FindHandle(env *proxy.Environment, name string) (proxy.Handle, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	res, err := b.find.CallUnary(ctx, connect.NewRequest(&FindRequest{Session: b.session, Name: name}))
	if err != nil {
		return nil, fmt.Errorf("remote: find %q: %w", name, err)
	}
	return &object{b: b, env: env, obj: *res.Msg}, nil
}

// ToGo fetches the value of a server-held object.
func (b *Backend) ToGo(h proxy.Handle) (any, error) {
	o, ok := h.(*object)
	if !ok || o.b != b {
		return nil, fmt.Errorf("remote: foreign handle %T", h)
	}
	if o.local {
		return o.v, nil
	}
	ctx, cancel := b.ctx()
	defer cancel()
	res, err := b.value.CallUnary(ctx, connect.NewRequest(&ValueRequest{Handle: o.obj.Handle}))
	if err != nil {
		return nil, fmt.Errorf("remote: value of %s: %w", o.obj.Class, err)
	}
	return res.Msg.Value, nil
}

// object is either a local value not yet sent to the server or a
// reference to one the server holds.
type object struct {
	b   *Backend
	env *proxy.Environment

	local bool
	v     any

	mu  sync.Mutex
	obj Object
}

// held sends a local value to the server on first use as a receiver.
func (o *object) held() (Object, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.obj.Handle != "" {
		return o.obj, nil
	}
	ctx, cancel := o.b.ctx()
	defer cancel()
	res, err := o.b.make.CallUnary(ctx, connect.NewRequest(&MakeRequest{Session: o.b.session, Value: o.v}))
	if err != nil {
		return Object{}, err
	}
	o.obj = *res.Msg
	return o.obj, nil
}

func (o *object) arg(p proxy.Proxy) (Arg, error) {
	if r, ok := p.Handle().(*object); ok && r.b == o.b {
		if r.local {
			return Arg{Value: r.v}, nil
		}
		return Arg{Handle: r.obj.Handle}, nil
	}
	v, err := p.ToGo()
	if err != nil {
		return Arg{}, err
	}
	return Arg{Value: v}, nil
}

func (o *object) Call(name string, args []proxy.Proxy) (proxy.Proxy, error) {
	recv, err := o.held()
	if err != nil {
		return proxy.Proxy{}, &proxy.DispatchError{Class: o.ClassName(), Method: name, Err: err}
	}
	wire := make([]Arg, len(args))
	for i, a := range args {
		if wire[i], err = o.arg(a); err != nil {
			return proxy.Proxy{}, &proxy.DispatchError{Class: recv.Class, Method: name, Err: err}
		}
	}

	ctx, cancel := o.b.ctx()
	defer cancel()
	res, err := o.b.call.CallUnary(ctx, connect.NewRequest(&CallRequest{
		Session: o.b.session,
		Handle:  recv.Handle,
		Method:  name,
		Args:    wire,
	}))
	switch {
	case err != nil:
		return proxy.Proxy{}, &proxy.DispatchError{Class: recv.Class, Method: name, Err: err}
	case res.Msg.Unknown:
		return proxy.Proxy{}, &proxy.DispatchError{Class: recv.Class, Method: name}
	case res.Msg.Error != "":
		return proxy.Proxy{}, &proxy.DispatchError{Class: recv.Class, Method: name, Err: errors.New(res.Msg.Error)}
	case res.Msg.Result == nil:
		return proxy.Proxy{}, &proxy.DispatchError{Class: recv.Class, Method: name, Err: errors.New("empty response")}
	}
	return proxy.New(o.env, &object{b: o.b, env: o.env, obj: *res.Msg.Result}), nil
}

func (o *object) CompareTo(other proxy.Proxy) (int, error) {
	recv, err := o.held()
	if err != nil {
		return 0, err
	}
	a, err := o.arg(other)
	if err != nil {
		return 0, err
	}
	ctx, cancel := o.b.ctx()
	defer cancel()
	res, err := o.b.compare.CallUnary(ctx, connect.NewRequest(&CompareRequest{
		Session: o.b.session,
		Handle:  recv.Handle,
		Other:   a,
	}))
	if err != nil {
		return 0, fmt.Errorf("remote: compare %s: %w", recv.Class, err)
	}
	return res.Msg.Result, nil
}

// Identity of a server-held object is its handle id, which the server
// keeps stable per native object. A local value is its own identity.
func (o *object) Identity() any {
	if o.local {
		return o
	}
	return o.obj.Handle
}

func (o *object) HashCode() uint64 {
	if o.local {
		return maphash.Comparable(o.b.seed, o)
	}
	return maphash.String(o.b.seed, o.obj.Handle)
}

func (o *object) ClassName() string {
	if o.local {
		if o.v == nil {
			return "None"
		}
		return fmt.Sprintf("%T", o.v)
	}
	return o.obj.Class
}

func (o *object) String() string {
	if o.local {
		return fmt.Sprint(o.v)
	}
	return o.obj.Display
}
