// Package grpcenv is an Environment whose native objects are gRPC
// services. FindProxy dials a target; the client proxy invokes unary
// methods by their "package.Service/Method" name with a map request and
// answers with a value proxy of the response map. Message types are
// resolved through server reflection, so no generated code is needed.
package grpcenv

import (
	"context"
	"errors"
	"fmt"
	"hash/maphash"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/jhump/protoreflect/grpcreflect"
	"github.com/tliron/commonlog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	rpb "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"

	"github.com/chazu/blockbridge/proxy"
)

// Name is the registry name of the gRPC environment.
const Name = "grpc"

// DefaultTimeout bounds every call a client makes.
const DefaultTimeout = 30 * time.Second

var log = commonlog.GetLogger("blockbridge.grpcenv")

func init() {
	proxy.Register(Name, func() (proxy.Backend, error) {
		return NewBackend(), nil
	})
}

// Backend implements proxy.Backend for gRPC targets.
type Backend struct {
	seed     maphash.Seed
	timeout  time.Duration
	dialOpts []grpc.DialOption
}

// NewBackend creates a backend that dials targets without transport
// security. Extra dial options are appended.
func NewBackend(opts ...grpc.DialOption) *Backend {
	return &Backend{
		seed:     maphash.MakeSeed(),
		timeout:  DefaultTimeout,
		dialOpts: append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...),
	}
}

// MakeHandle wraps a Go value as a value proxy.
func (b *Backend) MakeHandle(env *proxy.Environment, v any) (proxy.Handle, error) {
	return &value{b: b, env: env, v: v}, nil
}

// FindHandle dials target and returns a client proxy for it.
func (b *Backend) FindHandle(env *proxy.Environment, target string) (proxy.Handle, error) {
	conn, err := grpc.NewClient(target, b.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpcenv: connection to %s failed: %w", target, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	log.Debugf("dialed %s", target)
	return &client{
		b:         b,
		env:       env,
		target:    target,
		conn:      conn,
		refClient: grpcreflect.NewClientV1Alpha(ctx, rpb.NewServerReflectionClient(conn)),
		cancel:    cancel,
		methods:   make(map[string]*desc.MethodDescriptor),
	}, nil
}

// ToGo returns the wrapped value of a value proxy or the target of a
// client proxy.
func (b *Backend) ToGo(h proxy.Handle) (any, error) {
	switch o := h.(type) {
	case *value:
		return o.v, nil
	case *client:
		return o.target, nil
	}
	return nil, fmt.Errorf("grpcenv: foreign handle %T", h)
}

// client is the handle of one dialed target.
type client struct {
	b         *Backend
	env       *proxy.Environment
	target    string
	conn      *grpc.ClientConn
	refClient *grpcreflect.Client
	cancel    context.CancelFunc

	mu      sync.Mutex
	closed  bool
	methods map[string]*desc.MethodDescriptor
}

// Call answers listServices, methods(service), close, and any
// "package.Service/Method" name, which is invoked as a unary call.
func (c *client) Call(name string, args []proxy.Proxy) (proxy.Proxy, error) {
	r, err := c.dispatch(name, args)
	if err != nil {
		var de *proxy.DispatchError
		if errors.As(err, &de) {
			return proxy.Proxy{}, err
		}
		return proxy.Proxy{}, &proxy.DispatchError{Class: c.ClassName(), Method: name, Err: err}
	}
	return proxy.New(c.env, &value{b: c.b, env: c.env, v: r}), nil
}

func (c *client) dispatch(name string, args []proxy.Proxy) (any, error) {
	switch name {
	case "toString":
		return c.String(), nil
	case "getClassName":
		return c.ClassName(), nil
	case "close":
		return nil, c.close()
	case "isConnected":
		c.mu.Lock()
		defer c.mu.Unlock()
		return !c.closed, nil
	case "listServices":
		return c.listServices()
	case "methods":
		if len(args) != 1 {
			return nil, fmt.Errorf("methods takes a service name")
		}
		svc, err := proxy.To[string](args[0])
		if err != nil {
			return nil, err
		}
		return c.listMethods(svc)
	}
	if !strings.Contains(name, "/") {
		return nil, &proxy.DispatchError{Class: c.ClassName(), Method: name}
	}
	req := map[string]any{}
	switch len(args) {
	case 0:
	case 1:
		v, err := args[0].ToGo()
		if err != nil {
			return nil, err
		}
		m, ok := asStringMap(v)
		if !ok && v != nil {
			return nil, fmt.Errorf("request must be a map, got %T", v)
		}
		if ok {
			req = m
		}
	default:
		return nil, fmt.Errorf("%s takes one request map", name)
	}
	return c.invoke(name, req)
}

func (c *client) open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("client for %s is closed", c.target)
	}
	return nil
}

func (c *client) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.refClient.Reset()
	c.cancel()
	return c.conn.Close()
}

func (c *client) listServices() ([]string, error) {
	if err := c.open(); err != nil {
		return nil, err
	}
	services, err := c.refClient.ListServices()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(services))
	for _, svc := range services {
		if strings.HasPrefix(svc, "grpc.reflection") {
			continue
		}
		out = append(out, svc)
	}
	slices.Sort(out)
	return out, nil
}

func (c *client) listMethods(service string) ([]string, error) {
	if err := c.open(); err != nil {
		return nil, err
	}
	sd, err := c.refClient.ResolveService(service)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve service %s: %w", service, err)
	}
	out := make([]string, 0, len(sd.GetMethods()))
	for _, m := range sd.GetMethods() {
		out = append(out, m.GetName())
	}
	return out, nil
}

// resolveMethod resolves "package.Service/Method" to its descriptor.
func (c *client) resolveMethod(fullMethod string) (*desc.MethodDescriptor, error) {
	c.mu.Lock()
	md, ok := c.methods[fullMethod]
	c.mu.Unlock()
	if ok {
		return md, nil
	}

	service, method, ok := strings.Cut(fullMethod, "/")
	if !ok || service == "" || method == "" || strings.Contains(method, "/") {
		return nil, fmt.Errorf("invalid method format: %s (expected 'service/method')", fullMethod)
	}
	sd, err := c.refClient.ResolveService(service)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve service %s: %w", service, err)
	}
	md = sd.FindMethodByName(method)
	if md == nil {
		return nil, fmt.Errorf("method %s not found in service %s", method, service)
	}
	if md.IsClientStreaming() || md.IsServerStreaming() {
		return nil, fmt.Errorf("%s is a streaming method", fullMethod)
	}

	c.mu.Lock()
	c.methods[fullMethod] = md
	c.mu.Unlock()
	return md, nil
}

func (c *client) invoke(fullMethod string, req map[string]any) (map[string]any, error) {
	if err := c.open(); err != nil {
		return nil, err
	}
	md, err := c.resolveMethod(fullMethod)
	if err != nil {
		return nil, err
	}
	reqMsg, err := toMessage(req, md.GetInputType())
	if err != nil {
		return nil, fmt.Errorf("request conversion: %w", err)
	}
	respMsg := dynamic.NewMessage(md.GetOutputType())

	ctx, cancel := context.WithTimeout(context.Background(), c.b.timeout)
	defer cancel()
	if err := c.conn.Invoke(ctx, "/"+fullMethod, reqMsg, respMsg); err != nil {
		return nil, err
	}
	resp, err := fromMessage(respMsg)
	if err != nil {
		return nil, fmt.Errorf("response conversion: %w", err)
	}
	return resp, nil
}

func (c *client) CompareTo(other proxy.Proxy) (int, error) {
	oc, ok := other.Handle().(*client)
	if !ok {
		return 0, fmt.Errorf("cannot compare a client with %s", other.ClassName())
	}
	return strings.Compare(c.target, oc.target), nil
}

func (c *client) HashCode() uint64  { return maphash.Comparable(c.b.seed, c) }
func (c *client) ClassName() string { return "GrpcClient" }
func (c *client) Identity() any     { return c }
func (c *client) String() string    { return "GrpcClient(" + c.target + ")" }
