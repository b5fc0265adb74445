// Package remote serves an Environment over Connect RPC and provides the
// client backend that proxies objects living in another process.
//
// Messages are plain Go structs encoded with CBOR; the server keeps the
// referenced objects alive in a HandleStore until the client releases
// them or they go idle.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/blockbridge/managed"
	"github.com/chazu/blockbridge/proxy"
)

var log = commonlog.GetLogger("blockbridge.remote")

// Server exposes one Environment to remote clients.
type Server struct {
	env     *proxy.Environment
	handles *HandleStore
	mux     *http.ServeMux

	stopSweeper func()
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	sweepInterval time.Duration
	handleTTL     time.Duration
}

// WithHandleTTL sets how often idle handles are swept and how long a
// handle may go unused before it is dropped.
func WithHandleTTL(interval, ttl time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.sweepInterval = interval
		c.handleTTL = ttl
	}
}

// NewServer creates a server for env. A nil env serves the managed
// environment.
func NewServer(env *proxy.Environment, opts ...ServerOption) *Server {
	cfg := &serverConfig{
		sweepInterval: 5 * time.Minute,
		handleTTL:     30 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if env == nil {
		env = managed.Env()
	}

	s := &Server{
		env:     env,
		handles: NewHandleStore(),
		mux:     http.NewServeMux(),
	}

	codec := connect.WithCodec(Codec{})
	s.mux.Handle(FindProcedure, connect.NewUnaryHandler(FindProcedure, s.find, codec))
	s.mux.Handle(MakeProcedure, connect.NewUnaryHandler(MakeProcedure, s.make, codec))
	s.mux.Handle(CallProcedure, connect.NewUnaryHandler(CallProcedure, s.call, codec))
	s.mux.Handle(CompareProcedure, connect.NewUnaryHandler(CompareProcedure, s.compare, codec))
	s.mux.Handle(DescribeProcedure, connect.NewUnaryHandler(DescribeProcedure, s.describe, codec))
	s.mux.Handle(ValueProcedure, connect.NewUnaryHandler(ValueProcedure, s.value, codec))
	s.mux.Handle(ReleaseProcedure, connect.NewUnaryHandler(ReleaseProcedure, s.release, codec))

	s.stopSweeper = s.handles.StartSweeper(cfg.sweepInterval, cfg.handleTTL)
	return s
}

// Env returns the served environment.
func (s *Server) Env() *proxy.Environment { return s.env }

// Handles returns the server's handle store.
func (s *Server) Handles() *HandleStore { return s.handles }

// Handler returns the HTTP handler serving every procedure.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	log.Infof("serving environment %s on %s", s.env.Name(), addr)
	return http.ListenAndServe(addr, s.mux)
}

// Serve accepts connections on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Infof("serving environment %s on %s", s.env.Name(), ln.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the handle sweeper.
func (s *Server) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
}

func (s *Server) object(p proxy.Proxy, session string) *Object {
	return &Object{
		Handle:  s.handles.Create(p, session),
		Class:   p.ClassName(),
		Display: p.String(),
		Hash:    p.Hash(),
	}
}

func (s *Server) lookup(id string) (proxy.Proxy, error) {
	if id == "" {
		return proxy.Proxy{}, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("handle is required"))
	}
	p, ok := s.handles.Lookup(id)
	if !ok {
		return proxy.Proxy{}, connect.NewError(connect.CodeNotFound, fmt.Errorf("unknown handle %s", id))
	}
	return p, nil
}

// resolve turns a wire argument into something Proxy.Call converts.
func (s *Server) resolve(a Arg) (any, error) {
	if a.Handle != "" {
		p, err := s.lookup(a.Handle)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return a.Value, nil
}

func (s *Server) find(
	_ context.Context,
	req *connect.Request[FindRequest],
) (*connect.Response[Object], error) {
	if req.Msg.Name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name is required"))
	}
	p, err := s.env.FindProxy(req.Msg.Name)
	if err != nil {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	return connect.NewResponse(s.object(p, req.Msg.Session)), nil
}

func (s *Server) make(
	_ context.Context,
	req *connect.Request[MakeRequest],
) (*connect.Response[Object], error) {
	p, err := s.env.Convert(req.Msg.Value)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewResponse(s.object(p, req.Msg.Session)), nil
}

func (s *Server) call(
	_ context.Context,
	req *connect.Request[CallRequest],
) (*connect.Response[CallResponse], error) {
	if req.Msg.Method == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("method is required"))
	}
	recv, err := s.lookup(req.Msg.Handle)
	if err != nil {
		return nil, err
	}
	args := make([]any, len(req.Msg.Args))
	for i, a := range req.Msg.Args {
		if args[i], err = s.resolve(a); err != nil {
			return nil, err
		}
	}

	r, err := recv.Call(req.Msg.Method, args...)
	if err != nil {
		var de *proxy.DispatchError
		switch {
		case proxy.IsUnknownMethod(err):
			return connect.NewResponse(&CallResponse{Unknown: true}), nil
		case errors.As(err, &de):
			return connect.NewResponse(&CallResponse{Error: de.Err.Error()}), nil
		}
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewResponse(&CallResponse{Result: s.object(r, req.Msg.Session)}), nil
}

func (s *Server) compare(
	_ context.Context,
	req *connect.Request[CompareRequest],
) (*connect.Response[CompareResponse], error) {
	recv, err := s.lookup(req.Msg.Handle)
	if err != nil {
		return nil, err
	}
	other, err := s.resolve(req.Msg.Other)
	if err != nil {
		return nil, err
	}
	c, err := recv.CompareTo(other)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	return connect.NewResponse(&CompareResponse{Result: c}), nil
}

func (s *Server) describe(
	_ context.Context,
	req *connect.Request[DescribeRequest],
) (*connect.Response[Object], error) {
	p, err := s.lookup(req.Msg.Handle)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&Object{
		Handle:  req.Msg.Handle,
		Class:   p.ClassName(),
		Display: p.String(),
		Hash:    p.Hash(),
	}), nil
}

func (s *Server) value(
	_ context.Context,
	req *connect.Request[ValueRequest],
) (*connect.Response[ValueResponse], error) {
	p, err := s.lookup(req.Msg.Handle)
	if err != nil {
		return nil, err
	}
	v, err := p.ToGo()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if _, err := encMode.Marshal(v); err != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition,
			fmt.Errorf("%s has no wire form: %w", p.ClassName(), err))
	}
	return connect.NewResponse(&ValueResponse{Value: v}), nil
}

func (s *Server) release(
	_ context.Context,
	req *connect.Request[ReleaseRequest],
) (*connect.Response[ReleaseResponse], error) {
	n := 0
	if len(req.Msg.Handles) == 0 {
		if req.Msg.Session == "" {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session or handles required"))
		}
		n = s.handles.ReleaseSession(req.Msg.Session)
	} else {
		for _, id := range req.Msg.Handles {
			if s.handles.Release(id) {
				n++
			}
		}
	}
	log.Debugf("released %d handles", n)
	return connect.NewResponse(&ReleaseResponse{Released: n}), nil
}
