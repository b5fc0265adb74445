package grpcenv

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/chazu/blockbridge/proxy"
)

const healthCheck = "grpc.health.v1.Health/Check"

func startServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("engine", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("stats", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	go func() { _ = s.Serve(ln) }()
	t.Cleanup(s.Stop)
	return ln.Addr().String()
}

func dial(t *testing.T) proxy.Proxy {
	t.Helper()
	env := proxy.NewEnvironment(Name, NewBackend())
	c, err := env.FindProxy(startServer(t))
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = c.Call("close") })
	return c
}

func TestListServices(t *testing.T) {
	c := dial(t)
	services, err := proxy.CallAs[[]string](c, "listServices")
	require.NoError(t, err)
	assert.Contains(t, services, "grpc.health.v1.Health")
	for _, s := range services {
		assert.NotContains(t, s, "grpc.reflection")
	}

	methods, err := proxy.CallAs[[]string](c, "methods", "grpc.health.v1.Health")
	require.NoError(t, err)
	assert.Contains(t, methods, "Check")
}

func TestUnaryCall(t *testing.T) {
	c := dial(t)
	resp, err := c.Call(healthCheck, map[string]any{"service": "engine"})
	require.NoError(t, err)
	assert.Equal(t, "Message", resp.ClassName())

	st, err := proxy.CallAs[string](resp, "get:status")
	require.NoError(t, err)
	assert.Equal(t, "SERVING", st)

	keys, err := proxy.CallAs[[]string](resp, "keys")
	require.NoError(t, err)
	assert.Equal(t, []string{"status"}, keys)

	n, err := proxy.CallAs[int](resp, "len")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	resp, err = c.Call(healthCheck, map[string]any{"service": "stats"})
	require.NoError(t, err)
	st, err = proxy.CallAs[string](resp, "get:status")
	require.NoError(t, err)
	assert.Equal(t, "NOT_SERVING", st)
}

func TestCallErrors(t *testing.T) {
	c := dial(t)

	_, err := c.Call(healthCheck, map[string]any{"service": "nope"})
	var de *proxy.DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, healthCheck, de.Method)
	assert.Equal(t, codes.NotFound, status.Code(de.Err))

	_, err = c.Call(healthCheck, map[string]any{"bogus": 1})
	require.ErrorAs(t, err, &de)
	assert.ErrorContains(t, err, "bogus")

	_, err = c.Call("grpc.health.v1.Health/Watch", map[string]any{})
	assert.ErrorContains(t, err, "streaming")

	_, err = c.Call("frobnicate")
	assert.True(t, proxy.IsUnknownMethod(err))

	resp, err := c.Call(healthCheck, map[string]any{"service": "engine"})
	require.NoError(t, err)
	_, err = resp.Call("get:missing")
	assert.ErrorIs(t, err, proxy.ErrNoField)
}

func TestClosedClient(t *testing.T) {
	c := dial(t)
	ok, err := proxy.CallAs[bool](c, "isConnected")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.Call("close")
	require.NoError(t, err)
	ok, err = proxy.CallAs[bool](c, "isConnected")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Call(healthCheck)
	assert.ErrorContains(t, err, "closed")
}

func TestValueProxies(t *testing.T) {
	env := proxy.NewEnvironment(Name, NewBackend())
	list, err := env.Convert([]any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "List", list.ClassName())

	e, err := proxy.CallAs[string](list, "at", 1)
	require.NoError(t, err)
	assert.Equal(t, "b", e)

	one, err := env.Convert(1)
	require.NoError(t, err)
	c, err := one.CompareTo(2.5)
	require.NoError(t, err)
	assert.Negative(t, c)

	none, err := env.Convert(nil)
	require.NoError(t, err)
	assert.False(t, none.IsNull())
	assert.Equal(t, "None", none.ClassName())
}

func TestEnvironmentIsRegistered(t *testing.T) {
	env, err := proxy.Find(Name)
	require.NoError(t, err)
	same, err := proxy.Find(Name)
	require.NoError(t, err)
	assert.Same(t, env, same)
}
