package remote

import (
	"errors"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/blockbridge/managed"
	"github.com/chazu/blockbridge/proxy"
)

type account struct {
	Owner   string
	Balance int
}

func (a *account) Deposit(n int) int {
	a.Balance += n
	return a.Balance
}

func (a *account) Self() *account { return a }

func (a *account) Transfer(to *account, n int) error {
	if n > a.Balance {
		return errors.New("insufficient funds")
	}
	a.Balance -= n
	to.Balance += n
	return nil
}

func (a *account) Tags() []string { return []string{"checking", a.Owner} }

type fixture struct {
	srv     *Server
	backend *Backend
	env     *proxy.Environment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	classes := managed.NewClassTable()
	classes.Register("test.Account", reflect.TypeFor[*account]()).
		Constructor(func(owner string) *account { return &account{Owner: owner} })

	srv := NewServer(proxy.NewEnvironment(managed.Name, managed.NewBackend(classes)))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	b := NewBackend(ts.URL, ts.Client())
	return &fixture{srv: srv, backend: b, env: proxy.NewEnvironment("remote", b)}
}

func (f *fixture) account(t *testing.T, owner string) proxy.Proxy {
	t.Helper()
	cls, err := f.env.FindProxy("test.Account")
	require.NoError(t, err)
	acct, err := cls.Call("new", owner)
	require.NoError(t, err)
	return acct
}

func TestFindAndCall(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, "alice")
	assert.Equal(t, "test.Account", acct.ClassName())

	bal, err := proxy.CallAs[int](acct, "deposit", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, bal)

	owner, err := proxy.CallAs[string](acct, "get:Owner")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	tags, err := acct.Call("tags")
	require.NoError(t, err)
	count, err := proxy.CallAs[int](tags, "len")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestFindUnknownName(t *testing.T) {
	f := newFixture(t)
	_, err := f.env.FindProxy("test.Nope")
	require.Error(t, err)
}

func TestHandlesTravelByReference(t *testing.T) {
	f := newFixture(t)
	alice := f.account(t, "alice")
	bob := f.account(t, "bob")
	_, err := alice.Call("deposit", 50)
	require.NoError(t, err)

	_, err = alice.Call("transfer", bob, 20)
	require.NoError(t, err)

	bal, err := proxy.CallAs[int](bob, "get:Balance")
	require.NoError(t, err)
	assert.Equal(t, 20, bal)
}

func TestIdentityFollowsTheServerObject(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, "alice")
	self, err := acct.Call("self")
	require.NoError(t, err)

	assert.True(t, acct.Equal(self))
	assert.Equal(t, acct.Hash(), self.Hash())

	other := f.account(t, "alice")
	assert.False(t, acct.Equal(other))
}

func TestLocalValuesStayLocal(t *testing.T) {
	f := newFixture(t)
	p, err := f.env.Convert("hello")
	require.NoError(t, err)
	assert.Zero(t, f.srv.Handles().Len())

	v, err := p.ToGo()
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	n, err := proxy.CallAs[int](p, "len")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	// the receiver and the result
	assert.Equal(t, 2, f.srv.Handles().Len())

	none, err := f.env.Convert(nil)
	require.NoError(t, err)
	assert.False(t, none.IsNull())
	assert.Equal(t, "None", none.ClassName())
}

func TestDispatchErrors(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, "alice")

	_, err := acct.Call("fly")
	require.Error(t, err)
	assert.True(t, proxy.IsUnknownMethod(err))

	_, err = acct.Call("transfer", f.account(t, "bob"), 5)
	var de *proxy.DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "test.Account", de.Class)
	assert.Equal(t, "transfer", de.Method)
	assert.ErrorContains(t, err, "insufficient funds")
}

func TestCompare(t *testing.T) {
	f := newFixture(t)
	one, err := f.env.Convert(1)
	require.NoError(t, err)
	two, err := f.env.Convert(2)
	require.NoError(t, err)

	c, err := one.CompareTo(two)
	require.NoError(t, err)
	assert.Negative(t, c)

	c, err = two.CompareTo(1)
	require.NoError(t, err)
	assert.Positive(t, c)
}

func TestReleaseSession(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, "alice")
	require.Positive(t, f.srv.Handles().Len())

	require.NoError(t, f.backend.Close())
	assert.Zero(t, f.srv.Handles().Len())

	_, err := acct.Call("deposit", 1)
	var de *proxy.DispatchError
	require.ErrorAs(t, err, &de)
	assert.NotNil(t, de.Err)
}

func TestSweepDropsIdleHandles(t *testing.T) {
	store := NewHandleStore()
	env := proxy.NewEnvironment(managed.Name, managed.NewBackend(managed.NewClassTable()))
	p, err := env.Convert(&account{})
	require.NoError(t, err)

	id := store.Create(p, "s")
	assert.Equal(t, id, store.Create(p, "s"))
	assert.NotEqual(t, id, store.Create(p, "other"))

	assert.Zero(t, store.Sweep(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, store.Sweep(time.Millisecond))
	_, ok := store.Lookup(id)
	assert.False(t, ok)
}

func TestRegister(t *testing.T) {
	reg := proxy.NewRegistry()
	Register(reg, "far", "http://127.0.0.1:1")
	env, err := reg.Find("far")
	require.NoError(t, err)
	_, ok := env.Backend().(*Backend)
	assert.True(t, ok)
}
