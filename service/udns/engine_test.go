package udns

import (
	"context"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, hostname string) (*Engine, *fakeConn) {
	t.Helper()

	e := NewEngine(context.Background(), Options{Hostname: hostname})
	e.Start()
	t.Cleanup(e.Stop)

	mc := &fakeConn{}
	require.NoError(t, e.BindMulticast(context.Background(), mc))
	return e, mc
}

func waitPending(t *testing.T, e *Engine, n int) {
	t.Helper()

	assert.Eventually(t, func() bool {
		st, err := e.Status(context.Background())
		return err == nil && len(st.Pending) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEngineResolveBlocking(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, "")
	ctx := context.Background()

	answer := response(t, 0, "", "x.local. 120 IN A 192.168.1.44")
	go func() {
		waitPending(t, e, 1)
		_ = e.Deliver(answer, peer)
	}()

	addr, err := e.ResolveBlocking(ctx, "x.local", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.1.44"), addr)

	// Served from cache.
	addr, err = e.ResolveBlocking(ctx, "x.local", time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.1.44"), addr)

	cached, found, err := e.Lookup(ctx, "X.local")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, addr, cached)
}

func TestEngineResolveBlockingTimeout(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, "")
	ctx := context.Background()

	_, err := e.ResolveBlocking(ctx, "nobody.local", 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	// The query was canceled.
	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Pending)

	_, err = e.ResolveBlocking(ctx, "bad..name", time.Second)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEngineCallbacksAndCancel(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, "")
	ctx := context.Background()

	var calls atomic.Int32
	h, sent, err := e.Resolve(ctx, "printer.local", func(string, netip.Addr, error) {
		calls.Add(1)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	canceled, err := e.Cancel(ctx, h)
	require.NoError(t, err)
	assert.True(t, canceled)

	require.NoError(t, e.Deliver(response(t, 0, "", "printer.local. 120 IN A 192.168.1.50"), peer))
	assert.Zero(t, calls.Load())
}

func TestEngineNameserversAndBudget(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, "")
	ctx := context.Background()

	for i, want := range []AddResult{Added, Duplicate, Added, Added, Added, Full} {
		servers := []string{"192.0.2.1", "192.0.2.1:53", "192.0.2.2", "2001:db8::1", "[2001:db8::2]:5300", "192.0.2.9"}
		res, err := e.AddNameserverString(ctx, servers[i])
		require.NoError(t, err)
		assert.Equal(t, want, res, servers[i])
	}
	res, err := e.AddNameserverString(ctx, "not-an-address")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, Invalid, res)

	require.NoError(t, e.Deliver(response(t, 0, "", "a.local. 120 IN A 192.168.1.1"), peer))
	require.NoError(t, e.Deliver(response(t, 0, "", "b.local. 120 IN A 192.168.1.2"), peer))
	require.NoError(t, e.SetCacheBudget(ctx, cacheEntryOverhead+len("b.local")))

	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Nameservers, MaxNameservers)
	assert.Equal(t, []string{"b.local"}, hostnames(st.Cache))
}

func TestEngineLinkEvents(t *testing.T) {
	t.Parallel()

	e, mc := newTestEngine(t, "node")
	ctx := context.Background()

	e.LinkEvents.Submit(LinkEvent{Up: true, IPv4: ownIPv4})
	assert.Eventually(t, func() bool {
		st, err := e.Status(ctx)
		return err == nil && st.State == Up
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, mc.packets(), 3)

	require.NoError(t, e.UpdateHostname(ctx, "kitchen"))
	st, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kitchen", st.Hostname)

	e.LinkEvents.Submit(LinkEvent{Up: false})
	assert.Eventually(t, func() bool {
		st, err := e.Status(ctx)
		return err == nil && st.State == WifiDown
	}, 5*time.Second, 10*time.Millisecond)
}

func TestEngineStop(t *testing.T) {
	t.Parallel()

	e := NewEngine(context.Background(), Options{})
	e.Start()
	e.Stop()

	_, _, err := e.Resolve(context.Background(), "x.local", func(string, netip.Addr, error) {})
	assert.ErrorIs(t, err, ErrShuttingDown)
}
