package udns

import (
	"net/netip"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-iot/netsvc/service/udns/dnswire"
)

// bringUp drives the probe sequence to Up.
func bringUp(t *testing.T, r *testResolver) {
	t.Helper()

	r.LinkUp(ownIPv4, netip.Addr{})
	for range 4 {
		r.Tick()
	}
	require.Equal(t, Up, r.State())
	r.multicast.reset()
}

func TestProbeSequence(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, "node")

	// Nothing happens while the link is down.
	for range 5 {
		assert.Equal(t, DefaultTickDelay, r.Tick())
	}
	assert.Equal(t, WifiDown, r.State())
	assert.Empty(t, r.multicast.packets())

	r.LinkUp(ownIPv4, netip.Addr{})
	assert.Equal(t, WifiUp, r.State())

	for i, want := range []ProbeState{Probe0, Probe1, Probe2} {
		assert.Equal(t, ProbeTickDelay, r.Tick())
		assert.Equal(t, want, r.State())

		pkts := r.multicast.packets()
		require.Len(t, pkts, i+1)
		assert.Equal(t, MDNSGroupIPv4, pkts[i].to)
		msg := parseSent(t, pkts[i])
		assert.False(t, msg.Header.Response)
		assert.Zero(t, msg.Header.ID)
		assert.False(t, msg.Header.RecursionDesired)
		assert.Equal(t, dnswire.Question{Name: "node.local", Type: dnswire.TypeA, Class: dnswire.ClassINET}, msg.Questions[0])
	}

	assert.Equal(t, DefaultTickDelay, r.Tick())
	assert.Equal(t, Up, r.State())
	assert.Len(t, r.multicast.packets(), 3)

	// Link down from any state.
	r.LinkDown()
	assert.Equal(t, WifiDown, r.State())
	r.Tick()
	assert.Len(t, r.multicast.packets(), 3)
}

func TestProbeWithoutSocket(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, "node")
	r.BindMulticast(nil)
	r.LinkUp(ownIPv4, netip.Addr{})

	for range 3 {
		assert.Equal(t, DefaultTickDelay, r.Tick())
		assert.Equal(t, WifiUp, r.State())
	}

	r.BindMulticast(r.multicast)
	assert.Equal(t, ProbeTickDelay, r.Tick())
	assert.Equal(t, Probe0, r.State())
}

func TestUpdateHostnameRestartsProbing(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, "node")
	bringUp(t, r)

	r.UpdateHostname("Kitchen.")
	assert.Equal(t, WifiUp, r.State())
	r.Tick()
	msg := parseSent(t, r.multicast.packets()[0])
	assert.Equal(t, "kitchen.local", msg.Questions[0].Name)

	// While down, only the name changes.
	r.LinkDown()
	r.UpdateHostname("node")
	assert.Equal(t, WifiDown, r.State())
}

func TestCollision(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, "node")
	bringUp(t, r)

	// Own answers looped back by the network are no collision.
	r.HandlePacket(response(t, 0, "", "node.local. 120 IN A 192.168.1.10"), netip.AddrPortFrom(ownIPv4, MDNSPort))
	assert.Equal(t, Up, r.State())
	_, found := r.Lookup("node.local")
	assert.False(t, found, "own name is never cached")

	r.HandlePacket(response(t, 0, "", "node.local. 120 IN A 192.168.1.99"), peer)
	assert.Equal(t, Collision, r.State())

	// Collision is kept until probing restarts.
	r.Tick()
	assert.Equal(t, Collision, r.State())
	r.LinkDown()
	r.LinkUp(ownIPv4, netip.Addr{})
	assert.Equal(t, WifiUp, r.State())
}

func TestCollisionOnlyWhenUp(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, "node")
	r.LinkUp(ownIPv4, netip.Addr{})
	r.Tick()
	require.Equal(t, Probe0, r.State())

	r.HandlePacket(response(t, 0, "", "node.local. 120 IN A 192.168.1.99"), peer)
	assert.Equal(t, Probe0, r.State())
}

// question packs an mDNS query.
func question(t *testing.T, name string, qtype, qclass uint16) []byte {
	t.Helper()

	m := new(dns.Msg)
	m.Question = []dns.Question{{Name: dns.Fqdn(name), Qtype: qtype, Qclass: qclass}}
	wire, err := m.Pack()
	require.NoError(t, err)
	return wire
}

func TestResponder(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, "node")

	// No answers before the probe sequence completed.
	r.LinkUp(ownIPv4, netip.Addr{})
	r.HandlePacket(question(t, "node.local", dns.TypeA, dns.ClassINET), peer)
	assert.Empty(t, r.multicast.packets())

	for range 4 {
		r.Tick()
	}
	require.Equal(t, Up, r.State())
	r.multicast.reset()

	r.HandlePacket(question(t, "node.local", dns.TypeA, dns.ClassINET|dns.ClassINET<<15), peer)
	pkts := r.multicast.packets()
	require.Len(t, pkts, 2)
	assert.Equal(t, MDNSGroupIPv4, pkts[0].to)
	assert.Equal(t, peer, pkts[1].to)

	m := new(dns.Msg)
	require.NoError(t, m.Unpack(pkts[0].wire))
	assert.True(t, m.Response)
	assert.True(t, m.Authoritative)
	require.Len(t, m.Answer, 1)
	a, ok := m.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "node.local.", a.Hdr.Name)
	assert.Equal(t, uint32(dnswire.DefaultSelfTTL), a.Hdr.Ttl)
	assert.Equal(t, ownIPv4.String(), a.A.String())

	// The bare hostname is answered too.
	r.multicast.reset()
	r.HandlePacket(question(t, "NODE", dns.TypeA, dns.ClassINET), peer)
	assert.Len(t, r.multicast.packets(), 2)

	// No AAAA without a global IPv6 address, nothing for other names,
	// classes or types.
	r.multicast.reset()
	r.HandlePacket(question(t, "node.local", dns.TypeAAAA, dns.ClassINET), peer)
	r.HandlePacket(question(t, "other.local", dns.TypeA, dns.ClassINET), peer)
	r.HandlePacket(question(t, "node.local", dns.TypeA, dns.ClassCHAOS), peer)
	r.HandlePacket(question(t, "node.local", dns.TypeTXT, dns.ClassINET), peer)
	r.HandlePacket(question(t, "node.local", dns.TypeHINFO, dns.ClassINET), peer)
	r.HandlePacket(question(t, "node.local", dns.TypeCNAME, dns.ClassINET), peer)
	r.HandlePacket(question(t, "10.1.168.192.in-addr.arpa", dns.TypePTR, dns.ClassINET), peer)
	assert.Empty(t, r.multicast.packets())
}

func TestResponderIPv6(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, "node")
	ownIPv6 := netip.MustParseAddr("2001:db8::10")
	r.LinkUp(ownIPv4, ownIPv6)
	for range 4 {
		r.Tick()
	}
	require.Equal(t, Up, r.State())
	r.multicast.reset()

	r.HandlePacket(question(t, "node.local", dns.TypeANY, dns.ClassINET), peer)
	pkts := r.multicast.packets()
	require.Len(t, pkts, 4)

	m := new(dns.Msg)
	require.NoError(t, m.Unpack(pkts[2].wire))
	aaaa, ok := m.Answer[0].(*dns.AAAA)
	require.True(t, ok)
	assert.Equal(t, ownIPv6.String(), aaaa.AAAA.String())
	assert.Equal(t, uint64(2), r.Metrics().SelfAnswers.Get())
}

func TestOwnAnswerLoopedBack(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: testEpoch}
	r := &testResolver{
		Resolver: New(Options{
			Hostname:      "node",
			MulticastIPv6: true,
			Now:           clock.Now,
		}),
		clock:     clock,
		unicast:   &fakeConn{},
		multicast: &fakeConn{},
	}
	r.BindUnicast(r.unicast)
	r.BindMulticast(r.multicast)

	ownIPv6 := netip.MustParseAddr("2001:db8::10")
	linkLocal := netip.MustParseAddr("fe80::10")
	secondIPv4 := netip.MustParseAddr("10.0.0.10")
	r.LinkUp(ownIPv4, ownIPv6, linkLocal, secondIPv4)
	for range 4 {
		r.Tick()
	}
	require.Equal(t, Up, r.State())
	r.multicast.reset()

	r.HandlePacket(question(t, "node.local", dns.TypeA, dns.ClassINET), peer)
	pkts := r.multicast.packets()
	require.Len(t, pkts, 3)
	assert.Equal(t, MDNSGroupIPv6, pkts[1].to)

	// The group copy comes back from the link-local address.
	r.HandlePacket(pkts[1].wire, netip.AddrPortFrom(linkLocal.WithZone("eth0"), MDNSPort))
	assert.Equal(t, Up, r.State())

	// Or from another address of the interface.
	r.HandlePacket(pkts[0].wire, netip.AddrPortFrom(secondIPv4, MDNSPort))
	assert.Equal(t, Up, r.State())

	// An announcement of an own address is ours, whatever the source.
	r.HandlePacket(response(t, 0, "", "node.local. 120 IN AAAA 2001:db8::10"), netip.MustParseAddrPort("[fe80::99]:5353"))
	assert.Equal(t, Up, r.State())

	st := r.Status()
	assert.Equal(t, []netip.Addr{linkLocal, secondIPv4}, st.Addrs)

	// A different host with another address is a collision.
	r.HandlePacket(response(t, 0, "", "node.local. 120 IN A 192.168.1.99"), netip.MustParseAddrPort("[fe80::99]:5353"))
	assert.Equal(t, Collision, r.State())
}

func TestLinkEventEqual(t *testing.T) {
	t.Parallel()

	a := LinkEvent{Up: true, IPv4: ownIPv4, Addrs: []netip.Addr{netip.MustParseAddr("fe80::10")}}
	b := LinkEvent{Up: true, IPv4: ownIPv4, Addrs: []netip.Addr{netip.MustParseAddr("fe80::10")}}
	assert.True(t, a.Equal(b))

	b.Addrs = append(b.Addrs, netip.MustParseAddr("10.0.0.10"))
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(LinkEvent{}))
}
