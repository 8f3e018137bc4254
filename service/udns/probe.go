package udns

import (
	"net/netip"
	"slices"
	"time"

	"github.com/atrium-iot/netsvc/base/log"
	"github.com/atrium-iot/netsvc/service/udns/dnswire"
)

// ProbeState is the state of the mDNS self announcement.
type ProbeState uint8

// Probe states.
const (
	WifiDown ProbeState = iota
	WifiUp
	Probe0
	Probe1
	Probe2
	Up
	Collision
)

func (s ProbeState) String() string {
	switch s {
	case WifiDown:
		return "wifi-down"
	case WifiUp:
		return "wifi-up"
	case Probe0:
		return "probe-0"
	case Probe1:
		return "probe-1"
	case Probe2:
		return "probe-2"
	case Up:
		return "up"
	case Collision:
		return "collision"
	default:
		return "unknown"
	}
}

// LinkEvent reports a change of the network link.
type LinkEvent struct {
	Up bool
	// Own addresses, only set with Up. IPv6 must be a global address to be
	// announced.
	IPv4 netip.Addr
	IPv6 netip.Addr
	// Addrs holds all other addresses of the interface, link-local IPv6
	// included. They are never announced, but packets from them are our own.
	Addrs []netip.Addr
}

// Equal reports whether both events describe the same link state.
func (ev LinkEvent) Equal(other LinkEvent) bool {
	return ev.Up == other.Up &&
		ev.IPv4 == other.IPv4 &&
		ev.IPv6 == other.IPv6 &&
		slices.Equal(ev.Addrs, other.Addrs)
}

// LinkUp starts probing with the given own addresses. The addresses in
// others are not announced and only used to recognize own packets.
func (r *Resolver) LinkUp(ipv4, ipv6 netip.Addr, others ...netip.Addr) {
	r.ipv4 = ipv4.Unmap()
	r.ipv6 = ipv6.WithZone("")
	r.otherAddrs = r.otherAddrs[:0]
	for _, addr := range others {
		r.otherAddrs = append(r.otherAddrs, addr.Unmap().WithZone(""))
	}
	r.setState(WifiUp)
}

// LinkDown stops probing, answering and retransmission.
func (r *Resolver) LinkDown() {
	r.setState(WifiDown)
}

// UpdateHostname changes the own hostname. With the link up, probing starts
// over.
func (r *Resolver) UpdateHostname(hostname string) {
	r.hostname = normalizeName(hostname)
	if r.state != WifiDown {
		r.setState(WifiUp)
	}
}

// State returns the probe state.
func (r *Resolver) State() ProbeState {
	return r.state
}

func (r *Resolver) setState(s ProbeState) {
	if r.state == s {
		return
	}
	log.Tracef("udns: probe state %s -> %s", r.state, s)
	r.state = s
}

// probeTick advances the probe sequence and returns the next tick delay.
func (r *Resolver) probeTick() time.Duration {
	switch r.state {
	case WifiUp, Probe0, Probe1:
		if r.sendProbe() > 0 {
			r.setState(r.state + 1)
			return ProbeTickDelay
		}
	case Probe2:
		r.setState(Up)
		log.Infof("udns: mDNS up as %s", dnswire.LocalName(r.hostname))
	}
	return DefaultTickDelay
}

// sendProbe asks the multicast group for the own name.
func (r *Resolver) sendProbe() int {
	if r.hostname == "" {
		return 0
	}
	wire, err := dnswire.EncodeQuery(dnswire.LocalName(r.hostname), 0, dnswire.TypeA, false)
	if err != nil {
		log.Warningf("udns: failed to build probe for %s: %s", r.hostname, err)
		return 0
	}
	return r.sendMulticast(wire)
}

// isOwnName reports whether name is the own hostname, bare or with ".local".
func (r *Resolver) isOwnName(name string) bool {
	return r.hostname != "" && (name == r.hostname || name == r.hostname+dnswire.LocalSuffix)
}

// isOwnAddr reports whether addr is one of the own addresses.
func (r *Resolver) isOwnAddr(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap().WithZone("")
	return addr == r.ipv4 || addr == r.ipv6 || slices.Contains(r.otherAddrs, addr)
}

// checkCollision moves to Collision if another host answers for the own
// name. Answers sent from an own address, or carrying one, are our own
// announcements looped back, e.g. via ff02::fb from the link-local address.
func (r *Resolver) checkCollision(rr dnswire.Record, from netip.AddrPort) {
	if r.state != Up || r.isOwnAddr(from.Addr()) || r.isOwnAddr(rr.Addr) {
		return
	}
	r.setState(Collision)
	log.Warningf("udns: hostname %s is also claimed by %s", rr.Name, from.Addr())
}
