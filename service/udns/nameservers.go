package udns

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
)

// AddResult is the outcome of adding a nameserver.
type AddResult uint8

// Nameserver add results.
const (
	Added AddResult = iota
	Duplicate
	Full
	// Invalid means the address was not usable and nothing was added.
	Invalid
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case Duplicate:
		return "duplicate"
	case Full:
		return "full"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// nameServerSet is the list of unicast resolvers, bounded by limit.
type nameServerSet struct {
	servers []netip.AddrPort
	limit   int
}

func newNameServerSet(limit int) *nameServerSet {
	return &nameServerSet{limit: limit}
}

// Add adds a nameserver.
func (s *nameServerSet) Add(server netip.AddrPort) AddResult {
	if !server.Addr().IsValid() || server.Port() == 0 {
		return Invalid
	}
	server = netip.AddrPortFrom(server.Addr().Unmap(), server.Port())
	switch {
	case slices.Contains(s.servers, server):
		return Duplicate
	case len(s.servers) >= s.limit:
		return Full
	}
	s.servers = append(s.servers, server)
	return Added
}

// All returns a copy of the configured nameservers.
func (s *nameServerSet) All() []netip.AddrPort {
	return slices.Clone(s.servers)
}

// Len returns the number of nameservers.
func (s *nameServerSet) Len() int {
	return len(s.servers)
}

// ParseNameserver parses a nameserver address. The port defaults to 53.
// Accepted forms are "192.0.2.1", "192.0.2.1:5300", "2001:db8::1" and
// "[2001:db8::1]:5300".
func ParseNameserver(s string) (netip.AddrPort, error) {
	s = strings.TrimSpace(s)
	if addr, err := netip.ParseAddr(s); err == nil {
		if addr.Zone() != "" {
			return netip.AddrPort{}, fmt.Errorf("%w: nameserver %q has a zone", ErrInvalid, s)
		}
		return netip.AddrPortFrom(addr.Unmap(), DNSPort), nil
	}

	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: nameserver %q: %w", ErrInvalid, s, err)
	}
	if ap.Port() == 0 || ap.Addr().Zone() != "" {
		return netip.AddrPort{}, fmt.Errorf("%w: nameserver %q", ErrInvalid, s)
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}
