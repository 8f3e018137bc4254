// Package udns implements a small DNS and mDNS resolver and responder.
//
// All resolver state lives in a Resolver, which must only be used from a
// single goroutine. Engine runs a Resolver as an actor and is safe for
// concurrent use.
package udns

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/atrium-iot/netsvc/service/udns/dnswire"
)

// Errors.
var (
	// ErrNotFound is a basic error that will match all "not found" errors.
	ErrNotFound = errors.New("record could not be found")
	// ErrTimeout is returned when a query times out.
	ErrTimeout = errors.New("query timed out")
	// ErrShuttingDown is returned when the resolver is shutting down.
	ErrShuttingDown = errors.New("resolver is shutting down")
	// ErrNoSocket is returned when sending without a bound socket.
	ErrNoSocket = errors.New("no socket bound")

	// ErrInvalid wraps ErrNotFound.
	ErrInvalid = fmt.Errorf("%w: invalid request", ErrNotFound)
)

// Ports.
const (
	DNSPort  uint16 = 53
	MDNSPort uint16 = 5353
)

// mDNS multicast groups.
var (
	MDNSGroupIPv4 = netip.AddrPortFrom(netip.AddrFrom4([4]byte{224, 0, 0, 251}), MDNSPort)
	MDNSGroupIPv6 = netip.AddrPortFrom(netip.MustParseAddr("ff02::fb"), MDNSPort)
)

// Defaults.
const (
	DefaultCacheBudget   = 256
	DefaultRetryInterval = time.Second
	DefaultMaxRetries    = 5
	DefaultMaxAliases    = 32
	MaxNameservers       = 4

	// DefaultTickDelay is the tick interval while nothing progresses.
	DefaultTickDelay = 100 * time.Millisecond
	// ProbeTickDelay is the tick interval after a successful probe.
	ProbeTickDelay = 250 * time.Millisecond
)

// Options configures a Resolver. Zero values are replaced by defaults.
type Options struct {
	// Hostname is the node's own name, without the ".local" suffix.
	Hostname string
	// CacheBudget is the answer cache size in bytes.
	CacheBudget int
	// SelfTTL is the TTL of own mDNS answers, in seconds.
	SelfTTL uint32
	// RetryInterval is the age after which unicast queries are resent.
	RetryInterval time.Duration
	// MaxRetries is the number of resends before a query fails.
	MaxRetries int
	// MaxAliases bounds the alias table.
	MaxAliases int
	// MulticastIPv6 additionally sends mDNS traffic to the IPv6 group.
	MulticastIPv6 bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CacheBudget <= 0 {
		o.CacheBudget = DefaultCacheBudget
	}
	if o.SelfTTL == 0 {
		o.SelfTTL = dnswire.DefaultSelfTTL
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MaxAliases <= 0 {
		o.MaxAliases = DefaultMaxAliases
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Conn sends datagrams. It is implemented by UDPConn and by test fakes.
type Conn interface {
	WriteTo(b []byte, to netip.AddrPort) error
}
