package udns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"slices"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/atrium-iot/netsvc/base/log"
	"github.com/atrium-iot/netsvc/service/mgr"
)

// maxPacketSize is the receive buffer size. mDNS packets may exceed the
// classic 512 byte DNS limit up to the interface MTU.
const maxPacketSize = 9000

// multicastTTL is the TTL and hop limit of mDNS packets.
const multicastTTL = 255

// UDPConn is a UDP socket pair for IPv4 and IPv6. Either side may be nil.
type UDPConn struct {
	name string
	v4   *ipv4.PacketConn
	v6   *ipv6.PacketConn
}

// ListenUnicast opens ephemeral UDP sockets for queries to nameservers.
// Failing to open the IPv6 socket is not an error.
func ListenUnicast(ctx context.Context) (*UDPConn, error) {
	var lc net.ListenConfig
	c := &UDPConn{name: "unicast"}

	pc4, err := lc.ListenPacket(ctx, "udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen on udp4: %w", err)
	}
	c.v4 = ipv4.NewPacketConn(pc4)

	pc6, err := lc.ListenPacket(ctx, "udp6", "[::]:0")
	if err != nil {
		log.Warningf("udns: failed to listen on udp6, nameservers are only reachable via IPv4: %s", err)
	} else {
		c.v6 = ipv6.NewPacketConn(pc6)
	}
	return c, nil
}

// ListenMulticast opens the mDNS sockets and joins the mDNS groups on ifi.
// If ifi is nil, the system default interface is used.
func ListenMulticast(ctx context.Context, ifi *net.Interface, withIPv6 bool) (*UDPConn, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	c := &UDPConn{name: "mdns"}

	pc4, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("0.0.0.0:%d", MDNSPort))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on udp4 port %d: %w", MDNSPort, err)
	}
	c.v4 = ipv4.NewPacketConn(pc4)
	if err := setupMulticast4(c.v4, ifi); err != nil {
		_ = c.Close()
		return nil, err
	}

	if !withIPv6 {
		return c, nil
	}

	pc6, err := lc.ListenPacket(ctx, "udp6", fmt.Sprintf("[::]:%d", MDNSPort))
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to listen on udp6 port %d: %w", MDNSPort, err)
	}
	c.v6 = ipv6.NewPacketConn(pc6)
	if err := setupMulticast6(c.v6, ifi); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func setupMulticast4(p *ipv4.PacketConn, ifi *net.Interface) error {
	group := &net.UDPAddr{IP: MDNSGroupIPv4.Addr().AsSlice()}
	if err := p.JoinGroup(ifi, group); err != nil {
		return fmt.Errorf("failed to join %s: %w", group.IP, err)
	}
	if ifi != nil {
		if err := p.SetMulticastInterface(ifi); err != nil {
			return fmt.Errorf("failed to set multicast interface: %w", err)
		}
	}
	if err := p.SetMulticastTTL(multicastTTL); err != nil {
		return fmt.Errorf("failed to set multicast ttl: %w", err)
	}
	return p.SetMulticastLoopback(true)
}

func setupMulticast6(p *ipv6.PacketConn, ifi *net.Interface) error {
	group := &net.UDPAddr{IP: MDNSGroupIPv6.Addr().AsSlice()}
	if err := p.JoinGroup(ifi, group); err != nil {
		return fmt.Errorf("failed to join %s: %w", group.IP, err)
	}
	if ifi != nil {
		if err := p.SetMulticastInterface(ifi); err != nil {
			return fmt.Errorf("failed to set multicast interface: %w", err)
		}
	}
	if err := p.SetMulticastHopLimit(multicastTTL); err != nil {
		return fmt.Errorf("failed to set multicast hop limit: %w", err)
	}
	return p.SetMulticastLoopback(true)
}

// WriteTo sends b to the given destination, using the socket of its
// address family.
func (c *UDPConn) WriteTo(b []byte, to netip.AddrPort) error {
	dst := net.UDPAddrFromAddrPort(netip.AddrPortFrom(to.Addr().Unmap(), to.Port()))
	var err error
	switch {
	case to.Addr().Unmap().Is4() && c.v4 != nil:
		_, err = c.v4.WriteTo(b, nil, dst)
	case to.Addr().Is6() && !to.Addr().Is4In6() && c.v6 != nil:
		_, err = c.v6.WriteTo(b, nil, dst)
	default:
		return fmt.Errorf("%w for %s", ErrNoSocket, to)
	}
	return err
}

// Close closes all sockets.
func (c *UDPConn) Close() error {
	var errs *multierror.Error
	if c.v4 != nil {
		errs = multierror.Append(errs, c.v4.Close())
	}
	if c.v6 != nil {
		errs = multierror.Append(errs, c.v6.Close())
	}
	return errs.ErrorOrNil()
}

// Serve starts reader workers that hand all received datagrams to the
// engine. The sockets are closed when the engine stops.
func (e *Engine) Serve(c *UDPConn) {
	if c.v4 != nil {
		e.mgr.Go("udns "+c.name+" reader udp4", func(w *mgr.WorkerCtx) error {
			return e.readLoop(w, func(b []byte) (int, net.Addr, error) {
				n, _, src, err := c.v4.ReadFrom(b)
				return n, src, err
			})
		})
	}
	if c.v6 != nil {
		e.mgr.Go("udns "+c.name+" reader udp6", func(w *mgr.WorkerCtx) error {
			return e.readLoop(w, func(b []byte) (int, net.Addr, error) {
				n, _, src, err := c.v6.ReadFrom(b)
				return n, src, err
			})
		})
	}
	e.mgr.Go("udns "+c.name+" closer", func(w *mgr.WorkerCtx) error {
		<-w.Done()
		_ = c.Close()
		return nil
	})
}

func (e *Engine) readLoop(w *mgr.WorkerCtx, read func([]byte) (int, net.Addr, error)) error {
	buf := make([]byte, maxPacketSize)
	for {
		n, src, err := read(buf)
		if err != nil {
			if w.IsDone() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to read: %w", err)
		}

		udpAddr, ok := src.(*net.UDPAddr)
		if !ok {
			continue
		}
		from := udpAddr.AddrPort()
		from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())

		if err := e.Deliver(slices.Clone(buf[:n]), from); err != nil {
			// Only fails when shutting down.
			return nil
		}
	}
}
