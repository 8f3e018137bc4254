package main

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/atrium-iot/netsvc/base/config"
	"github.com/atrium-iot/netsvc/base/log"
	"github.com/atrium-iot/netsvc/service/udns"
)

func optionsFromConfig(c *config.Config) udns.Options {
	return udns.Options{
		Hostname:      c.Hostname,
		CacheBudget:   c.CacheBudget,
		SelfTTL:       c.SelfTTL,
		RetryInterval: time.Duration(c.RetryInterval),
		MaxRetries:    c.MaxRetries,
		MaxAliases:    c.MaxAliases,
		MulticastIPv6: c.MulticastIPv6,
	}
}

// startEngine starts an engine with its sockets as configured.
// mDNS is optional: if the mDNS port cannot be opened, only unicast
// resolving is available.
func startEngine(ctx context.Context, c *config.Config) (*udns.Engine, *net.Interface, error) {
	var ifi *net.Interface
	if c.Interface != "" {
		var err error
		ifi, err = net.InterfaceByName(c.Interface)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to find interface %s: %w", c.Interface, err)
		}
	}

	e := udns.NewEngine(ctx, optionsFromConfig(c))
	e.Start()

	for _, ns := range c.Nameservers {
		res, err := e.AddNameserverString(ctx, ns)
		if err != nil {
			e.Stop()
			return nil, nil, err
		}
		if res != udns.Added {
			log.Warningf("udns: nameserver %s not added: %s", ns, res)
		}
	}

	uc, err := udns.ListenUnicast(ctx)
	if err != nil {
		e.Stop()
		return nil, nil, err
	}
	if err := e.BindUnicast(ctx, uc); err != nil {
		_ = uc.Close()
		e.Stop()
		return nil, nil, err
	}
	e.Serve(uc)

	mc, err := udns.ListenMulticast(ctx, ifi, c.MulticastIPv6)
	if err != nil {
		log.Warningf("udns: mDNS is unavailable: %s", err)
		return e, ifi, nil
	}
	if err := e.BindMulticast(ctx, mc); err != nil {
		_ = mc.Close()
		e.Stop()
		return nil, nil, err
	}
	e.Serve(mc)

	return e, ifi, nil
}

// currentLink returns the link state of ifi, or of the first usable
// interface if ifi is nil.
func currentLink(ifi *net.Interface) udns.LinkEvent {
	var ifaces []net.Interface
	if ifi != nil {
		// Refresh flags.
		if fresh, err := net.InterfaceByIndex(ifi.Index); err == nil {
			ifaces = []net.Interface{*fresh}
		}
	} else if all, err := net.Interfaces(); err == nil {
		ifaces = all
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		ev := linkFromAddrs(&iface)
		if ev.Up {
			return ev
		}
	}
	return udns.LinkEvent{}
}

func linkFromAddrs(iface *net.Interface) udns.LinkEvent {
	addrs, err := iface.Addrs()
	if err != nil {
		return udns.LinkEvent{}
	}

	var ev udns.LinkEvent
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		switch {
		case ip.Is4() && !ev.IPv4.IsValid():
			ev.IPv4 = ip
		case ip.Is6() && ip.IsGlobalUnicast() && !ev.IPv6.IsValid():
			ev.IPv6 = ip
		default:
			// Loopback copies of own mDNS packets may come from any of these.
			ev.Addrs = append(ev.Addrs, ip)
		}
	}
	ev.Up = ev.IPv4.IsValid()
	return ev
}
