package udns

import (
	"fmt"
	"io"
	"net/netip"
	"slices"
	"text/tabwriter"
	"time"
)

// Status is a snapshot of the resolver state.
type Status struct {
	Hostname string
	State    ProbeState
	IPv4     netip.Addr
	IPv6     netip.Addr
	Addrs    []netip.Addr

	Nameservers []netip.AddrPort
	CacheSize   int
	CacheBudget int
	Cache       []CacheEntry
	Aliases     []Alias
	Pending     []PendingQuery
}

// Status returns a snapshot of the resolver state.
func (r *Resolver) Status() Status {
	now := r.opts.Now()
	r.cache.purgeExpired(now)

	return Status{
		Hostname:    r.hostname,
		State:       r.state,
		IPv4:        r.ipv4,
		IPv6:        r.ipv6,
		Addrs:       slices.Clone(r.otherAddrs),
		Nameservers: r.nameservers.All(),
		CacheSize:   r.cache.Size(),
		CacheBudget: r.cache.Budget(),
		Cache:       r.cache.Entries(),
		Aliases:     r.aliases.Entries(),
		Pending:     r.queries.pending(now),
	}
}

// Print writes a human readable form of the status to w.
func (s Status) Print(w io.Writer, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "hostname:\t%s\n", s.Hostname)
	fmt.Fprintf(tw, "mdns state:\t%s\n", s.State)
	if s.IPv4.IsValid() {
		fmt.Fprintf(tw, "ipv4:\t%s\n", s.IPv4)
	}
	if s.IPv6.IsValid() {
		fmt.Fprintf(tw, "ipv6:\t%s\n", s.IPv6)
	}
	for _, addr := range s.Addrs {
		fmt.Fprintf(tw, "also:\t%s\n", addr)
	}
	for i, ns := range s.Nameservers {
		fmt.Fprintf(tw, "nameserver %d:\t%s\n", i+1, ns)
	}

	fmt.Fprintf(tw, "\ncache:\t%d/%d bytes\n", s.CacheSize, s.CacheBudget)
	for _, e := range s.Cache {
		addr := "-"
		if e.Addr.IsValid() {
			addr = e.Addr.String()
		}
		fmt.Fprintf(tw, "  %s\t%s\tttl %s\n", e.Hostname, addr, e.Expires.Sub(now).Round(time.Second))
	}

	if len(s.Aliases) > 0 {
		fmt.Fprintln(tw, "\naliases:")
		for _, a := range s.Aliases {
			fmt.Fprintf(tw, "  %s\t-> %s\n", a.Alias, a.Canonical)
		}
	}

	if len(s.Pending) > 0 {
		fmt.Fprintln(tw, "\npending queries:")
		for _, q := range s.Pending {
			kind := "unicast"
			if q.Multicast {
				kind = "mdns"
			}
			fmt.Fprintf(tw, "  #%d\t%s\t%s\tretries %d\tage %s\n", q.Handle, q.Name, kind, q.Retries, q.Age.Round(time.Millisecond))
		}
	}

	return tw.Flush()
}
