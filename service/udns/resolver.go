package udns

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/miekg/dns"

	"github.com/atrium-iot/netsvc/base/log"
	"github.com/atrium-iot/netsvc/service/udns/dnswire"
)

// Resolver holds all resolver state: the answer cache, aliases, pending
// queries, nameservers and the probe state.
// A Resolver is not safe for concurrent use; see Engine.
type Resolver struct {
	opts    Options
	metrics *Metrics

	cache       *answerCache
	aliases     *aliasTable
	nameservers *nameServerSet
	queries     *queryTable

	state    ProbeState
	hostname string
	ipv4     netip.Addr
	ipv6     netip.Addr

	// otherAddrs are further interface addresses that are not announced.
	otherAddrs []netip.Addr

	unicast   Conn
	multicast Conn
	groups    []netip.AddrPort
}

// New returns a new Resolver.
func New(opts Options) *Resolver {
	opts = opts.withDefaults()

	groups := []netip.AddrPort{MDNSGroupIPv4}
	if opts.MulticastIPv6 {
		groups = append(groups, MDNSGroupIPv6)
	}

	return &Resolver{
		opts:        opts,
		metrics:     newMetrics(),
		cache:       newAnswerCache(opts.CacheBudget),
		aliases:     newAliasTable(opts.MaxAliases),
		nameservers: newNameServerSet(MaxNameservers),
		queries:     newQueryTable(),
		state:       WifiDown,
		hostname:    normalizeName(opts.Hostname),
		groups:      groups,
	}
}

// Metrics returns the resolver's counters.
func (r *Resolver) Metrics() *Metrics {
	return r.metrics
}

// BindUnicast sets the socket used for queries to nameservers.
func (r *Resolver) BindUnicast(c Conn) {
	r.unicast = c
}

// BindMulticast sets the socket used for mDNS.
func (r *Resolver) BindMulticast(c Conn) {
	r.multicast = c
}

// normalizeName lowercases name and strips a trailing dot.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
}

// AddNameserver adds a unicast nameserver.
func (r *Resolver) AddNameserver(server netip.AddrPort) AddResult {
	res := r.nameservers.Add(server)
	if res == Added {
		log.Debugf("udns: added nameserver %s", server)
	}
	return res
}

// SetCacheBudget changes the cache budget in bytes.
func (r *Resolver) SetCacheBudget(budget int) {
	r.cache.SetBudget(budget)
}

// Lookup returns the cached address of hostname, following aliases.
// The second return value is false if nothing is cached.
func (r *Resolver) Lookup(hostname string) (netip.Addr, bool) {
	return r.cache.Lookup(r.aliases.Canonical(normalizeName(hostname)), r.opts.Now())
}

// Resolve resolves hostname and calls cb with the result.
//
// If the answer is cached, cb is called before Resolve returns and the
// returned Handle is zero. Otherwise a query is sent to the mDNS group for
// ".local" names, or to every nameserver for all others, and the number of
// successful sends is returned. A query that could not be sent stays pending
// and is retried on later ticks.
func (r *Resolver) Resolve(hostname string, cb ResolveFunc) (Handle, int, error) {
	name := normalizeName(hostname)
	if name == "" {
		return 0, 0, fmt.Errorf("%w: empty hostname", ErrInvalid)
	}
	if _, ok := dns.IsDomainName(name); !ok {
		return 0, 0, fmt.Errorf("%w: invalid hostname %q", ErrInvalid, hostname)
	}

	now := r.opts.Now()
	canonical := r.aliases.Canonical(name)
	if addr, found := r.cache.Lookup(canonical, now); found {
		r.metrics.CacheHits.Inc()
		if addr.IsValid() {
			cb(name, addr, nil)
		} else {
			cb(name, addr, ErrNotFound)
		}
		return 0, 0, nil
	}
	r.metrics.CacheMisses.Inc()

	q := &query{
		name:      name,
		hostname:  canonical,
		callback:  cb,
		started:   now,
		sentAt:    now,
		multicast: dnswire.HasLocalSuffix(canonical),
	}
	var (
		id  uint16
		err error
	)
	if !q.multicast {
		id = r.queries.nextID()
	}
	q.wire, err = dnswire.EncodeQuery(canonical, id, dnswire.TypeA, !q.multicast)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	r.queries.add(q)

	q.sendCount = r.sendQuery(q)
	log.Tracef("udns: query %d for %s sent %d times", q.handle, canonical, q.sendCount)
	return q.handle, q.sendCount, nil
}

// Cancel removes a pending query. Its callback will not be called.
func (r *Resolver) Cancel(h Handle) bool {
	return r.queries.cancel(h)
}

func (r *Resolver) sendQuery(q *query) int {
	if q.multicast {
		return r.sendMulticast(q.wire)
	}
	return r.sendUnicast(q.wire)
}

// send writes wire to one destination.
func (r *Resolver) send(c Conn, wire []byte, to netip.AddrPort) error {
	if c == nil {
		return ErrNoSocket
	}
	if err := c.WriteTo(wire, to); err != nil {
		return err
	}
	r.metrics.QueriesSent.Inc()
	return nil
}

// sendAll writes wire to all destinations and returns the number of
// successful sends.
func (r *Resolver) sendAll(c Conn, wire []byte, dsts []netip.AddrPort) int {
	var (
		sent int
		errs *multierror.Error
	)
	for _, dst := range dsts {
		if err := r.send(c, wire, dst); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", dst, err))
			continue
		}
		sent++
	}
	if err := errs.ErrorOrNil(); err != nil {
		log.Debugf("udns: failed to send: %s", err)
	}
	return sent
}

func (r *Resolver) sendUnicast(wire []byte) int {
	return r.sendAll(r.unicast, wire, r.nameservers.All())
}

func (r *Resolver) sendMulticast(wire []byte) int {
	return r.sendAll(r.multicast, wire, r.groups)
}

// HandlePacket processes a received datagram. Malformed packets are dropped.
func (r *Resolver) HandlePacket(buf []byte, from netip.AddrPort) {
	msg, err := dnswire.Parse(buf)
	if err != nil {
		r.metrics.DroppedPackets.Inc()
		log.Debugf("udns: dropping packet from %s: %s", from, err)
		return
	}

	if !msg.Header.Response {
		for _, q := range msg.Questions {
			r.handleQuestion(msg.Header.ID, q, from)
		}
		return
	}

	if msg.Header.RCode == dnswire.RcodeNameError {
		r.metrics.NegativeReplies.Inc()
		for _, q := range msg.Questions {
			r.fail(normalizeName(q.Name), ErrNotFound)
		}
		return
	}

	// Aliases first, so that address records resolve renamed queries
	// regardless of their position in the message.
	addrs := make([]dnswire.Record, 0, len(msg.Answers))
	for _, rr := range msg.Records() {
		if !dnswire.ClassIsINET(rr.Class) {
			continue
		}
		rr.Name = normalizeName(rr.Name)

		if r.isOwnName(rr.Name) {
			r.checkCollision(rr, from)
			continue
		}

		switch rr.Type {
		case dnswire.TypeCNAME:
			r.handleAlias(rr.Name, normalizeName(rr.Target))
		case dnswire.TypeA, dnswire.TypeAAAA:
			addrs = append(addrs, rr)
		}
	}
	for _, rr := range addrs {
		r.handleAnswer(rr, from)
	}
}

// handleAlias records an alias and moves pending queries to the canonical
// name.
func (r *Resolver) handleAlias(alias, canonical string) {
	if canonical == "" {
		return
	}
	r.aliases.Add(alias, canonical)
	if r.queries.rename(alias, canonical) == 0 {
		return
	}
	log.Tracef("udns: following alias %s -> %s", alias, canonical)

	if addr, found := r.cache.Lookup(canonical, r.opts.Now()); found && addr.IsValid() {
		r.complete(canonical, addr)
	}
}

// handleAnswer caches an address record and resolves matching queries.
// Answers are cached if they resolve a query, or if they were multicast by
// an mDNS responder.
func (r *Resolver) handleAnswer(rr dnswire.Record, from netip.AddrPort) {
	r.metrics.Answers.Inc()
	matched := r.queries.take(rr.Name)
	if len(matched) > 0 || from.Port() == MDNSPort {
		r.cache.Insert(rr.Name, rr.Addr, time.Duration(rr.TTL)*time.Second, r.opts.Now())
	}
	for _, q := range matched {
		q.callback(q.name, rr.Addr, nil)
	}
}

// complete resolves all queries for hostname with addr.
func (r *Resolver) complete(hostname string, addr netip.Addr) {
	for _, q := range r.queries.take(hostname) {
		q.callback(q.name, addr, nil)
	}
}

// fail resolves all queries for hostname with err.
func (r *Resolver) fail(hostname string, err error) {
	for _, q := range r.queries.take(hostname) {
		q.callback(q.name, netip.Addr{}, err)
	}
}

// Tick advances the probe sequence and retransmits pending queries.
// It returns the delay until the next tick.
func (r *Resolver) Tick() time.Duration {
	if r.state == WifiDown {
		return DefaultTickDelay
	}

	delay := r.probeTick()
	r.retransmit(r.opts.Now())
	return delay
}

// retransmit fails exhausted queries and resends due unicast queries.
func (r *Resolver) retransmit(now time.Time) {
	for _, q := range r.queries.expire(now, r.opts.RetryInterval, r.opts.MaxRetries) {
		r.metrics.Timeouts.Inc()
		log.Debugf("udns: query for %s timed out", q.hostname)
		q.callback(q.name, netip.Addr{}, ErrTimeout)
	}

	for _, q := range r.queries.due(now, r.opts.RetryInterval) {
		q.sentAt = now
		q.retries++
		q.sendCount = r.sendUnicast(q.wire)
		r.metrics.Retransmits.Inc()
	}
}
