package udns

import (
	"net/netip"

	"github.com/atrium-iot/netsvc/base/log"
	"github.com/atrium-iot/netsvc/service/udns/dnswire"
)

// handleQuestion answers questions for the own hostname while Up.
func (r *Resolver) handleQuestion(id uint16, q dnswire.Question, from netip.AddrPort) {
	if r.state != Up || !dnswire.ClassIsINET(q.Class) || !r.isOwnName(normalizeName(q.Name)) {
		return
	}

	switch q.Type {
	case dnswire.TypeA:
		r.sendSelfAnswer(id, r.ipv4, from)
	case dnswire.TypeAAAA:
		r.sendSelfAnswer(id, r.ipv6, from)
	case dnswire.TypeANY:
		r.sendSelfAnswer(id, r.ipv4, from)
		r.sendSelfAnswer(id, r.ipv6, from)
	default:
		log.Debugf("udns: ignoring %s question for own name from %s", dnswire.TypeString(q.Type), from)
	}
}

// sendSelfAnswer sends the own address to the requester and to the
// multicast group, so that other listeners can update their caches.
func (r *Resolver) sendSelfAnswer(id uint16, addr netip.Addr, to netip.AddrPort) {
	if !addr.IsValid() || (addr.Is6() && !addr.IsGlobalUnicast()) {
		return
	}

	wire, err := dnswire.EncodeSelfAnswer(r.hostname, addr, id, r.opts.SelfTTL)
	if err != nil {
		log.Warningf("udns: failed to build answer for %s: %s", r.hostname, err)
		return
	}

	sent := r.sendMulticast(wire)
	if to.IsValid() && !r.isOwnAddr(to.Addr()) {
		if err := r.send(r.multicast, wire, to); err != nil {
			log.Debugf("udns: failed to answer %s: %s", to, err)
		} else {
			sent++
		}
	}
	if sent > 0 {
		r.metrics.SelfAnswers.Inc()
	}
}
