package udns

import (
	"context"
	"net/netip"
	"time"

	"github.com/atrium-iot/netsvc/base/log"
)

// Resolve resolves hostname and calls cb with the result on the engine
// goroutine. See Resolver.Resolve.
func (e *Engine) Resolve(ctx context.Context, hostname string, cb ResolveFunc) (h Handle, sent int, err error) {
	execErr := e.exec(ctx, func(r *Resolver) {
		h, sent, err = r.Resolve(hostname, cb)
	})
	if execErr != nil {
		return 0, 0, execErr
	}
	return h, sent, err
}

type resolveResult struct {
	addr netip.Addr
	err  error
}

// ResolveBlocking resolves hostname and waits for the result, at most for
// timeout. On timeout the query is canceled and ErrTimeout is returned.
func (e *Engine) ResolveBlocking(ctx context.Context, hostname string, timeout time.Duration) (netip.Addr, error) {
	tracer := log.Tracer(ctx)
	results := make(chan resolveResult, 1)
	h, sent, err := e.Resolve(ctx, hostname, func(_ string, addr netip.Addr, err error) {
		results <- resolveResult{addr: addr, err: err}
	})
	if err != nil {
		tracer.Debugf("udns: failed to resolve %s: %s", hostname, err)
		return netip.Addr{}, err
	}
	if h == 0 {
		tracer.Tracef("udns: %s answered from cache", hostname)
	} else {
		tracer.Tracef("udns: query %d for %s sent %d times", h, hostname, sent)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case res := <-results:
		tracer.Tracef("udns: got answer for %s", hostname)
		return res.addr, res.err
	case <-timer.C:
		tracer.Debugf("udns: no answer for %s within %s", hostname, timeout)
		waitErr = ErrTimeout
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	// The answer may have arrived just before the cancel.
	var canceled bool
	_ = e.exec(context.Background(), func(r *Resolver) {
		canceled = r.Cancel(h)
	})
	if !canceled {
		select {
		case res := <-results:
			return res.addr, res.err
		default:
		}
	}
	return netip.Addr{}, waitErr
}

// Cancel removes a pending query. It reports whether the query was pending.
func (e *Engine) Cancel(ctx context.Context, h Handle) (canceled bool, err error) {
	err = e.exec(ctx, func(r *Resolver) {
		canceled = r.Cancel(h)
	})
	return canceled, err
}

// AddNameserver adds a unicast nameserver.
func (e *Engine) AddNameserver(ctx context.Context, server netip.AddrPort) (res AddResult, err error) {
	err = e.exec(ctx, func(r *Resolver) {
		res = r.AddNameserver(server)
	})
	return res, err
}

// AddNameserverString parses and adds a unicast nameserver.
func (e *Engine) AddNameserverString(ctx context.Context, server string) (AddResult, error) {
	addr, err := ParseNameserver(server)
	if err != nil {
		return Invalid, err
	}
	return e.AddNameserver(ctx, addr)
}

// SetCacheBudget changes the cache budget in bytes.
func (e *Engine) SetCacheBudget(ctx context.Context, budget int) error {
	return e.exec(ctx, func(r *Resolver) {
		r.SetCacheBudget(budget)
	})
}

// Lookup returns the cached address of hostname.
func (e *Engine) Lookup(ctx context.Context, hostname string) (addr netip.Addr, found bool, err error) {
	err = e.exec(ctx, func(r *Resolver) {
		addr, found = r.Lookup(hostname)
	})
	return addr, found, err
}

// Status returns a snapshot of the resolver state.
func (e *Engine) Status(ctx context.Context) (status Status, err error) {
	err = e.exec(ctx, func(r *Resolver) {
		status = r.Status()
	})
	return status, err
}

// UpdateHostname changes the own hostname and restarts probing.
func (e *Engine) UpdateHostname(ctx context.Context, hostname string) error {
	return e.exec(ctx, func(r *Resolver) {
		r.UpdateHostname(hostname)
	})
}

// BindUnicast sets the socket used for queries to nameservers.
func (e *Engine) BindUnicast(ctx context.Context, c Conn) error {
	return e.exec(ctx, func(r *Resolver) {
		r.BindUnicast(c)
	})
}

// BindMulticast sets the socket used for mDNS.
func (e *Engine) BindMulticast(ctx context.Context, c Conn) error {
	return e.exec(ctx, func(r *Resolver) {
		r.BindMulticast(c)
	})
}
