package udns

import (
	"context"
	"net/netip"
	"time"

	"github.com/tevino/abool"

	"github.com/atrium-iot/netsvc/base/log"
	"github.com/atrium-iot/netsvc/service/mgr"
)

// Engine runs a Resolver on a single goroutine. API calls, received packets
// and ticks are handed to that goroutine as requests and executed one after
// another. Engine is safe for concurrent use.
type Engine struct {
	mgr *mgr.Manager
	res *Resolver

	requests chan func(*Resolver)
	started  *abool.AtomicBool

	// LinkEvents reports link changes to the engine.
	LinkEvents *mgr.EventMgr[LinkEvent]
	linkSub    *mgr.EventSubscription[LinkEvent]

	ticker *mgr.WorkerMgr
}

// NewEngine returns a new engine. Calls block until Start is called.
// The engine is stopped when ctx is canceled or Stop is called.
func NewEngine(ctx context.Context, opts Options) *Engine {
	m := mgr.NewWithContext(ctx, "udns")
	e := &Engine{
		mgr:        m,
		res:        New(opts),
		requests:   make(chan func(*Resolver)),
		started:    abool.New(),
		LinkEvents: mgr.NewEventMgr[LinkEvent]("link", m),
	}
	e.linkSub = e.LinkEvents.Subscribe("udns engine", 16)
	return e
}

// Start starts the engine and its tick.
func (e *Engine) Start() {
	if !e.started.SetToIf(false, true) {
		return
	}
	e.ticker = e.mgr.Delay("udns tick", DefaultTickDelay, e.tick)
	e.mgr.Go("udns engine", e.loop)
}

// Stop stops the engine and waits for its workers.
func (e *Engine) Stop() {
	if e.ticker != nil {
		e.ticker.Stop()
	}
	e.mgr.Cancel()
	if !e.mgr.WaitForWorkers(5 * time.Second) {
		log.Warning("udns: engine workers did not stop in time")
	}
}

// Done returns a channel that is closed when the engine stops.
func (e *Engine) Done() <-chan struct{} {
	return e.mgr.Done()
}

// Manager returns the manager the engine's workers run in.
func (e *Engine) Manager() *mgr.Manager {
	return e.mgr
}

// Metrics returns the resolver's counters.
func (e *Engine) Metrics() *Metrics {
	return e.res.Metrics()
}

func (e *Engine) loop(w *mgr.WorkerCtx) error {
	for {
		select {
		case fn := <-e.requests:
			fn(e.res)

		case ev := <-e.linkSub.Events():
			if ev.Up {
				log.Infof("udns: link up with %s %s (%d other addresses)", ev.IPv4, ev.IPv6, len(ev.Addrs))
				e.res.LinkUp(ev.IPv4, ev.IPv6, ev.Addrs...)
				// Start probing right away.
				e.ticker.Go()
			} else {
				log.Info("udns: link down")
				e.res.LinkDown()
			}

		case <-w.Done():
			return nil
		}
	}
}

func (e *Engine) tick(w *mgr.WorkerCtx) error {
	var next time.Duration
	err := e.exec(w.Ctx(), func(r *Resolver) {
		next = r.Tick()
	})
	if err != nil {
		// Only fails when shutting down.
		return nil
	}
	w.WorkerMgr().Delay(next)
	return nil
}

// exec runs fn on the engine goroutine and waits for it to complete.
// Once fn is accepted, exec waits for it even if ctx is canceled.
func (e *Engine) exec(ctx context.Context, fn func(r *Resolver)) error {
	done := make(chan struct{})
	req := func(r *Resolver) {
		defer close(done)
		fn(r)
	}

	select {
	case e.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.mgr.Done():
		return ErrShuttingDown
	}

	select {
	case <-done:
		return nil
	case <-e.mgr.Done():
		return ErrShuttingDown
	}
}

// Deliver hands a received datagram to the engine.
func (e *Engine) Deliver(buf []byte, from netip.AddrPort) error {
	return e.exec(e.mgr.Ctx(), func(r *Resolver) {
		r.HandlePacket(buf, from)
	})
}
