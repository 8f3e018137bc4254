package mgr

import (
	"context"
	"errors"
	"sync"
	"time"
)

// WorkerMgr schedules a worker. Each execution is triggered either by the
// delay timer or manually via Go. The worker may reschedule itself by calling
// Delay on its WorkerCtx's WorkerMgr.
type WorkerMgr struct {
	mgr *Manager
	ctx *WorkerCtx

	name    string
	fn      func(w *WorkerCtx) error
	errorFn func(c *WorkerCtx, err error, panicInfo string)

	// Manual trigger.
	run chan struct{}

	timerLock    sync.Mutex
	timer        *time.Timer
	selectAction chan struct{}
}

// NewWorkerMgr creates a new scheduler for the given worker function.
// Errors and panics will only be logged by default.
// If custom behavior is required, supply an errorFn.
// The scheduler stays alive until Stop is called or the manager is canceled.
func (m *Manager) NewWorkerMgr(name string, fn func(w *WorkerCtx) error, errorFn func(c *WorkerCtx, err error, panicInfo string)) *WorkerMgr {
	wCtx := m.newWorkerCtx(name)
	wCtx.ctx, wCtx.cancelCtx = context.WithCancel(m.Ctx())

	s := &WorkerMgr{
		mgr:          m,
		ctx:          wCtx,
		name:         name,
		fn:           fn,
		errorFn:      errorFn,
		run:          make(chan struct{}, 1),
		selectAction: make(chan struct{}, 1),
	}

	m.workerStart(name)
	go s.taskMgr()
	return s
}

// Delay starts the given function delayed in a goroutine (as a "worker").
func (m *Manager) Delay(name string, period time.Duration, fn func(w *WorkerCtx) error) *WorkerMgr {
	return m.NewWorkerMgr(name, fn, nil).Delay(period)
}

func (s *WorkerMgr) currentTimer() <-chan time.Time {
	s.timerLock.Lock()
	defer s.timerLock.Unlock()

	if s.timer == nil {
		return nil
	}
	return s.timer.C
}

func (s *WorkerMgr) clearTimer() {
	s.timerLock.Lock()
	defer s.timerLock.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// expireTimer removes the timer if it is still the one that fired.
func (s *WorkerMgr) expireTimer(c <-chan time.Time) {
	s.timerLock.Lock()
	defer s.timerLock.Unlock()

	if s.timer != nil && s.timer.C == c {
		s.timer = nil
	}
}

func (s *WorkerMgr) taskMgr() {
	defer s.mgr.workerDone(s.name)
	defer s.ctx.cancelCtx()
	defer s.clearTimer()

	for {
		timerC := s.currentTimer()
		select {
		case <-timerC:
			s.expireTimer(timerC)
		case <-s.run:
		case <-s.selectAction:
			// Timer changed, select again.
			continue
		case <-s.ctx.Done():
			return
		}

		wCtx := s.mgr.newWorkerCtx(s.name)
		wCtx.workerMgr = s
		panicInfo, err := s.mgr.runWorker(wCtx, s.fn)

		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		default:
			s.ctx.Error("worker failed", "err", err, "file", panicInfo)

			// The error handler can stop the scheduler if it wants to.
			if s.errorFn != nil {
				s.errorFn(s.ctx, err, panicInfo)
			}
		}
	}
}

// Delay schedules the worker to run after the given duration, replacing any
// pending delay. Passing 0 or less disables the delay.
func (s *WorkerMgr) Delay(duration time.Duration) *WorkerMgr {
	s.timerLock.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if duration > 0 {
		s.timer = time.NewTimer(duration)
	}
	s.timerLock.Unlock()

	select {
	case s.selectAction <- struct{}{}:
	default:
	}
	return s
}

// Go executes the worker immediately and clears any pending delay.
// If the worker is currently being executed,
// the next execution will commence afterwards.
func (s *WorkerMgr) Go() {
	s.clearTimer()

	select {
	case s.run <- struct{}{}:
	default:
	}
}

// Stop immediately stops the scheduler and all related workers.
func (s *WorkerMgr) Stop() {
	s.ctx.cancelCtx()
}
