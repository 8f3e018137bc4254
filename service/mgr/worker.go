package mgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

// Restart backoff bounds for failing workers.
const (
	minBackoff = 100 * time.Millisecond
	maxBackoff = time.Minute
)

// WorkerCtx provides workers with the necessary environment for flow control
// and logging.
type WorkerCtx struct {
	name string

	ctx       context.Context
	cancelCtx context.CancelFunc

	workerMgr *WorkerMgr
	logger    *slog.Logger
}

// Name returns the worker name.
func (w *WorkerCtx) Name() string {
	return w.name
}

// Ctx returns the worker context.
// Is automatically canceled after the worker stops/returns, regardless of error.
func (w *WorkerCtx) Ctx() context.Context {
	return w.ctx
}

// Cancel cancels the worker context.
func (w *WorkerCtx) Cancel() {
	w.cancelCtx()
}

// WorkerMgr returns the worker manager the worker was started from.
// Returns nil if the worker is not associated with a scheduler.
func (w *WorkerCtx) WorkerMgr() *WorkerMgr {
	return w.workerMgr
}

// Done returns the context Done channel.
func (w *WorkerCtx) Done() <-chan struct{} {
	return w.ctx.Done()
}

// IsDone checks whether the worker context is done.
func (w *WorkerCtx) IsDone() bool {
	return w.ctx.Err() != nil
}

// Debug logs at LevelDebug.
func (w *WorkerCtx) Debug(msg string, args ...any) {
	w.logger.DebugContext(w.ctx, msg, args...)
}

// Info logs at LevelInfo.
func (w *WorkerCtx) Info(msg string, args ...any) {
	w.logger.InfoContext(w.ctx, msg, args...)
}

// Warn logs at LevelWarn.
func (w *WorkerCtx) Warn(msg string, args ...any) {
	w.logger.WarnContext(w.ctx, msg, args...)
}

// Error logs at LevelError.
func (w *WorkerCtx) Error(msg string, args ...any) {
	w.logger.ErrorContext(w.ctx, msg, args...)
}

func (m *Manager) newWorkerCtx(name string) *WorkerCtx {
	return &WorkerCtx{
		name:   name,
		ctx:    m.ctx,
		logger: m.logger.With("worker", name),
	}
}

// Go starts the given function in a goroutine (as a "worker").
// The worker context has
// - A separate context which is canceled when the functions returns.
// - Access to named structure logging.
// - Given function is re-run after failure (with backoff).
// - Panic catching.
func (m *Manager) Go(name string, fn func(w *WorkerCtx) error) {
	m.workerStart(name)
	go m.manageWorker(name, fn)
}

func (m *Manager) manageWorker(name string, fn func(w *WorkerCtx) error) {
	defer m.workerDone(name)

	backoff := minBackoff
	failCnt := 0

	for {
		w := m.newWorkerCtx(name)
		panicInfo, err := m.runWorker(w, fn)
		switch {
		case err == nil:
			return

		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return

		case m.IsDone():
			w.Error("worker failed", "err", err, "file", panicInfo)
			return
		}

		failCnt++
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		w.Error(
			"worker failed",
			"failCnt", failCnt,
			"backoff", backoff,
			"err", err,
			"file", panicInfo,
		)

		select {
		case <-time.After(backoff):
		case <-m.ctx.Done():
			return
		}
	}
}

// Do directly executes the given function (as a "worker").
// Errors and panics are logged and returned; there is no restart.
func (m *Manager) Do(name string, fn func(w *WorkerCtx) error) error {
	m.workerStart(name)
	defer m.workerDone(name)

	w := m.newWorkerCtx(name)
	panicInfo, err := m.runWorker(w, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		w.Error("worker failed", "err", err, "file", panicInfo)
		return err
	}
}

func (m *Manager) runWorker(w *WorkerCtx, fn func(w *WorkerCtx) error) (panicInfo string, err error) {
	// Create worker context that is canceled when worker finished or dies.
	w.ctx, w.cancelCtx = context.WithCancel(w.ctx)
	defer w.Cancel()

	defer func() {
		panicVal := recover()
		if panicVal == nil {
			return
		}
		err = fmt.Errorf("panic: %s", panicVal)

		stackTrace := string(debug.Stack())
		fmt.Fprintf(
			os.Stderr,
			"===== PANIC =====\n%s\n\n%s=====  END  =====\n",
			panicVal,
			stackTrace,
		)
		panicInfo = panicLocation(stackTrace)
	}()

	err = fn(w)
	return panicInfo, err
}

// panicLocation returns the file:line of the first frame after the panic call.
func panicLocation(stackTrace string) string {
	stackLines := strings.Split(stackTrace, "\n")
	foundPanic := false
	for i, line := range stackLines {
		if !foundPanic {
			foundPanic = strings.Contains(line, "panic(")
			continue
		}
		if strings.HasPrefix(line, "\t") || i+1 >= len(stackLines) {
			continue
		}
		return strings.SplitN(strings.TrimSpace(stackLines[i+1]), " ", 2)[0]
	}
	return ""
}
