package mgr

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// Manager owns a context and the workers started in it. Canceling the
// manager stops all of its workers.
type Manager struct {
	name   string
	logger *slog.Logger

	ctx       context.Context
	cancelCtx context.CancelFunc

	lock    sync.Mutex
	running map[string]int
	total   int
	// idle is closed when the last worker finished.
	idle chan struct{}
}

// New returns a new manager.
func New(name string) *Manager {
	return NewWithContext(context.Background(), name)
}

// NewWithContext returns a new manager that is canceled together with ctx.
func NewWithContext(ctx context.Context, name string) *Manager {
	m := &Manager{
		name:    name,
		logger:  slog.Default().With("manager", name),
		running: make(map[string]int),
		idle:    make(chan struct{}),
	}
	close(m.idle)
	m.ctx, m.cancelCtx = context.WithCancel(ctx)
	return m
}

// Name returns the manager name.
func (m *Manager) Name() string {
	return m.name
}

// Ctx returns the manager context.
func (m *Manager) Ctx() context.Context {
	return m.ctx
}

// Cancel cancels the manager context and with it all workers.
func (m *Manager) Cancel() {
	m.cancelCtx()
}

// Done returns the context Done channel.
func (m *Manager) Done() <-chan struct{} {
	return m.ctx.Done()
}

// IsDone checks whether the manager context is done.
func (m *Manager) IsDone() bool {
	return m.ctx.Err() != nil
}

// Debug logs at LevelDebug.
func (m *Manager) Debug(msg string, args ...any) {
	m.logger.DebugContext(m.ctx, msg, args...)
}

// Info logs at LevelInfo.
func (m *Manager) Info(msg string, args ...any) {
	m.logger.InfoContext(m.ctx, msg, args...)
}

// Warn logs at LevelWarn.
func (m *Manager) Warn(msg string, args ...any) {
	m.logger.WarnContext(m.ctx, msg, args...)
}

// Error logs at LevelError.
func (m *Manager) Error(msg string, args ...any) {
	m.logger.ErrorContext(m.ctx, msg, args...)
}

// Running returns the sorted names of the running workers.
// Names of workers running more than once are repeated.
func (m *Manager) Running() []string {
	m.lock.Lock()
	defer m.lock.Unlock()

	names := make([]string, 0, m.total)
	for _, name := range slices.Sorted(maps.Keys(m.running)) {
		for range m.running[name] {
			names = append(names, name)
		}
	}
	return names
}

// WaitForWorkers waits until no worker of this manager is running anymore,
// at most for max. Zero or less waits up to one minute.
func (m *Manager) WaitForWorkers(max time.Duration) (done bool) {
	if max <= 0 {
		max = time.Minute
	}
	timeout := time.NewTimer(max)
	defer timeout.Stop()

	for {
		m.lock.Lock()
		idle := m.idle
		m.lock.Unlock()

		select {
		case <-idle:
			// A worker may have started since.
			m.lock.Lock()
			total := m.total
			m.lock.Unlock()
			if total == 0 {
				return true
			}
		case <-timeout.C:
			m.lock.Lock()
			defer m.lock.Unlock()
			return m.total == 0
		}
	}
}

func (m *Manager) workerStart(name string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.total == 0 {
		m.idle = make(chan struct{})
	}
	m.total++
	m.running[name]++
}

func (m *Manager) workerDone(name string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.total--
	if m.running[name]--; m.running[name] <= 0 {
		delete(m.running, name)
	}
	if m.total == 0 {
		close(m.idle)
	}
}
