// Package task manages the lifecycle of named background goroutines: the
// reconnection supervisor, the health monitor, and server accept/handler loops.
//
// A Manager owns a cancellable context shared by all of its tasks. Stop signals
// every task to terminate and Wait blocks until they have; afterwards the
// Manager can start tasks again (the context is recreated from the parent).
// Task bodies run with panic recovery so a misbehaving callback cannot take
// down the process.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MichaelSNelson/go-scope/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// Func is a task body invoked repeatedly by the Manager.
// It returns true to keep running, false to stop the task.
type Func func() bool

// Manager starts, stops, and waits for a group of named goroutines.
type Manager struct {
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	wg      sync.WaitGroup
	logger  logger.Logger
	count   atomic.Int32
	tickers *xsync.MapOf[string, *time.Ticker]

	mu     sync.RWMutex // guards ctx and cancel
	taskMu sync.RWMutex // blocks task creation during Wait
}

// NewManager creates a Manager whose tasks live under the given parent context.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	m := &Manager{
		parent:  ctx,
		logger:  l,
		tickers: xsync.NewMapOf[string, *time.Ticker](),
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	return m
}

// Start launches a named goroutine that invokes fn in a loop until fn returns
// false, Stop is called, or the context is cancelled.
func (m *Manager) Start(name string, fn Func) error {
	m.logger.Debug("start task", "name", name)

	return m.launch(name, func() {
		m.runLoop(name, fn)
	})
}

// StartInterval launches a named goroutine that invokes fn on every tick of
// the given interval until fn returns false or the Manager stops. If runNow is
// true, fn is invoked once immediately; a false return skips starting the loop.
//
// The returned ticker can be used to adjust the interval; prefer StopInterval
// for termination.
func (m *Manager) StartInterval(name string, fn Func, interval time.Duration, runNow bool) (*time.Ticker, error) {
	m.logger.Debug("start interval task", "name", name, "interval", interval, "runNow", runNow)

	if interval <= 0 {
		return nil, fmt.Errorf("task: invalid interval %v", interval)
	}

	ticker := time.NewTicker(interval)
	if _, loaded := m.tickers.LoadOrStore(name, ticker); loaded {
		ticker.Stop()
		return nil, fmt.Errorf("task: interval task %q already exists", name)
	}

	cleanup := func() {
		ticker.Stop()
		m.tickers.Delete(name)
	}

	if runNow && !m.callRecovered(name, fn) {
		cleanup()
		m.logger.Debug("interval task terminated by its first run", "name", name)

		return ticker, nil
	}

	err := m.launch(name, func() {
		defer cleanup()

		for {
			ctx := m.context()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !m.callRecovered(name, fn) {
					return
				}
			}
		}
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	return ticker, nil
}

// Stop signals all running tasks to terminate and stops all interval tickers.
func (m *Manager) Stop() {
	m.tickers.Range(func(_ string, ticker *time.Ticker) bool {
		ticker.Stop()
		return true
	})

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()
}

// StopInterval stops the interval task with the given name.
func (m *Manager) StopInterval(name string) error {
	ticker, ok := m.tickers.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("task: interval task %q not found", name)
	}
	ticker.Stop()

	return nil
}

// Wait blocks until every task has terminated, then re-arms the Manager so
// tasks can be started again.
func (m *Manager) Wait() {
	m.taskMu.Lock()
	defer m.taskMu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(m.parent)
	m.mu.Unlock()
}

// Count returns the number of currently running tasks.
func (m *Manager) Count() int {
	return int(m.count.Load())
}

// context safely returns the current context.
func (m *Manager) context() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ctx
}

// launch runs body on a new goroutine, returning once the task is registered.
func (m *Manager) launch(name string, body func()) error {
	ctx := m.context()
	select {
	case <-ctx.Done():
		return fmt.Errorf("task: manager already stopped, cannot start %q", name)
	default:
	}

	m.taskMu.RLock()
	defer m.taskMu.RUnlock()

	m.wg.Add(1)
	started := make(chan struct{})

	go func() {
		defer m.wg.Done()

		m.count.Add(1)
		close(started)

		defer func() {
			m.count.Add(-1)
			m.logger.Debug("task terminated", "name", name, "taskCount", m.Count())
		}()

		body()
	}()

	<-started

	return nil
}

// runLoop drives a Start task body until it asks to stop or the context ends.
func (m *Manager) runLoop(name string, fn Func) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic in task loop", "name", name, "panic", r)
		}
	}()

	for {
		ctx := m.context()
		select {
		case <-ctx.Done():
			return
		default:
			if !fn() {
				return
			}
		}
	}
}

// callRecovered invokes fn with panic protection.
func (m *Manager) callRecovered(name string, fn Func) bool {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic in task", "name", name, "panic", r)
		}
	}()

	return fn()
}
