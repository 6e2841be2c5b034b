package session

import (
	"sync"
	"time"

	"github.com/lindenpress/linden-access/internal/infrastructure/logging"
)

// IdleMonitor ends the session after a period without user activity.
// Enable and Disable are idempotent: enabling twice arms one watcher,
// not two, and Disable always tears down whatever is armed. The onIdle
// callback fires at most once per enable.
type IdleMonitor struct {
	timeout time.Duration
	onIdle  func()
	logger  *logging.Logger

	mu           sync.Mutex
	enabled      bool
	lastActivity time.Time
	stop         chan struct{}
}

// NewIdleMonitor creates a monitor that invokes onIdle after timeout of
// inactivity. The monitor starts disabled.
func NewIdleMonitor(timeout time.Duration, onIdle func(), logger *logging.Logger) *IdleMonitor {
	return &IdleMonitor{
		timeout: timeout,
		onIdle:  onIdle,
		logger:  logger.With("component", "idle_monitor"),
	}
}

// Enable arms the monitor. Calling Enable while already enabled is a
// no-op; the existing watcher keeps running.
func (m *IdleMonitor) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enabled {
		return
	}
	m.enabled = true
	m.lastActivity = time.Now()
	m.stop = make(chan struct{})
	go m.watch(m.stop)
	m.logger.Debug("idle monitoring enabled", "timeout", m.timeout)
}

// Disable disarms the monitor. Safe to call regardless of state.
func (m *IdleMonitor) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	m.enabled = false
	close(m.stop)
	m.stop = nil
	m.logger.Debug("idle monitoring disabled")
}

// Enabled reports whether the monitor is currently armed.
func (m *IdleMonitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Touch records user activity, pushing the idle deadline out.
func (m *IdleMonitor) Touch() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

// watch waits until the idle deadline passes without activity, then
// disarms itself and fires onIdle exactly once.
func (m *IdleMonitor) watch(stop chan struct{}) {
	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			m.mu.Lock()
			remaining := m.timeout - time.Since(m.lastActivity)
			if remaining > 0 {
				// Activity arrived since the timer was set; rearm for
				// the remainder.
				m.mu.Unlock()
				timer.Reset(remaining)
				continue
			}
			// Deadline passed. Disarm before firing so a re-Enable
			// from the callback starts a fresh watcher.
			if !m.enabled || m.stop != stop {
				m.mu.Unlock()
				return
			}
			m.enabled = false
			m.stop = nil
			m.mu.Unlock()

			m.logger.Info("session idle deadline reached", "timeout", m.timeout)
			m.onIdle()
			return
		}
	}
}
