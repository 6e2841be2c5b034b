package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/lindenpress/linden-access/internal/infrastructure/logging"
)

func newTestMonitor(timeout time.Duration, fires *atomic.Int32) *IdleMonitor {
	return NewIdleMonitor(timeout, func() { fires.Add(1) }, logging.Default())
}

func TestIdleMonitor_FiresAfterTimeout(t *testing.T) {
	var fires atomic.Int32
	m := newTestMonitor(30*time.Millisecond, &fires)

	m.Enable()
	time.Sleep(100 * time.Millisecond)

	if got := fires.Load(); got != 1 {
		t.Errorf("onIdle fired %d times, want 1", got)
	}
	if m.Enabled() {
		t.Error("monitor should disarm itself after firing")
	}
}

func TestIdleMonitor_DoubleEnableFiresOnce(t *testing.T) {
	var fires atomic.Int32
	m := newTestMonitor(30*time.Millisecond, &fires)

	m.Enable()
	m.Enable()
	time.Sleep(120 * time.Millisecond)

	if got := fires.Load(); got != 1 {
		t.Errorf("onIdle fired %d times after double enable, want 1", got)
	}
}

func TestIdleMonitor_TouchDefersFiring(t *testing.T) {
	var fires atomic.Int32
	m := newTestMonitor(80*time.Millisecond, &fires)

	m.Enable()
	time.Sleep(50 * time.Millisecond)
	m.Touch()
	time.Sleep(50 * time.Millisecond)

	// 100ms elapsed but only 50ms since last activity.
	if got := fires.Load(); got != 0 {
		t.Fatalf("onIdle fired %d times before the idle deadline, want 0", got)
	}

	time.Sleep(100 * time.Millisecond)
	if got := fires.Load(); got != 1 {
		t.Errorf("onIdle fired %d times after the deadline, want 1", got)
	}
}

func TestIdleMonitor_DisablePreventsFiring(t *testing.T) {
	var fires atomic.Int32
	m := newTestMonitor(30*time.Millisecond, &fires)

	m.Enable()
	m.Disable()
	time.Sleep(100 * time.Millisecond)

	if got := fires.Load(); got != 0 {
		t.Errorf("onIdle fired %d times after disable, want 0", got)
	}
}

func TestIdleMonitor_DisableIsIdempotent(t *testing.T) {
	var fires atomic.Int32
	m := newTestMonitor(time.Second, &fires)

	// Never enabled; disable must be safe.
	m.Disable()
	m.Disable()

	m.Enable()
	m.Disable()
	m.Disable()

	if m.Enabled() {
		t.Error("monitor reports enabled after disable")
	}
}

func TestIdleMonitor_ReEnableAfterFiring(t *testing.T) {
	var fires atomic.Int32
	m := newTestMonitor(30*time.Millisecond, &fires)

	m.Enable()
	time.Sleep(100 * time.Millisecond)
	m.Enable()
	time.Sleep(100 * time.Millisecond)

	if got := fires.Load(); got != 2 {
		t.Errorf("onIdle fired %d times across two enables, want 2", got)
	}
}
