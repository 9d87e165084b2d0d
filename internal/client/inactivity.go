package client

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/authflow/internal/logging"
)

// DefaultIdleWindow is how long a logged-in user may go without any
// interaction before being logged out.
const DefaultIdleWindow = 5 * time.Minute

// Event is a user interaction that counts as activity.
type Event int

const (
	EventPointerMove Event = iota + 1
	EventKeyPress
	EventClick
	EventScroll
)

func (e Event) String() string {
	switch e {
	case EventPointerMove:
		return "pointer_move"
	case EventKeyPress:
		return "key_press"
	case EventClick:
		return "click"
	case EventScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

// IdleTimer runs a callback once after a period unless re-armed or
// cancelled first.  Each Arm invalidates every earlier one, so a callback
// whose timer was replaced never runs even if it already fired.
type IdleTimer struct {
	clock Clock

	mu    sync.Mutex
	timer Timer
	gen   uint64
}

func NewIdleTimer(c Clock) *IdleTimer {
	return &IdleTimer{clock: c}
}

// Arm schedules fn after d, replacing any pending schedule.
func (t *IdleTimer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if gen != t.gen {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.gen++
		t.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending schedule, if any.
func (t *IdleTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

// Armed reports whether a callback is pending.
func (t *IdleTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// IdleSession is what the monitor needs from the auth state.
type IdleSession interface {
	LoggedIn() bool
	Logout(ctx context.Context) error
}

// InactivityMonitor logs the session out after Window without activity.
// It is armed only while the session is logged in.
type InactivityMonitor struct {
	Session IdleSession
	Window  time.Duration
	Log     logging.Logger
	// OnTimeout, when set, runs after an idle logout completes.
	OnTimeout func()

	timer *IdleTimer
}

func NewInactivityMonitor(s IdleSession, c Clock, window time.Duration, log logging.Logger) *InactivityMonitor {
	if window <= 0 {
		window = DefaultIdleWindow
	}
	return &InactivityMonitor{
		Session: s,
		Window:  window,
		Log:     log.With("component", "inactivity"),
		timer:   NewIdleTimer(c),
	}
}

// Start arms the monitor if the session is logged in.
func (m *InactivityMonitor) Start() {
	m.reset()
}

// Touch records activity and restarts the idle window.
func (m *InactivityMonitor) Touch(Event) {
	m.reset()
}

// Stop disarms the monitor.
func (m *InactivityMonitor) Stop() {
	m.timer.Cancel()
}

// Armed reports whether an idle logout is scheduled.
func (m *InactivityMonitor) Armed() bool {
	return m.timer.Armed()
}

// Watch starts the monitor and feeds it events until ctx is done or the
// channel is closed.
func (m *InactivityMonitor) Watch(ctx context.Context, events <-chan Event) {
	m.Start()
	defer m.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.Touch(ev)
		}
	}
}

func (m *InactivityMonitor) reset() {
	if !m.Session.LoggedIn() {
		m.timer.Cancel()
		return
	}
	m.timer.Arm(m.Window, m.expire)
}

func (m *InactivityMonitor) expire() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m.Log.Info(ctx, "logging out after inactivity", "window", m.Window.String())
	if err := m.Session.Logout(ctx); err != nil {
		m.Log.Warn(ctx, "idle logout", "error", err)
	}
	if m.OnTimeout != nil {
		m.OnTimeout()
	}
}
