package session

import (
	"sync"
	"time"

	"github.com/wolfman30/hsm-appointments/pkg/logging"
)

// DefaultIdleTimeout is the quiet period after which a session is torn down.
const DefaultIdleTimeout = 180 * time.Second

// Timer is the handle of a scheduled callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Watchdog forces a logout after a fixed window without user activity. It owns
// at most one live timer; restarting always replaces it.
type Watchdog struct {
	mu        sync.Mutex
	timeout   time.Duration
	afterFunc AfterFunc
	logger    *logging.Logger

	timer    Timer
	onExpire func()
	armed    bool
	// gen identifies the current arm cycle; callbacks from older cycles are ignored.
	gen uint64
}

// NewWatchdog creates a disarmed watchdog.
func NewWatchdog(timeout time.Duration, logger *logging.Logger) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Watchdog{
		timeout:   timeout,
		afterFunc: realAfterFunc,
		logger:    logger,
	}
}

// WithAfterFunc swaps the timer factory, which lets tests drive virtual time.
func (w *Watchdog) WithAfterFunc(fn AfterFunc) *Watchdog {
	if fn != nil {
		w.afterFunc = fn
	}
	return w
}

// Timeout returns the configured quiet period.
func (w *Watchdog) Timeout() time.Duration {
	return w.timeout
}

// Arm starts or restarts the timer. onExpire runs at most once for this arm
// cycle, on the timer goroutine.
func (w *Watchdog) Arm(onExpire func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onExpire = onExpire
	w.restartLocked()
	w.logger.Debug("idle watchdog armed", "timeout", w.timeout.String())
}

// Touch records user activity. It restarts the window and reports whether the
// watchdog was armed.
func (w *Watchdog) Touch() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return false
	}
	w.restartLocked()
	return true
}

// Disarm cancels any outstanding timer. Safe to call repeatedly.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
	w.armed = false
	w.onExpire = nil
}

// Armed reports whether a timer is live.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

func (w *Watchdog) restartLocked() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.armed = true
	w.timer = w.afterFunc(w.timeout, func() { w.fire(gen) })
}

func (w *Watchdog) fire(gen uint64) {
	w.mu.Lock()
	if !w.armed || gen != w.gen {
		w.mu.Unlock()
		return
	}
	fn := w.onExpire
	w.armed = false
	w.timer = nil
	w.onExpire = nil
	w.mu.Unlock()

	w.logger.Info("idle timeout expired", "timeout", w.timeout.String())
	if fn != nil {
		fn()
	}
}
