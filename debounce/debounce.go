package debounce

import (
	"sync"
	"time"
)

// Debouncer is a trailing-edge call-rate limiter. It wraps an action and
// guarantees the action runs at most once per burst of calls, firing only
// after a full delay passes with no new call. Each call replaces the
// captured argument, so the action always fires with the argument of the
// most recent call in the burst.
//
// A Debouncer is safe for concurrent use. Call never blocks and never
// returns the action's result; the action runs on the timer's goroutine.
// If the action panics, the panic propagates on that goroutine.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(T)

	mutex sync.Mutex
	timer *time.Timer
	gen   uint64
	last  T
}

// New creates a Debouncer that invokes fn with the latest argument once a
// quiet period of delay has elapsed. A negative delay is clamped to zero,
// which makes every call fire on its own as soon as the scheduler runs it.
func New[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer[T]{
		delay: delay,
		fn:    fn,
	}
}

// Func returns a bare wrapper around fn with the same call signature.
// It is shorthand for New(delay, fn).Call when the caller doesn't need
// to flush or stop the debouncer.
func Func[T any](delay time.Duration, fn func(T)) func(T) {
	return New(delay, fn).Call
}

// Call records v as the pending argument and (re)starts the quiet period.
// Any previously scheduled invocation is cancelled, so only the last call
// of a burst ever reaches fn.
func (d *Debouncer[T]) Call(v T) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.last = v
	d.gen++
	gen := d.gen

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(gen)
	})
}

// fire runs on the timer goroutine. The generation check covers the window
// where Call stops a timer whose callback has already started but not yet
// taken the lock; a stale generation must not fire.
func (d *Debouncer[T]) fire(gen uint64) {
	d.mutex.Lock()
	if gen != d.gen {
		d.mutex.Unlock()
		return
	}
	v := d.last
	d.timer = nil
	d.mutex.Unlock()

	d.fn(v)
}

// Flush fires a pending invocation immediately with the latest captured
// argument and reports whether one was pending. It is a no-op between
// bursts.
func (d *Debouncer[T]) Flush() bool {
	d.mutex.Lock()
	if d.timer == nil {
		d.mutex.Unlock()
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	v := d.last
	d.mutex.Unlock()

	d.fn(v)
	return true
}

// Stop cancels a pending invocation, if any, without firing it. The
// debouncer remains usable; the next Call starts a fresh burst.
func (d *Debouncer[T]) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// Pending reports whether an invocation is currently scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.timer != nil
}

// Delay returns the configured quiet period.
func (d *Debouncer[T]) Delay() time.Duration {
	return d.delay
}
