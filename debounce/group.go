package debounce

import (
	"sync"
	"time"
)

// Group debounces calls per key with a shared action and delay. Keys are
// independent: a burst on one key never delays or cancels another key's
// pending invocation.
type Group[T any] struct {
	delay time.Duration
	fn    func(key string, v T)

	mutex      sync.Mutex
	debouncers map[string]*Debouncer[T]
}

// NewGroup creates a Group that invokes fn with a key and that key's latest
// argument once the key has been quiet for delay.
func NewGroup[T any](delay time.Duration, fn func(key string, v T)) *Group[T] {
	return &Group[T]{
		delay:      delay,
		fn:         fn,
		debouncers: make(map[string]*Debouncer[T]),
	}
}

// Call records v for key and (re)starts that key's quiet period.
func (g *Group[T]) Call(key string, v T) {
	g.debouncer(key).Call(v)
}

// Flush fires key's pending invocation immediately, if any, and reports
// whether one was pending.
func (g *Group[T]) Flush(key string) bool {
	g.mutex.Lock()
	d, ok := g.debouncers[key]
	g.mutex.Unlock()

	if !ok {
		return false
	}
	return d.Flush()
}

// Pending reports whether key has an invocation scheduled.
func (g *Group[T]) Pending(key string) bool {
	g.mutex.Lock()
	d, ok := g.debouncers[key]
	g.mutex.Unlock()

	return ok && d.Pending()
}

// Stop cancels every pending invocation and drops all per-key state.
func (g *Group[T]) Stop() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for _, d := range g.debouncers {
		d.Stop()
	}
	g.debouncers = make(map[string]*Debouncer[T])
}

// Delay returns the configured quiet period.
func (g *Group[T]) Delay() time.Duration {
	return g.delay
}

func (g *Group[T]) debouncer(key string) *Debouncer[T] {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	d, ok := g.debouncers[key]
	if !ok {
		d = New(g.delay, func(v T) {
			g.fn(key, v)
		})
		g.debouncers[key] = d
	}
	return d
}
