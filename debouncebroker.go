package debouncebroker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/parkerroan/debouncebroker/debounce"
	"golang.org/x/exp/slog"
)

// DefaultDelay is the quiet period used when no WithDelay option is given.
const DefaultDelay = 500 * time.Millisecond

// FireFunc is the action run when a key's quiet period elapses. It receives
// the key and the last trigger event of the burst.
type FireFunc func(key string, e TriggerEvent)

// DebounceBroker is the main structure that debounces triggers per key and,
// when a message broker is configured, shares trigger events with every other
// instance subscribed to the same stream. Each instance fires its own action;
// the shared events only extend the quiet period so that a burst spanning
// several instances still collapses into one firing per instance.
type DebounceBroker struct {
	id     string
	delay  time.Duration
	broker MessageBroker
	onFire FireFunc
	group  *debounce.Group[TriggerEvent]
}

// Option configures a DebounceBroker.
type Option func(*DebounceBroker)

// WithDelay sets the quiet period that must elapse after the last trigger
// of a burst before the action fires.
func WithDelay(delay time.Duration) Option {
	return func(db *DebounceBroker) {
		db.delay = delay
	}
}

// WithBroker sets the message broker used to distribute trigger events
// across instances. Without it the broker debounces locally only.
func WithBroker(broker MessageBroker) Option {
	return func(db *DebounceBroker) {
		db.broker = broker
	}
}

// WithOnFire sets the action run when a key's quiet period elapses.
func WithOnFire(fn FireFunc) Option {
	return func(db *DebounceBroker) {
		db.onFire = fn
	}
}

// WithID sets the instance ID carried on published trigger events.
// Defaults to a random UUID. Events carrying the instance's own ID are
// skipped on consume, since they were already applied locally.
func WithID(id string) Option {
	return func(db *DebounceBroker) {
		db.id = id
	}
}

// New creates a DebounceBroker with the provided options.
func New(opts ...Option) *DebounceBroker {
	db := &DebounceBroker{
		id:    uuid.NewString(),
		delay: DefaultDelay,
	}

	// Apply all provided options
	for _, opt := range opts {
		opt(db)
	}

	db.group = debounce.NewGroup(db.delay, func(key string, e TriggerEvent) {
		if db.onFire != nil {
			db.onFire(key, e)
		}
	})

	return db
}

// Start begins consuming trigger events from the message broker in the
// background. It is a no-op when no broker is configured.
func (db *DebounceBroker) Start(ctx context.Context) {
	if db.broker == nil {
		return
	}
	db.broker.Start(ctx, db.handleEvent)
}

// Trigger records a trigger for key, restarting its quiet period, and
// publishes the event to the message broker when one is configured. It
// never blocks on the action; the returned error only reports a failure
// to enqueue the event for publishing.
func (db *DebounceBroker) Trigger(ctx context.Context, key string, payload string) error {
	e := TriggerEvent{
		BrokerID:  db.id,
		Event:     TriggerRequested,
		Timestamp: time.Now(),
		Key:       key,
		Payload:   payload,
	}

	db.group.Call(key, e)

	if db.broker != nil {
		if err := db.broker.Publish(ctx, e); err != nil {
			slog.Error("error publishing trigger event", slog.Any("error", err.Error()))
			return err
		}
	}

	return nil
}

// Flush fires key's pending action immediately, if any, and reports whether
// one was pending. The flush is local; other instances keep their own timers.
func (db *DebounceBroker) Flush(key string) bool {
	return db.group.Flush(key)
}

// Pending reports whether key has an action scheduled on this instance.
func (db *DebounceBroker) Pending(key string) bool {
	return db.group.Pending(key)
}

// Delay returns the configured quiet period.
func (db *DebounceBroker) Delay() time.Duration {
	return db.delay
}

// ID returns the instance ID carried on published trigger events.
func (db *DebounceBroker) ID() string {
	return db.id
}

// Stop cancels every pending action on this instance.
func (db *DebounceBroker) Stop() {
	db.group.Stop()
}

// handleEvent applies a trigger event received from the message broker.
// Events published by this instance already restarted the local quiet
// period in Trigger, so they are skipped here.
func (db *DebounceBroker) handleEvent(e TriggerEvent) {
	if e.BrokerID == db.id {
		return
	}
	db.group.Call(e.Key, e)
}
