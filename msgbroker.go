package debouncebroker

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jpillora/backoff"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// TriggerRequested is the event type for a trigger that restarts a key's quiet period.
	TriggerRequested = "TRIGGER_REQUESTED"
)

// TriggerMessage represents the structure of the data that will be sent through the broker.
type TriggerMessage struct {
	Events []TriggerEvent `json:"events"`
}

// TriggerEvent represents the structure of the data that will be sent through the broker.
type TriggerEvent struct {
	BrokerID  string    `json:"broker_id"`         // The ID of the instance that saw the trigger
	Event     string    `json:"event"`             // Type of event, e.g., "trigger_requested"
	Timestamp time.Time `json:"timestamp"`         // When the trigger occurred
	Key       string    `json:"key"`               // The key being debounced, e.g., repo, document, UserID, etc.
	Payload   string    `json:"payload,omitempty"` // Opaque argument; the last payload of a burst reaches the action
}

func (e TriggerEvent) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// MessageBroker is an interface that defines the methods that a broker must implement.
// The broker is responsible for publishing and consuming trigger events and could be
// implemented in any message broker, e.g., Redis, Kafka, etc.
type MessageBroker interface {
	Start(ctx context.Context, handlerFunc func(TriggerEvent))
	Publish(ctx context.Context, e TriggerEvent) error
}

// RedisMessageBroker is an implementation of the MessageBroker interface
// that uses Redis streams as the transport.
type RedisMessageBroker struct {
	stream string
	client *redis.Client

	// time duration for pulling older messages on startup
	initialLoadOffset time.Duration
	maxStreamLen      int64

	backoff        *backoff.Backoff
	publishChannel chan TriggerEvent
	publishLimiter *rate.Limiter

	sem *semaphore.Weighted
}

func NewRedisMessageBroker(rdb *redis.Client, opts ...func(*RedisMessageBroker)) *RedisMessageBroker {
	// Create an exponential backoff configuration
	b := backoff.Backoff{
		//These are the defaults
		Min:    100 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: false,
	}

	rb := &RedisMessageBroker{
		client:         rdb,
		stream:         "debouncebroker",
		backoff:        &b,
		publishChannel: make(chan TriggerEvent, 100),
		sem:            semaphore.NewWeighted(int64(100)), // default to 100 publish threads
	}

	// Apply all provided options
	for _, opt := range opts {
		opt(rb)
	}

	return rb
}

// WithMaxThreads sets the maximum number of publish threads allowed for publishing
// batches to the message broker.
func WithMaxThreads(maxThreads int) func(*RedisMessageBroker) {
	return func(rb *RedisMessageBroker) {
		rb.sem = semaphore.NewWeighted(int64(maxThreads))
	}
}

// WithStream sets the Redis stream name, a good value
// would be the name of your application.
// default: "debouncebroker"
func WithStream(stream string) func(*RedisMessageBroker) {
	return func(rb *RedisMessageBroker) {
		rb.stream = stream
	}
}

// WithCappedStream sets the Redis stream max length.
func WithCappedStream(maxLen int64) func(*RedisMessageBroker) {
	return func(rb *RedisMessageBroker) {
		rb.maxStreamLen = maxLen
	}
}

// WithInitLoadOffset is a time duration that will allow
// the pulling of older messages on startup from the stream.
// This would be used for not losing in-flight quiet periods on
// restart.
func WithInitLoadOffset(offset time.Duration) func(*RedisMessageBroker) {
	return func(rb *RedisMessageBroker) {
		rb.initialLoadOffset = offset
	}
}

// WithPublishRateLimit caps how many batches per second may be written to the
// stream. Trigger bursts are the normal case for a debouncer, so a pathological
// caller must not be able to flood Redis; batches over the cap wait their turn.
func WithPublishRateLimit(limit rate.Limit, burst int) func(*RedisMessageBroker) {
	return func(rb *RedisMessageBroker) {
		rb.publishLimiter = rate.NewLimiter(limit, burst)
	}
}

// Start is a method on RedisMessageBroker that starts the broker publishing and
// consuming trigger events in the background.
func (r *RedisMessageBroker) Start(ctx context.Context, handlerFunc func(TriggerEvent)) {
	go func() {
		err := r.StartPublisher(ctx)
		if err != nil {
			slog.Error("error publishing messages in publisher", slog.Any("error", err.Error()))
		}
	}()

	go func() {
		err := r.Consume(ctx, handlerFunc)
		if err != nil {
			slog.Error("error consuming messages", slog.Any("error", err.Error()))
		}
	}()
}

// StartPublisher publishes batches of trigger events to a Redis stream from the
// publish channel.
func (r *RedisMessageBroker) StartPublisher(ctx context.Context) error {
	for {
		batchSize := 100
		events := make([]TriggerEvent, 0, batchSize)

		// Block until we receive the first event
		select {
		case event := <-r.publishChannel:
			events = append(events, event)
		case <-ctx.Done():
			return nil
		}

		// Try to gather a batch of events without waiting
	gather:
		for i := 1; i < batchSize; i++ {
			select {
			case event := <-r.publishChannel:
				events = append(events, event)
			case <-ctx.Done():
				return nil
			default:
				// No more events ready to pull off the channel, stop the loop
				break gather
			}
		}

		if r.publishLimiter != nil {
			if err := r.publishLimiter.Wait(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}

		msg := TriggerMessage{
			Events: events,
		}

		deferFunc := func() {}
		if r.sem != nil {
			deferFunc = func() {
				r.sem.Release(1)
			}
			if err := r.sem.Acquire(ctx, 1); err != nil {
				slog.Error("failed to acquire semaphore", slog.Any("error", err.Error()))
				return err
			}
		}

		go func(msg TriggerMessage) {
			publishCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()
			defer deferFunc()
			// Publish the batch message
			if err := r.publish(publishCtx, msg); err != nil {
				slog.Error("error publishing message to redis", slog.Any("error", err.Error()))
			}
		}(msg)
	}
}

// Publish enqueues a trigger event for the background publisher. It blocks only
// when the publish channel is full, and then only until there is room or the
// context is done.
func (r *RedisMessageBroker) Publish(ctx context.Context, e TriggerEvent) error {
	select {
	case r.publishChannel <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume listens to trigger events on a Redis stream and processes them with handlerFunc
func (r *RedisMessageBroker) Consume(ctx context.Context, handlerFunc func(TriggerEvent)) error {
	lastMessageID := r.loadInitialMessageID()

	for {
		// Check the context before a new loop iteration starts
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				slog.Info("context was cancelled, cleaning up")
				return nil
			}
			return ctx.Err()
		}

		// Read messages from the stream.
		// 'Count' can be adjusted based on how many messages we want to process per iteration.
		messages, err := r.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{r.stream, lastMessageID},
			Count:   100,
			Block:   0,
		}).Result()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				slog.Info("context was cancelled, cleaning up")
				return nil
			}
			// log and retry with backoff
			slog.Error("error reading messages from stream", slog.Any("error", err))
			time.Sleep(r.backoff.Duration())
			continue
		}
		r.backoff.Reset()

		// Process messages if any.
		for _, message := range messages {
			for _, xMessage := range message.Messages {
				events, ok := xMessage.Values["events"].(string)
				if !ok {
					slog.Error("unexpected message shape on stream", slog.Any("id", xMessage.ID))
					lastMessageID = xMessage.ID
					continue
				}

				// Deserialize the message
				msg := TriggerMessage{}
				if err := json.Unmarshal([]byte(events), &msg.Events); err != nil {
					return err
				}

				for _, event := range msg.Events {
					// Restarting a quiet period is cheap and non-blocking, so
					// events are handled inline in stream order.
					handlerFunc(event)
				}

				// Update lastMessageID to acknowledge processing.
				lastMessageID = xMessage.ID
			}
		}
	}
}

func (r *RedisMessageBroker) loadInitialMessageID() string {
	lastMessageID := "$"

	if r.initialLoadOffset > 0 {
		offsetTime := time.Now().Add(-1 * r.initialLoadOffset)

		lastMessageID = strconv.FormatInt(offsetTime.Unix(), 10)
	}

	return lastMessageID
}

func (r *RedisMessageBroker) publish(ctx context.Context, msg TriggerMessage) error {
	eventBytes, _ := json.Marshal(msg.Events)

	values := map[string]interface{}{
		"events": eventBytes,
	}

	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: values,
		MaxLen: r.maxStreamLen,
		Approx: true,
	}).Err()
}
