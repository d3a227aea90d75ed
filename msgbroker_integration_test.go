//go:build integration

package debouncebroker_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/parkerroan/debouncebroker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func init() {
	//load test.env file
	if _, err := os.Stat("test.env"); err == nil {
		if err := godotenv.Load("test.env"); err != nil {
			log.Fatalf("Error loading test.env file: %s", err)
		}
	}
}

func TestRedisMessageBroker_Integration(t *testing.T) {
	// Set up a Redis client.
	// Note: For a real integration test, you might want to use a separate Redis instance (e.g., via Docker)
	rdb := redis.NewClient(&redis.Options{
		Addr: os.Getenv("REDIS_TEST_URL"),
	})

	// Ensure the connection is alive
	_, err := rdb.Ping(context.Background()).Result()
	assert.NoError(t, err)

	broker := debouncebroker.NewRedisMessageBroker(rdb,
		debouncebroker.WithStream("debouncebroker-integration-test-stream"),
	)

	// Context with timeout to avoid hanging tests indefinitely
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Define a test event
	// remove nanoseconds from timestamp to avoid flaky tests
	now := time.Now().Truncate(time.Second)
	originalEvent := debouncebroker.TriggerEvent{
		Timestamp: now,
		Key:       "test-key-1",
		BrokerID:  "test-debouncebroker",
		Event:     debouncebroker.TriggerRequested,
		Payload:   "test-payload",
	}

	// Flag to check if the event was received
	eventReceived := make(chan struct{})

	// Test consuming the event
	broker.Start(ctx, func(e debouncebroker.TriggerEvent) {
		assert.Equal(t, originalEvent, e, "Received event does not match the original")
		close(eventReceived)
	})

	time.Sleep(1 * time.Second)

	// Test publishing the event
	err = broker.Publish(ctx, originalEvent)
	assert.NoError(t, err, "Failed to publish event")

	// Wait for the event to be received or timeout
	select {
	case <-eventReceived:
		// test succeeded
	case <-ctx.Done():
		t.Fatal("Test timed out before event was received")
	}
}
