package debouncebroker_test

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/parkerroan/debouncebroker"
	"github.com/redis/go-redis/v9"
)

func TestHTTPMiddleware(t *testing.T) {
	var mu sync.Mutex
	var fires []debouncebroker.TriggerEvent

	db := debouncebroker.New(
		debouncebroker.WithDelay(50*time.Millisecond),
		debouncebroker.WithOnFire(func(key string, e debouncebroker.TriggerEvent) {
			mu.Lock()
			fires = append(fires, e)
			mu.Unlock()
		}),
	)

	keyGetter := func(r *http.Request) string {
		return r.Header.Get("X-Project-ID")
	}

	handler := debouncebroker.HTTPMiddleware(db, keyGetter)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}),
	)

	// A burst of webhook deliveries for one project.
	var lastRec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		req.Header.Set("X-Project-ID", "project-1")
		lastRec = httptest.NewRecorder()
		handler.ServeHTTP(lastRec, req)
	}

	// Every request proceeds to the wrapped handler.
	if lastRec.Code != http.StatusAccepted {
		t.Errorf("Expected 202 from the wrapped handler, got %d", lastRec.Code)
	}
	if got := lastRec.Header().Get("Debounce-Pending"); got != "true" {
		t.Errorf("Expected Debounce-Pending true during the burst, got %q", got)
	}
	if got := lastRec.Header().Get("Debounce-Delay"); got == "" {
		t.Error("Expected a Debounce-Delay header")
	}

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(fires) != 1 {
		t.Fatalf("Expected the burst to collapse into 1 fire, got %d", len(fires))
	}
	if fires[0].Key != "project-1" {
		t.Errorf("Unexpected key on fired event: %q", fires[0].Key)
	}
}

// ExampleHTTPMiddleware shows how to use the middleware with a standard net/http handler or mux.
func ExampleHTTPMiddleware() {
	// Initialize components of your application here
	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	// Create instances of your message broker and debounce broker
	redisBroker := debouncebroker.NewRedisMessageBroker(rdb)

	db := debouncebroker.New(
		debouncebroker.WithBroker(redisBroker),
		debouncebroker.WithDelay(2*time.Second),
		debouncebroker.WithOnFire(func(key string, e debouncebroker.TriggerEvent) {
			log.Printf("rebuilding %v after burst ending with %v", key, e.Payload)
		}),
	)

	ctx := context.Background()
	db.Start(ctx)

	// This function generates a key that identifies which debounced action
	// a request belongs to.
	keyGetter := func(r *http.Request) string {
		return r.Header.Get("X-Project-ID")
	}

	// Create a new router
	r := mux.NewRouter() // or http.NewServeMux()

	// Fire a debounced trigger for every request passing through the router
	r.Use(debouncebroker.HTTPMiddleware(db, keyGetter))
}

// ExampleDebounceBroker_redisBroker shows how to create a debounce broker with a Redis message broker.
func ExampleDebounceBroker_redisBroker() {
	// Initialize components of your application here
	rdb := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	redisBroker := debouncebroker.NewRedisMessageBroker(rdb)

	db := debouncebroker.New(
		debouncebroker.WithBroker(redisBroker),
		debouncebroker.WithDelay(2*time.Second),
		debouncebroker.WithOnFire(func(key string, e debouncebroker.TriggerEvent) {
			log.Printf("firing %v with payload %v", key, e.Payload)
		}),
	)

	ctx := context.Background()
	// Start the broker in the background
	db.Start(ctx)

	for i := 0; i < 20; i++ {
		if err := db.Trigger(ctx, "userKey", "payload"); err != nil {
			log.Printf("trigger %v failed: %v", i, err)
		}
	}
}

// ExampleDebounceBroker_localInstance shows how to create a debounce broker without a message broker.
func ExampleDebounceBroker_localInstance() {
	db := debouncebroker.New(
		debouncebroker.WithDelay(2*time.Second),
		debouncebroker.WithOnFire(func(key string, e debouncebroker.TriggerEvent) {
			log.Printf("firing %v with payload %v", key, e.Payload)
		}),
		//debouncebroker.WithBroker(redisBroker), // Do not include a broker for local instance
	)

	ctx := context.Background()

	// Starting the broker in the background is not needed if you are not using a message broker.
	//db.Start(ctx)

	for i := 0; i < 20; i++ {
		if err := db.Trigger(ctx, "userKey", "payload"); err != nil {
			log.Printf("trigger %v failed: %v", i, err)
		}
	}
}
