package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/parkerroan/debouncebroker"
	"github.com/redis/go-redis/v9"

	"github.com/gorilla/mux"
	"golang.org/x/exp/slog"
)

type Config struct {
	Port     int           `envconfig:"SERVER_PORT" default:"8080"`
	Delay    time.Duration `envconfig:"DEBOUNCE_DELAY" default:"5s"`
	RedisURL string        `envconfig:"REDIS_URL" default:"localhost:6379"`
}

func main() {
	// Load .env file from given path. We're assuming it's in the current directory.
	loadEnvFile()

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL, // "localhost:6379"
	})

	// Create instances of your message broker and debounce broker
	redisBroker := debouncebroker.NewRedisMessageBroker(rdb,
		debouncebroker.WithStream("exampleweb"),
	)

	// A burst of webhook deliveries for one project collapses into a single
	// rebuild, no matter which instance received which delivery.
	db := debouncebroker.New(
		debouncebroker.WithBroker(redisBroker),
		debouncebroker.WithDelay(cfg.Delay),
		debouncebroker.WithOnFire(func(key string, e debouncebroker.TriggerEvent) {
			slog.Info("rebuilding project after quiet period",
				slog.String("project", key),
				slog.String("last_payload", e.Payload),
				slog.Time("last_trigger", e.Timestamp),
			)
			// Kick off the expensive work here: rebuild, reindex, sync, etc.
		}),
	)

	ctx := context.Background()
	db.Start(ctx)

	// This function generates a key that identifies which debounced action
	// a request belongs to.
	keyGetter := func(r *http.Request) string {
		if project := r.Header.Get("X-Project-ID"); project != "" {
			return project
		}
		return "default"
	}

	// Create a new router
	r := mux.NewRouter() // or http.NewServeMux()

	// Add the logging middleware first.
	r.Use(LoggingMiddleware)

	// Fire a debounced trigger for every request passing through the router
	r.Use(debouncebroker.HTTPMiddleware(db, keyGetter))

	r.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		// The trigger is already recorded; acknowledge the delivery.
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("queued"))
	})

	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", cfg.Port), r))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code and writes it to the response.
func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Create a new status recorder.
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default to 200 OK if WriteHeader is not called.
		}

		// Continue to the next middleware or handler.
		next.ServeHTTP(recorder, r)

		// Now that the handler has finished, the status code is set.
		log.Printf(
			"Method: %s | Path: %s | StatusCode: %d | RemoteAddr: %s | UserAgent: %s",
			r.Method,
			r.RequestURI,
			recorder.statusCode,
			r.RemoteAddr,
			r.UserAgent(),
		)
	})
}

func loadEnvFile() {
	if _, err := os.Stat(".env"); err == nil {
		// The file exists, now let's try to load it
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Error loading .env file: %s", err)
		}
	} else if !os.IsNotExist(err) {
		// There's an error other than "file does not exist", let's log it
		slog.Warn(fmt.Sprintf("Unexpected error looking for .env file: %s", err))
	}
}
