package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/parkerroan/debouncebroker/debounce"

	"golang.org/x/exp/slog"
)

type Config struct {
	Delay time.Duration `envconfig:"DEBOUNCE_DELAY" default:"300ms"`
}

// A local-only walkthrough of the core debouncer, without the broker or any
// message transport.
func main() {
	loadEnvFile()

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// A plain debouncer: a burst of saves becomes one write.
	save := debounce.New(cfg.Delay, func(doc string) {
		slog.Info("saving document", slog.String("doc", doc))
	})

	for i := 0; i < 5; i++ {
		save.Call(fmt.Sprintf("draft-%d", i))
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(cfg.Delay + 100*time.Millisecond) // only draft-4 is saved

	// A keyed group: each document debounces independently.
	saves := debounce.NewGroup(cfg.Delay, func(doc, rev string) {
		slog.Info("saving document", slog.String("doc", doc), slog.String("rev", rev))
	})

	for i := 0; i < 5; i++ {
		saves.Call("doc-a", fmt.Sprintf("rev-%d", i))
		saves.Call("doc-b", fmt.Sprintf("rev-%d", i))
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(cfg.Delay + 100*time.Millisecond) // one save per document

	// The functional form for fire-and-forget wiring.
	notify := debounce.Func(cfg.Delay, func(msg string) {
		slog.Info("notifying", slog.String("msg", msg))
	})
	notify("first")
	notify("second")
	time.Sleep(cfg.Delay + 100*time.Millisecond) // only "second" is sent
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
