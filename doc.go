/*
Package debouncebroker provides a debouncing broker that can be used across many
clients/servers to collapse bursts of triggers per key into a single action,
fired once the key has been quiet for a configured delay.

The debouncebroker has the option to use a message broker to distribute trigger
events to all clients/servers subscribed to the same topic/channel/stream, so a
burst is defined cluster-wide rather than per instance.

# If no message broker is provided, the debouncebroker debounces locally
Example:

	import (
		"time"
		"github.com/parkerroan/debouncebroker"
	)

	// Create a new broker that debounces locally
	db := debouncebroker.New(
		debouncebroker.WithDelay(500*time.Millisecond),
		debouncebroker.WithOnFire(func(key string, e debouncebroker.TriggerEvent) {
			// runs once per burst, with the last trigger of the burst
		}),
	)

The core trailing-edge debouncer is usable on its own without the broker
if you don't need distribution or per-key grouping:
- Debouncer (https://github.com/parkerroan/debouncebroker/debounce)
*/
package debouncebroker
