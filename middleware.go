package debouncebroker

import (
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/exp/slog"
)

// HTTPMiddleware creates a new middleware function that fires a debounced
// trigger for every request. This function is compatible with both standard
// net/http and mux handlers.
//
// The request itself always proceeds to the next handler; only the side
// effect (webhook fan-in, cache rebuild, reindex, etc.) is debounced. The
// response carries headers describing the debounce state for the key.
func HTTPMiddleware(db *DebounceBroker, keyGetter func(r *http.Request) string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyGetter(r) // get the unique identifier for the debounced action
			ctx := r.Context()

			if err := db.Trigger(ctx, key, r.URL.Path); err != nil {
				// The local quiet period already restarted; only distribution failed.
				slog.Error("error publishing trigger", slog.Any("error", err.Error()))
			}

			w.Header().Add("Debounce-Delay", fmt.Sprintf("%v", db.Delay().Seconds()))
			w.Header().Add("Debounce-Pending", strconv.FormatBool(db.Pending(key)))

			// Proceed to the next handler; the action fires after the quiet period
			next.ServeHTTP(w, r)
		})
	}
}
