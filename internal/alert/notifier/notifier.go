// Package notifier publishes created alerts to the out-of-scope notification
// surface. Callers use it best-effort: log and ignore errors.
package notifier

import (
	"context"
	"log"
	"time"

	"indicator-reporting/backend/internal/alert/domain"
)

// notifyTimeout is the max time allowed for a single async publish.
const notifyTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait during shutdown so in-flight async
// publishes have time to complete. Must be >= notifyTimeout.
const ShutdownDrainDuration = notifyTimeout

// Notifier publishes a single created alert.
type Notifier interface {
	// Notify sends one alert. Implementations may block briefly; call from a
	// goroutine if needed. Returns an error only on write failure; callers
	// typically log and ignore.
	Notify(ctx context.Context, a *domain.Alert) error
	// Close releases resources (e.g. the Kafka writer). Safe to call if
	// already closed.
	Close() error
}

// NotifyAsync runs Notify in a goroutine with a short timeout so the caller is
// not blocked. Errors are logged. n and a may be nil; NotifyAsync then returns
// immediately. The goroutine uses context.Background() so request cancellation
// does not abort an in-flight publish.
func NotifyAsync(n Notifier, a *domain.Alert) {
	if n == nil || a == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.Notify(ctx, a); err != nil {
			log.Printf("alerts: async notify failed: %v", err)
		}
	}()
}
