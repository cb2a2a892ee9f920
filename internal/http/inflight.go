package http

import (
	"context"
	"sync/atomic"
	"time"
)

// InFlightTracker counts status-surface requests being served so shutdown
// can wait for them.
type InFlightTracker struct {
	count atomic.Int64
}

// Increment marks a request as started.
func (t *InFlightTracker) Increment() {
	t.count.Add(1)
}

// Decrement marks a request as finished.
func (t *InFlightTracker) Decrement() {
	t.count.Add(-1)
}

// Count returns the current in-flight count.
func (t *InFlightTracker) Count() int64 {
	return t.count.Load()
}

// WaitForZero polls every checkInterval until nothing is in flight or ctx is done.
func (t *InFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		if t.Count() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

var globalInFlightTracker = &InFlightTracker{}

// InFlightCount returns the number of requests MetricsMiddleware is serving.
func InFlightCount() int64 {
	return globalInFlightTracker.Count()
}

// WaitForInFlight blocks until MetricsMiddleware has no requests in flight or ctx is done.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return globalInFlightTracker.WaitForZero(ctx, checkInterval)
}
