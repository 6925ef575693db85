package monitoring

import (
	"context"
	"fmt"
	"time"
)

// AddStorageCheck adds a check against the session store backend.
func (h *HealthChecker) AddStorageCheck(driver string, ping func(ctx context.Context) error, interval, timeout time.Duration) {
	h.AddCheck("storage", func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", driver, err)
		}
		return nil
	}, interval, timeout)
}

// AddDrainingCheck fails once shutdown has begun so load balancers stop
// routing new connections here.
func (h *HealthChecker) AddDrainingCheck(draining func() bool) {
	h.AddCheck("draining", func(ctx context.Context) error {
		if draining() {
			return fmt.Errorf("shutting down")
		}
		return nil
	}, 10*time.Second, time.Second)
}
