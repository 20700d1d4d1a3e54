// Package poller separates the interval scheduling from the cycle logic
// so the cycle function stays testable without timing.
package poller

import (
	"context"
	"time"
)

// Run invokes fn immediately and then once per interval until ctx is
// cancelled. A cycle always runs to completion before the next one
// starts; ticks arriving mid-cycle are coalesced by the ticker.
func Run(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
