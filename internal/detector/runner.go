package detector

import (
	"context"
	"fmt"
	"log/slog"
)

// Runner wires one poll cycle together: load cache, query the store,
// classify, notify, persist the cache.
type Runner struct {
	source   ProductSource
	sink     AlertSink
	cache    AlertCache
	detector *Detector
}

func NewRunner(source ProductSource, sink AlertSink, c AlertCache, d *Detector) *Runner {
	return &Runner{
		source:   source,
		sink:     sink,
		cache:    c,
		detector: d,
	}
}

// RunCycle executes one full poll cycle. Only a store-read failure aborts
// the cycle (the next scheduled poll is the retry); notification and
// cache-persistence failures are logged and absorbed.
func (r *Runner) RunCycle(ctx context.Context) error {
	entries := r.cache.Load()

	rows, err := r.source.SelectAll(ctx)
	if err != nil {
		return fmt.Errorf("store read failed, aborting cycle: %w", err)
	}

	decisions, skipped := r.detector.Detect(rows, entries)

	var sent, failed int
	for _, decision := range decisions {
		if !decision.ShouldNotify {
			continue
		}
		if r.sink.Notify(decision) {
			sent++
		} else {
			// The cache entry was already written by Detect, so this
			// alert will not be retried until the discount increases
			// again. Accepted: deduplication wins over delivery.
			failed++
		}
	}

	if err := r.cache.Save(entries); err != nil {
		slog.Warn("Failed to persist alert cache, deduplication degrades to last saved state", "error", err)
	}

	slog.Info("Cycle finished",
		"records", len(rows),
		"skipped", skipped,
		"qualifying", len(decisions),
		"alerts_sent", sent,
		"alerts_failed", failed,
	)
	return nil
}
