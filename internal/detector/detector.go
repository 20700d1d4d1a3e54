// Package detector decides which polled product rows warrant a new
// discount alert, deduplicating against the last-alerted state held in
// the alert cache.
package detector

import (
	"log/slog"
	"time"

	"instamart-bot/internal/models"
)

// Decision is the classification result for one qualifying product.
// ShouldNotify is true for a first qualifying discount or for a discount
// that increased past the previously alerted value; it is false for a
// repeat poll at the same or a lower (but still qualifying) level.
type Decision struct {
	ProductID    string
	DiscountPct  int
	Record       models.ProductRecord
	ShouldNotify bool
}

// Detector holds the alert threshold. The clock is injectable so cache
// timestamps are deterministic in tests.
type Detector struct {
	threshold int
	now       func() time.Time
}

func New(thresholdPct int) *Detector {
	return &Detector{
		threshold: thresholdPct,
		now:       time.Now,
	}
}

// Detect classifies every row against the cache and returns one Decision
// per qualifying product, plus the count of rows skipped for data-quality
// reasons. Rows below the threshold produce no decision and leave any
// existing cache entry untouched: dropping below the threshold does not
// reset alert history.
//
// For every ShouldNotify decision the cache entry is upserted before the
// caller gets a chance to send anything, so a failed notification still
// counts as alerted and is not re-delivered on the next poll.
func (d *Detector) Detect(rows []models.RawRow, cache map[string]models.AlertEntry) ([]Decision, int) {
	var decisions []Decision
	skipped := 0

	for _, row := range rows {
		rec, err := models.Normalize(row)
		if err != nil {
			skipped++
			slog.Warn("Skipping malformed product row", "error", err)
			continue
		}

		// Tie-break at exact threshold counts as qualifying.
		if rec.DiscountPct < d.threshold {
			continue
		}

		prev, seen := cache[rec.ProductID]
		// Re-alert strictly on increase so source-side rounding noise
		// doesn't oscillate into repeat alerts.
		notify := !seen || rec.DiscountPct > prev.DiscountPct
		if notify {
			cache[rec.ProductID] = models.AlertEntry{
				DiscountPct: rec.DiscountPct,
				AlertedAt:   d.now(),
			}
		}

		decisions = append(decisions, Decision{
			ProductID:    rec.ProductID,
			DiscountPct:  rec.DiscountPct,
			Record:       rec,
			ShouldNotify: notify,
		})
	}

	return decisions, skipped
}
