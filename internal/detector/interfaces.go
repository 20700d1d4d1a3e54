package detector

import (
	"context"

	"instamart-bot/internal/models"
)

// ProductSource abstracts the shared product store read path.
type ProductSource interface {
	SelectAll(ctx context.Context) ([]models.RawRow, error)
}

// AlertSink abstracts the outbound notification channel. Notify is
// best-effort: implementations must never panic past this boundary and
// report failure through the return value only.
type AlertSink interface {
	Notify(decision Decision) bool
}

// AlertCache abstracts the persisted deduplication state.
type AlertCache interface {
	Load() map[string]models.AlertEntry
	Save(entries map[string]models.AlertEntry) error
}
