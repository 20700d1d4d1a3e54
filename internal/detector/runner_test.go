package detector

import (
	"context"
	"errors"
	"testing"

	"instamart-bot/internal/models"
)

// --- Mock implementations ---

type mockSource struct {
	rows []models.RawRow
	err  error
}

func (m *mockSource) SelectAll(_ context.Context) ([]models.RawRow, error) {
	return m.rows, m.err
}

type mockSink struct {
	notified []Decision
	ok       bool
}

func (m *mockSink) Notify(decision Decision) bool {
	m.notified = append(m.notified, decision)
	return m.ok
}

type mockCache struct {
	entries   map[string]models.AlertEntry
	saved     map[string]models.AlertEntry
	saveErr   error
	saveCalls int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]models.AlertEntry)}
}

func (m *mockCache) Load() map[string]models.AlertEntry {
	// Hand out a copy, the way the file cache rebuilds the map on each load.
	out := make(map[string]models.AlertEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

func (m *mockCache) Save(entries map[string]models.AlertEntry) error {
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = entries
	m.entries = entries
	return nil
}

func newTestRunner(source *mockSource, sink *mockSink, c *mockCache) *Runner {
	return NewRunner(source, sink, c, newTestDetector(70))
}

// --- Tests ---

func TestRunCycle_NotifiesAndPersists(t *testing.T) {
	source := &mockSource{rows: []models.RawRow{testRow("P1", "75%")}}
	sink := &mockSink{ok: true}
	c := newMockCache()

	if err := newTestRunner(source, sink, c).RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if len(sink.notified) != 1 {
		t.Errorf("Expected 1 notification, got %d", len(sink.notified))
	}
	if entry, ok := c.saved["P1"]; !ok || entry.DiscountPct != 75 {
		t.Errorf("Expected persisted entry {P1: 75}, got %+v", c.saved)
	}
}

func TestRunCycle_StoreReadErrorAbortsCycle(t *testing.T) {
	source := &mockSource{err: errors.New("connection refused")}
	sink := &mockSink{ok: true}
	c := newMockCache()

	err := newTestRunner(source, sink, c).RunCycle(context.Background())
	if err == nil {
		t.Fatal("Expected error when the store read fails")
	}
	if len(sink.notified) != 0 {
		t.Error("No notifications should go out when the cycle aborts")
	}
}

func TestRunCycle_FailedNotifyStillUpdatesCache(t *testing.T) {
	source := &mockSource{rows: []models.RawRow{testRow("P1", "75%")}}
	sink := &mockSink{ok: false} // sink is down
	c := newMockCache()
	runner := newTestRunner(source, sink, c)

	if err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if entry, ok := c.saved["P1"]; !ok || entry.DiscountPct != 75 {
		t.Fatalf("Cache must record the alert even when the send fails, got %+v", c.saved)
	}

	// Next cycle at the same discount must not retry the failed send.
	sink.notified = nil
	if err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(sink.notified) != 0 {
		t.Errorf("Unchanged discount after failed send must not re-notify, got %d sends", len(sink.notified))
	}
}

func TestRunCycle_SaveErrorIsNotFatal(t *testing.T) {
	source := &mockSource{rows: []models.RawRow{testRow("P1", "75%")}}
	sink := &mockSink{ok: true}
	c := newMockCache()
	c.saveErr = errors.New("disk full")

	if err := newTestRunner(source, sink, c).RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() must absorb cache-save failures, got %v", err)
	}
	if c.saveCalls != 1 {
		t.Errorf("Expected 1 save attempt, got %d", c.saveCalls)
	}
}

func TestRunCycle_SuppressedDecisionsNotSent(t *testing.T) {
	source := &mockSource{rows: []models.RawRow{testRow("P1", "72%")}}
	sink := &mockSink{ok: true}
	c := newMockCache()
	runner := newTestRunner(source, sink, c)

	// First cycle alerts, second is a repeat at the same level.
	if err := runner.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := runner.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(sink.notified) != 1 {
		t.Errorf("Expected exactly 1 notification across both cycles, got %d", len(sink.notified))
	}
}
