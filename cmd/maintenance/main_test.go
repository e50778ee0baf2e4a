package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"terrasol/internal/scheduler"
)

type mockRetention struct {
	called    bool
	stats     scheduler.SweepStats
	returnErr error
}

func (m *mockRetention) Sweep(_ context.Context) (scheduler.SweepStats, error) {
	m.called = true
	return m.stats, m.returnErr
}

type mockStaleness struct {
	called    bool
	patioID   string
	flagged   int64
	returnErr error
}

func (m *mockStaleness) MarkPatioStale(_ context.Context, patioID string) (int64, error) {
	m.called = true
	m.patioID = patioID
	return m.flagged, m.returnErr
}

type mockEnqueuer struct {
	dates     []time.Time
	reasons   []string
	returnErr error
}

func (m *mockEnqueuer) EnqueueDate(_ context.Context, targetDate time.Time, reason string) error {
	m.dates = append(m.dates, targetDate)
	m.reasons = append(m.reasons, reason)
	return m.returnErr
}

func newTestHandler() (*Handler, *mockRetention, *mockStaleness, *mockEnqueuer) {
	retention := &mockRetention{}
	staleness := &mockStaleness{}
	enqueuer := &mockEnqueuer{}
	h := &Handler{
		retention: retention,
		staleness: staleness,
		enqueuer:  enqueuer,
		logger:    slog.Default(),
	}
	return h, retention, staleness, enqueuer
}

func TestHandleRetentionSweep(t *testing.T) {
	h, retention, _, _ := newTestHandler()
	retention.stats = scheduler.SweepStats{RowsArchived: 500, RowsPurged: 500, Batches: 1}

	result, err := h.Handle(context.Background(), scheduler.MaintenancePayload{
		Task: scheduler.TaskRetentionSweep,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !retention.called {
		t.Error("expected retention sweep to be called")
	}
	if !strings.Contains(result, "500 rows purged") {
		t.Errorf("unexpected result: %q", result)
	}
}

func TestHandleRetentionSweepError(t *testing.T) {
	h, retention, _, _ := newTestHandler()
	retention.returnErr = errors.New("db down")

	_, err := h.Handle(context.Background(), scheduler.MaintenancePayload{
		Task: scheduler.TaskRetentionSweep,
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestHandleMarkPatioStale(t *testing.T) {
	h, _, staleness, _ := newTestHandler()
	staleness.flagged = 42

	result, err := h.Handle(context.Background(), scheduler.MaintenancePayload{
		Task:    scheduler.TaskMarkPatioStale,
		PatioID: "patio-7",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if staleness.patioID != "patio-7" {
		t.Errorf("expected patio-7, got %q", staleness.patioID)
	}
	if !strings.Contains(result, "42 rows flagged") {
		t.Errorf("unexpected result: %q", result)
	}
}

func TestHandleMarkPatioStaleRequiresPatioID(t *testing.T) {
	h, _, staleness, _ := newTestHandler()

	_, err := h.Handle(context.Background(), scheduler.MaintenancePayload{
		Task: scheduler.TaskMarkPatioStale,
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if staleness.called {
		t.Error("staleness service should not be called without a patio ID")
	}
}

func TestHandleEnqueueRunCoversHorizon(t *testing.T) {
	h, _, _, enqueuer := newTestHandler()

	ref := time.Date(2025, 6, 21, 14, 30, 0, 0, time.UTC)
	_, err := h.Handle(context.Background(), scheduler.MaintenancePayload{
		Task:          scheduler.TaskEnqueueRun,
		ReferenceTime: &ref,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(enqueuer.dates) != scheduler.RefreshHorizonDays {
		t.Fatalf("expected %d enqueues, got %d", scheduler.RefreshHorizonDays, len(enqueuer.dates))
	}
	want := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)
	if !enqueuer.dates[0].Equal(want) {
		t.Errorf("expected first date %v, got %v", want, enqueuer.dates[0])
	}
	if !enqueuer.dates[1].Equal(want.AddDate(0, 0, 1)) {
		t.Errorf("expected second date %v, got %v", want.AddDate(0, 0, 1), enqueuer.dates[1])
	}
}

func TestHandleEmptyTask(t *testing.T) {
	h, _, _, _ := newTestHandler()

	_, err := h.Handle(context.Background(), scheduler.MaintenancePayload{})
	if err == nil {
		t.Fatal("expected error for empty task")
	}
}

func TestHandleUnknownTask(t *testing.T) {
	h, _, _, _ := newTestHandler()

	_, err := h.Handle(context.Background(), scheduler.MaintenancePayload{Task: "defragment"})
	if err == nil {
		t.Fatal("expected error for unknown task")
	}
	if !strings.Contains(err.Error(), "unknown task type") {
		t.Errorf("unexpected error: %v", err)
	}
}
