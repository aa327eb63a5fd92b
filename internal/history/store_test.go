package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/tracewatch/tracewatch/internal/model"
)

func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func event(id string, triggeredAt time.Time) model.AlertEvent {
	return model.AlertEvent{
		ConfigID:      id,
		Name:          "High Error Rate",
		Metric:        "logs",
		Field:         "error_rate",
		Severity:      model.SeverityError,
		Condition:     model.ConditionGreaterThan,
		Threshold:     10,
		Value:         15.5,
		Message:       "threshold exceeded",
		FirstDetected: triggeredAt.Add(-2 * time.Minute),
		TriggeredAt:   triggeredAt,
		Channels:      []model.Channel{model.ChannelEmail, model.ChannelDatabase},
	}
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	s := newMemStore(t)
	at := time.Date(2026, 8, 29, 9, 2, 0, 0, time.UTC)

	if err := s.InsertAlert(event("high-error-rate", at)); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}

	events, err := s.RecentAlerts(10)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}

	ev := events[0]
	if ev.ConfigID != "high-error-rate" {
		t.Errorf("ConfigID = %q", ev.ConfigID)
	}
	if ev.Severity != model.SeverityError {
		t.Errorf("Severity = %q", ev.Severity)
	}
	if ev.Condition != model.ConditionGreaterThan {
		t.Errorf("Condition = %q", ev.Condition)
	}
	if ev.Value != 15.5 {
		t.Errorf("Value = %v", ev.Value)
	}
	if !ev.TriggeredAt.Equal(at) {
		t.Errorf("TriggeredAt = %v, want %v", ev.TriggeredAt, at)
	}
	if len(ev.Channels) != 2 || ev.Channels[0] != model.ChannelEmail || ev.Channels[1] != model.ChannelDatabase {
		t.Errorf("Channels = %v", ev.Channels)
	}
}

func TestRecentAlertsNewestFirst(t *testing.T) {
	s := newMemStore(t)
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ev := event(fmt.Sprintf("alert-%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := s.InsertAlert(ev); err != nil {
			t.Fatalf("InsertAlert: %v", err)
		}
	}

	events, err := s.RecentAlerts(3)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3 (limit)", len(events))
	}
	for i, want := range []string{"alert-4", "alert-3", "alert-2"} {
		if events[i].ConfigID != want {
			t.Errorf("events[%d].ConfigID = %q, want %q", i, events[i].ConfigID, want)
		}
	}
}

func TestRecentAlertsDefaultLimit(t *testing.T) {
	s := newMemStore(t)
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 60; i++ {
		if err := s.InsertAlert(event(fmt.Sprintf("alert-%d", i), base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("InsertAlert: %v", err)
		}
	}

	events, err := s.RecentAlerts(0)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(events) != 50 {
		t.Errorf("len(events) = %d, want default limit 50", len(events))
	}
}

func TestEmptyHistory(t *testing.T) {
	s := newMemStore(t)
	events, err := s.RecentAlerts(10)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(events))
	}
}

func TestFileBackedStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.duckdb")
	at := time.Date(2026, 8, 29, 9, 2, 0, 0, time.UTC)

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.InsertAlert(event("persisted", at)); err != nil {
		t.Fatalf("InsertAlert: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore reopen: %v", err)
	}
	defer reopened.Close()

	events, err := reopened.RecentAlerts(10)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(events) != 1 || events[0].ConfigID != "persisted" {
		t.Errorf("events = %+v, want the persisted alert", events)
	}
}
