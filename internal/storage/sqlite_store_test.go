package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/ook-receiver/internal/rf"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	store := NewSqliteStore(filepath.Join(t.TempDir(), "readings.sqlite"))
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return store
}

func TestSqliteStore_Sessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateSession(ctx, "gpio", map[string]any{"chip": "gpiochip0", "line": 17})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if id <= 0 {
		t.Fatalf("Expected a positive session id, got %d", id)
	}

	session, err := store.Session(ctx, id)
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	if session.Source != "gpio" {
		t.Errorf("Expected source gpio, got %s", session.Source)
	}
	if session.Config == nil {
		t.Error("Expected session config to be stored")
	}

	second, err := store.CreateSession(ctx, "replay", nil)
	if err != nil {
		t.Fatalf("Failed to create second session: %v", err)
	}
	if second == id {
		t.Error("Expected distinct session ids")
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("Expected 2 sessions, got %d", len(sessions))
	}
}

func TestSqliteStore_ReadingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateSession(ctx, "replay", nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	at := time.Date(2026, 8, 12, 6, 30, 0, 0, time.UTC)
	readings := []rf.Reading{
		{Protocol: "ws-201", DeviceID: "5a", Metric: rf.MetricTemperature, Value: 21.3, Unit: "°C", Timestamp: at},
		{Protocol: "ws-201", DeviceID: "5a", Metric: rf.MetricHumidity, Value: 55, Unit: "%", Timestamp: at},
		{Protocol: "nexus-th", DeviceID: "a5:2", Metric: rf.MetricTemperature, Value: -5.2, Unit: "°C", Suspect: true, Timestamp: at},
	}

	if err = store.StoreReadings(ctx, id, readings); err != nil {
		t.Fatalf("Failed to store readings: %v", err)
	}

	got, err := store.Readings(ctx, id, "")
	if err != nil {
		t.Fatalf("Failed to load readings: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 readings, got %d", len(got))
	}

	// Insertion order is preserved.
	if got[0].Metric != rf.MetricTemperature || got[0].Value != 21.3 {
		t.Errorf("Reading 0: expected temperature 21.3, got %s %v", got[0].Metric, got[0].Value)
	}
	if !got[2].Suspect {
		t.Error("Expected the suspect flag to survive the round trip")
	}
	if got[2].DeviceID != "a5:2" {
		t.Errorf("Expected device id a5:2, got %s", got[2].DeviceID)
	}
}

func TestSqliteStore_ReadingsProtocolFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateSession(ctx, "replay", nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	at := time.Now().UTC()
	err = store.StoreReadings(ctx, id, []rf.Reading{
		{Protocol: "ws-201", DeviceID: "5a", Metric: rf.MetricHumidity, Value: 55, Timestamp: at},
		{Protocol: "rg-708", DeviceID: "33", Metric: rf.MetricRainTotal, Value: 100, Timestamp: at},
	})
	if err != nil {
		t.Fatalf("Failed to store readings: %v", err)
	}

	got, err := store.Readings(ctx, id, "rg-708")
	if err != nil {
		t.Fatalf("Failed to load filtered readings: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 reading for rg-708, got %d", len(got))
	}
	if got[0].Metric != rf.MetricRainTotal {
		t.Errorf("Expected rain_total, got %s", got[0].Metric)
	}
}

func TestSqliteStore_EmptyBatch(t *testing.T) {
	store := newTestStore(t)

	if err := store.StoreReadings(context.Background(), 1, nil); err != nil {
		t.Errorf("Expected empty batch to be a no-op, got %v", err)
	}
}
