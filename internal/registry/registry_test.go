package registry

import (
	"testing"
	"time"

	"github.com/roman-kulish/ook-receiver/internal/rf"
)

func readingSet(values ...float64) []rf.Reading {
	metrics := []rf.Metric{rf.MetricTemperature, rf.MetricHumidity}
	readings := make([]rf.Reading, 0, len(values))
	for i, v := range values {
		readings = append(readings, rf.Reading{Metric: metrics[i], Value: v})
	}
	return readings
}

func observation(at time.Time, values ...float64) Observation {
	return Observation{
		Protocol:   "ws-201",
		DeviceID:   "5a",
		Bits:       []byte{1, 0, 1},
		Readings:   readingSet(values...),
		At:         at,
		Debounce:   800 * time.Millisecond,
		StaleAfter: 5 * time.Minute,
	}
}

func TestRegistry_FirstObservationEmits(t *testing.T) {
	r := New()

	if !r.Observe(observation(time.Now(), 21.3, 55)) {
		t.Error("Expected an unseen device to emit")
	}
	if got := r.Len(); got != 1 {
		t.Errorf("Expected 1 known device, got %d", got)
	}
}

func TestRegistry_DebounceSuppressesRepeats(t *testing.T) {
	r := New()
	base := time.Date(2026, 8, 12, 6, 30, 0, 0, time.UTC)

	if !r.Observe(observation(base, 21.3, 55)) {
		t.Fatal("Expected the first observation to emit")
	}

	// Three repeats 50 ms apart, identical values: all suppressed.
	for i := 1; i <= 3; i++ {
		at := base.Add(time.Duration(i) * 50 * time.Millisecond)
		if r.Observe(observation(at, 21.3, 55)) {
			t.Errorf("Expected repeat %d inside the debounce window to be suppressed", i)
		}
	}

	devices := r.Devices()
	if len(devices) != 1 {
		t.Fatalf("Expected 1 device, got %d", len(devices))
	}
	if devices[0].RepeatCount != 3 {
		t.Errorf("Expected repeat count 3, got %d", devices[0].RepeatCount)
	}

	// Suppressed repeats still advance last-seen.
	want := base.Add(150 * time.Millisecond)
	if !devices[0].LastSeen.Equal(want) {
		t.Errorf("Expected last seen %v, got %v", want, devices[0].LastSeen)
	}
}

func TestRegistry_DifferentValuesEmit(t *testing.T) {
	r := New()
	base := time.Date(2026, 8, 12, 6, 30, 0, 0, time.UTC)

	r.Observe(observation(base, 21.3, 55))

	// Same window, changed humidity: a genuine new sample.
	if !r.Observe(observation(base.Add(50*time.Millisecond), 21.3, 56)) {
		t.Error("Expected changed values to emit inside the debounce window")
	}

	devices := r.Devices()
	if devices[0].RepeatCount != 0 {
		t.Errorf("Expected repeat count reset on new values, got %d", devices[0].RepeatCount)
	}
}

func TestRegistry_RepeatOutsideWindowEmits(t *testing.T) {
	r := New()
	base := time.Date(2026, 8, 12, 6, 30, 0, 0, time.UTC)

	r.Observe(observation(base, 21.3, 55))

	// The next periodic transmission lands well past the debounce window.
	if !r.Observe(observation(base.Add(30*time.Second), 21.3, 55)) {
		t.Error("Expected identical values outside the debounce window to emit")
	}
}

func TestRegistry_CompositeIdentity(t *testing.T) {
	r := New()
	at := time.Now()

	obs := observation(at, 21.3, 55)
	r.Observe(obs)

	// Same device id under a different protocol is a different device.
	other := observation(at, 21.3, 55)
	other.Protocol = "nexus-th"
	if !r.Observe(other) {
		t.Error("Expected the same id under another protocol to emit")
	}
	if got := r.Len(); got != 2 {
		t.Errorf("Expected 2 known devices, got %d", got)
	}

	devices := r.Devices()
	if devices[0].Key() != "nexus-th/5a" || devices[1].Key() != "ws-201/5a" {
		t.Errorf("Expected key-ordered snapshot, got %s, %s", devices[0].Key(), devices[1].Key())
	}
}

func TestRegistry_StaleQuery(t *testing.T) {
	r := New()
	base := time.Date(2026, 8, 12, 6, 30, 0, 0, time.UTC)

	fresh := observation(base, 21.3, 55)
	r.Observe(fresh)

	quiet := observation(base.Add(-10*time.Minute), 20.0, 50)
	quiet.DeviceID = "77"
	r.Observe(quiet)

	stale := r.Stale(base.Add(time.Second))
	if len(stale) != 1 {
		t.Fatalf("Expected 1 stale device, got %d", len(stale))
	}
	if stale[0].DeviceID != "77" {
		t.Errorf("Expected device 77 to be stale, got %s", stale[0].DeviceID)
	}

	// Nobody is stale right after both report.
	if got := r.Stale(base.Add(-10*time.Minute + time.Second)); len(got) != 0 {
		t.Errorf("Expected no stale devices, got %d", len(got))
	}
}

func TestRecord_Stale(t *testing.T) {
	base := time.Date(2026, 8, 12, 6, 30, 0, 0, time.UTC)
	rec := Record{LastSeen: base, staleAfter: 5 * time.Minute}

	if rec.Stale(base.Add(4 * time.Minute)) {
		t.Error("Expected device to be fresh within the timeout")
	}
	if !rec.Stale(base.Add(6 * time.Minute)) {
		t.Error("Expected device to be stale past the timeout")
	}
}
