// Package registry deduplicates repeated transmissions and tracks per-device
// state. Sensors repeat each frame several times per sample; the registry
// collapses a repeat burst into one logical reading set and answers
// last-seen/stale queries.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/roman-kulish/ook-receiver/internal/rf"
)

// Observation is one validated, decoded frame attributed to a device.
// Protocol and DeviceID form the composite identity: device ids are not
// unique across protocols.
type Observation struct {
	Protocol string
	DeviceID string
	Bits     []byte
	Readings []rf.Reading
	At       time.Time

	// Debounce is the window within which an identical repeat is
	// suppressed; StaleAfter marks the device stale once silent that long.
	// Both are protocol-defined.
	Debounce   time.Duration
	StaleAfter time.Duration
}

// Record is the per-device state kept for the process lifetime.
type Record struct {
	Protocol     string
	DeviceID     string
	LastBits     []byte
	LastSeen     time.Time
	RepeatCount  int
	LastReadings []rf.Reading

	staleAfter time.Duration
}

// Key returns the composite device identity.
func (r *Record) Key() string {
	return r.Protocol + "/" + r.DeviceID
}

// Stale reports whether the device has been silent past its protocol's
// stale timeout at the given instant.
func (r *Record) Stale(now time.Time) bool {
	return now.Sub(r.LastSeen) > r.staleAfter
}

// Registry holds one Record per device. It is mutated only by the single
// decode context; queries take a snapshot and may run from any goroutine.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Observe records one decoded frame and reports whether its readings
// should be emitted. An unseen device emits immediately. A repeat with
// identical decoded values inside the debounce window is suppressed (the
// record's last-seen time still advances). Different values, or a repeat
// outside the window, emit again.
func (r *Registry) Observe(obs Observation) bool {
	key := obs.Protocol + "/" + obs.DeviceID

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok {
		r.records[key] = &Record{
			Protocol:     obs.Protocol,
			DeviceID:     obs.DeviceID,
			LastBits:     append([]byte(nil), obs.Bits...),
			LastSeen:     obs.At,
			LastReadings: append([]rf.Reading(nil), obs.Readings...),
			staleAfter:   obs.StaleAfter,
		}
		return true
	}

	if obs.At.Sub(rec.LastSeen) < obs.Debounce && sameValues(rec.LastReadings, obs.Readings) {
		rec.LastSeen = obs.At
		rec.RepeatCount++
		rec.staleAfter = obs.StaleAfter
		return false
	}

	rec.LastBits = append(rec.LastBits[:0], obs.Bits...)
	rec.LastSeen = obs.At
	rec.RepeatCount = 0
	rec.LastReadings = append(rec.LastReadings[:0], obs.Readings...)
	rec.staleAfter = obs.StaleAfter
	return true
}

// Devices returns a snapshot of all records, ordered by key.
func (r *Registry) Devices() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, snapshot(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Stale returns a snapshot of devices with no update past their stale
// timeout. Staleness is exposed via this query, never pushed.
func (r *Registry) Stale(now time.Time) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Record
	for _, rec := range r.records {
		if rec.Stale(now) {
			out = append(out, snapshot(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func snapshot(rec *Record) Record {
	return Record{
		Protocol:     rec.Protocol,
		DeviceID:     rec.DeviceID,
		LastBits:     append([]byte(nil), rec.LastBits...),
		LastSeen:     rec.LastSeen,
		RepeatCount:  rec.RepeatCount,
		LastReadings: append([]rf.Reading(nil), rec.LastReadings...),
		staleAfter:   rec.staleAfter,
	}
}

// sameValues compares two reading sets by metric and value, ignoring
// timestamps and suspect flags.
func sameValues(a, b []rf.Reading) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Metric != b[i].Metric || a[i].Value != b[i].Value {
			return false
		}
	}
	return true
}
