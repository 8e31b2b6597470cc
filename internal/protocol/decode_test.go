package protocol

import (
	"math"
	"testing"
	"time"

	"github.com/roman-kulish/ook-receiver/internal/rf"
)

func builtinByName(t *testing.T, name string) *Protocol {
	t.Helper()

	protocols := Builtin()
	for i := range protocols {
		if protocols[i].Name == name {
			return &protocols[i]
		}
	}
	t.Fatalf("No builtin protocol %q", name)
	return nil
}

func findReading(t *testing.T, readings []rf.Reading, metric rf.Metric) rf.Reading {
	t.Helper()

	for _, r := range readings {
		if r.Metric == metric {
			return r
		}
	}
	t.Fatalf("No %s reading in %v", metric, readings)
	return rf.Reading{}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestProtocol_Decode_NegativeTemperature(t *testing.T) {
	p := builtinByName(t, "nexus-th")

	// Device 0xA5 on channel 2 reporting -5.2 C, 55% humidity, battery ok.
	bits := make([]byte, p.FrameBits)
	SetBits(bits, 0, 8, 0xA5)
	SetBits(bits, 8, 1, 1)
	SetBits(bits, 10, 2, 2)
	rawTemp := int64(-52)
	SetBits(bits, 12, 12, uint64(rawTemp)&0xFFF)
	SetBits(bits, 24, 4, 0xF)
	SetBits(bits, 28, 8, 55)

	at := time.Date(2026, 8, 12, 6, 30, 0, 0, time.UTC)
	decoded, err := p.Decode(&rf.Frame{Bits: bits, Protocol: p.Name}, at)
	if err != nil {
		t.Fatalf("Failed to decode frame: %v", err)
	}

	if decoded.DeviceID != "a5:2" {
		t.Errorf("Expected device id a5:2, got %s", decoded.DeviceID)
	}
	if decoded.Key() != "nexus-th/a5:2" {
		t.Errorf("Expected key nexus-th/a5:2, got %s", decoded.Key())
	}

	temp := findReading(t, decoded.Readings, rf.MetricTemperature)
	if !almostEqual(temp.Value, -5.2) {
		t.Errorf("Expected temperature -5.2, got %v", temp.Value)
	}
	if temp.Suspect {
		t.Error("Expected in-range temperature to not be suspect")
	}
	if temp.Unit != "°C" {
		t.Errorf("Expected unit °C, got %q", temp.Unit)
	}
	if !temp.Timestamp.Equal(at) {
		t.Errorf("Expected reading timestamp %v, got %v", at, temp.Timestamp)
	}

	humidity := findReading(t, decoded.Readings, rf.MetricHumidity)
	if !almostEqual(humidity.Value, 55) {
		t.Errorf("Expected humidity 55, got %v", humidity.Value)
	}

	battery := findReading(t, decoded.Readings, rf.MetricBatteryOK)
	if !almostEqual(battery.Value, 1) {
		t.Errorf("Expected battery_ok 1, got %v", battery.Value)
	}
}

func TestProtocol_Decode_SuspectOutOfRange(t *testing.T) {
	p := builtinByName(t, "nexus-th")

	// Humidity 120% is physically implausible: decoded, but suspect.
	bits := make([]byte, p.FrameBits)
	SetBits(bits, 0, 8, 0x10)
	SetBits(bits, 12, 12, 213)
	SetBits(bits, 24, 4, 0xF)
	SetBits(bits, 28, 8, 120)

	decoded, err := p.Decode(&rf.Frame{Bits: bits, Protocol: p.Name}, time.Now())
	if err != nil {
		t.Fatalf("Failed to decode frame: %v", err)
	}

	humidity := findReading(t, decoded.Readings, rf.MetricHumidity)
	if !humidity.Suspect {
		t.Error("Expected out-of-range humidity to be suspect")
	}
	if !almostEqual(humidity.Value, 120) {
		t.Errorf("Expected suspect value still decoded as 120, got %v", humidity.Value)
	}

	temp := findReading(t, decoded.Readings, rf.MetricTemperature)
	if temp.Suspect {
		t.Error("Expected in-range temperature to not be suspect")
	}
}

func TestProtocol_Decode_NoChannelBits(t *testing.T) {
	p := builtinByName(t, "ws-201")

	bits := make([]byte, p.FrameBits)
	SetBits(bits, 0, 8, 0x07)
	decoded, err := p.Decode(&rf.Frame{Bits: bits, Protocol: p.Name}, time.Now())
	if err != nil {
		t.Fatalf("Failed to decode frame: %v", err)
	}

	if decoded.DeviceID != "07" {
		t.Errorf("Expected device id 07, got %s", decoded.DeviceID)
	}
}

func TestProtocol_Decode_ScaleAndOffset(t *testing.T) {
	p := builtinByName(t, "wgr-318")

	// Wind 12.5 m/s from sector 3 (67.5 degrees).
	bits := make([]byte, p.FrameBits)
	SetBits(bits, 12, 12, 125)
	SetBits(bits, 24, 4, 3)

	decoded, err := p.Decode(&rf.Frame{Bits: bits, Protocol: p.Name}, time.Now())
	if err != nil {
		t.Fatalf("Failed to decode frame: %v", err)
	}

	speed := findReading(t, decoded.Readings, rf.MetricWindSpeed)
	if !almostEqual(speed.Value, 12.5) {
		t.Errorf("Expected wind speed 12.5, got %v", speed.Value)
	}

	direction := findReading(t, decoded.Readings, rf.MetricWindDirection)
	if !almostEqual(direction.Value, 67.5) {
		t.Errorf("Expected wind direction 67.5, got %v", direction.Value)
	}
}

func TestProtocol_Decode_LengthMismatch(t *testing.T) {
	p := builtinByName(t, "nexus-th")

	if _, err := p.Decode(&rf.Frame{Bits: make([]byte, 20), Protocol: p.Name}, time.Now()); err == nil {
		t.Error("Expected error for truncated frame")
	}
}

func TestSignExtend(t *testing.T) {
	tests := []struct {
		raw    uint64
		length int
		want   int64
	}{
		{raw: 0, length: 12, want: 0},
		{raw: 213, length: 12, want: 213},
		{raw: 0xFFF, length: 12, want: -1},
		{raw: 0xFCC, length: 12, want: -52},
		{raw: 0x800, length: 12, want: -2048},
		{raw: 0x7FF, length: 12, want: 2047},
		{raw: 1, length: 1, want: -1},
	}

	for _, tt := range tests {
		if got := signExtend(tt.raw, tt.length); got != tt.want {
			t.Errorf("signExtend(%#x, %d): expected %d, got %d", tt.raw, tt.length, tt.want, got)
		}
	}
}

func TestSetBits_ExtractRoundTrip(t *testing.T) {
	bits := make([]byte, 24)
	SetBits(bits, 5, 12, 0xABC)
	if got := extractBits(bits, 5, 12); got != 0xABC {
		t.Errorf("Expected 0xABC back, got %#x", got)
	}
}
