package rf

import "time"

// Level is the logic level of the demodulated data line.
// High means the carrier is present (OOK mark), Low means silence.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Edge is a single logic-level transition on the data line. Timestamp is
// a monotonic microsecond counter sourced from the capture hardware; Level
// is the level the line changed to.
type Edge struct {
	Timestamp uint64 // microseconds, strictly increasing
	Level     Level
}

// Pulse is the interval between two consecutive edges: the line held Level
// for Duration microseconds.
type Pulse struct {
	Duration uint64 // microseconds
	Level    Level
}

// Symbol is the classification of a single pulse against one protocol's
// timing template.
type Symbol int

const (
	// SymbolZero and SymbolOne are data bits.
	SymbolZero Symbol = iota
	SymbolOne

	// SymbolSync is a synchronization gap preceding (or separating) frames.
	SymbolSync

	// SymbolSeparator is a fixed-width pulse on the non-data level between
	// data bits (the mark pulse of a PPM protocol, or the inter-bit gap of
	// a PWM protocol). It carries no information.
	SymbolSeparator

	// SymbolInvalid means the pulse matches no template of the protocol.
	SymbolInvalid
)

func (s Symbol) String() string {
	switch s {
	case SymbolZero:
		return "0"
	case SymbolOne:
		return "1"
	case SymbolSync:
		return "sync"
	case SymbolSeparator:
		return "sep"
	default:
		return "invalid"
	}
}

// Frame is a complete fixed-length bit sequence assembled from one
// transmission. Bits hold one bit per element, in over-the-air order.
// A Frame is immutable once assembled.
type Frame struct {
	Bits      []byte // each element is 0 or 1
	Protocol  string // name of the protocol whose template matched
	CaptureUS uint64 // monotonic timestamp of the first sync pulse
}

// Metric identifies the physical quantity a Reading reports.
type Metric string

const (
	MetricTemperature   Metric = "temperature"
	MetricHumidity      Metric = "humidity"
	MetricWindSpeed     Metric = "wind_speed"
	MetricWindDirection Metric = "wind_direction"
	MetricRainTotal     Metric = "rain_total"
	MetricBatteryOK     Metric = "battery_ok"
)

// Reading is a single decoded sensor value, self-contained and immutable.
// Suspect marks values outside the protocol's plausible physical range;
// they are still emitted so that the consumer can decide disposition.
type Reading struct {
	Protocol  string    `json:"protocol"`
	DeviceID  string    `json:"deviceId"`
	Metric    Metric    `json:"metric"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Suspect   bool      `json:"suspect,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
