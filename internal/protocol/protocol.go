// Package protocol holds the declarative wire-format descriptions of the
// supported 433 MHz sensor families: pulse timing templates, frame layout,
// integrity checks and bit-field maps. The set of known protocols is closed;
// adding a transmitter family means adding one table entry.
package protocol

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/ook-receiver/internal/rf"
)

// Duration wraps time.Duration with YAML support ("800ms", "5m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("protocol.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// BitField addresses a contiguous run of bits within a frame,
// most significant bit first.
type BitField struct {
	Start  int `yaml:"start"`
	Length int `yaml:"length"`
}

// FieldSpec maps a bit field to an engineering value:
// value = raw*Scale + Offset, with raw optionally two's-complement.
// Min/Max, when set, bound the physically plausible range; values outside
// it are emitted tagged suspect.
type FieldSpec struct {
	Metric rf.Metric `yaml:"metric"`
	Bits   BitField  `yaml:"bits"`
	Signed bool      `yaml:"signed"`
	Scale  float64   `yaml:"scale"`
	Offset float64   `yaml:"offset"`
	Unit   string    `yaml:"unit"`
	Min    *float64  `yaml:"min"`
	Max    *float64  `yaml:"max"`
}

// ConstField is a reserved bit field that must hold a fixed value in every
// valid frame.
type ConstField struct {
	Bits  BitField `yaml:"bits"`
	Value uint64   `yaml:"value"`
}

// Protocol is the immutable, declarative description of one transmitter
// family. The core never parses configuration files itself; a table of
// these is handed to it at startup.
type Protocol struct {
	Name string `yaml:"name"`

	// Timing template, microseconds. DataOnHigh selects pulse-width
	// encoding (bits carried by carrier pulses) over pulse-position
	// encoding (bits carried by the gaps between fixed-width marks).
	ZeroPulseUS      uint64 `yaml:"zeroPulseUs"`
	OnePulseUS       uint64 `yaml:"onePulseUs"`
	SeparatorPulseUS uint64 `yaml:"separatorPulseUs"`
	SyncPulseUS      uint64 `yaml:"syncPulseUs"`
	TolerancePct     uint64 `yaml:"tolerancePct"`
	DataOnHigh       bool   `yaml:"dataOnHigh"`

	// Frame structure.
	MinSyncCount int `yaml:"minSyncCount"`
	FrameBits    int `yaml:"frameBits"`

	// Device identity. Channel, when present, is part of the identity:
	// these transmitters reuse IDs across channel switches.
	DeviceBits  BitField  `yaml:"deviceBits"`
	ChannelBits *BitField `yaml:"channelBits"`

	Fields []FieldSpec  `yaml:"fields"`
	Const  []ConstField `yaml:"const"`
	CRC    CRCSpec      `yaml:"crc"`

	// Registry behaviour. Debounce covers the transmitter's repeat burst;
	// StaleTimeout marks devices silent for longer as stale.
	Debounce     Duration `yaml:"debounce"`
	StaleTimeout Duration `yaml:"staleTimeout"`
}

// Validate checks a protocol definition for internal consistency.
func (p *Protocol) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("protocol: name is required")
	}
	if p.ZeroPulseUS == 0 || p.OnePulseUS == 0 {
		return fmt.Errorf("protocol %s: zero and one pulse durations are required", p.Name)
	}
	if p.ZeroPulseUS == p.OnePulseUS {
		return fmt.Errorf("protocol %s: zero and one pulse durations must differ", p.Name)
	}
	if p.SyncPulseUS == 0 {
		return fmt.Errorf("protocol %s: sync pulse duration is required", p.Name)
	}
	if p.TolerancePct == 0 || p.TolerancePct >= 50 {
		return fmt.Errorf("protocol %s: tolerance must be within 1..49%%, got %d", p.Name, p.TolerancePct)
	}
	if p.MinSyncCount <= 0 {
		return fmt.Errorf("protocol %s: minimum sync count must be positive", p.Name)
	}
	if p.FrameBits <= 0 {
		return fmt.Errorf("protocol %s: frame length is required", p.Name)
	}
	if err := p.checkBitField(p.DeviceBits); err != nil {
		return fmt.Errorf("protocol %s: device bits: %w", p.Name, err)
	}
	if p.ChannelBits != nil {
		if err := p.checkBitField(*p.ChannelBits); err != nil {
			return fmt.Errorf("protocol %s: channel bits: %w", p.Name, err)
		}
	}
	for _, f := range p.Fields {
		if err := p.checkBitField(f.Bits); err != nil {
			return fmt.Errorf("protocol %s: field %s: %w", p.Name, f.Metric, err)
		}
		if f.Bits.Length > 63 {
			return fmt.Errorf("protocol %s: field %s: length %d exceeds 63 bits", p.Name, f.Metric, f.Bits.Length)
		}
	}
	for i, c := range p.Const {
		if err := p.checkBitField(c.Bits); err != nil {
			return fmt.Errorf("protocol %s: const field %d: %w", p.Name, i, err)
		}
	}
	if err := p.CRC.validate(p.FrameBits); err != nil {
		return fmt.Errorf("protocol %s: %w", p.Name, err)
	}
	if p.Debounce <= 0 {
		return fmt.Errorf("protocol %s: debounce window is required", p.Name)
	}
	if p.StaleTimeout <= 0 {
		return fmt.Errorf("protocol %s: stale timeout is required", p.Name)
	}
	return nil
}

func (p *Protocol) checkBitField(b BitField) error {
	if b.Length <= 0 {
		return fmt.Errorf("length must be positive, got %d", b.Length)
	}
	if b.Start < 0 || b.Start+b.Length > p.FrameBits {
		return fmt.Errorf("range [%d, %d) outside frame of %d bits", b.Start, b.Start+b.Length, p.FrameBits)
	}
	return nil
}

// within reports whether duration is inside the tolerance band of nominal.
func (p *Protocol) within(duration, nominal uint64) bool {
	if nominal == 0 {
		return false
	}
	margin := nominal * p.TolerancePct / 100
	return duration >= nominal-margin && duration <= nominal+margin
}

// Classify matches a single pulse against this protocol's timing template.
// Sync gaps are always carried by the low (no carrier) level. A pulse
// matching no template classifies as invalid, which eliminates this
// protocol as a candidate for the current frame attempt.
func (p *Protocol) Classify(pulse rf.Pulse) rf.Symbol {
	if pulse.Level == rf.Low && p.within(pulse.Duration, p.SyncPulseUS) {
		return rf.SymbolSync
	}

	dataLevel := rf.Low
	if p.DataOnHigh {
		dataLevel = rf.High
	}

	if pulse.Level == dataLevel {
		zero := p.within(pulse.Duration, p.ZeroPulseUS)
		one := p.within(pulse.Duration, p.OnePulseUS)
		switch {
		case zero && one:
			// Overlapping tolerance bands: pick the nearer template.
			if absDiff(pulse.Duration, p.ZeroPulseUS) <= absDiff(pulse.Duration, p.OnePulseUS) {
				return rf.SymbolZero
			}
			return rf.SymbolOne
		case zero:
			return rf.SymbolZero
		case one:
			return rf.SymbolOne
		}
		return rf.SymbolInvalid
	}

	if p.within(pulse.Duration, p.SeparatorPulseUS) {
		return rf.SymbolSeparator
	}
	return rf.SymbolInvalid
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Validate checks a whole protocol table, including name uniqueness.
// Table order is significant: it is the candidate tie-break order.
func Validate(protocols []Protocol) error {
	if len(protocols) == 0 {
		return fmt.Errorf("protocol: empty protocol table")
	}

	seen := make(map[string]struct{}, len(protocols))
	for i := range protocols {
		if err := protocols[i].Validate(); err != nil {
			return err
		}
		if _, ok := seen[protocols[i].Name]; ok {
			return fmt.Errorf("protocol: duplicate name %q", protocols[i].Name)
		}
		seen[protocols[i].Name] = struct{}{}
	}
	return nil
}
