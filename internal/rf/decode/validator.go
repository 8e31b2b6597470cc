package decode

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roman-kulish/ook-receiver/internal/protocol"
	"github.com/roman-kulish/ook-receiver/internal/rf"
)

var (
	// ErrBadLength is returned when a frame's bit count does not match the
	// protocol's declared frame length.
	ErrBadLength = errors.New("frame length mismatch")

	// ErrBadChecksum is returned when the frame fails its checksum or CRC.
	ErrBadChecksum = errors.New("checksum mismatch")

	// ErrBadConstField is returned when a reserved bit field does not hold
	// its expected constant value.
	ErrBadConstField = errors.New("reserved field mismatch")
)

// Validator checks frame integrity: exact length, checksum/CRC per the
// protocol's algorithm, then reserved constant fields. Rejected frames are
// counted per protocol and discarded; RF telemetry is one-way and a lost
// frame is recovered only by the next transmission.
type Validator struct {
	mu      sync.Mutex
	rejects map[string]uint64
}

// NewValidator creates a validator with zeroed per-protocol reject counters.
func NewValidator(protocols []protocol.Protocol) *Validator {
	rejects := make(map[string]uint64, len(protocols))
	for i := range protocols {
		rejects[protocols[i].Name] = 0
	}
	return &Validator{rejects: rejects}
}

// Validate checks a frame against its protocol. A nil return passes the
// frame, unmodified, downstream.
func (v *Validator) Validate(p *protocol.Protocol, f *rf.Frame) error {
	if len(f.Bits) != p.FrameBits {
		return v.reject(p, fmt.Errorf("%w: got %d bits, want %d", ErrBadLength, len(f.Bits), p.FrameBits))
	}

	if !p.CRC.Verify(f.Bits) {
		return v.reject(p, fmt.Errorf("%w: %s over bits [%d, %d)", ErrBadChecksum,
			p.CRC.Algo, p.CRC.Data.Start, p.CRC.Data.Start+p.CRC.Data.Length))
	}

	for _, c := range p.Const {
		if got := extract(f.Bits, c.Bits); got != c.Value {
			return v.reject(p, fmt.Errorf("%w: bits [%d, %d) hold %#x, want %#x", ErrBadConstField,
				c.Bits.Start, c.Bits.Start+c.Bits.Length, got, c.Value))
		}
	}

	return nil
}

func (v *Validator) reject(p *protocol.Protocol, err error) error {
	v.mu.Lock()
	v.rejects[p.Name]++
	v.mu.Unlock()
	return err
}

// Rejects returns a snapshot of the per-protocol reject counters.
func (v *Validator) Rejects() map[string]uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make(map[string]uint64, len(v.rejects))
	for name, n := range v.rejects {
		out[name] = n
	}
	return out
}

func extract(bits []byte, b protocol.BitField) uint64 {
	var v uint64
	for i := 0; i < b.Length; i++ {
		v = v<<1 | uint64(bits[b.Start+i]&1)
	}
	return v
}
