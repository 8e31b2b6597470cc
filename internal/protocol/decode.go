package protocol

import (
	"fmt"
	"time"

	"github.com/roman-kulish/ook-receiver/internal/rf"
)

// Decoded is the result of mapping one validated frame to engineering
// values. Key is the composite device identity (protocol + device id);
// device ids are not assumed unique across protocols.
type Decoded struct {
	Protocol string
	DeviceID string
	Readings []rf.Reading
}

// Key returns the composite registry key for the originating device.
func (d *Decoded) Key() string {
	return d.Protocol + "/" + d.DeviceID
}

// Decode maps a validated frame's bits to named readings. Decoding is pure
// and total for any frame that passed validation: out-of-range values are
// flagged suspect but still returned.
func (p *Protocol) Decode(f *rf.Frame, at time.Time) (*Decoded, error) {
	if len(f.Bits) != p.FrameBits {
		return nil, fmt.Errorf("protocol %s: frame has %d bits, want %d", p.Name, len(f.Bits), p.FrameBits)
	}

	deviceID := fmt.Sprintf("%02x", extractBits(f.Bits, p.DeviceBits.Start, p.DeviceBits.Length))
	if p.ChannelBits != nil {
		deviceID = fmt.Sprintf("%s:%d", deviceID, extractBits(f.Bits, p.ChannelBits.Start, p.ChannelBits.Length))
	}

	d := Decoded{
		Protocol: p.Name,
		DeviceID: deviceID,
		Readings: make([]rf.Reading, 0, len(p.Fields)),
	}

	for _, field := range p.Fields {
		raw := extractBits(f.Bits, field.Bits.Start, field.Bits.Length)

		var value float64
		if field.Signed {
			value = float64(signExtend(raw, field.Bits.Length))
		} else {
			value = float64(raw)
		}

		scale := field.Scale
		if scale == 0 {
			scale = 1
		}
		value = value*scale + field.Offset

		suspect := false
		if field.Min != nil && value < *field.Min {
			suspect = true
		}
		if field.Max != nil && value > *field.Max {
			suspect = true
		}

		d.Readings = append(d.Readings, rf.Reading{
			Protocol:  p.Name,
			DeviceID:  deviceID,
			Metric:    field.Metric,
			Value:     value,
			Unit:      field.Unit,
			Suspect:   suspect,
			Timestamp: at,
		})
	}

	return &d, nil
}

// signExtend interprets the low length bits of raw as two's-complement.
func signExtend(raw uint64, length int) int64 {
	if length == 64 {
		return int64(raw)
	}
	if raw&(1<<(length-1)) != 0 {
		return int64(raw | ^uint64(0)<<length)
	}
	return int64(raw)
}

// SetBits writes an unsigned big-endian value into a bit slice. It is the
// inverse of field extraction and serves synthetic frame encoders.
func SetBits(bits []byte, start, length int, value uint64) {
	for i := 0; i < length; i++ {
		bits[start+i] = byte(value >> (length - 1 - i) & 1)
	}
}
