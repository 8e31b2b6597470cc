package protocol

import "time"

// Builtin returns the default protocol table. Table order is the candidate
// tie-break order when several templates match the same transmission.
//
// The timings and layouts follow the transmitter families observed in the
// field; a configuration file may replace this table entirely.
func Builtin() []Protocol {
	return []Protocol{
		// Nexus-style temperature/humidity sensor. Pulse-position coded:
		// fixed 500 µs marks, the gap after each mark carries the bit.
		// No checksum; the constant 0xF nibble gates validity.
		{
			Name:             "nexus-th",
			ZeroPulseUS:      1000,
			OnePulseUS:       2000,
			SeparatorPulseUS: 500,
			SyncPulseUS:      4000,
			TolerancePct:     30,
			DataOnHigh:       false,
			MinSyncCount:     1,
			FrameBits:        36,
			DeviceBits:       BitField{Start: 0, Length: 8},
			ChannelBits:      &BitField{Start: 10, Length: 2},
			Fields: []FieldSpec{
				{Metric: "battery_ok", Bits: BitField{Start: 8, Length: 1}},
				{Metric: "temperature", Bits: BitField{Start: 12, Length: 12}, Signed: true, Scale: 0.1, Unit: "°C", Min: f(-40), Max: f(70)},
				{Metric: "humidity", Bits: BitField{Start: 28, Length: 8}, Unit: "%", Min: f(0), Max: f(100)},
			},
			Const:        []ConstField{{Bits: BitField{Start: 24, Length: 4}, Value: 0xF}},
			CRC:          CRCSpec{Algo: AlgoNone},
			Debounce:     Duration(time.Second),
			StaleTimeout: Duration(5 * time.Minute),
		},

		// WS-201 temperature/humidity sensor. Pulse-width coded: 500 µs
		// carrier pulse is a zero, 1500 µs a one, 500 µs gaps between bits,
		// four 4000 µs sync gaps ahead of the frame. Nibble-sum checksum.
		{
			Name:             "ws-201",
			ZeroPulseUS:      500,
			OnePulseUS:       1500,
			SeparatorPulseUS: 500,
			SyncPulseUS:      4000,
			TolerancePct:     25,
			DataOnHigh:       true,
			MinSyncCount:     4,
			FrameBits:        36,
			DeviceBits:       BitField{Start: 0, Length: 8},
			Fields: []FieldSpec{
				{Metric: "battery_ok", Bits: BitField{Start: 8, Length: 1}},
				{Metric: "temperature", Bits: BitField{Start: 12, Length: 12}, Signed: true, Scale: 0.1, Unit: "°C", Min: f(-40), Max: f(70)},
				{Metric: "humidity", Bits: BitField{Start: 24, Length: 8}, Unit: "%", Min: f(0), Max: f(100)},
			},
			Const: []ConstField{{Bits: BitField{Start: 9, Length: 3}, Value: 0}},
			CRC: CRCSpec{
				Algo:  AlgoNibbleSum,
				Data:  BitField{Start: 0, Length: 32},
				Check: BitField{Start: 32, Length: 4},
			},
			Debounce:     Duration(800 * time.Millisecond),
			StaleTimeout: Duration(5 * time.Minute),
		},

		// WGR-318 anemometer. Pulse-position coded with 700 µs marks.
		// Wind speed in 0.1 m/s steps, direction in 22.5° sectors.
		{
			Name:             "wgr-318",
			ZeroPulseUS:      1400,
			OnePulseUS:       2800,
			SeparatorPulseUS: 700,
			SyncPulseUS:      5600,
			TolerancePct:     20,
			DataOnHigh:       false,
			MinSyncCount:     2,
			FrameBits:        32,
			DeviceBits:       BitField{Start: 0, Length: 8},
			Fields: []FieldSpec{
				{Metric: "battery_ok", Bits: BitField{Start: 8, Length: 1}},
				{Metric: "wind_speed", Bits: BitField{Start: 12, Length: 12}, Scale: 0.1, Unit: "m/s", Min: f(0), Max: f(60)},
				{Metric: "wind_direction", Bits: BitField{Start: 24, Length: 4}, Scale: 22.5, Unit: "°"},
			},
			Const: []ConstField{{Bits: BitField{Start: 9, Length: 3}, Value: 0b110}},
			CRC: CRCSpec{
				Algo:  AlgoNibbleSum,
				Data:  BitField{Start: 0, Length: 28},
				Check: BitField{Start: 28, Length: 4},
			},
			Debounce:     Duration(800 * time.Millisecond),
			StaleTimeout: Duration(5 * time.Minute),
		},

		// RG-708 rain gauge. Pulse-width coded, CRC-8 (poly 0x31) over the
		// first four bytes. The cumulative tip counter maps to millimetres.
		{
			Name:             "rg-708",
			ZeroPulseUS:      350,
			OnePulseUS:       1050,
			SeparatorPulseUS: 500,
			SyncPulseUS:      7000,
			TolerancePct:     25,
			DataOnHigh:       true,
			MinSyncCount:     2,
			FrameBits:        40,
			DeviceBits:       BitField{Start: 0, Length: 8},
			Fields: []FieldSpec{
				{Metric: "battery_ok", Bits: BitField{Start: 8, Length: 1}},
				{Metric: "rain_total", Bits: BitField{Start: 16, Length: 16}, Scale: 0.25, Unit: "mm", Min: f(0), Max: f(10000)},
			},
			Const: []ConstField{{Bits: BitField{Start: 9, Length: 7}, Value: 0}},
			CRC: CRCSpec{
				Algo:  AlgoCRC8,
				Data:  BitField{Start: 0, Length: 32},
				Check: BitField{Start: 32, Length: 8},
				Poly:  0x31,
			},
			Debounce:     Duration(1200 * time.Millisecond),
			StaleTimeout: Duration(15 * time.Minute),
		},
	}
}

func f(v float64) *float64 {
	return &v
}
