package decode

import (
	"github.com/roman-kulish/ook-receiver/internal/protocol"
	"github.com/roman-kulish/ook-receiver/internal/rf"
)

// Synthetic transmitter: turns frame bits back into the pulse train a real
// sensor would emit, for driving the assembler and pipeline in tests.

// framePulses encodes one transmission of the given bits: sync preamble
// followed by the data bits in the protocol's modulation.
func framePulses(p *protocol.Protocol, bits []byte) []rf.Pulse {
	var pulses []rf.Pulse

	// Preamble: a short carrier mark ahead of every sync gap.
	markWidth := p.SeparatorPulseUS
	if p.DataOnHigh {
		markWidth = p.ZeroPulseUS
	}
	for i := 0; i < p.MinSyncCount; i++ {
		pulses = append(pulses,
			rf.Pulse{Duration: markWidth, Level: rf.High},
			rf.Pulse{Duration: p.SyncPulseUS, Level: rf.Low})
	}

	for i, b := range bits {
		width := p.ZeroPulseUS
		if b == 1 {
			width = p.OnePulseUS
		}

		if p.DataOnHigh {
			// Pulse-width coding: the carrier pulse is the bit, fixed
			// gaps separate them.
			pulses = append(pulses, rf.Pulse{Duration: width, Level: rf.High})
			if i < len(bits)-1 {
				pulses = append(pulses, rf.Pulse{Duration: p.SeparatorPulseUS, Level: rf.Low})
			}
		} else {
			// Pulse-position coding: fixed marks, the gap after each
			// mark is the bit.
			pulses = append(pulses,
				rf.Pulse{Duration: p.SeparatorPulseUS, Level: rf.High},
				rf.Pulse{Duration: width, Level: rf.Low})
		}
	}

	if !p.DataOnHigh {
		// Closing mark terminates the last bit gap.
		pulses = append(pulses, rf.Pulse{Duration: p.SeparatorPulseUS, Level: rf.High})
	}

	return pulses
}

// repeatBurst repeats a transmission n times with an idle gap between
// repeats, the way battery transmitters send their frames.
func repeatBurst(pulses []rf.Pulse, n int, gapUS uint64) []rf.Pulse {
	var out []rf.Pulse
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, rf.Pulse{Duration: gapUS, Level: rf.Low})
		}
		out = append(out, pulses...)
	}
	return out
}

// scalePulses applies a uniform timing error, simulating transmitter
// clock drift.
func scalePulses(pulses []rf.Pulse, factor float64) []rf.Pulse {
	out := make([]rf.Pulse, len(pulses))
	for i, p := range pulses {
		out[i] = rf.Pulse{Duration: uint64(float64(p.Duration) * factor), Level: p.Level}
	}
	return out
}

// edgesFromPulses renders pulses as the edge stream the capture layer
// would produce, starting at the given timestamp. A closing edge
// terminates the final pulse.
func edgesFromPulses(start uint64, pulses []rf.Pulse) []rf.Edge {
	edges := make([]rf.Edge, 0, len(pulses)+1)
	ts := start
	for _, p := range pulses {
		edges = append(edges, rf.Edge{Timestamp: ts, Level: p.Level})
		ts += p.Duration
	}
	edges = append(edges, rf.Edge{Timestamp: ts, Level: !pulses[len(pulses)-1].Level})
	return edges
}

// feedPulses drives the assembler directly and returns the first
// completed frame, if any.
func feedPulses(a *Assembler, start uint64, pulses []rf.Pulse) *rf.Frame {
	ts := start
	var frame *rf.Frame
	for _, p := range pulses {
		if f := a.Feed(p, ts); f != nil && frame == nil {
			frame = f
		}
		ts += p.Duration
	}
	return frame
}

func builtin(name string) *protocol.Protocol {
	protocols := protocol.Builtin()
	for i := range protocols {
		if protocols[i].Name == name {
			return &protocols[i]
		}
	}
	return nil
}
