// Package decode is the single-consumer decode context: it classifies
// pulses, assembles frames, validates them and turns them into readings.
// All of it runs on one goroutine; only the edge queue is shared with the
// capture context.
package decode

import (
	"io"
	"log/slog"

	"github.com/roman-kulish/ook-receiver/internal/protocol"
	"github.com/roman-kulish/ook-receiver/internal/rf"
)

type assemblerState int

const (
	stateIdle assemblerState = iota
	stateSyncing
	stateCollecting
)

// candidate is the per-protocol frame-assembly state machine. All known
// protocols are evaluated concurrently against the same pulse stream; a
// candidate that sees a pulse its template cannot classify drops out of
// the current frame attempt.
type candidate struct {
	proto *protocol.Protocol

	state    assemblerState
	syncSeen int
	startUS  uint64
	bits     []byte
}

func (c *candidate) reset() {
	c.state = stateIdle
	c.syncSeen = 0
	c.startUS = 0
	c.bits = c.bits[:0]
}

// resync restarts sync accumulation from the current pulse.
func (c *candidate) resync(ts uint64) {
	c.state = stateSyncing
	c.syncSeen = 1
	c.startUS = ts
	c.bits = c.bits[:0]
}

// Assembler accumulates classified symbols into frames. When several
// protocol candidates remain live simultaneously, the first to satisfy its
// frame-length requirement wins; ties resolve by protocol table order.
type Assembler struct {
	cands  []candidate
	logger *slog.Logger
}

// WithAssemblerLogger sets the logger for the assembler.
func WithAssemblerLogger(logger *slog.Logger) func(*Assembler) {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// NewAssembler creates an assembler over the given protocol table.
// The table must already be validated.
func NewAssembler(protocols []protocol.Protocol, options ...func(*Assembler)) *Assembler {
	a := Assembler{
		cands:  make([]candidate, len(protocols)),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for i := range protocols {
		a.cands[i].proto = &protocols[i]
		a.cands[i].bits = make([]byte, 0, protocols[i].FrameBits)
	}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// Feed consumes one pulse. ts is the monotonic timestamp of the pulse
// start. Returns a completed frame, or nil. On completion every candidate
// resets: the attempt is over for all protocols.
func (a *Assembler) Feed(pulse rf.Pulse, ts uint64) *rf.Frame {
	for i := range a.cands {
		c := &a.cands[i]
		sym := c.proto.Classify(pulse)

		switch c.state {
		case stateIdle:
			if sym == rf.SymbolSync {
				c.resync(ts)
			}

		case stateSyncing:
			switch sym {
			case rf.SymbolSync:
				c.syncSeen++
			case rf.SymbolSeparator:
				// delimits, carries nothing
			case rf.SymbolZero, rf.SymbolOne:
				// Preamble marks sit on the data level and classify as
				// bits. Until enough sync gaps have accumulated they carry
				// nothing; the first data symbol past the threshold opens
				// the frame.
				if c.syncSeen < c.proto.MinSyncCount {
					break
				}
				c.state = stateCollecting
				c.bits = append(c.bits, bitValue(sym))
			default:
				c.reset()
			}

		case stateCollecting:
			switch sym {
			case rf.SymbolZero, rf.SymbolOne:
				c.bits = append(c.bits, bitValue(sym))
				if len(c.bits) == c.proto.FrameBits {
					frame := &rf.Frame{
						Bits:      append([]byte(nil), c.bits...),
						Protocol:  c.proto.Name,
						CaptureUS: c.startUS,
					}

					a.logger.Debug("frame assembled",
						slog.String("protocol", frame.Protocol),
						slog.Int("bits", len(frame.Bits)),
						slog.Uint64("captureUs", frame.CaptureUS))

					a.Reset()
					return frame
				}
			case rf.SymbolSeparator:
				// delimits, carries nothing
			case rf.SymbolSync:
				// Truncated frame; no partial frame is salvaged. The sync
				// pulse may open the next attempt, so account for it.
				c.resync(ts)
			default:
				c.reset()
			}
		}
	}

	return nil
}

// Reset flushes all candidates back to idle, e.g. after reconfiguration.
func (a *Assembler) Reset() {
	for i := range a.cands {
		a.cands[i].reset()
	}
}

func bitValue(s rf.Symbol) byte {
	if s == rf.SymbolOne {
		return 1
	}
	return 0
}
