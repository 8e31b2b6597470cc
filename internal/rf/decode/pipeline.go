package decode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/ook-receiver/internal/protocol"
	"github.com/roman-kulish/ook-receiver/internal/registry"
	"github.com/roman-kulish/ook-receiver/internal/rf"
)

// Sink consumes emitted readings. Implementations must tolerate being
// called from the single decode goroutine only.
type Sink interface {
	Publish(r rf.Reading) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(r rf.Reading) error

func (f SinkFunc) Publish(r rf.Reading) error { return f(r) }

// Stats is a diagnostic snapshot of the pipeline. Counters are queryable,
// never pushed.
type Stats struct {
	QueueDrops         uint64
	FramesAssembled    uint64
	FramesValid        uint64
	Rejects            map[string]uint64
	ReadingsEmitted    uint64
	ReadingsSuppressed uint64
	SuspectReadings    uint64
}

// WithSink appends a reading sink.
func WithSink(s Sink) func(*Pipeline) {
	return func(p *Pipeline) {
		p.sinks = append(p.sinks, s)
	}
}

// WithLogger sets the logger for the pipeline.
func WithLogger(logger *slog.Logger) func(*Pipeline) {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) func(*Pipeline) {
	return func(p *Pipeline) {
		p.now = now
	}
}

// Pipeline is the decode context: it drains the edge queue in strict
// arrival order, pairs edges into pulses, and drives the assembler,
// validator, protocol decoder and registry. It owns no goroutine of its
// own; Run blocks until the context is cancelled.
type Pipeline struct {
	queue     *rf.EdgeQueue
	protocols []protocol.Protocol
	byName    map[string]*protocol.Protocol

	assembler *Assembler
	validator *Validator
	devices   *registry.Registry

	sinks  []Sink
	logger *slog.Logger
	now    func() time.Time

	prev    rf.Edge
	hasPrev bool

	framesAssembled    atomic.Uint64
	framesValid        atomic.Uint64
	readingsEmitted    atomic.Uint64
	readingsSuppressed atomic.Uint64
	suspectReadings    atomic.Uint64
}

// New creates a pipeline over a validated protocol table.
func New(queue *rf.EdgeQueue, protocols []protocol.Protocol, devices *registry.Registry, options ...func(*Pipeline)) (*Pipeline, error) {
	if err := protocol.Validate(protocols); err != nil {
		return nil, err
	}

	p := Pipeline{
		queue:     queue,
		protocols: protocols,
		byName:    make(map[string]*protocol.Protocol, len(protocols)),
		validator: NewValidator(protocols),
		devices:   devices,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for i := range protocols {
		p.byName[protocols[i].Name] = &protocols[i]
	}

	for _, option := range options {
		option(&p)
	}

	p.assembler = NewAssembler(protocols, WithAssemblerLogger(p.logger))
	return &p, nil
}

// Run drains the edge queue until the context is cancelled. Edges are
// processed in strict arrival order; classification, assembly, validation,
// decoding and registry mutation all happen here, decoupled from capture
// by the bounded queue.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		if !p.queue.Wait(ctx) {
			return ctx.Err()
		}

		for {
			edge, ok := p.queue.Pop()
			if !ok {
				break
			}
			p.Feed(edge)
		}
	}
}

// Feed processes a single edge. Exported for replay and tests; the live
// path goes through Run.
func (p *Pipeline) Feed(e rf.Edge) {
	if !p.hasPrev {
		p.prev = e
		p.hasPrev = true
		return
	}

	pulse := rf.Pulse{
		Duration: e.Timestamp - p.prev.Timestamp,
		Level:    p.prev.Level,
	}
	ts := p.prev.Timestamp

	p.prev = e

	frame := p.assembler.Feed(pulse, ts)
	if frame == nil {
		return
	}

	p.framesAssembled.Add(1)
	p.handleFrame(frame)
}

// Reset flushes the assembler back to idle and forgets the pending edge,
// e.g. after reconfiguration.
func (p *Pipeline) Reset() {
	p.assembler.Reset()
	p.hasPrev = false
}

// Stats returns a diagnostic snapshot.
func (p *Pipeline) Stats() Stats {
	return Stats{
		QueueDrops:         p.queue.Drops(),
		FramesAssembled:    p.framesAssembled.Load(),
		FramesValid:        p.framesValid.Load(),
		Rejects:            p.validator.Rejects(),
		ReadingsEmitted:    p.readingsEmitted.Load(),
		ReadingsSuppressed: p.readingsSuppressed.Load(),
		SuspectReadings:    p.suspectReadings.Load(),
	}
}

func (p *Pipeline) handleFrame(frame *rf.Frame) {
	proto, ok := p.byName[frame.Protocol]
	if !ok {
		// Cannot happen: the assembler only produces frames for table entries.
		p.logger.Error(fmt.Sprintf("frame for unknown protocol %q", frame.Protocol))
		return
	}

	if err := p.validator.Validate(proto, frame); err != nil {
		p.logger.Debug("frame rejected",
			slog.String("protocol", frame.Protocol),
			slog.String("reason", err.Error()))
		return
	}
	p.framesValid.Add(1)

	decoded, err := proto.Decode(frame, p.now())
	if err != nil {
		p.logger.Error(fmt.Sprintf("decoding frame: %s", err))
		return
	}

	emit := p.devices.Observe(registry.Observation{
		Protocol:   decoded.Protocol,
		DeviceID:   decoded.DeviceID,
		Bits:       frame.Bits,
		Readings:   decoded.Readings,
		At:         p.now(),
		Debounce:   proto.Debounce.Std(),
		StaleAfter: proto.StaleTimeout.Std(),
	})
	if !emit {
		p.readingsSuppressed.Add(uint64(len(decoded.Readings)))
		return
	}

	for _, reading := range decoded.Readings {
		if reading.Suspect {
			p.suspectReadings.Add(1)
			p.logger.Warn("suspect reading",
				slog.String("protocol", reading.Protocol),
				slog.String("device", reading.DeviceID),
				slog.String("metric", string(reading.Metric)),
				slog.Float64("value", reading.Value))
		}

		for _, sink := range p.sinks {
			if err := sink.Publish(reading); err != nil {
				p.logger.Error(fmt.Sprintf("publishing reading: %s", err),
					slog.String("device", reading.DeviceID),
					slog.String("metric", string(reading.Metric)))
			}
		}
		p.readingsEmitted.Add(1)
	}

	p.logger.Info("reading set emitted",
		slog.String("protocol", decoded.Protocol),
		slog.String("device", decoded.DeviceID),
		slog.Int("readings", len(decoded.Readings)))
}
