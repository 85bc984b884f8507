// Package probing provides named, optionally-enabled event channels. A
// probe multicasts published items to its sinks; publishing to a probe
// that nobody listens to is skipped entirely.
package probing

import (
	"sync"
	"sync/atomic"
)

// ProbeCtx holds the information delivered to a sink when a probe fires.
type ProbeCtx struct {
	// Probe is the probe that is firing.
	Probe *Probe

	// Item carries the published payload.
	Item any
}

// A Sink is a short piece of program that receives items published on a
// probe.
type Sink interface {
	// Func handles one published item.
	Func(ctx ProbeCtx)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ctx ProbeCtx)

// Func calls f.
func (f SinkFunc) Func(ctx ProbeCtx) {
	f(ctx)
}

// A Probe is a named event channel. Items published on an enabled probe
// are multicast to all the sinks attached to it.
type Probe struct {
	name  string
	muted atomic.Bool

	mu    sync.RWMutex
	sinks []Sink

	numDroppedSinkCalls atomic.Uint64
}

// NewProbe creates a probe with the given name.
func NewProbe(name string) *Probe {
	if name == "" {
		panic("probe name must not be empty")
	}

	p := &Probe{
		name:  name,
		sinks: make([]Sink, 0),
	}

	return p
}

// Name returns the name of the probe.
func (p *Probe) Name() string {
	return p.name
}

// IsEnabled reports whether publishing on this probe reaches anyone. A
// probe is enabled when it has at least one sink and has not been muted.
// Callers are expected to check IsEnabled before constructing an event
// payload, so disabled probes cost no allocation.
func (p *Probe) IsEnabled() bool {
	if p.muted.Load() {
		return false
	}

	return p.NumSinks() > 0
}

// Mute disables the probe without detaching its sinks.
func (p *Probe) Mute() {
	p.muted.Store(true)
}

// Unmute re-enables a muted probe.
func (p *Probe) Unmute() {
	p.muted.Store(false)
}

// AcceptSink attaches a sink to the probe.
func (p *Probe) AcceptSink(sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sinks = append(p.sinks, sink)
}

// NumSinks returns the number of sinks attached to the probe.
func (p *Probe) NumSinks() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.sinks)
}

// Publish multicasts an item to all the sinks of the probe. Publishing on
// a disabled probe does nothing. A panicking sink is isolated: the panic
// is swallowed, counted, and the remaining sinks still receive the item.
func (p *Probe) Publish(item any) {
	if !p.IsEnabled() {
		return
	}

	p.mu.RLock()
	sinks := make([]Sink, len(p.sinks))
	copy(sinks, p.sinks)
	p.mu.RUnlock()

	ctx := ProbeCtx{
		Probe: p,
		Item:  item,
	}

	for _, sink := range sinks {
		p.deliver(sink, ctx)
	}
}

func (p *Probe) deliver(sink Sink, ctx ProbeCtx) {
	defer func() {
		if r := recover(); r != nil {
			p.numDroppedSinkCalls.Add(1)
		}
	}()

	sink.Func(ctx)
}

// NumDroppedSinkCalls returns the number of sink invocations that panicked
// and were dropped.
func (p *Probe) NumDroppedSinkCalls() uint64 {
	return p.numDroppedSinkCalls.Load()
}
