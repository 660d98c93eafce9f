// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2c

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// ringBuffer is a fixed-depth overwrite-oldest history, used for the raw
// and classified event/state logs a fault snapshot publishes.
type ringBuffer[T any] struct {
	mu     sync.Mutex
	buf    []T
	next   int
	filled bool
}

func newRingBuffer[T any](depth int) *ringBuffer[T] {
	return &ringBuffer[T]{buf: make([]T, depth)}
}

func (r *ringBuffer[T]) push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.filled = true
	}
}

// snapshot returns the buffer's contents oldest-first.
func (r *ringBuffer[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.filled {
		out := make([]T, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]T, len(r.buf))
	n := copy(out, r.buf[r.next:])
	copy(out[n:], r.buf[:r.next])
	return out
}

// telemetry holds optional diagnostic counters and history ring buffers.
// None of it affects Transfer's return value; it exists purely to give a
// fault snapshot something to log.
type telemetry struct {
	nacks           atomic.Int64
	timeouts        atomic.Int64
	badEvents       atomic.Int64
	faults          atomic.Int64
	interruptFaults atomic.Int64

	rawEvents     *ringBuffer[uint32]
	rawErrIRQs    *ringBuffer[uint32]
	stateHistory  *ringBuffer[state]
	eventHistory  *ringBuffer[event]
}

func newTelemetry(depth int) *telemetry {
	return &telemetry{
		rawEvents:    newRingBuffer[uint32](depth),
		rawErrIRQs:   newRingBuffer[uint32](depth),
		stateHistory: newRingBuffer[state](depth),
		eventHistory: newRingBuffer[event](depth),
	}
}

func (t *telemetry) recordTransition(from state, ev event, to state) {
	t.stateHistory.push(from)
	t.eventHistory.push(ev)
}

// publishFaultSnapshot logs the adapter's recent history via log/slog. It
// is called from the FSM_FAULT/BUS_ERROR entry actions.
func (a *Adapter) publishFaultSnapshot(reason string) {
	slog.Warn("i2c: fault snapshot",
		slog.String("reason", reason),
		slog.Uint64("nacks", uint64(a.diag.nacks.Load())),
		slog.Uint64("timeouts", uint64(a.diag.timeouts.Load())),
		slog.Uint64("bad_events", uint64(a.diag.badEvents.Load())),
		slog.Uint64("fsm_faults", uint64(a.diag.faults.Load())),
		slog.Uint64("interrupt_faults", uint64(a.diag.interruptFaults.Load())),
		slog.Any("raw_events", a.diag.rawEvents.snapshot()),
		slog.Any("raw_error_irqs", a.diag.rawErrIRQs.snapshot()),
		slog.Any("state_history", a.diag.stateHistory.snapshot()),
		slog.Any("event_history", a.diag.eventHistory.snapshot()),
	)
}
