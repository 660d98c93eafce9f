// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2c

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"periph.io/x/conn/v3/gpio"
)

// Adapter is a handle to one I2C peripheral instance. Adapters are created
// once by Init and live for the lifetime of the program; there is no
// Close. The zero Adapter is not valid -- only a value returned by Init
// may be used.
type Adapter struct {
	cfg Config
	hw  Peripheral

	// mu serializes Transfer/CheckClear callers; ready is released from
	// the STOPPING entry action (running on the ISR) and acquired by
	// Transfer to wait for completion. Both are golang.org/x/sync
	// semaphore.Weighted(1) instances: mu behaves as a conventional
	// mutex, while ready is pre-acquired once in Init so it starts
	// "empty" (no signal pending) -- Release makes one permit available,
	// Acquire/TryAcquire consumes it. This is the Go rendition of a
	// single-slot signal settable from interrupt context and waited on
	// with timeout from thread context.
	mu    *semaphore.Weighted
	ready *semaphore.Weighted

	// state is written from injectEvent/processAuto under
	// cfg.Interrupts.Disable(), matching the original driver's single
	// execution context assumption; the only other writes are Init and
	// reinitFSM setting it to STOPPED directly while no transfer's events
	// are being injected. Transfer's exit-path spin loop reads
	// it outside that mask, same as the reference driver's
	// i2c_adapter_fsm_terminated spin -- on real single-core hardware
	// this is a plain read of a value that only moves forward to
	// termination; it is not a reentrancy hazard.
	state state

	txns      []Txn
	activeTxn int
	lastTxn   int
	activeByte int
	lastByte   int

	busError atomic.Bool
	diag     *telemetry

	valid bool
}

// Init configures the peripheral, performs an initial bus reset, installs
// the event/error IRQ handlers, and returns a ready-to-use Adapter.
func Init(cfg Config) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	a := &Adapter{
		cfg:   cfg,
		hw:    cfg.Peripheral,
		mu:    semaphore.NewWeighted(1),
		ready: semaphore.NewWeighted(1),
		diag:  newTelemetry(cfg.telemetryDepth()),
	}
	// Start ready in the "empty" (no signal pending) state.
	_ = a.ready.Acquire(context.Background(), 1)

	if cfg.Remap != nil {
		if err := cfg.Remap(); err != nil {
			return nil, fmt.Errorf("i2c: pin remap: %w", err)
		}
	}

	a.resetBus()
	a.state = stateStopped
	a.valid = true

	cfg.IRQInstaller.InstallEventIRQ(cfg.EventIRQPriority, a.EventIRQ)
	cfg.IRQInstaller.InstallErrorIRQ(cfg.ErrorIRQPriority, a.ErrorIRQ)

	return a, nil
}

func (a *Adapter) mustBeValid() {
	if a == nil || !a.valid {
		panic("i2c: use of invalid or zero-value Adapter")
	}
}

func (a *Adapter) setState(s state) {
	a.state = s
}

// CheckClear non-destructively inspects the bus: it reports ErrBusLocked if
// another Transfer holds the mutex, ErrNotStopped if the FSM is mid-
// transfer, and ErrLinesLow if SDA or SCL reads low while idle.
func (a *Adapter) CheckClear() error {
	a.mustBeValid()

	if !a.mu.TryAcquire(1) {
		return ErrBusLocked
	}
	defer a.mu.Release(1)

	if a.state != stateStopped {
		return ErrNotStopped
	}
	if a.cfg.SDA.Read() == gpio.Low || a.cfg.SCL.Read() == gpio.Low {
		return ErrLinesLow
	}
	return nil
}

// Transfer performs txns as one chained I2C operation: one START, a
// repeated START between consecutive transactions, and one STOP after the
// last. It blocks until the FSM returns to STOPPED or the bound derived
// from ctx (falling back to cfg.TransferTimeout when ctx carries no
// deadline) elapses.
//
// A slave NACK aborts the chain immediately: STOP is generated, the FSM
// returns to STOPPED, and Transfer reports ErrBusError, same as a BUS_ERROR
// or FSM_FAULT. Bytes already written before the NACK took effect; a read
// that never got its bytes filled leaves its buffer untouched.
//
// Transfer panics on programmer errors: a zero-value Adapter, an empty or
// malformed transaction list, or an FSM found outside STOPPED once the
// mutex is held. A call made while another Transfer holds the mutex, from
// any goroutine, blocks on the mutex acquisition below and returns
// ErrTransferTimeout if the bound expires first; this is how concurrent
// transfers are serialized.
func (a *Adapter) Transfer(ctx context.Context, txns []Txn) error {
	a.mustBeValid()
	validateList(txns)

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.TransferTimeout)
		defer cancel()
	}

	if err := a.mu.Acquire(ctx, 1); err != nil {
		return ErrTransferTimeout
	}
	defer a.mu.Release(1)

	if a.state != stateStopped {
		panic("i2c: Transfer called while adapter is not stopped")
	}

	a.txns = txns
	a.activeTxn, a.lastTxn = 0, len(txns)-1
	a.activeByte, a.lastByte = 0, 0
	a.busError.Store(false)

	// Drain any stray signal left over from a prior timed-out transfer.
	a.ready.TryAcquire(1)

	a.injectEvent(eventStart)

	// A successful Acquire here consumes the permit actionStopping
	// released, leaving ready "empty" again for the next Transfer's
	// drain. A failed (timed-out) Acquire consumes nothing; any signal
	// that arrives afterward is mopped up by the next call's drain.
	timedOut := a.ready.Acquire(ctx, 1) != nil

	// The FSM always reaches STOPPING/STOPPED very shortly after the ISR
	// path runs, regardless of whether the wait above timed out.
	for !a.state.terminated() {
		runtime.Gosched()
	}

	if a.waitForStopped() {
		a.injectEvent(eventStopped)
	} else {
		a.reinitFSM()
	}

	if timedOut {
		a.diag.timeouts.Add(1)
		return ErrTransferTimeout
	}
	if a.busError.Load() {
		return ErrBusError
	}
	return nil
}

// waitForStopped spins waiting for the peripheral's STOP-requested bit to
// clear. This was pulled out of the FSM table itself after occasional
// failures at this transition previously caused an ISR to spin on the bit
// forever; a bounded guard here means the caller always gets control back.
func (a *Adapter) waitForStopped() bool {
	const guard = 1_000_000
	for i := 0; i < guard; i++ {
		if !a.hw.StopRequested() {
			return true
		}
	}
	return false
}

// reinitFSM forces the FSM back to STOPPED via a full bus reset, used when
// waitForStopped's guard expires.
func (a *Adapter) reinitFSM() {
	a.resetBus()
	a.state = stateStopped
}
