// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package i2csim provides a simulated I2C peripheral and bus pins for
// testing package i2c's FSM end to end, without real hardware. It plays
// the same role conn/i2c/i2ctest and conn/gpio/gpiotest play for the
// periph Bus-level API, but one layer down: it drives the real entry
// actions and IRQ classifier by emulating the register-level behavior an
// STM32 I2C peripheral block exposes to them.
package i2csim

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/andrewfernie/dRonin/i2c"
)

// Raw event codes mirroring the ones package i2c's classifier expects;
// kept local rather than imported since they are unexported there.
const (
	masterModeSelectCode              = 0x00030001
	masterReceiverModeSelectedCode    = 0x00030002
	masterTransmitterModeSelectedCode = 0x00070082
	masterByteReceivedCode            = 0x00030040
	masterByteTransmittedCode         = 0x00070084
)

// Slave is a scripted I2C slave device. Controller calls it synchronously
// as the simulated master reaches each phase of a transaction.
type Slave interface {
	// Start reports whether the slave at addr acknowledges being
	// addressed for the given direction.
	Start(addr uint8, dir i2c.Direction) bool
	// WriteByte delivers one byte written by the master and reports
	// whether the slave acknowledges it.
	WriteByte(b byte) bool
	// ReadByte supplies the next byte for the master to read.
	ReadByte() byte
}

// Line models an open-drain, wired-AND bus line: it reads Low if a Pin
// wired to it is driving it low, or if a Slave is independently holding it
// low (simulating a wedged device), whichever asserts.
type Line struct {
	mu      sync.Mutex
	driven  bool
	heldLow bool
}

// Hold simulates a slave asserting (or releasing) this line independently
// of the master, e.g. a device that wedges SDA low mid-transaction.
func (l *Line) Hold(low bool) {
	l.mu.Lock()
	l.heldLow = low
	l.mu.Unlock()
}

func (l *Line) level() gpio.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.driven || l.heldLow {
		return gpio.Low
	}
	return gpio.High
}

func (l *Line) drive(low bool) {
	l.mu.Lock()
	l.driven = low
	l.mu.Unlock()
}

// Controller is a fake i2c.Peripheral plus the IRQInstaller/Clock a Config
// needs, wired to a Slave. Interrupts are simulated by invoking the
// installed handlers on their own goroutine shortly after the triggering
// register write, mirroring how a real peripheral's interrupt fires
// asynchronously relative to the instruction that provoked it (this also
// avoids deadlocking on the Adapter's own critical-section lock, which is
// still held at the moment the triggering write happens).
//
// Reads need one extra piece of simulated behavior a write doesn't: once a
// read has started, the peripheral keeps clocking bytes in and raising
// byte-received interrupts on its own, with no further register write from
// the driver to hang an async callback off of. readPump reproduces that by
// firing masterByteReceived on a timer, stopping itself the first time it
// observes ack already disabled going into an iteration -- which is exactly
// one interrupt after SetAck(false) is called to arm the final byte(s),
// matching the real erratum timing the driver's PRE_LAST/PRE_ONE states are
// built around.
type Controller struct {
	slave Slave

	mu         sync.Mutex
	ackEnabled bool
	lastEvent  uint32
	ackFailure bool
	stopWait   bool
	busy       bool
	pumpGen    int

	// inRead is set for the duration of a read's byte-clocking chain
	// (SendAddress for a Read through the pump's last delivered byte). A
	// repeated START issued mid-chain -- the N=1 erratum workaround arms
	// it before the chain's last byte is actually received -- has its
	// event deferred in pending rather than fired immediately, so it
	// cannot race ahead of the byte event still in flight. Only the most
	// recently queued one matters: the FSM always issues a second, real
	// GenerateStart for the next transaction's Starting state by the time
	// the chain actually ends, superseding the early one.
	inRead  bool
	pending func()

	eventCB, errCB func()

	irqDelay time.Duration
}

// NewController returns a Controller simulating slave on the wire.
func NewController(slave Slave) *Controller {
	return &Controller{slave: slave, ackEnabled: true, irqDelay: time.Microsecond}
}

// SetIRQDelay changes the delay between a register write and the simulated
// interrupt it provokes. Tests use this to force a Transfer timeout by
// setting a delay longer than the Transfer's deadline, and to keep a
// transfer in flight long enough to observe it.
func (c *Controller) SetIRQDelay(d time.Duration) {
	c.mu.Lock()
	c.irqDelay = d
	c.mu.Unlock()
}

func (c *Controller) delay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.irqDelay
}

func (c *Controller) fireEvent(ev uint32) {
	c.fireEventThen(ev, nil)
}

// fireEventThen fires ev after the simulated IRQ delay, runs the installed
// event handler synchronously, then calls then once the handler returns --
// used to start the read pump only after a PRE_ONE/PRE_FIRST entry action
// has had a chance to set ack state for the byte(s) that follow.
func (c *Controller) fireEventThen(ev uint32, then func()) {
	c.mu.Lock()
	c.lastEvent = ev
	cb := c.eventCB
	c.mu.Unlock()
	if cb == nil {
		return
	}
	go func() {
		time.Sleep(c.delay())
		cb()
		if then != nil {
			then()
		}
	}()
}

func (c *Controller) fireError(ackFail bool) {
	c.mu.Lock()
	c.ackFailure = ackFail
	cb := c.errCB
	c.mu.Unlock()
	if cb != nil {
		go func() {
			time.Sleep(c.delay())
			cb()
		}()
	}
}

// startReadPump begins emitting masterByteReceived events, one per irqDelay
// tick. Each tick checks ack state as it stood before this event was
// delivered: if ack was already disabled, this is the last byte the chain
// needs and the pump stops itself right after delivering it.
func (c *Controller) startReadPump() {
	c.mu.Lock()
	c.pumpGen++
	gen := c.pumpGen
	c.mu.Unlock()

	go func() {
		for {
			time.Sleep(c.delay())

			c.mu.Lock()
			live := c.inRead && c.pumpGen == gen
			ackBefore := c.ackEnabled
			if live {
				c.lastEvent = masterByteReceivedCode
			}
			cb := c.eventCB
			c.mu.Unlock()
			if !live {
				return
			}
			if cb != nil {
				cb()
			}
			if ackBefore {
				continue
			}

			// This was the chain's last byte: the FSM's entry action
			// just ran synchronously inside cb above and may have
			// queued a deferred GenerateStart for the transaction that
			// follows. Flush it now that the chain is actually done.
			c.mu.Lock()
			c.inRead = false
			next := c.pending
			c.pending = nil
			c.mu.Unlock()
			if next != nil {
				next()
			}
			return
		}
	}()
}

// --- i2c.Peripheral ---

func (c *Controller) Init() error { return nil }
func (c *Controller) Deinit()     {}

func (c *Controller) SoftwareReset() {
	c.mu.Lock()
	c.busy = false
	c.inRead = false
	c.pending = nil
	c.mu.Unlock()
}

// GenerateStart issues the master-mode-select event (EV5); the address
// phase is classified once SendAddress runs, same as real hardware. If
// called while a read's byte chain is still in flight -- the N=1 erratum
// workaround calls this before the chain's last byte is actually
// received, to queue the repeated START that follows it -- the event is
// deferred until that chain's pump delivers its last byte, rather than
// fired immediately, so it cannot be classified against stale FSM state.
func (c *Controller) GenerateStart() {
	c.mu.Lock()
	c.busy = true
	deferred := c.inRead
	if deferred {
		c.pending = func() { c.fireEvent(masterModeSelectCode) }
	}
	c.mu.Unlock()
	if !deferred {
		c.fireEvent(masterModeSelectCode)
	}
}

func (c *Controller) GenerateStop() {
	c.mu.Lock()
	c.stopWait = true
	c.mu.Unlock()
	go func() {
		time.Sleep(c.delay())
		c.mu.Lock()
		c.stopWait = false
		c.mu.Unlock()
	}()
}

func (c *Controller) StopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopWait
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Controller) SendAddress(addr uint8, dir i2c.Direction) {
	ack := c.slave.Start(addr, dir)
	if !ack {
		c.fireError(true)
		return
	}
	if dir == i2c.Read {
		c.mu.Lock()
		c.inRead = true
		c.mu.Unlock()
		c.fireEventThen(masterReceiverModeSelectedCode, c.startReadPump)
	} else {
		c.fireEvent(masterTransmitterModeSelectedCode)
	}
}

func (c *Controller) SendByte(b byte) {
	if !c.slave.WriteByte(b) {
		c.fireError(true)
		return
	}
	c.fireEvent(masterByteTransmittedCode)
}

func (c *Controller) ReceiveByte() byte {
	return c.slave.ReadByte()
}

func (c *Controller) SetAck(enabled bool) {
	c.mu.Lock()
	c.ackEnabled = enabled
	c.mu.Unlock()
}

func (c *Controller) EnableInterrupts(i2c.InterruptSources) {}

// DisableInterrupts clears busy when sources == All. The FSM's terminal
// entry actions (Stopping, Stopped, Nack) pass All, which makes this the
// point to mark the simulated bus idle again, unlike timing the clear off
// GenerateStop's async completion, which can race a read chain's own
// in-flight pump iteration. The PRE_LAST read entry actions also pass All
// inside their critical section, so busy also reads false from there until
// the next GenerateStart.
func (c *Controller) DisableInterrupts(sources i2c.InterruptSources) {
	if sources == i2c.All {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}
}

func (c *Controller) LastEvent() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEvent
}

func (c *Controller) AckFailure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ackFailure
}

func (c *Controller) ClearAckFailure() {
	c.mu.Lock()
	c.ackFailure = false
	c.mu.Unlock()
}

// --- i2c.IRQInstaller ---

func (c *Controller) InstallEventIRQ(_ i2c.InterruptPriority, handler func()) {
	c.mu.Lock()
	c.eventCB = handler
	c.mu.Unlock()
}

func (c *Controller) InstallErrorIRQ(_ i2c.InterruptPriority, handler func()) {
	c.mu.Lock()
	c.errCB = handler
	c.mu.Unlock()
}

// --- i2c.Clock ---

// DelayMicroseconds sleeps for the requested duration. Bus recovery's retry
// loops call this between bit-bang edges; a real sleep (rather than a
// no-op) lets a HungSlave's goroutine-based release timer race realistically
// against the recovery loop.
func (c *Controller) DelayMicroseconds(us uint32) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

var (
	_ i2c.Peripheral   = (*Controller)(nil)
	_ i2c.IRQInstaller = (*Controller)(nil)
	_ i2c.Clock        = (*Controller)(nil)
)
