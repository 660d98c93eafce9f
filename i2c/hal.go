// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2c

import "periph.io/x/conn/v3/gpio"

// InterruptSources is a bitmask of the peripheral's maskable interrupt
// sources, mirroring the STM32 I2C_IT_EVT/I2C_IT_BUF/I2C_IT_ERR split: the
// STARTING entry action enables all three for a read but withholds
// BufferIT for a write, because the peripheral otherwise storms TxE
// interrupts the driver never acts on (see pios_i2c.c, OP-326).
type InterruptSources uint8

const (
	EventIT InterruptSources = 1 << iota
	BufferIT
	ErrorIT
)

// All is the full interrupt source set, used by states that disable
// everything on the way to STOPPED/STOPPING/NACK.
const All = EventIT | BufferIT | ErrorIT

// Peripheral is the required interface to a platform's I2C peripheral
// register block. Implementations are expected to be thin register
// wrappers; none of the FSM logic belongs here.
type Peripheral interface {
	// Init configures clocks, own address and default ACK state.
	Init() error
	// Deinit disables and resets the peripheral block.
	Deinit()
	// SoftwareReset pulses the peripheral's software-reset control,
	// clearing a stuck BUSY flag that survives Deinit/Init.
	SoftwareReset()

	GenerateStart()
	GenerateStop()
	// StopRequested reports whether a previously issued STOP has not yet
	// completed on the wire.
	StopRequested() bool
	// Busy reports the controller's bus-busy status flag.
	Busy() bool

	SendAddress(addr uint8, dir Direction)
	SendByte(b byte)
	ReceiveByte() byte

	SetAck(enabled bool)

	EnableInterrupts(sources InterruptSources)
	DisableInterrupts(sources InterruptSources)

	// LastEvent returns the peripheral's raw latched status register,
	// consumed by the event IRQ classifier.
	LastEvent() uint32
	// AckFailure reports whether an address/data NACK is latched in the
	// error status register.
	AckFailure() bool
	// ClearAckFailure clears the latched NACK flag.
	ClearAckFailure()
}

// RecoveryPin is a GPIO pin usable both as the I2C peripheral's alternate
// function and, during bus recovery, as a manually driven open-drain
// output/input.
type RecoveryPin interface {
	gpio.PinIO
	// UseAsGPIO reconfigures the pin as an open-drain general-purpose
	// output for bit-banged recovery.
	UseAsGPIO() error
	// UseAsPeripheralFunction restores the pin to the I2C peripheral's
	// alternate function after recovery completes.
	UseAsPeripheralFunction() error
}

// Clock provides the microsecond delay bus recovery needs between bit-bang
// edges.
type Clock interface {
	DelayMicroseconds(us uint32)
}

// IRQState is an opaque token returned by InterruptController.Disable and
// consumed by InterruptController.Restore; its representation is
// platform-defined (e.g. a saved PRIMASK).
type IRQState any

// InterruptController masks/unmasks the processor's global interrupt line
// around FSM state advancement, matching PIOS_IRQ_Disable/PIOS_IRQ_Enable.
type InterruptController interface {
	Disable() IRQState
	Restore(IRQState)
}

// InterruptPriority is an opaque, platform-defined interrupt priority
// descriptor (e.g. NVIC preempt/sub-priority).
type InterruptPriority struct {
	Preempt, Sub uint8
}

// IRQInstaller installs the adapter's event and error IRQ handlers at the
// priority level given in Config. Platforms that cannot parameterize an
// IRQ vector directly should route through a small trampoline table keyed
// by peripheral instance and call through to the supplied handler.
type IRQInstaller interface {
	InstallEventIRQ(priority InterruptPriority, handler func())
	InstallErrorIRQ(priority InterruptPriority, handler func())
}
