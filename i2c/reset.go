// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2c

import "periph.io/x/conn/v3/gpio"

// maxRecoveryRetries bounds every retry loop in resetBus so a genuinely
// dead bus fails fast instead of spinning forever.
const maxRecoveryRetries = 10

// resetBus frees a slave wedged holding SDA low by manually bit-banging
// SCL, then reinitializes the peripheral. Invoked on entry to BUS_ERROR and
// FSM_FAULT, and once before the first transfer. A slave holding SDA low
// mid-read cannot be freed by peripheral reset alone; only walking clocks
// by hand gets it to release the bus.
func (a *Adapter) resetBus() {
	a.hw.Deinit()

	if err := a.cfg.SCL.UseAsGPIO(); err != nil {
		a.diag.interruptFaults.Add(1)
	}
	a.cfg.SCL.Out(gpio.High)
	if err := a.cfg.SDA.UseAsGPIO(); err != nil {
		a.diag.interruptFaults.Add(1)
	}
	a.cfg.SDA.Out(gpio.High)

	for i := 0; i < maxRecoveryRetries && a.cfg.SDA.Read() == gpio.Low; i++ {
		a.cfg.SCL.Out(gpio.High)
		for j := 0; j < maxRecoveryRetries && a.cfg.SCL.Read() == gpio.Low; j++ {
			a.cfg.Clock.DelayMicroseconds(1)
		}
		a.cfg.Clock.DelayMicroseconds(2)

		a.cfg.SCL.Out(gpio.Low)
		a.cfg.Clock.DelayMicroseconds(2)

		a.cfg.SCL.Out(gpio.High)
		a.cfg.Clock.DelayMicroseconds(2)
	}

	// Hand-rolled START then STOP.
	a.cfg.SCL.Out(gpio.High)
	a.cfg.Clock.DelayMicroseconds(2)
	a.cfg.SDA.Out(gpio.Low)
	a.cfg.Clock.DelayMicroseconds(2)
	a.cfg.SDA.Out(gpio.High)
	a.cfg.Clock.DelayMicroseconds(2)

	a.cfg.SDA.Out(gpio.High)
	a.cfg.SCL.Out(gpio.High)

	for i := 0; i < maxRecoveryRetries && a.cfg.SCL.Read() == gpio.Low; i++ {
		a.cfg.Clock.DelayMicroseconds(1)
	}
	for i := 0; i < maxRecoveryRetries && a.cfg.SDA.Read() == gpio.Low; i++ {
		a.cfg.Clock.DelayMicroseconds(1)
	}

	// Bus signals are high (free) past this point, unless a line is still
	// held low after the bounded waits above.
	if err := a.cfg.SCL.UseAsPeripheralFunction(); err != nil {
		a.diag.interruptFaults.Add(1)
	}
	if err := a.cfg.SDA.UseAsPeripheralFunction(); err != nil {
		a.diag.interruptFaults.Add(1)
	}

	a.hw.Deinit()
	if err := a.hw.Init(); err != nil {
		a.diag.interruptFaults.Add(1)
	}

	if a.hw.Busy() {
		a.hw.SoftwareReset()
	}
}
