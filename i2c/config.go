// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2c

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// defaultTelemetryDepth is used when Config.TelemetryDepth is zero.
const defaultTelemetryDepth = 8

// Config describes one I2C peripheral instance and the platform resources
// the adapter needs to drive it.
type Config struct {
	// Peripheral is the HAL handle to the I2C peripheral register block.
	Peripheral Peripheral

	// SCL and SDA are the bus pins, used for bit-banged bus recovery.
	SCL, SDA RecoveryPin

	// Remap optionally selects an alternate pin mapping for the
	// peripheral's SCL/SDA function. Nil if the platform needs no remap.
	Remap func() error

	// BusClock is the I2C bus clock frequency, e.g. 400*physic.KiloHertz.
	BusClock physic.Frequency

	// TransferTimeout bounds both the mutex acquisition and the
	// completion-semaphore wait inside Transfer when the caller's context
	// carries no deadline; a context deadline takes its place otherwise.
	TransferTimeout time.Duration

	EventIRQPriority, ErrorIRQPriority InterruptPriority
	IRQInstaller                       IRQInstaller

	Clock      Clock
	Interrupts InterruptController

	// TelemetryDepth sizes the diagnostic ring buffers; 0 selects a
	// default of 8, matching a typical board's I2C_LOG_DEPTH.
	TelemetryDepth int
}

func (c *Config) validate() error {
	if c.Peripheral == nil {
		return fmt.Errorf("i2c: Config.Peripheral is required")
	}
	if c.SCL == nil || c.SDA == nil {
		return fmt.Errorf("i2c: Config.SCL and Config.SDA are required")
	}
	if c.BusClock <= 0 {
		return fmt.Errorf("i2c: Config.BusClock must be positive, got %s", c.BusClock)
	}
	if c.TransferTimeout <= 0 {
		return fmt.Errorf("i2c: Config.TransferTimeout must be positive, got %s", c.TransferTimeout)
	}
	if c.IRQInstaller == nil {
		return fmt.Errorf("i2c: Config.IRQInstaller is required")
	}
	if c.Clock == nil {
		return fmt.Errorf("i2c: Config.Clock is required")
	}
	if c.Interrupts == nil {
		return fmt.Errorf("i2c: Config.Interrupts is required")
	}
	return nil
}

func (c *Config) telemetryDepth() int {
	if c.TelemetryDepth <= 0 {
		return defaultTelemetryDepth
	}
	return c.TelemetryDepth
}
