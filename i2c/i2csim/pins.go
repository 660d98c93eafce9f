// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2csim

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"github.com/andrewfernie/dRonin/i2c"
)

// Pin is a simulated bus pin wired to a shared Line, implementing
// i2c.RecoveryPin so reset.go's bit-bang recovery exercises real
// In/Out/Read calls against simulated electrical behavior.
type Pin struct {
	name string
	num  int
	line *Line

	asGPIO bool
}

// NewPin returns a Pin named n, wired to line.
func NewPin(n string, num int, line *Line) *Pin {
	return &Pin{name: n, num: num, line: line}
}

func (p *Pin) String() string { return p.name }
func (p *Pin) Halt() error    { return nil }
func (p *Pin) Name() string   { return p.name }
func (p *Pin) Number() int    { return p.num }

func (p *Pin) Function() string {
	if p.asGPIO {
		return "GPIO_OUT"
	}
	return "I2C"
}

func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return errors.New("i2csim: edge triggering not supported")
	}
	p.line.drive(false)
	return nil
}

func (p *Pin) Read() gpio.Level { return p.line.level() }

func (p *Pin) WaitForEdge(t time.Duration) bool { return false }

func (p *Pin) DefaultPull() gpio.Pull { return gpio.PullUp }
func (p *Pin) Pull() gpio.Pull        { return gpio.PullUp }

func (p *Pin) Out(l gpio.Level) error {
	p.line.drive(l == gpio.Low)
	return nil
}

func (p *Pin) PWM(gpio.Duty, physic.Frequency) error {
	return fmt.Errorf("i2csim: PWM not supported")
}

// UseAsGPIO implements i2c.RecoveryPin.
func (p *Pin) UseAsGPIO() error {
	p.asGPIO = true
	return nil
}

// UseAsPeripheralFunction implements i2c.RecoveryPin.
func (p *Pin) UseAsPeripheralFunction() error {
	p.asGPIO = false
	p.line.drive(false)
	return nil
}

var _ i2c.RecoveryPin = (*Pin)(nil)
