// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2c

import (
	"context"
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	pi2c "periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// Bus adapts an Adapter to periph.io/x/conn/v3/i2c.Bus, so higher-level
// sensor drivers written against the standard periph bus interfaces can use
// this adapter as their transport.
type Bus struct {
	a    *Adapter
	name string
}

// AsBus wraps a, previously returned by Init, as a periph i2c.BusCloser.
func AsBus(a *Adapter, name string) *Bus {
	return &Bus{a: a, name: name}
}

// Tx implements i2c.Bus. A non-empty w is issued as one Write Txn, a
// non-empty r as one Read Txn, chained with a repeated START when both are
// given.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	var txns []Txn
	if len(w) != 0 {
		txns = append(txns, Txn{Dir: Write, Addr: uint8(addr), Buf: w})
	}
	if len(r) != 0 {
		txns = append(txns, Txn{Dir: Read, Addr: uint8(addr), Buf: r})
	}
	if len(txns) == 0 {
		return errors.New("i2c: Tx called with no data")
	}
	return b.a.Transfer(context.Background(), txns)
}

// SetSpeed implements i2c.Bus. The bus clock is fixed at Init time; changing
// it after the peripheral has been configured is not supported.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	return fmt.Errorf("i2c: SetSpeed not supported after Init; reconfigure Config.BusClock and re-Init")
}

// SCL implements i2c.Pins.
func (b *Bus) SCL() gpio.PinIO { return b.a.cfg.SCL }

// SDA implements i2c.Pins.
func (b *Bus) SDA() gpio.PinIO { return b.a.cfg.SDA }

// Duplex implements conn.Conn. I2C is inherently half-duplex.
func (b *Bus) Duplex() conn.Duplex { return conn.Half }

func (b *Bus) String() string { return b.name }

// Close implements i2c.BusCloser. The underlying Adapter has no explicit
// lifetime beyond Init, so Close is a no-op.
func (b *Bus) Close() error { return nil }

var (
	_ pi2c.BusCloser = (*Bus)(nil)
	_ pi2c.Pins      = (*Bus)(nil)
)
