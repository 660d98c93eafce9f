// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package i2csim

import (
	"sync"
	"time"

	"github.com/andrewfernie/dRonin/i2c"
)

// EchoSlave is a Slave backed by a byte-addressable register file, modeling
// the common "write register pointer, then read back N bytes" sensor idiom
// (e.g. a magnetometer or IMU). It acknowledges its configured address and
// any write, and serves reads starting at the most recently written pointer
// byte, auto-incrementing across the register file with wraparound.
type EchoSlave struct {
	mu   sync.Mutex
	addr uint8
	regs []byte
	ptr  int

	writesSeen int
}

// NewEchoSlave returns an EchoSlave answering to addr, with regs as its
// initial register file (copied).
func NewEchoSlave(addr uint8, regs []byte) *EchoSlave {
	cp := make([]byte, len(regs))
	copy(cp, regs)
	return &EchoSlave{addr: addr, regs: cp}
}

func (s *EchoSlave) Start(addr uint8, dir i2c.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if addr != s.addr {
		return false
	}
	if dir == i2c.Write {
		s.writesSeen = 0
	}
	return true
}

func (s *EchoSlave) WriteByte(b byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writesSeen == 0 {
		s.ptr = int(b) % len(s.regs)
	} else if len(s.regs) != 0 {
		s.regs[s.ptr] = b
		s.ptr = (s.ptr + 1) % len(s.regs)
	}
	s.writesSeen++
	return true
}

func (s *EchoSlave) ReadByte() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.regs) == 0 {
		return 0xFF
	}
	b := s.regs[s.ptr]
	s.ptr = (s.ptr + 1) % len(s.regs)
	return b
}

// Registers returns a copy of the slave's current register file, for test
// assertions.
func (s *EchoSlave) Registers() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(s.regs))
	copy(cp, s.regs)
	return cp
}

// NackSlave acknowledges addressing but NACKs the Nth write byte it
// receives (counting from 1), modeling a device that aborts a transaction
// partway through, e.g. rejecting an out-of-range register address.
type NackSlave struct {
	addr     uint8
	nackAt   int
	mu       sync.Mutex
	writes   int
}

// NewNackSlave returns a NackSlave answering to addr that NACKs its nackAt'th
// write byte. nackAt == 0 NACKs the address phase itself.
func NewNackSlave(addr uint8, nackAt int) *NackSlave {
	return &NackSlave{addr: addr, nackAt: nackAt}
}

func (s *NackSlave) Start(addr uint8, dir i2c.Direction) bool {
	if addr != s.addr {
		return false
	}
	s.mu.Lock()
	s.writes = 0
	s.mu.Unlock()
	return s.nackAt != 0
}

func (s *NackSlave) WriteByte(b byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	return s.writes != s.nackAt
}

func (s *NackSlave) ReadByte() byte { return 0xFF }

// HungSlave wedges a Line low for a fixed duration after being addressed,
// modeling a device that stretches the clock or holds SDA low for that
// duration, then releases it, letting the bus recovery procedure's bit-bang loop
// observe the line going high again.
type HungSlave struct {
	addr uint8
	line *Line
	hold time.Duration

	triggered bool
	mu        sync.Mutex
}

// NewHungSlave returns a HungSlave that, once addressed, holds line low for
// hold before releasing it.
func NewHungSlave(addr uint8, line *Line, hold time.Duration) *HungSlave {
	return &HungSlave{addr: addr, line: line, hold: hold}
}

func (s *HungSlave) Start(addr uint8, dir i2c.Direction) bool {
	if addr != s.addr {
		return false
	}
	s.mu.Lock()
	already := s.triggered
	s.triggered = true
	s.mu.Unlock()
	if !already {
		s.line.Hold(true)
		go func() {
			time.Sleep(s.hold)
			s.line.Hold(false)
		}()
	}
	return true
}

func (s *HungSlave) WriteByte(b byte) bool { return true }
func (s *HungSlave) ReadByte() byte        { return 0xFF }

var (
	_ Slave = (*EchoSlave)(nil)
	_ Slave = (*NackSlave)(nil)
	_ Slave = (*HungSlave)(nil)
)
