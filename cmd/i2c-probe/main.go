// Copyright 2024 The dRonin Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// i2c-probe exercises an i2c.Adapter against a simulated peripheral,
// driving the real FSM end to end without hardware. There is no platform
// HAL in this module, so the probed bus is always i2csim; a board support
// package wiring a real Peripheral/RecoveryPin/InterruptController would
// swap Config.Peripheral/SCL/SDA/Interrupts for hardware-backed ones and
// reuse the rest of this command unchanged.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/andrewfernie/dRonin/i2c"
	"github.com/andrewfernie/dRonin/i2c/i2csim"
)

func mainImpl() error {
	addr := flag.Int("a", 0x1E, "I²C peripheral address to query")
	verbose := flag.Bool("v", false, "verbose mode")
	write := flag.Bool("w", false, "write instead of reading")
	reg := flag.Int("r", 0, "register to address")
	l := flag.Int("l", 1, "length of data to read; ignored if -w is specified")
	hz := flag.Int("hz", 400000, "simulated I²C bus speed in Hz")
	nackAt := flag.Int("nack-at", 0, "simulate the slave NACKing its Nth write byte (0 disables)")
	timeout := flag.Duration("timeout", 200*time.Millisecond, "per-transfer timeout")
	flag.Parse()

	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	if *addr < 0 || *addr > 0x7F {
		return fmt.Errorf("-a must be between 0 and 0x7F")
	}
	if *reg < 0 || *reg > 255 {
		return errors.New("-r must be between 0 and 255")
	}
	if *l <= 0 || *l > 255 {
		return errors.New("-l must be between 1 and 255")
	}

	var buf []byte
	if *write {
		if flag.NArg() == 0 {
			return errors.New("specify data to write as a list of hex encoded bytes")
		}
		buf = make([]byte, 0, flag.NArg())
		for _, a := range flag.Args() {
			b, err := strconv.ParseUint(a, 0, 8)
			if err != nil {
				return err
			}
			buf = append(buf, byte(b))
		}
	} else {
		if flag.NArg() != 0 {
			return errors.New("do not specify bytes when reading")
		}
		buf = make([]byte, *l)
	}

	regs := make([]byte, 256)
	for i := range regs {
		regs[i] = byte(i)
	}

	var slave i2csim.Slave
	if *nackAt > 0 {
		slave = i2csim.NewNackSlave(uint8(*addr), *nackAt)
	} else {
		slave = i2csim.NewEchoSlave(uint8(*addr), regs)
	}

	ctl := i2csim.NewController(slave)
	cfg := i2c.Config{
		Peripheral:      ctl,
		SCL:             i2csim.NewPin("SCL", 0, &i2csim.Line{}),
		SDA:             i2csim.NewPin("SDA", 1, &i2csim.Line{}),
		BusClock:        physic.Frequency(*hz) * physic.Hertz,
		TransferTimeout: *timeout,
		IRQInstaller:    ctl,
		Clock:           ctl,
		Interrupts:      &i2c.HostInterruptController{},
	}

	a, err := i2c.Init(cfg)
	if err != nil {
		return fmt.Errorf("i2c: init: %w", err)
	}

	if *verbose {
		log.Printf("probing simulated address 0x%02X", *addr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *write {
		err = a.Transfer(ctx, []i2c.Txn{
			{Dir: i2c.Write, Addr: uint8(*addr), Buf: buf},
		})
	} else {
		err = a.Transfer(ctx, []i2c.Txn{
			{Dir: i2c.Write, Addr: uint8(*addr), Buf: []byte{byte(*reg)}},
			{Dir: i2c.Read, Addr: uint8(*addr), Buf: buf},
		})
		if err == nil {
			for i, b := range buf {
				if i != 0 {
					fmt.Print(", ")
				}
				fmt.Printf("0x%02X", b)
			}
			fmt.Println()
		}
	}
	if err != nil {
		return fmt.Errorf("i2c: transfer: %w", err)
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "i2c-probe: %s.\n", err)
		os.Exit(1)
	}
}
